package translation

// SelectReferenceWindow picks a proportional slice of a target-language
// reference subtitle's lines for one dialogue batch, per §4.4: "given the
// batch's relative position within the total dialogue, select a
// proportional slice of the reference lines (+/- 20% buffer)". Full
// references are avoided for token-cost reasons, so the window scales with
// the reference's own length rather than being a fixed size.
func SelectReferenceWindow(reference []string, batchStart, batchEnd, totalLines int) []string {
	if len(reference) == 0 || totalLines == 0 {
		return nil
	}

	startFrac := float64(batchStart) / float64(totalLines)
	endFrac := float64(batchEnd) / float64(totalLines)

	const buffer = 0.20
	startFrac -= buffer * (endFrac - startFrac)
	endFrac += buffer * (endFrac - startFrac)
	if startFrac < 0 {
		startFrac = 0
	}
	if endFrac > 1 {
		endFrac = 1
	}

	n := len(reference)
	start := int(startFrac * float64(n))
	end := int(endFrac * float64(n))
	if end <= start {
		end = start + 1
	}
	if end > n {
		end = n
	}
	if start >= n {
		return nil
	}
	return reference[start:end]
}
