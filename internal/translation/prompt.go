package translation

import (
	"fmt"
	"strings"

	"github.com/Abrechen2/sublarr/internal/domain"
)

// BuildPrompt assembles the system prompt for one translation batch (§4.4):
// exact-line-count instructions, an optional glossary header, and an
// optional SRT-reference block of surrounding-context lines. The teacher
// sends a flat systemPrompt string alongside a minified JSON payload
// (ai/openrouter.go's SendBatch); this keeps that shape and adds the two
// domain-specific sections the spec requires on top of it.
func BuildPrompt(sourceLang, targetLang string, lineCount int, glossary []domain.GlossaryEntry, srtReference []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Translate the following %d subtitle lines from %s to %s.\n", lineCount, sourceLang, targetLang)
	b.WriteString("Return a JSON array of objects with the same \"i\" ids and translated \"t\" text, ")
	b.WriteString("in the same order, with exactly the same number of entries as the input. ")
	b.WriteString("Preserve line breaks within a line's text. Do not merge or split lines.\n")

	if len(glossary) > 0 {
		b.WriteString("\nGlossary (use these exact translations wherever a source term appears):\n")
		for _, g := range glossary {
			fmt.Fprintf(&b, "- %s => %s\n", g.SourceTerm, g.TargetTerm)
		}
	}

	if len(srtReference) > 0 {
		b.WriteString("\nReference lines from an existing target-language subtitle for this video, ")
		b.WriteString("for vocabulary and tone only — they are not aligned to the lines being translated:\n")
		for _, line := range srtReference {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return b.String()
}

// BuildScoringPrompt asks a backend to self-evaluate a batch of translated
// lines against their sources (§4.4's self-evaluation step), returning its
// judgment as the same minified Line shape with Text holding a "0"-"100"
// score string instead of translated text.
func BuildScoringPrompt(sourceLang, targetLang string, source []Line) string {
	var b strings.Builder
	b.WriteString("You will be given translated subtitle lines. Score each one 0-100 for translation ")
	fmt.Fprintf(&b, "quality from %s to %s, judging fluency, meaning preservation, and naturalness.\n", sourceLang, targetLang)
	b.WriteString("Return a JSON array of objects with the same \"i\" ids and a \"t\" field holding the ")
	b.WriteString("score as a plain integer string, e.g. {\"i\":1,\"t\":\"87\"}.\n")
	b.WriteString("\nSource lines, by id, for reference:\n")
	for _, l := range source {
		fmt.Fprintf(&b, "- [%d] %s\n", l.ID, l.Text)
	}
	return b.String()
}
