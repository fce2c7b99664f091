package translation

import "testing"

func TestSelectReferenceWindowScalesWithBatchPosition(t *testing.T) {
	ref := make([]string, 100)
	for i := range ref {
		ref[i] = "line"
	}

	early := SelectReferenceWindow(ref, 0, 10, 100)
	late := SelectReferenceWindow(ref, 90, 100, 100)

	if len(early) == 0 || len(late) == 0 {
		t.Fatalf("expected non-empty windows, got early=%d late=%d", len(early), len(late))
	}
}

func TestSelectReferenceWindowEmptyReference(t *testing.T) {
	if got := SelectReferenceWindow(nil, 0, 10, 100); got != nil {
		t.Fatalf("expected nil window for empty reference, got %v", got)
	}
}
