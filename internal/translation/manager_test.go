package translation

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
)

type fakeBackend struct {
	name     string
	caps     Capabilities
	fail     bool
	translateFn func(payload []Line, systemPrompt string) []Line
}

func (f *fakeBackend) Name() string               { return f.name }
func (f *fakeBackend) Capabilities() Capabilities { return f.caps }
func (f *fakeBackend) HealthCheck(ctx context.Context) error { return nil }

func (f *fakeBackend) SendBatch(ctx context.Context, payload []Line, systemPrompt string) ([]Line, error) {
	if f.fail {
		return nil, fmt.Errorf("%s: simulated failure", f.name)
	}
	if f.translateFn != nil {
		return f.translateFn(payload, systemPrompt), nil
	}
	out := make([]Line, len(payload))
	for i, l := range payload {
		out[i] = Line{ID: l.ID, Text: "[" + f.name + "]" + l.Text}
	}
	return out, nil
}

func newMemStore() *fakeMemoryStore {
	return &fakeMemoryStore{exact: map[string]string{}, fuzzy: map[string]string{}}
}

func TestManagerTranslateBatchUsesMemoryShortcut(t *testing.T) {
	mem := newMemStore()
	mem.exact[NormalizeSource("hello")] = "hola"

	backend := &fakeBackend{name: "b1", caps: Capabilities{true, true}}
	mgr := NewManager([]Backend{backend}, mem, zerolog.Nop())

	result, err := mgr.TranslateBatch(context.Background(), []Line{{ID: 1, Text: "hello"}}, Options{SourceLang: "en", TargetLang: "es"})
	if err != nil {
		t.Fatalf("TranslateBatch failed: %v", err)
	}
	if result.Lines[0].Text != "hola" {
		t.Fatalf("expected memory-cached translation, got %q", result.Lines[0].Text)
	}
}

func TestManagerTranslateBatchFallsBackOnBackendFailure(t *testing.T) {
	mem := newMemStore()
	bad := &fakeBackend{name: "bad", caps: Capabilities{true, true}, fail: true}
	good := &fakeBackend{name: "good", caps: Capabilities{true, true}}

	mgr := NewManager([]Backend{bad, good}, mem, zerolog.Nop())
	result, err := mgr.TranslateBatch(context.Background(), []Line{{ID: 1, Text: "hi"}}, Options{SourceLang: "en", TargetLang: "es"})
	if err != nil {
		t.Fatalf("expected fallback to succeed, got err: %v", err)
	}
	if result.Lines[0].Text != "[good]hi" {
		t.Fatalf("expected fallback backend's output, got %q", result.Lines[0].Text)
	}
}

func TestManagerTranslateBatchFailsWhenAllBackendsExhausted(t *testing.T) {
	mem := newMemStore()
	bad1 := &fakeBackend{name: "bad1", caps: Capabilities{true, true}, fail: true}
	bad2 := &fakeBackend{name: "bad2", caps: Capabilities{true, true}, fail: true}

	mgr := NewManager([]Backend{bad1, bad2}, mem, zerolog.Nop())
	_, err := mgr.TranslateBatch(context.Background(), []Line{{ID: 1, Text: "hi"}}, Options{SourceLang: "en", TargetLang: "es"})
	if err == nil {
		t.Fatal("expected error once every backend is exhausted")
	}
}

func TestManagerTranslateBatchStoresNewMemoryEntries(t *testing.T) {
	mem := newMemStore()
	backend := &fakeBackend{name: "b1", caps: Capabilities{true, true}}
	mgr := NewManager([]Backend{backend}, mem, zerolog.Nop())

	_, err := mgr.TranslateBatch(context.Background(), []Line{{ID: 1, Text: "new line"}}, Options{SourceLang: "en", TargetLang: "es"})
	if err != nil {
		t.Fatalf("TranslateBatch failed: %v", err)
	}
	if len(mem.put) != 1 {
		t.Fatalf("expected one new memory entry to be stored, got %d", len(mem.put))
	}
}

func TestManagerTranslateBatchRetriesLowQualityLines(t *testing.T) {
	mem := newMemStore()
	attempt := 0
	backend := &fakeBackend{
		name: "scorer",
		caps: Capabilities{true, true},
		translateFn: func(payload []Line, systemPrompt string) []Line {
			out := make([]Line, len(payload))
			if len(systemPrompt) > 12 && systemPrompt[:12] == "You will be " {
				attempt++
				score := 30
				if attempt > 1 {
					score = 90
				}
				for i, l := range payload {
					out[i] = Line{ID: l.ID, Text: strconv.Itoa(score)}
				}
				return out
			}
			for i, l := range payload {
				out[i] = Line{ID: l.ID, Text: "translated-" + l.Text}
			}
			return out
		},
	}

	mgr := NewManager([]Backend{backend}, mem, zerolog.Nop())
	result, err := mgr.TranslateBatch(context.Background(), []Line{{ID: 1, Text: "hi"}}, Options{
		SourceLang:   "en",
		TargetLang:   "es",
		SelfEvaluate: true,
	})
	if err != nil {
		t.Fatalf("TranslateBatch failed: %v", err)
	}
	if result.Stats.QualityThreshold != defaultQualityThreshold {
		t.Fatalf("expected default quality threshold, got %d", result.Stats.QualityThreshold)
	}
	if result.Stats.MinQuality != 90 || result.Stats.LowQualityLines != 0 {
		t.Fatalf("expected the retried line to keep its better score 90, got min=%d low=%d", result.Stats.MinQuality, result.Stats.LowQualityLines)
	}
}
