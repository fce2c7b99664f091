package acquisition

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Abrechen2/sublarr/internal/domain"
	"github.com/Abrechen2/sublarr/internal/media"
	"github.com/Abrechen2/sublarr/internal/subtitle"
	"github.com/Abrechen2/sublarr/internal/translation"
)

type fakeSearcher struct {
	results []domain.SubtitleResult
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, query domain.VideoQuery) ([]domain.SubtitleResult, error) {
	return f.results, f.err
}

type fakeDownloader struct {
	body []byte
	err  error
}

func (f *fakeDownloader) Download(ctx context.Context, result domain.SubtitleResult) ([]byte, error) {
	return f.body, f.err
}

type fakeBackend struct{}

func (fakeBackend) Name() string                        { return "fake" }
func (fakeBackend) Capabilities() translation.Capabilities { return translation.Capabilities{} }
func (fakeBackend) HealthCheck(ctx context.Context) error { return nil }
func (fakeBackend) SendBatch(ctx context.Context, payload []translation.Line, systemPrompt string) ([]translation.Line, error) {
	out := make([]translation.Line, len(payload))
	for i, l := range payload {
		out[i] = translation.Line{ID: l.ID, Text: "tr-" + l.Text}
	}
	return out, nil
}

type noopMemory struct{}

func (noopMemory) Put(domain.TranslationMemoryEntry) error { return nil }
func (noopMemory) Exact(string, string, string) (string, bool, error)      { return "", false, nil }
func (noopMemory) FuzzyMatch(string, string, string, int) (string, bool, error) { return "", false, nil }

func newTestPipeline(searcher ProviderSearcher, dl Downloader) *Pipeline {
	translator := translation.NewManager([]translation.Backend{fakeBackend{}}, noopMemory{}, zerolog.Nop())
	return &Pipeline{
		Providers:  searcher,
		Downloader: func(string) Downloader { return dl },
		Translator: translator,
		Media:      media.NewToolkit(""),
		Log:        zerolog.Nop(),
	}
}

func TestProcessCaseASkipsWhenTargetPresent(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "show.s01e01.mkv")
	target := filepath.Join(dir, "show.s01e01.en.ass")
	os.WriteFile(video, []byte("video"), 0644)
	os.WriteFile(target, []byte("subs"), 0644)

	p := newTestPipeline(&fakeSearcher{}, &fakeDownloader{})
	item := domain.WantedItem{FilePath: video, TargetLanguage: "en", SubtitleType: domain.SubtitleFull}
	profile := domain.LanguageProfile{SourceLanguage: "ja"}

	outcome, err := p.Process(context.Background(), item, profile, domain.VideoQuery{}, Config{})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if outcome.Status != domain.StatusCompleted || outcome.Message != "skip: present" {
		t.Fatalf("expected Case A skip outcome, got %+v", outcome)
	}
}

func TestProcessCaseCAcquiresViaProviderSearch(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "show.s01e02.mkv")
	os.WriteFile(video, []byte("video"), 0644)

	searcher := &fakeSearcher{results: []domain.SubtitleResult{
		{ProviderName: "p1", Format: domain.FormatSRT, Score: 200, Hash: "h1"},
	}}
	dl := &fakeDownloader{body: []byte("1\n00:00:01,000 --> 00:00:02,000\nHello\n\n")}

	p := newTestPipeline(searcher, dl)
	item := domain.WantedItem{FilePath: video, TargetLanguage: "en", SubtitleType: domain.SubtitleFull}
	profile := domain.LanguageProfile{SourceLanguage: "ja"}

	outcome, err := p.Process(context.Background(), item, profile, domain.VideoQuery{Title: "Show"}, Config{})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if outcome.Status != domain.StatusCompleted {
		t.Fatalf("expected completed outcome, got %+v", outcome)
	}
	if _, err := os.Stat(outcome.ResultPath); err != nil {
		t.Fatalf("expected output file to exist at %s: %v", outcome.ResultPath, err)
	}
}

func TestProcessCaseCFailsWithNoSourceWhenProvidersEmpty(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "show.s01e03.mkv")
	os.WriteFile(video, []byte("video"), 0644)

	p := newTestPipeline(&fakeSearcher{}, &fakeDownloader{})
	item := domain.WantedItem{FilePath: video, TargetLanguage: "en", SubtitleType: domain.SubtitleFull}
	profile := domain.LanguageProfile{SourceLanguage: "ja"}

	outcome, err := p.Process(context.Background(), item, profile, domain.VideoQuery{}, Config{})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if outcome.Status != domain.StatusFailed || outcome.FailureReason != domain.FailureNoSource {
		t.Fatalf("expected no_source failure, got %+v", outcome)
	}
}

func TestProcessForcedIsDownloadOnlyNeverTranslated(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "show.s01e04.mkv")
	os.WriteFile(video, []byte("video"), 0644)

	body := []byte("forced ass body")
	searcher := &fakeSearcher{results: []domain.SubtitleResult{
		{ProviderName: "p1", Format: domain.FormatASS, Score: 150, Hash: "h2", Forced: true},
	}}
	dl := &fakeDownloader{body: body}

	p := newTestPipeline(searcher, dl)
	item := domain.WantedItem{FilePath: video, TargetLanguage: "en", SubtitleType: domain.SubtitleForced}
	profile := domain.LanguageProfile{SourceLanguage: "ja"}

	outcome, err := p.Process(context.Background(), item, profile, domain.VideoQuery{}, Config{})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if outcome.Status != domain.StatusCompleted {
		t.Fatalf("expected completed outcome, got %+v", outcome)
	}
	got, err := os.ReadFile(outcome.ResultPath)
	if err != nil {
		t.Fatalf("expected forced output file: %v", err)
	}
	if string(got) != string(body) {
		t.Fatalf("expected forced file to be the raw downloaded body (download-only), got %q", got)
	}
}

func TestProcessForcedRejectsDownloadThatDoesNotReclassifyAsForced(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "show.s01e05.mkv")
	os.WriteFile(video, []byte("video"), 0644)

	body := []byte("[Script Info]\nTitle: Test\n\n[Events]\n" +
		"Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n" +
		"Dialogue: 0,0:00:01.00,0:00:02.00,Default,,0,0,0,,Hello there\n")
	searcher := &fakeSearcher{results: []domain.SubtitleResult{
		{ProviderName: "p1", Format: domain.FormatASS, Score: 150, Hash: "h5"},
	}}
	dl := &fakeDownloader{body: body}

	p := newTestPipeline(searcher, dl)
	item := domain.WantedItem{FilePath: video, TargetLanguage: "en", SubtitleType: domain.SubtitleForced}
	profile := domain.LanguageProfile{SourceLanguage: "ja"}

	outcome, err := p.Process(context.Background(), item, profile, domain.VideoQuery{}, Config{})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if outcome.Status != domain.StatusFailed || outcome.FailureReason != domain.FailureNoTarget {
		t.Fatalf("expected a no_target failure for a download that isn't actually forced, got %+v", outcome)
	}
	outPath := subtitle.OutputPath(video, "en", domain.SubtitleForced, domain.FormatASS)
	if _, statErr := os.Stat(outPath); statErr == nil {
		t.Fatal("expected no forced output file to be written")
	}
}

// unclosedTagBackend always returns text with an unterminated ASS override
// tag, to exercise lintTranslation's auto-fix path.
type unclosedTagBackend struct{}

func (unclosedTagBackend) Name() string                          { return "unclosed" }
func (unclosedTagBackend) Capabilities() translation.Capabilities { return translation.Capabilities{} }
func (unclosedTagBackend) HealthCheck(ctx context.Context) error  { return nil }
func (unclosedTagBackend) SendBatch(ctx context.Context, payload []translation.Line, systemPrompt string) ([]translation.Line, error) {
	out := make([]translation.Line, len(payload))
	for i, l := range payload {
		out[i] = translation.Line{ID: l.ID, Text: "{\\i1" + l.Text}
	}
	return out, nil
}

func TestProcessAutoFixesUnclosedTagBeforeWriting(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "show.s01e06.mkv")
	os.WriteFile(video, []byte("video"), 0644)

	searcher := &fakeSearcher{results: []domain.SubtitleResult{
		{ProviderName: "p1", Format: domain.FormatSRT, Score: 200, Hash: "h6"},
	}}
	dl := &fakeDownloader{body: []byte("1\n00:00:01,000 --> 00:00:02,000\nHello\n\n")}

	translator := translation.NewManager([]translation.Backend{unclosedTagBackend{}}, noopMemory{}, zerolog.Nop())
	p := &Pipeline{
		Providers:  searcher,
		Downloader: func(string) Downloader { return dl },
		Translator: translator,
		Media:      media.NewToolkit(""),
		Log:        zerolog.Nop(),
	}
	item := domain.WantedItem{FilePath: video, TargetLanguage: "en", SubtitleType: domain.SubtitleFull}
	profile := domain.LanguageProfile{SourceLanguage: "ja"}

	outcome, err := p.Process(context.Background(), item, profile, domain.VideoQuery{Title: "Show"}, Config{})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	got, err := os.ReadFile(outcome.ResultPath)
	if err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if strings.Count(string(got), "{") != strings.Count(string(got), "}") {
		t.Fatalf("expected the unterminated tag to be auto-closed, got %q", got)
	}
}

func TestProcessPassesStoreGlossaryIntoTranslation(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "show.s01e07.mkv")
	os.WriteFile(video, []byte("video"), 0644)

	searcher := &fakeSearcher{results: []domain.SubtitleResult{
		{ProviderName: "p1", Format: domain.FormatSRT, Score: 200, Hash: "h7"},
	}}
	dl := &fakeDownloader{body: []byte("1\n00:00:01,000 --> 00:00:02,000\nHello\n\n")}

	p := newTestPipeline(searcher, dl)
	var resolvedScope string
	p.Glossary = func(scope string) ([]domain.GlossaryEntry, error) {
		resolvedScope = scope
		return []domain.GlossaryEntry{{SourceTerm: "Hello", TargetTerm: "Olá", Scope: scope}}, nil
	}

	item := domain.WantedItem{FilePath: video, TargetLanguage: "en", SubtitleType: domain.SubtitleFull}
	profile := domain.LanguageProfile{SourceLanguage: "ja"}

	if _, err := p.Process(context.Background(), item, profile, domain.VideoQuery{Title: "Show"}, Config{}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if resolvedScope != domain.ScopeGlobal {
		t.Fatalf("expected pipeline to resolve the global glossary scope, got %q", resolvedScope)
	}
}

func TestProcessUpgradeSkipsOutsideWindow(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "show.s01e05.mkv")
	srt := filepath.Join(dir, "show.s01e05.en.srt")
	os.WriteFile(video, []byte("video"), 0644)
	os.WriteFile(srt, []byte("1\n00:00:01,000 --> 00:00:02,000\nHi\n\n"), 0644)

	searcher := &fakeSearcher{results: []domain.SubtitleResult{
		{ProviderName: "p1", Format: domain.FormatASS, Score: 300, Hash: "h3"},
	}}
	p := newTestPipeline(searcher, &fakeDownloader{body: []byte("ass body")})
	item := domain.WantedItem{FilePath: video, TargetLanguage: "en", SubtitleType: domain.SubtitleFull, CreatedTS: oldTimestamp()}
	profile := domain.LanguageProfile{SourceLanguage: "ja"}

	outcome, err := p.Process(context.Background(), item, profile, domain.VideoQuery{}, Config{})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if outcome.Status != domain.StatusCompleted || outcome.Message != "no upgrade path" {
		t.Fatalf("expected upgrade window to have expired, got %+v", outcome)
	}
}

func oldTimestamp() time.Time {
	return time.Now().Add(-30 * 24 * time.Hour)
}
