// Package translation implements the fallback-chain LLM translator (§4.4):
// glossary-aware prompting, SRT-reference context windowing, self-evaluated
// quality scoring with bounded retry, and a translation-memory shortcut that
// skips the network call entirely for lines already seen.
package translation

import "context"

// Line is a single subtitle line going to or coming back from a backend,
// mirroring the teacher's minified-JSON ai.Line wire shape so a backend's
// request/response payload stays small across many lines per batch.
type Line struct {
	ID   int    `json:"i"`
	Text string `json:"t"`
}

// Capabilities flags what optional prompt features a backend can use.
type Capabilities struct {
	SupportsGlossary     bool
	SupportsSRTReference bool
}

// Backend is one LLM translation backend in the fallback chain. Generalizes
// the teacher's ai.LLMProvider: SendBatch keeps the same (payload,
// systemPrompt) -> translated-payload shape, since the Manager (not the
// backend) is responsible for building that system prompt from glossary and
// SRT-reference material — the backend only needs to know how to place it in
// a chat request and parse the reply back into lines. The same method also
// backs quality scoring: the Manager asks a backend to "translate" a scoring
// prompt, and the returned Line.Text holds a stringified 0-100 score instead
// of translated text.
type Backend interface {
	Name() string
	Capabilities() Capabilities
	SendBatch(ctx context.Context, payload []Line, systemPrompt string) ([]Line, error)
	HealthCheck(ctx context.Context) error
}
