// Package sublarrerr defines the structured error taxonomy from §7: each
// family carries enough context for a worker to convert it into a terminal
// job result without inspecting error strings. Mirrors the teacher's
// *ProviderError pattern (internal/core/ai/provider.go) generalized to every
// failure family the engine can produce.
package sublarrerr

import "fmt"

// ProviderErrorCode enumerates why a subtitle provider call failed.
type ProviderErrorCode string

const (
	ProviderAuth      ProviderErrorCode = "auth"
	ProviderRateLimit ProviderErrorCode = "rate_limit"
	ProviderNetwork   ProviderErrorCode = "network"
	ProviderParse     ProviderErrorCode = "parse"
	ProviderEmpty     ProviderErrorCode = "empty"
)

// ProviderError never propagates above the Provider Manager (§7): the
// manager opens the relevant breaker, logs, and reports "0 results" upstream.
type ProviderError struct {
	Provider   string
	Code       ProviderErrorCode
	Message    string
	RetryAfter int // seconds, 0 if not provided
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %s", e.Provider, e.Code, e.Message)
}

// TranslationErrorCode enumerates why a translation backend call failed.
type TranslationErrorCode string

const (
	BackendUnavailable TranslationErrorCode = "backend_unavailable"
	BadResponse        TranslationErrorCode = "bad_response"
	LineCountMismatch  TranslationErrorCode = "line_count_mismatch"
	BackendAuth        TranslationErrorCode = "auth"
)

// TranslationError advances the fallback chain; it only surfaces to the
// caller once every configured backend has been exhausted.
type TranslationError struct {
	Backend string
	Code    TranslationErrorCode
	Message string
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("backend %s: %s: %s", e.Backend, e.Code, e.Message)
}

// FileErrorCode enumerates filesystem/format failures, fatal for the item.
type FileErrorCode string

const (
	FileNotFound      FileErrorCode = "not_found"
	FileEncoding      FileErrorCode = "encoding"
	FileFormatInvalid FileErrorCode = "format_invalid"
)

// FileError is fatal for the containing WantedItem.
type FileError struct {
	Path    string
	Code    FileErrorCode
	Message string
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file %s: %s: %s", e.Path, e.Code, e.Message)
}

// DatabaseError is fatal for the containing job and must never be swallowed
// above the job boundary.
type DatabaseError struct {
	Op      string
	Message string
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database: %s: %s", e.Op, e.Message)
}

// ConfigError surfaces at the API boundary (400) or blocks server startup.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Message)
}

// IsRetryable reports whether a ProviderError should be retried by the
// caller's backoff policy.
func IsRetryable(err error) bool {
	if pe, ok := err.(*ProviderError); ok {
		return pe.Code == ProviderRateLimit || pe.Code == ProviderNetwork
	}
	return false
}
