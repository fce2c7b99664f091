package backends

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Abrechen2/sublarr/internal/sublarrerr"
	"github.com/Abrechen2/sublarr/internal/translation"
)

// LocalBackend implements translation.Backend for local inference servers
// (Ollama, LMStudio), ported from the teacher's LocalLLMAdapter
// (internal/core/ai/local.go) — same /api/chat request shape and longer
// timeout for unaccelerated local inference.
type LocalBackend struct {
	endpoint    string
	model       string
	client      *http.Client
	temperature float64
}

func NewLocalBackend(endpoint, model string, temperature float64) *LocalBackend {
	return &LocalBackend{
		endpoint:    endpoint,
		model:       model,
		client:      &http.Client{Timeout: 300 * time.Second},
		temperature: temperature,
	}
}

func (l *LocalBackend) Name() string { return "local" }

func (l *LocalBackend) Capabilities() translation.Capabilities {
	return translation.Capabilities{SupportsGlossary: true, SupportsSRTReference: true}
}

type localRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature"`
}

type localResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error,omitempty"`
}

func (l *LocalBackend) SendBatch(ctx context.Context, payload []translation.Line, systemPrompt string) ([]translation.Line, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, &sublarrerr.TranslationError{Backend: l.Name(), Code: sublarrerr.BadResponse, Message: err.Error()}
	}

	reqBody := localRequest{
		Model: l.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(payloadJSON)},
		},
		Stream:      false,
		Temperature: l.temperature,
	}
	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &sublarrerr.TranslationError{Backend: l.Name(), Code: sublarrerr.BadResponse, Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint+"/api/chat", bytes.NewReader(reqJSON))
	if err != nil {
		return nil, &sublarrerr.TranslationError{Backend: l.Name(), Code: sublarrerr.BackendUnavailable, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &sublarrerr.TranslationError{Backend: l.Name(), Code: sublarrerr.BackendUnavailable, Message: fmt.Sprintf("failed to connect to %s: %v", l.endpoint, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &sublarrerr.TranslationError{Backend: l.Name(), Code: sublarrerr.BadResponse, Message: err.Error()}
	}

	var apiResp localResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, &sublarrerr.TranslationError{Backend: l.Name(), Code: sublarrerr.BadResponse, Message: err.Error()}
	}
	if apiResp.Error != "" {
		return nil, &sublarrerr.TranslationError{Backend: l.Name(), Code: sublarrerr.BadResponse, Message: apiResp.Error}
	}

	var translated []translation.Line
	if err := json.Unmarshal([]byte(apiResp.Message.Content), &translated); err != nil {
		return nil, &sublarrerr.TranslationError{Backend: l.Name(), Code: sublarrerr.BadResponse, Message: fmt.Sprintf("could not parse translated lines: %v", err)}
	}
	return translated, nil
}

func (l *LocalBackend) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("local: unexpected status %d", resp.StatusCode)
	}
	return nil
}
