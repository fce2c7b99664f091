// Package backends adapts the teacher's internal/core/ai adapters
// (openrouter.go, openai.go, gemini.go, local.go) into translation.Backend
// implementations. OpenRouter and OpenAI share an identical chat-completions
// wire format in the teacher's code (two near-duplicate files); ChatBackend
// factors that shared shape into one type configured by base URL and auth
// header, since the difference between the two providers is only which
// endpoint and key they use, not how the request/response is built.
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

// maxBatchTokens bounds a single chat-completions request's line payload;
// a batch estimated over this splits into sequential sub-requests instead
// of risking a context-length rejection from the backend.
const maxBatchTokens = 6000

// ChatBackend implements translation.Backend against any OpenAI-compatible
// chat-completions endpoint.
type ChatBackend struct {
	name        string
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
	extraHeader func(req *http.Request)
	tokens      *translation.TokenEstimator
}

func NewOpenRouterBackend(apiKey, model string, temperature float64) *ChatBackend {
	return &ChatBackend{
		name:        "openrouter",
		baseURL:     "https://openrouter.ai/api/v1",
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		client:      &http.Client{Timeout: 120 * time.Second},
		extraHeader: func(req *http.Request) {
			req.Header.Set("HTTP-Referer", "https://github.com/Abrechen2/sublarr")
			req.Header.Set("X-Title", "sublarr")
		},
		tokens: translation.NewTokenEstimator(),
	}
}

func NewOpenAIBackend(apiKey, model string, temperature float64) *ChatBackend {
	return &ChatBackend{
		name:        "openai",
		baseURL:     "https://api.openai.com/v1",
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		client:      &http.Client{Timeout: 120 * time.Second},
		tokens:      translation.NewTokenEstimator(),
	}
}

func (c *ChatBackend) Name() string { return c.name }

func (c *ChatBackend) Capabilities() translation.Capabilities {
	return translation.Capabilities{SupportsGlossary: true, SupportsSRTReference: true}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// SendBatch chunks payload by estimated token count before dispatching, so
// a long episode's line batch doesn't risk a context-length rejection from
// the backend; each chunk is sent as its own request and results are
// concatenated back in order.
func (c *ChatBackend) SendBatch(ctx context.Context, payload []translation.Line, systemPrompt string) ([]translation.Line, error) {
	chunks := c.splitByTokenBudget(payload, systemPrompt)
	if len(chunks) == 1 {
		return c.sendChunk(ctx, chunks[0], systemPrompt)
	}

	var out []translation.Line
	for _, chunk := range chunks {
		translated, err := c.sendChunk(ctx, chunk, systemPrompt)
		if err != nil {
			return nil, err
		}
		out = append(out, translated...)
	}
	return out, nil
}

// splitByTokenBudget greedily groups lines so each group's estimated token
// count (lines plus the shared system prompt) stays under maxBatchTokens. A
// single line that alone exceeds the budget still gets its own chunk rather
// than being dropped.
func (c *ChatBackend) splitByTokenBudget(payload []translation.Line, systemPrompt string) [][]translation.Line {
	promptTokens := c.tokens.EstimateTokens(systemPrompt)
	var chunks [][]translation.Line
	var current []translation.Line
	currentTokens := promptTokens

	for _, line := range payload {
		lineTokens := c.tokens.EstimateTokens(line.Text)
		if len(current) > 0 && currentTokens+lineTokens > maxBatchTokens {
			chunks = append(chunks, current)
			current = nil
			currentTokens = promptTokens
		}
		current = append(current, line)
		currentTokens += lineTokens
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	if len(chunks) == 0 {
		chunks = [][]translation.Line{payload}
	}
	return chunks
}

func (c *ChatBackend) sendChunk(ctx context.Context, payload []translation.Line, systemPrompt string) ([]translation.Line, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, &sublarrerr.TranslationError{Backend: c.name, Code: sublarrerr.BadResponse, Message: err.Error()}
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(payloadJSON)},
		},
		Temperature: c.temperature,
	}
	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &sublarrerr.TranslationError{Backend: c.name, Code: sublarrerr.BadResponse, Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqJSON))
	if err != nil {
		return nil, &sublarrerr.TranslationError{Backend: c.name, Code: sublarrerr.BackendUnavailable, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.extraHeader != nil {
		c.extraHeader(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &sublarrerr.TranslationError{Backend: c.name, Code: sublarrerr.BackendUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &sublarrerr.TranslationError{Backend: c.name, Code: sublarrerr.BadResponse, Message: err.Error()}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &sublarrerr.TranslationError{Backend: c.name, Code: sublarrerr.BackendAuth, Message: "unauthorized"}
	}

	var apiResp chatResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, &sublarrerr.TranslationError{Backend: c.name, Code: sublarrerr.BadResponse, Message: err.Error()}
	}
	if apiResp.Error != nil {
		return nil, &sublarrerr.TranslationError{Backend: c.name, Code: sublarrerr.BadResponse, Message: apiResp.Error.Message}
	}
	if len(apiResp.Choices) == 0 {
		return nil, &sublarrerr.TranslationError{Backend: c.name, Code: sublarrerr.BadResponse, Message: "no choices in response"}
	}

	var translated []translation.Line
	if err := json.Unmarshal([]byte(apiResp.Choices[0].Message.Content), &translated); err != nil {
		return nil, &sublarrerr.TranslationError{Backend: c.name, Code: sublarrerr.BadResponse, Message: fmt.Sprintf("could not parse translated lines: %v", err)}
	}
	return translated, nil
}

func (c *ChatBackend) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", c.name, resp.StatusCode)
	}
	return nil
}
