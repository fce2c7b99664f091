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

// GeminiBackend implements translation.Backend for Google's Gemini REST
// API, ported from the teacher's GeminiAdapter (internal/core/ai/gemini.go)
// — same contents/parts request shape and generateContent endpoint, adapted
// to translation.Line instead of ai.Line.
type GeminiBackend struct {
	apiKey      string
	model       string
	baseURL     string
	client      *http.Client
	temperature float64
}

func NewGeminiBackend(apiKey, model string, temperature float64) *GeminiBackend {
	return &GeminiBackend{
		apiKey:      apiKey,
		model:       model,
		baseURL:     "https://generativelanguage.googleapis.com/v1beta",
		client:      &http.Client{Timeout: 120 * time.Second},
		temperature: temperature,
	}
}

func (g *GeminiBackend) Name() string { return "gemini" }

func (g *GeminiBackend) Capabilities() translation.Capabilities {
	return translation.Capabilities{SupportsGlossary: true, SupportsSRTReference: true}
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

func (g *GeminiBackend) SendBatch(ctx context.Context, payload []translation.Line, systemPrompt string) ([]translation.Line, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, &sublarrerr.TranslationError{Backend: g.Name(), Code: sublarrerr.BadResponse, Message: err.Error()}
	}

	fullPrompt := systemPrompt + "\n\n" + string(payloadJSON)
	reqBody := geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: fullPrompt}}}},
		GenerationConfig: geminiGenConfig{Temperature: g.temperature},
	}
	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &sublarrerr.TranslationError{Backend: g.Name(), Code: sublarrerr.BadResponse, Message: err.Error()}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqJSON))
	if err != nil {
		return nil, &sublarrerr.TranslationError{Backend: g.Name(), Code: sublarrerr.BackendUnavailable, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &sublarrerr.TranslationError{Backend: g.Name(), Code: sublarrerr.BackendUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &sublarrerr.TranslationError{Backend: g.Name(), Code: sublarrerr.BadResponse, Message: err.Error()}
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, &sublarrerr.TranslationError{Backend: g.Name(), Code: sublarrerr.BadResponse, Message: err.Error()}
	}
	if apiResp.Error != nil {
		code := sublarrerr.BadResponse
		if apiResp.Error.Code == http.StatusUnauthorized || apiResp.Error.Code == http.StatusForbidden {
			code = sublarrerr.BackendAuth
		}
		return nil, &sublarrerr.TranslationError{Backend: g.Name(), Code: code, Message: apiResp.Error.Message}
	}
	if len(apiResp.Candidates) == 0 {
		return nil, &sublarrerr.TranslationError{Backend: g.Name(), Code: sublarrerr.BadResponse, Message: "no candidates in response"}
	}

	var content string
	for _, part := range apiResp.Candidates[0].Content.Parts {
		content += part.Text
	}

	var translated []translation.Line
	if err := json.Unmarshal([]byte(content), &translated); err != nil {
		return nil, &sublarrerr.TranslationError{Backend: g.Name(), Code: sublarrerr.BadResponse, Message: fmt.Sprintf("could not parse translated lines: %v", err)}
	}
	return translated, nil
}

func (g *GeminiBackend) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/models?key=%s", g.baseURL, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gemini: unexpected status %d", resp.StatusCode)
	}
	return nil
}
