package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Abrechen2/sublarr/internal/domain"
	"github.com/Abrechen2/sublarr/internal/sublarrerr"
)

// HTTPProvider implements Provider against a generic REST-style subtitle
// search API (the shape most public subtitle indexes share: a GET search
// endpoint returning a result array, and a per-result download URL).
// Grounded on the teacher's OpenRouterAdapter (internal/core/ai/
// openrouter.go) for the http.Client-with-timeout-plus-JSON-decode idiom,
// generalized from a single fixed API to any base URL/API-key pair so the
// same type can back multiple configured subtitle indexes.
type HTTPProvider struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPProvider(name, baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *HTTPProvider) Name() string { return p.name }

type searchResponseItem struct {
	Language      string  `json:"language"`
	Format        string  `json:"format"`
	DownloadURL   string  `json:"download_url"`
	Forced        bool    `json:"forced"`
	MTConfidence  int     `json:"mt_confidence"`
	UploaderTrust int     `json:"uploader_trust"`
	Hash          string  `json:"hash"`
	ReleaseInfo   string  `json:"release_info"`
	Score         float64 `json:"score"`
}

func (p *HTTPProvider) Search(ctx context.Context, query domain.VideoQuery) ([]domain.SubtitleResult, error) {
	u, err := url.Parse(p.baseURL + "/search")
	if err != nil {
		return nil, &sublarrerr.ProviderError{Provider: p.name, Code: sublarrerr.ProviderParse, Message: err.Error()}
	}
	q := u.Query()
	q.Set("title", query.Title)
	if query.IsEpisode {
		q.Set("season", fmt.Sprint(query.Season))
		q.Set("episode", fmt.Sprint(query.Episode))
	}
	q.Set("language", query.TargetLanguage)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &sublarrerr.ProviderError{Provider: p.name, Code: sublarrerr.ProviderNetwork, Message: err.Error()}
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &sublarrerr.ProviderError{Provider: p.name, Code: sublarrerr.ProviderNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &sublarrerr.ProviderError{Provider: p.name, Code: sublarrerr.ProviderNetwork, Message: err.Error()}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &sublarrerr.ProviderError{Provider: p.name, Code: sublarrerr.ProviderAuth, Message: "unauthorized"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &sublarrerr.ProviderError{Provider: p.name, Code: sublarrerr.ProviderRateLimit, Message: "rate limited", RetryAfter: 60}
	case resp.StatusCode >= 400:
		return nil, &sublarrerr.ProviderError{Provider: p.name, Code: sublarrerr.ProviderNetwork, Message: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	var items []searchResponseItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, &sublarrerr.ProviderError{Provider: p.name, Code: sublarrerr.ProviderParse, Message: err.Error()}
	}
	if len(items) == 0 {
		return nil, &sublarrerr.ProviderError{Provider: p.name, Code: sublarrerr.ProviderEmpty, Message: "no results"}
	}

	results := make([]domain.SubtitleResult, len(items))
	for i, item := range items {
		results[i] = domain.SubtitleResult{
			ProviderName:  p.name,
			Language:      item.Language,
			Format:        domain.SubtitleFormat(item.Format),
			DownloadURL:   item.DownloadURL,
			Forced:        item.Forced,
			MTConfidence:  item.MTConfidence,
			UploaderTrust: item.UploaderTrust,
			Hash:          item.Hash,
			ReleaseInfo:   item.ReleaseInfo,
		}
	}
	return results, nil
}

func (p *HTTPProvider) Download(ctx context.Context, result domain.SubtitleResult) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, result.DownloadURL, nil)
	if err != nil {
		return nil, &sublarrerr.ProviderError{Provider: p.name, Code: sublarrerr.ProviderNetwork, Message: err.Error()}
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &sublarrerr.ProviderError{Provider: p.name, Code: sublarrerr.ProviderNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, &sublarrerr.ProviderError{Provider: p.name, Code: sublarrerr.ProviderNetwork, Message: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	return io.ReadAll(resp.Body)
}

func (p *HTTPProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("provider %s unhealthy: status %d", p.name, resp.StatusCode)
	}
	return nil
}
