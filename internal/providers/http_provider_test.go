package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Abrechen2/sublarr/internal/domain"
	"github.com/Abrechen2/sublarr/internal/sublarrerr"
)

func TestHTTPProviderSearchParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("title"); got != "Show" {
			t.Fatalf("expected title=Show, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("expected bearer auth header, got %q", got)
		}
		w.Write([]byte(`[{"language":"en","format":"ass","download_url":"/dl/1","forced":false,"mt_confidence":10,"uploader_trust":5,"hash":"abc"}]`))
	}))
	defer srv.Close()

	p := NewHTTPProvider("test", srv.URL, "secret")
	results, err := p.Search(context.Background(), domain.VideoQuery{Title: "Show", TargetLanguage: "en"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Format != domain.FormatASS || results[0].Hash != "abc" {
		t.Fatalf("unexpected result: %+v", results[0])
	}
}

func TestHTTPProviderSearchReturnsEmptyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	p := NewHTTPProvider("test", srv.URL, "")
	if _, err := p.Search(context.Background(), domain.VideoQuery{Title: "Show"}); err == nil {
		t.Fatal("expected error for empty result set")
	}
}

func TestHTTPProviderSearchMapsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewHTTPProvider("test", srv.URL, "")
	_, err := p.Search(context.Background(), domain.VideoQuery{Title: "Show"})
	if err == nil {
		t.Fatal("expected rate-limit error")
	}
	pe, ok := err.(*sublarrerr.ProviderError)
	if !ok || pe.Code != sublarrerr.ProviderRateLimit {
		t.Fatalf("expected ProviderRateLimit error, got %v", err)
	}
}

func TestHTTPProviderDownloadReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("subtitle bytes"))
	}))
	defer srv.Close()

	p := NewHTTPProvider("test", srv.URL, "")
	body, err := p.Download(context.Background(), domain.SubtitleResult{DownloadURL: srv.URL + "/dl/1"})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if string(body) != "subtitle bytes" {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestHTTPProviderHealthCheckFailsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPProvider("test", srv.URL, "")
	if err := p.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}
