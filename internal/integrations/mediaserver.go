package integrations

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// MediaServerKind names the supported refresh API shapes.
type MediaServerKind string

const (
	MediaServerJellyfin MediaServerKind = "jellyfin"
	MediaServerPlex     MediaServerKind = "plex"
	MediaServerEmby     MediaServerKind = "emby"
)

// MediaServerInstance is one configured library server to notify after an
// acquisition writes a subtitle.
type MediaServerInstance struct {
	Name    string          `json:"name" mapstructure:"name"`
	Kind    MediaServerKind `json:"kind" mapstructure:"kind"`
	BaseURL string          `json:"base_url" mapstructure:"base_url"`
	APIKey  string          `json:"api_key" mapstructure:"api_key"`
}

// mediaServerClient issues the refresh call for one instance. Jellyfin/Emby
// share an API shape (Emby is Jellyfin's upstream); Plex's differs.
// Grounded on the teacher pack's JellyfinClient doRequest/header idiom
// (internal/sync/jellyfin_client.go), generalized to a single library refresh
// call (POST for Jellyfin/Emby, GET for Plex) instead of the session/system
// GETs that client exposes.
type mediaServerClient struct {
	instance MediaServerInstance
	http     *http.Client
}

func newMediaServerClient(instance MediaServerInstance) *mediaServerClient {
	return &mediaServerClient{instance: instance, http: &http.Client{Timeout: 15 * time.Second}}
}

func (c *mediaServerClient) refresh(ctx context.Context, path string) error {
	var req *http.Request
	var err error

	switch c.instance.Kind {
	case MediaServerPlex:
		url := c.instance.BaseURL + "/library/sections/all/refresh"
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err == nil {
			req.Header.Set("X-Plex-Token", c.instance.APIKey)
		}
	default: // Jellyfin and Emby share the /Library/Media/Updated trigger; no path is sent.
		url := c.instance.BaseURL + "/Library/Media/Updated"
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, url, http.NoBody)
		if err == nil {
			req.Header.Set("X-Emby-Token", c.instance.APIKey)
			req.Header.Set("Accept", "application/json")
		}
	}
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s refresh returned status %d", c.instance.Name, resp.StatusCode)
	}
	return nil
}

// guardedServer pairs a mediaServerClient with its own circuit breaker, per
// §4.9's "each media server is protected by its own circuit breaker".
type guardedServer struct {
	client  *mediaServerClient
	breaker *gobreaker.CircuitBreaker[any]
}

// newRefreshBreaker mirrors providers.newBreaker's settings (grounded on the
// same cartographus JellyfinCircuitBreakerClient source), generalized from
// a []domain.SubtitleResult return type to the refresh call's bare error.
func newRefreshBreaker(name string, log zerolog.Logger) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(breakerName string, from, to gobreaker.State) {
			log.Warn().Str("media_server", breakerName).Str("from", from.String()).Str("to", to.String()).
				Msg("media server circuit breaker state change")
		},
	})
}

// Manager notifies every configured media server in parallel after a
// subtitle write. It implements acquisition.MediaRefresher.
type Manager struct {
	servers []*guardedServer
	log     zerolog.Logger
}

// NewManager builds a Manager over the given instances, one breaker each.
func NewManager(instances []MediaServerInstance, log zerolog.Logger) *Manager {
	servers := make([]*guardedServer, len(instances))
	for i, inst := range instances {
		servers[i] = &guardedServer{
			client:  newMediaServerClient(inst),
			breaker: newRefreshBreaker(inst.Name, log),
		}
	}
	return &Manager{servers: servers, log: log}
}

// Refresh notifies every configured media server that videoPath changed.
// A single server's failure (or an open breaker) is logged and does not
// prevent the others from being notified, and never returns an error to
// the acquisition pipeline — the write already succeeded; refresh is
// best-effort per §4.9.
func (m *Manager) Refresh(ctx context.Context, videoPath string) error {
	var wg sync.WaitGroup
	for _, s := range m.servers {
		wg.Add(1)
		go func(s *guardedServer) {
			defer wg.Done()
			_, err := s.breaker.Execute(func() (any, error) {
				return nil, s.client.refresh(ctx, videoPath)
			})
			if err != nil {
				m.log.Warn().Err(err).Str("media_server", s.client.instance.Name).Str("file", videoPath).
					Msg("media server refresh failed")
			}
		}(s)
	}
	wg.Wait()
	return nil
}
