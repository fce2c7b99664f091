// Package integrations is the outer boundary to the things sublarr doesn't
// own: *arr-style inventory managers (C9 read side) and media-server
// instances to refresh after a subtitle write (C9 notify side). Both are
// multi-instance: operators may register several Sonarr-compatible and
// Radarr-compatible managers, and several media-server endpoints, all at
// once.
package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Abrechen2/sublarr/internal/domain"
)

// ArrKind distinguishes the two inventory API shapes sublarr understands.
type ArrKind string

const (
	ArrSonarr ArrKind = "sonarr"
	ArrRadarr ArrKind = "radarr"
)

// PathMapping rewrites a remote path (as the *arr instance sees it, e.g.
// inside its own container) to the local path sublarr's filesystem
// operations should use.
type PathMapping struct {
	Remote string `json:"remote" mapstructure:"remote"`
	Local  string `json:"local" mapstructure:"local"`
}

// ArrInstance is one configured Sonarr- or Radarr-compatible manager.
type ArrInstance struct {
	Name         string        `json:"name" mapstructure:"name"`
	Kind         ArrKind       `json:"kind" mapstructure:"kind"`
	BaseURL      string        `json:"base_url" mapstructure:"base_url"`
	APIKey       string        `json:"api_key" mapstructure:"api_key"`
	ProfileID    int64         `json:"profile_id" mapstructure:"profile_id"` // language profile applied to everything from this instance
	PathMappings []PathMapping `json:"path_mappings" mapstructure:"path_mappings"`
}

func (inst ArrInstance) mapPath(remote string) string {
	for _, m := range inst.PathMappings {
		if strings.HasPrefix(remote, m.Remote) {
			return m.Local + strings.TrimPrefix(remote, m.Remote)
		}
	}
	return remote
}

// ArrClient reads inventory from one ArrInstance over its REST API.
// Grounded on the teacher's JellyfinClient (internal/sync/jellyfin_client.go
// in the wider pack): a thin http.Client wrapper, one GET method per
// resource, API key in a header, JSON body decode, non-2xx treated as an
// error with the body attached for diagnostics.
type ArrClient struct {
	instance ArrInstance
	client   *http.Client
}

func NewArrClient(instance ArrInstance) *ArrClient {
	return &ArrClient{
		instance: instance,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type sonarrSeries struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Path  string `json:"path"`
	Tags  []int  `json:"tags"`
}

type sonarrEpisodeFile struct {
	ID           int64  `json:"id"`
	SeriesID     int64  `json:"seriesId"`
	SeasonNumber int    `json:"seasonNumber"`
	Path         string `json:"path"`
}

type sonarrEpisode struct {
	SeasonNumber  int  `json:"seasonNumber"`
	EpisodeNumber int  `json:"episodeNumber"`
	EpisodeFileID int64 `json:"episodeFileId"`
	HasFile       bool `json:"hasFile"`
}

type radarrMovie struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	HasFile   bool   `json:"hasFile"`
	MovieFile struct {
		Path string `json:"path"`
	} `json:"movieFile"`
	Tags []int `json:"tags"`
}

// ListSeries returns every series the Sonarr-compatible instance tracks,
// with each episode's file path already rewritten through PathMappings.
func (c *ArrClient) ListSeries(ctx context.Context) ([]domain.Series, error) {
	var raw []sonarrSeries
	if err := c.get(ctx, "/api/v3/series", &raw); err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	out := make([]domain.Series, len(raw))
	for i, s := range raw {
		out[i] = domain.Series{
			ID:        s.ID,
			Title:     s.Title,
			Path:      c.instance.mapPath(s.Path),
			ProfileID: c.instance.ProfileID,
		}
	}
	return out, nil
}

// ListEpisodesForSeries returns every episode file Sonarr has on disk for
// one series ID.
func (c *ArrClient) ListEpisodesForSeries(ctx context.Context, seriesID int64) ([]domain.Episode, error) {
	var files []sonarrEpisodeFile
	if err := c.get(ctx, fmt.Sprintf("/api/v3/episodefile?seriesId=%d", seriesID), &files); err != nil {
		return nil, fmt.Errorf("list episode files: %w", err)
	}

	var episodes []sonarrEpisode
	if err := c.get(ctx, fmt.Sprintf("/api/v3/episode?seriesId=%d", seriesID), &episodes); err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}

	byFileID := make(map[int64]sonarrEpisodeFile, len(files))
	for _, f := range files {
		byFileID[f.ID] = f
	}

	out := make([]domain.Episode, 0, len(episodes))
	for _, ep := range episodes {
		if !ep.HasFile {
			continue
		}
		file, ok := byFileID[ep.EpisodeFileID]
		if !ok {
			continue
		}
		out = append(out, domain.Episode{
			SeriesID: seriesID,
			Season:   ep.SeasonNumber,
			Episode:  ep.EpisodeNumber,
			FilePath: c.instance.mapPath(file.Path),
		})
	}
	return out, nil
}

// ListMovies returns every movie Radarr has a file for.
func (c *ArrClient) ListMovies(ctx context.Context) ([]domain.Movie, error) {
	var raw []radarrMovie
	if err := c.get(ctx, "/api/v3/movie", &raw); err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	out := make([]domain.Movie, 0, len(raw))
	for _, m := range raw {
		if !m.HasFile {
			continue
		}
		out = append(out, domain.Movie{
			ID:        m.ID,
			Title:     m.Title,
			FilePath:  c.instance.mapPath(m.MovieFile.Path),
			ProfileID: c.instance.ProfileID,
		})
	}
	return out, nil
}

func (c *ArrClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.instance.BaseURL+path, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Key", c.instance.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned status %d: %s", c.instance.Name, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// InventoryStore is the subset of *store.InventoryRepo a sync job needs.
type InventoryStore interface {
	UpsertSeries(series domain.Series) (int64, error)
	UpsertEpisode(ep domain.Episode) error
	UpsertMovie(m domain.Movie) error
}

// SyncInstance pulls one ArrInstance's full inventory and upserts it into
// the local cache, per §4.9's "inventory read" responsibility.
func SyncInstance(ctx context.Context, client *ArrClient, store InventoryStore) error {
	switch client.instance.Kind {
	case ArrSonarr:
		return syncSonarr(ctx, client, store)
	case ArrRadarr:
		return syncRadarr(ctx, client, store)
	default:
		return fmt.Errorf("sync instance %q: unknown kind %q", client.instance.Name, client.instance.Kind)
	}
}

func syncSonarr(ctx context.Context, client *ArrClient, store InventoryStore) error {
	seriesList, err := client.ListSeries(ctx)
	if err != nil {
		return err
	}
	for _, series := range seriesList {
		id, err := store.UpsertSeries(series)
		if err != nil {
			return fmt.Errorf("upsert series %q: %w", series.Title, err)
		}
		episodes, err := client.ListEpisodesForSeries(ctx, series.ID)
		if err != nil {
			return fmt.Errorf("list episodes for %q: %w", series.Title, err)
		}
		for _, ep := range episodes {
			ep.SeriesID = id
			if err := store.UpsertEpisode(ep); err != nil {
				return fmt.Errorf("upsert episode %s S%02dE%02d: %w", series.Title, ep.Season, ep.Episode, err)
			}
		}
	}
	return nil
}

func syncRadarr(ctx context.Context, client *ArrClient, store InventoryStore) error {
	movies, err := client.ListMovies(ctx)
	if err != nil {
		return err
	}
	for _, m := range movies {
		if err := store.UpsertMovie(m); err != nil {
			return fmt.Errorf("upsert movie %q: %w", m.Title, err)
		}
	}
	return nil
}
