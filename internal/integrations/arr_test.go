package integrations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Abrechen2/sublarr/internal/domain"
)

func TestArrClientMapsRemotePathsToLocal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/series":
			json.NewEncoder(w).Encode([]sonarrSeries{{ID: 1, Title: "Show", Path: "/remote/Show"}})
		case "/api/v3/episodefile":
			json.NewEncoder(w).Encode([]sonarrEpisodeFile{{ID: 10, SeriesID: 1, SeasonNumber: 1, Path: "/remote/Show/S01E01.mkv"}})
		case "/api/v3/episode":
			json.NewEncoder(w).Encode([]sonarrEpisode{{SeasonNumber: 1, EpisodeNumber: 1, EpisodeFileID: 10, HasFile: true}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewArrClient(ArrInstance{
		Name: "sonarr-main", Kind: ArrSonarr, BaseURL: srv.URL, APIKey: "key",
		PathMappings: []PathMapping{{Remote: "/remote", Local: "/local"}},
	})

	series, err := client.ListSeries(context.Background())
	if err != nil {
		t.Fatalf("ListSeries failed: %v", err)
	}
	if len(series) != 1 || series[0].Path != "/local/Show" {
		t.Fatalf("expected mapped path /local/Show, got %+v", series)
	}

	episodes, err := client.ListEpisodesForSeries(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListEpisodesForSeries failed: %v", err)
	}
	if len(episodes) != 1 || episodes[0].FilePath != "/local/Show/S01E01.mkv" {
		t.Fatalf("expected mapped episode path, got %+v", episodes)
	}
}

type fakeInventoryStore struct {
	series   []domain.Series
	episodes []domain.Episode
	movies   []domain.Movie
}

func (f *fakeInventoryStore) UpsertSeries(series domain.Series) (int64, error) {
	f.series = append(f.series, series)
	return int64(len(f.series)), nil
}

func (f *fakeInventoryStore) UpsertEpisode(ep domain.Episode) error {
	f.episodes = append(f.episodes, ep)
	return nil
}

func (f *fakeInventoryStore) UpsertMovie(m domain.Movie) error {
	f.movies = append(f.movies, m)
	return nil
}

func TestSyncInstanceSonarrPopulatesStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/series":
			json.NewEncoder(w).Encode([]sonarrSeries{{ID: 1, Title: "Show", Path: "/m/Show"}})
		case "/api/v3/episodefile":
			json.NewEncoder(w).Encode([]sonarrEpisodeFile{{ID: 10, SeriesID: 1, SeasonNumber: 1, Path: "/m/Show/S01E01.mkv"}})
		case "/api/v3/episode":
			json.NewEncoder(w).Encode([]sonarrEpisode{{SeasonNumber: 1, EpisodeNumber: 1, EpisodeFileID: 10, HasFile: true}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewArrClient(ArrInstance{Name: "sonarr-main", Kind: ArrSonarr, BaseURL: srv.URL, APIKey: "key"})
	store := &fakeInventoryStore{}

	if err := SyncInstance(context.Background(), client, store); err != nil {
		t.Fatalf("SyncInstance failed: %v", err)
	}
	if len(store.series) != 1 || len(store.episodes) != 1 {
		t.Fatalf("expected 1 series and 1 episode, got %d/%d", len(store.series), len(store.episodes))
	}
}

func TestSyncInstanceRadarrPopulatesStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		movies := []radarrMovie{{ID: 1, Title: "Movie", HasFile: true}}
		movies[0].MovieFile.Path = "/m/Movie.mkv"
		json.NewEncoder(w).Encode(movies)
	}))
	defer srv.Close()

	client := NewArrClient(ArrInstance{Name: "radarr-main", Kind: ArrRadarr, BaseURL: srv.URL, APIKey: "key"})
	store := &fakeInventoryStore{}

	if err := SyncInstance(context.Background(), client, store); err != nil {
		t.Fatalf("SyncInstance failed: %v", err)
	}
	if len(store.movies) != 1 || store.movies[0].FilePath != "/m/Movie.mkv" {
		t.Fatalf("expected 1 movie with mapped path, got %+v", store.movies)
	}
}

func TestSyncInstanceSkipsMoviesWithoutFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]radarrMovie{{ID: 1, Title: "NoFile", HasFile: false}})
	}))
	defer srv.Close()

	client := NewArrClient(ArrInstance{Name: "radarr-main", Kind: ArrRadarr, BaseURL: srv.URL, APIKey: "key"})
	store := &fakeInventoryStore{}

	if err := SyncInstance(context.Background(), client, store); err != nil {
		t.Fatalf("SyncInstance failed: %v", err)
	}
	if len(store.movies) != 0 {
		t.Fatalf("expected fileless movie to be skipped, got %+v", store.movies)
	}
}
