package config

import (
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg == nil {
		t.Fatal("Default() returned nil")
	}
	if cfg.StorePath != "./sublarr.db" {
		t.Errorf("expected StorePath './sublarr.db', got %q", cfg.StorePath)
	}
	if cfg.ListenAddr != ":8689" {
		t.Errorf("expected ListenAddr ':8689', got %q", cfg.ListenAddr)
	}
	if cfg.DefaultTargetLang != "pt-BR" {
		t.Errorf("expected DefaultTargetLang 'pt-BR', got %q", cfg.DefaultTargetLang)
	}
	if cfg.TouchlessMode != false {
		t.Error("expected TouchlessMode to default false")
	}
	if cfg.WantedScanInterval != time.Hour {
		t.Errorf("expected WantedScanInterval 1h, got %v", cfg.WantedScanInterval)
	}
}

func TestDefaultTouchlessRules(t *testing.T) {
	cfg := Default()
	if cfg.TouchlessRules.MultipleSubtitles != "largest" {
		t.Errorf("expected MultipleSubtitles 'largest', got %q", cfg.TouchlessRules.MultipleSubtitles)
	}
	if cfg.TouchlessRules.MuxingStrategy != "replace" {
		t.Errorf("expected MuxingStrategy 'replace', got %q", cfg.TouchlessRules.MuxingStrategy)
	}
}

// fakeOverrides implements Overrides without touching the real store.
type fakeOverrides map[string]string

func (f fakeOverrides) All() (map[string]string, error) { return map[string]string(f), nil }

func TestLoadWithNoOverridesReturnsDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != ":8689" {
		t.Errorf("expected default ListenAddr, got %q", cfg.ListenAddr)
	}
}

func TestLoadAppliesEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SUBLARR_LISTEN_ADDR", ":9000")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("expected env override ':9000', got %q", cfg.ListenAddr)
	}
}

func TestStoreOverrideWinsOverEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SUBLARR_LISTEN_ADDR", ":9000")

	cfg, err := Load(fakeOverrides{"listen_addr": `":9100"`})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != ":9100" {
		t.Errorf("expected store override ':9100' to win over env, got %q", cfg.ListenAddr)
	}
}

func TestStoreOverrideMergesArrInstances(t *testing.T) {
	t.Chdir(t.TempDir())

	instances := `[{"name":"main-sonarr","kind":"sonarr","base_url":"http://sonarr:8989","api_key":"k"}]`
	cfg, err := Load(fakeOverrides{"arr_instances": instances})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.ArrInstances) != 1 {
		t.Fatalf("expected 1 arr instance, got %d", len(cfg.ArrInstances))
	}
	if cfg.ArrInstances[0].Name != "main-sonarr" {
		t.Errorf("expected name 'main-sonarr', got %q", cfg.ArrInstances[0].Name)
	}
	if cfg.ArrInstances[0].BaseURL != "http://sonarr:8989" {
		t.Errorf("expected base_url preserved, got %q", cfg.ArrInstances[0].BaseURL)
	}
}

func TestStoreOverrideAppliesTouchlessMode(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(fakeOverrides{"touchless_mode": "true"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.TouchlessMode {
		t.Error("expected touchless_mode override to set true")
	}
}
