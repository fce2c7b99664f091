// Package config is the engine's settings layer (C1 adjunct): environment
// variables under the SUBLARR_ prefix supply the base configuration, and
// persisted overrides from the config_entries store win over them (I4: a
// stored override always beats an environment default). Both layers are
// merged through a single viper instance, generalized from the teacher's
// single-file JSON loader to sublarr's multi-instance provider/backend/*arr
// registries.
package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Abrechen2/sublarr/internal/acquisition"
	"github.com/Abrechen2/sublarr/internal/integrations"
	"github.com/Abrechen2/sublarr/internal/translation/backends"
)

// TouchlessRules governs how touchless (fully automated) mode resolves
// ambiguity when more than one acceptable outcome exists for an item.
type TouchlessRules struct {
	MultipleSubtitles string `json:"multiple_subtitles" mapstructure:"multiple_subtitles"` // "largest", "smallest", "skip"
	MuxingStrategy    string `json:"muxing_strategy" mapstructure:"muxing_strategy"`        // "replace", "create_new"
}

// ProviderConfig is one configured subtitle index (§4.3); the Provider
// Manager is built from a list of these at startup.
type ProviderConfig struct {
	Name    string `json:"name" mapstructure:"name"`
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	APIKey  string `json:"api_key" mapstructure:"api_key"`
}

// Config is the fully merged application configuration.
type Config struct {
	// General
	StorePath  string   `json:"store_path" mapstructure:"store_path"`
	BinPath    string   `json:"bin_path" mapstructure:"bin_path"` // ffprobe/ffmpeg directory
	LogLevel   string   `json:"log_level" mapstructure:"log_level"`
	ListenAddr string   `json:"listen_addr" mapstructure:"listen_addr"` // internal/api bind address
	ScanDirs   []string `json:"scan_dirs" mapstructure:"scan_dirs"`     // library roots for the Wanted Scanner and its watcher

	// Default acquisition policy; per-series language profiles stored
	// alongside inventory rows (domain.LanguageProfile) override these.
	DefaultTargetLang string `json:"default_target_lang" mapstructure:"default_target_lang"`
	DefaultForced     string `json:"default_forced" mapstructure:"default_forced"` // domain.ForcedPreference

	TouchlessMode  bool           `json:"touchless_mode" mapstructure:"touchless_mode"`
	TouchlessRules TouchlessRules `json:"touchless_rules" mapstructure:"touchless_rules"`

	// Acquisition pipeline policy (C6), reused as-is rather than duplicated.
	Acquisition acquisition.Config `json:"acquisition" mapstructure:"acquisition"`

	// Provider Manager (C3) and Translation Manager (C4) registries.
	Providers           []ProviderConfig         `json:"providers" mapstructure:"providers"`
	TranslationBackends []backends.BackendConfig `json:"translation_backends" mapstructure:"translation_backends"`

	// Scheduler (C8)
	JobConcurrency      map[string]int64 `json:"job_concurrency" mapstructure:"job_concurrency"`
	WantedScanInterval  time.Duration    `json:"wanted_scan_interval" mapstructure:"wanted_scan_interval"`
	UpgradeScanInterval time.Duration    `json:"upgrade_scan_interval" mapstructure:"upgrade_scan_interval"`
	CachePurgeInterval  time.Duration    `json:"cache_purge_interval" mapstructure:"cache_purge_interval"`

	// Integration clients (C9)
	ArrInstances []integrations.ArrInstance         `json:"arr_instances" mapstructure:"arr_instances"`
	MediaServers []integrations.MediaServerInstance `json:"media_servers" mapstructure:"media_servers"`

	AutoCheckUpdates bool `json:"auto_check_updates" mapstructure:"auto_check_updates"`
}

// Default returns a Config with sensible defaults for a fresh install.
func Default() *Config {
	return &Config{
		StorePath:         "./sublarr.db",
		BinPath:           "./bin",
		LogLevel:          "info",
		ListenAddr:        ":8689",
		DefaultTargetLang: "pt-BR",
		DefaultForced:     "auto",
		TouchlessMode:     false,
		TouchlessRules: TouchlessRules{
			MultipleSubtitles: "largest",
			MuxingStrategy:    "replace",
		},
		Acquisition:         acquisition.Config{},
		JobConcurrency:      map[string]int64{"transcribe": 1},
		WantedScanInterval:  time.Hour,
		UpgradeScanInterval: 24 * time.Hour,
		CachePurgeInterval:  24 * time.Hour,
		AutoCheckUpdates:    true,
	}
}

// Overrides is the subset of *store.ConfigRepo the config layer needs: the
// full set of persisted key/value overrides to merge over the env layer.
type Overrides interface {
	All() (map[string]string, error)
}

// Load builds the merged configuration, lowest priority first: Default(),
// then an optional config.json on disk, then environment variables under
// the SUBLARR_ prefix, then (highest priority) the persisted store
// overrides, per I4's ordering.
// overrides may be nil before the store is open (e.g. to learn StorePath
// itself from the env layer).
func Load(overrides Overrides) (*Config, error) {
	viper.Reset()
	viper.SetEnvPrefix("SUBLARR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// Register every Default() key so Unmarshal, which only visits keys
	// viper knows, picks up SUBLARR_* variables for them.
	if raw, err := json.Marshal(Default()); err == nil {
		var defaults map[string]any
		if json.Unmarshal(raw, &defaults) == nil {
			for k, v := range defaults {
				viper.SetDefault(k, v)
			}
		}
	}

	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/sublarr")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	if overrides != nil {
		kv, err := overrides.All()
		if err != nil {
			return nil, fmt.Errorf("config: read store overrides: %w", err)
		}
		if err := mergeStoreOverrides(kv); err != nil {
			return nil, fmt.Errorf("config: merge store overrides: %w", err)
		}
	}

	cfg := Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// mergeStoreOverrides decodes each stored value as JSON (so a bool, number,
// or nested object round-trips to its real type) before merging it into
// viper as the highest-priority layer; a value that isn't valid JSON is
// merged as the raw string it is, so plain scalar overrides still work.
func mergeStoreOverrides(kv map[string]string) error {
	for k, v := range kv {
		var val any
		if err := json.Unmarshal([]byte(v), &val); err != nil {
			val = v
		}
		viper.Set(k, val)
	}
	return nil
}
