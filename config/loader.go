package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPaths are tried in order when no explicit config path is given
var DefaultPaths = []string{"config.yml", "./config/config.yml"}

const (
	defaultPort              = 16181
	defaultDriver            = "sqlite"
	defaultEnrichmentTimeout = 30000
	defaultStatsPath         = "stats.json"
	defaultTimezone          = "UTC"
	defaultInitialInterval   = 1000
	defaultMaxInterval       = 60000
	defaultBreakerThreshold  = 10
	defaultBreakerCooldown   = 5 * 60 * 1000
)

// LoadAppConfig loads and validates the application configuration. An empty
// path falls back to DefaultPaths.
func LoadAppConfig(path string) (AppConfig, error) {
	data, err := readConfig(path)
	if err != nil {
		return AppConfig{}, err
	}
	return Parse(data)
}

// Parse decodes and validates raw YAML. Environment references are expanded
// in the notify credentials only; every other value is taken literally.
func Parse(data []byte) (AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse config: %w", err)
	}
	expandCredentials(&cfg.Notify)
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return AppConfig{}, fmt.Errorf("invalid config: %w", err)
	}
	applyDefaults(&cfg)
	if _, err := cfg.Stats.Location(); err != nil {
		return AppConfig{}, fmt.Errorf("invalid config: stats.timezone: %w", err)
	}
	return cfg, nil
}

func expandCredentials(n *NotifyConfig) {
	for _, v := range []*string{&n.ConsumerKey, &n.ConsumerSecret, &n.AccessToken, &n.AccessTokenSecret} {
		*v = os.ExpandEnv(*v)
	}
}

func readConfig(path string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	var data []byte
	var err error
	for _, p := range DefaultPaths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	return data, err
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultPort
	}
	if cfg.Enrichment.Driver == "" {
		cfg.Enrichment.Driver = defaultDriver
	}
	if cfg.Enrichment.TimeoutMS == 0 {
		cfg.Enrichment.TimeoutMS = defaultEnrichmentTimeout
	}
	if cfg.Stats.Path == "" {
		cfg.Stats.Path = defaultStatsPath
	}
	if cfg.Stats.Timezone == "" {
		cfg.Stats.Timezone = defaultTimezone
	}
	if cfg.Export.StopID == "" {
		cfg.Export.StopID = cfg.Feed.Stanox
	}
	r := &cfg.Feed.Reconnect
	if r.InitialIntervalMS == 0 {
		r.InitialIntervalMS = defaultInitialInterval
	}
	if r.MaxIntervalMS == 0 {
		r.MaxIntervalMS = defaultMaxInterval
	}
	if r.BreakerThreshold == 0 {
		r.BreakerThreshold = defaultBreakerThreshold
	}
	if r.BreakerCooldownMS == 0 {
		r.BreakerCooldownMS = defaultBreakerCooldown
	}
}
