package config

import (
	"strconv"
	"time"
)

// ServerConfig contains status server configuration
type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=0"`
}

// ReconnectConfig tunes how the feed subscription recovers from disconnects
type ReconnectConfig struct {
	InitialIntervalMS int `yaml:"initialIntervalMS" validate:"gte=0"`
	MaxIntervalMS     int `yaml:"maxIntervalMS" validate:"gte=0"`
	BreakerThreshold  int `yaml:"breakerThreshold" validate:"gte=0"`
	BreakerCooldownMS int `yaml:"breakerCooldownMS" validate:"gte=0"`
}

// FeedConfig contains the live feed connection settings
type FeedConfig struct {
	URL       string          `yaml:"url" validate:"required,url"`
	Stanox    string          `yaml:"stanox" validate:"required"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// NotifyConfig contains the publishing service settings. Credentials are only
// optional in dry run mode, where notifications are logged instead of sent.
type NotifyConfig struct {
	BaseURL           string `yaml:"baseURL" validate:"required"`
	DryRun            bool   `yaml:"dryRun"`
	Latitude          string `yaml:"latitude"`
	Longitude         string `yaml:"longitude"`
	MinIntervalMS     int    `yaml:"minIntervalMS" validate:"gte=0"`
	Endpoint          string `yaml:"endpoint" validate:"omitempty,url"`
	ConsumerKey       string `yaml:"consumerKey" validate:"required_unless=DryRun true"`
	ConsumerSecret    string `yaml:"consumerSecret" validate:"required_unless=DryRun true"`
	AccessToken       string `yaml:"accessToken" validate:"required_unless=DryRun true"`
	AccessTokenSecret string `yaml:"accessTokenSecret" validate:"required_unless=DryRun true"`
}

// EnrichmentConfig contains the route metadata store settings. An empty DSN
// disables enrichment.
type EnrichmentConfig struct {
	Driver    string `yaml:"driver"`
	DSN       string `yaml:"dsn"`
	TimeoutMS int    `yaml:"timeoutMS" validate:"gte=0"`
	Query     string `yaml:"query"`
}

// StatsConfig contains the daily statistics file settings
type StatsConfig struct {
	Path     string `yaml:"path"`
	Timezone string `yaml:"timezone"`
}

// ExportConfig contains GTFS-Realtime export settings
type ExportConfig struct {
	StopID string `yaml:"stopID"` // defaults to the subscribed stanox
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Feed       FeedConfig       `yaml:"feed" validate:"required"`
	Notify     NotifyConfig     `yaml:"notify" validate:"required"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Stats      StatsConfig      `yaml:"stats"`
	Export     ExportConfig     `yaml:"export"`
}

// Coordinates returns the fixed location attached to notifications. ok is
// false unless both latitude and longitude parse.
func (c NotifyConfig) Coordinates() (lat, long float64, ok bool) {
	lat, err := strconv.ParseFloat(c.Latitude, 64)
	if err != nil {
		return 0, 0, false
	}
	long, err = strconv.ParseFloat(c.Longitude, 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, long, true
}

// MinInterval is the minimum spacing between two published notifications
func (c NotifyConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMS) * time.Millisecond
}

// Timeout bounds a single enrichment query
func (c EnrichmentConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Location resolves the timezone used for calendar days and displayed times
func (c StatsConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
