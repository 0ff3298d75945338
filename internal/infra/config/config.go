// Package config provides configuration loading from YAML files.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osterhagen/airchart/internal/domain/catalog"
)

// Config represents the application configuration.
type Config struct {
	Log      LogConfig       `yaml:"log"`
	Database DatabaseConfig  `yaml:"database"`
	Spotify  SpotifyConfig   `yaml:"spotify"`
	Ranking  RankingConfig   `yaml:"ranking"`
	Stations []StationConfig `yaml:"stations" validate:"required,min=1,dive"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Output string `yaml:"output" default:"stdout"`
}

// DatabaseConfig represents catalog store configuration.
type DatabaseConfig struct {
	Path string `yaml:"path" default:"airchart.db"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" validate:"required"`
	RefreshToken string `yaml:"refresh_token" validate:"required"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"DE"`
}

// RankingConfig represents weekly ranking configuration.
type RankingConfig struct {
	WindowDays int `yaml:"window_days" default:"7" validate:"gte=1"`
	Size       int `yaml:"size" default:"100" validate:"gte=1,lte=1000"`
}

// StationConfig represents a single monitored station.
type StationConfig struct {
	Name        string `yaml:"name" validate:"required"`
	DisplayName string `yaml:"display_name"`
	// Type selects the registered scraper constructor for this station.
	Type     string         `yaml:"type" validate:"required"`
	Settings map[string]any `yaml:"settings"`

	// Category tags the station's daily playlist records; WeeklyCategory
	// tags the weekly ranking records derived from them.
	Category       string `yaml:"category" validate:"required"`
	WeeklyCategory string `yaml:"weekly_category"`
	// WeeklyPlaylistID is the remote playlist kept in sync with the weekly
	// ranking.
	WeeklyPlaylistID string `yaml:"weekly_playlist_id"`
	// NewReleasesPlaylistID is the remote playlist kept in sync with the
	// station's new-releases program; NewReleasesCategory tags its records.
	NewReleasesPlaylistID string `yaml:"new_releases_playlist_id"`
	NewReleasesCategory   string `yaml:"new_releases_category"`
	// PlaylistPrefix names the daily records: "<prefix> playlist - <date>".
	PlaylistPrefix string `yaml:"playlist_prefix" validate:"required"`

	// Broadcast hours gate the hourly scrape job (local time, inclusive).
	BroadcastStartHour int `yaml:"broadcast_start_hour" default:"7" validate:"gte=0,lte=23"`
	BroadcastEndHour   int `yaml:"broadcast_end_hour" default:"20" validate:"gte=0,lte=23"`
}

// Load loads configuration from a YAML file. Environment variables take
// precedence over file values for Spotify credentials.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, s := range c.Stations {
		if seen[s.Name] {
			return errors.Newf("duplicate station name %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// Station returns the configured station with the given name.
func (c *Config) Station(name string) (*StationConfig, error) {
	for i := range c.Stations {
		if c.Stations[i].Name == name {
			return &c.Stations[i], nil
		}
	}
	return nil, errors.Mark(errors.Newf("unknown station %q", name), catalog.ErrValidation)
}
