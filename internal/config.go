package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mdchat/internal/storage"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Storage StorageConfig     `yaml:"storage"`
	Index   IndexConfig       `yaml:"index"`
	Events  EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	return c.Events.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level    `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"`
	HTTP      HTTPConfig    `yaml:"http"`
	Version   VersionConfig `yaml:"version"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VersionConfig describes the running build, usually filled from the
// APP_VERSION, APP_COMMIT_HASH and APP_BUILD_DATE environment variables.
type VersionConfig struct {
	Version   string `yaml:"version"`
	Commit    string `yaml:"commit"`
	BuildDate string `yaml:"build_date"`
}

// StorageConfig selects the backend of the default session.
//
// Type is "memory" (ephemeral, the default) or "filesystem"; Path is the
// base directory of the filesystem backend.
type StorageConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// Kind returns the parsed backend kind.
func (c *StorageConfig) Kind() storage.Kind {
	k, _ := storage.ParseKind(c.Type)
	return k
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if c.Type == "" {
		c.Type = string(storage.KindMemory)
	}
	k, err := storage.ParseKind(c.Type)
	if err != nil {
		return err
	}
	c.Type = string(k)
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(k == storage.KindFilesystem,
			validation.Required.Error("is required for the filesystem backend"))),
	)
}

// IndexConfig holds the SQLite search index configuration. The index only
// follows the default session.
type IndexConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SQLitePath, validation.When(c.Enabled, validation.Required)),
	)
}

// EventsConfig tunes the Server-Sent Events broker.
type EventsConfig struct {
	TreeThrottle time.Duration `yaml:"tree_throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TreeThrottle, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Type: string(storage.KindMemory),
			Path: "./data",
		},
		Index: IndexConfig{
			Enabled:    true,
			SQLitePath: "./mdchat.db",
		},
		Events: EventsConfig{
			TreeThrottle: 2 * time.Second,
		},
	}
}
