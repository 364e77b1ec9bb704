// Package config loads kernel configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all shell configuration.
type Config struct {
	Server    ServerConfig
	Shell     ShellConfig
	Loader    LoaderConfig
	Apps      AppsConfig
	Popout    PopoutConfig
	Session   SessionConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds the host HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// ShellConfig holds window manager tunables.
type ShellConfig struct {
	// Below this viewport width every window is full-bleed and not draggable.
	MobileBreakpoint int `envconfig:"SHELL_MOBILE_BREAKPOINT" default:"768"`
	// Capacity of the event bus history ring.
	EventHistorySize int `envconfig:"SHELL_EVENT_HISTORY" default:"100"`
	// Fallback applied when a close/minimize animation never signals completion.
	TransitionTimeout time.Duration `envconfig:"SHELL_TRANSITION_TIMEOUT" default:"400ms"`
	// Offset between successive windows when cascading.
	CascadeStep int `envconfig:"SHELL_CASCADE_STEP" default:"32"`
	// Default window size when the application does not ask for one.
	DefaultWidth  int `envconfig:"SHELL_DEFAULT_WIDTH" default:"720"`
	DefaultHeight int `envconfig:"SHELL_DEFAULT_HEIGHT" default:"480"`
}

// LoaderConfig holds app loader cache tunables.
type LoaderConfig struct {
	// Cached modules above this count trigger a cache clear.
	MaxCachedModules int `envconfig:"LOADER_MAX_CACHED" default:"64"`
}

// AppsConfig holds app catalogue configuration.
type AppsConfig struct {
	// Directory of YAML manifests seeded into the registry at startup.
	CatalogueDir string `envconfig:"APPS_CATALOGUE_DIR" default:"./apps"`
}

// PopoutConfig holds pop-out synchronizer configuration.
type PopoutConfig struct {
	PollInterval   time.Duration `envconfig:"POPOUT_POLL_INTERVAL" default:"500ms"`
	RestoreOnClose bool          `envconfig:"POPOUT_RESTORE_ON_CLOSE" default:"true"`
}

// SessionConfig holds session persistence configuration.
type SessionConfig struct {
	Dir string `envconfig:"SESSION_DIR" default:"/tmp/webdesk/sessions"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds host surface rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8000", Host: "0.0.0.0"},
		Shell: ShellConfig{
			MobileBreakpoint:  768,
			EventHistorySize:  100,
			TransitionTimeout: 400 * time.Millisecond,
			CascadeStep:       32,
			DefaultWidth:      720,
			DefaultHeight:     480,
		},
		Loader:  LoaderConfig{MaxCachedModules: 64},
		Apps:    AppsConfig{CatalogueDir: "./apps"},
		Popout:  PopoutConfig{PollInterval: 500 * time.Millisecond, RestoreOnClose: true},
		Session: SessionConfig{Dir: "/tmp/webdesk/sessions"},
		Logging: LogConfig{Level: "info", Development: false},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
