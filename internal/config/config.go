package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Local     LocalConfig     `yaml:"local"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Speech    SpeechConfig    `yaml:"speech"`
	Session   SessionConfig   `yaml:"session"`
	Catalog   CatalogConfig   `yaml:"catalog"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig points at the remote history store. Leaving Host empty
// runs the service local-only with accounts disabled.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type LocalConfig struct {
	Dir string `yaml:"dir"`
}

type AuthConfig struct {
	APIKey    string `yaml:"api_key"`
	JWTSecret string `yaml:"jwt_secret"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// SpeechConfig selects the speech backend. With no Endpoint, cues are
// written to the log.
type SpeechConfig struct {
	Endpoint string  `yaml:"endpoint"`
	APIKey   string  `yaml:"api_key"`
	Language string  `yaml:"language"`
	Voice    string  `yaml:"voice"`
	Rate     float64 `yaml:"rate"`
	Pitch    float64 `yaml:"pitch"`
}

type SessionConfig struct {
	DefaultSetSeconds  int  `yaml:"default_set_seconds"`
	DefaultRestSeconds int  `yaml:"default_rest_seconds"`
	AutoAdvance        bool `yaml:"auto_advance"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether a remote database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults, and validates the result for the HTTP service.
// Env vars use the prefix WORKOUTPAL_ and underscore-separated paths:
//
//	WORKOUTPAL_SERVER_HOST, WORKOUTPAL_SERVER_PORT,
//	WORKOUTPAL_DB_HOST, WORKOUTPAL_DB_PORT, WORKOUTPAL_DB_NAME,
//	WORKOUTPAL_DB_USER, WORKOUTPAL_DB_PASSWORD, WORKOUTPAL_DB_SSLMODE,
//	WORKOUTPAL_LOCAL_DIR,
//	WORKOUTPAL_AUTH_API_KEY, WORKOUTPAL_AUTH_JWT_SECRET,
//	WORKOUTPAL_TS_ENABLED, WORKOUTPAL_TS_HOSTNAME, WORKOUTPAL_TS_STATE_DIR,
//	WORKOUTPAL_SPEECH_ENDPOINT, WORKOUTPAL_SPEECH_API_KEY, WORKOUTPAL_SPEECH_LANGUAGE,
//	WORKOUTPAL_SESSION_AUTO_ADVANCE, WORKOUTPAL_CATALOG_PATH
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadLocal is Load for the terminal runner: the file is optional and the
// server and auth sections are not required.
func LoadLocal(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = &Config{}
		applyEnvOverrides(cfg)
		applyDefaults(cfg)
	} else {
		var err error
		if cfg, err = read(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.validateLocal(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func read(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WORKOUTPAL_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("WORKOUTPAL_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("WORKOUTPAL_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("WORKOUTPAL_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("WORKOUTPAL_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("WORKOUTPAL_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("WORKOUTPAL_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("WORKOUTPAL_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("WORKOUTPAL_LOCAL_DIR"); v != "" {
		cfg.Local.Dir = v
	}
	if v := os.Getenv("WORKOUTPAL_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("WORKOUTPAL_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("WORKOUTPAL_TS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	if v := os.Getenv("WORKOUTPAL_TS_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
	if v := os.Getenv("WORKOUTPAL_TS_STATE_DIR"); v != "" {
		cfg.Tailscale.StateDir = v
	}
	if v := os.Getenv("WORKOUTPAL_SPEECH_ENDPOINT"); v != "" {
		cfg.Speech.Endpoint = v
	}
	if v := os.Getenv("WORKOUTPAL_SPEECH_API_KEY"); v != "" {
		cfg.Speech.APIKey = v
	}
	if v := os.Getenv("WORKOUTPAL_SPEECH_LANGUAGE"); v != "" {
		cfg.Speech.Language = v
	}
	if v := os.Getenv("WORKOUTPAL_SESSION_AUTO_ADVANCE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Session.AutoAdvance = b
		}
	}
	if v := os.Getenv("WORKOUTPAL_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Local.Dir == "" {
		cfg.Local.Dir = "data"
	}
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "workoutpal"
	}
	if cfg.Speech.Language == "" {
		cfg.Speech.Language = "en-US"
	}
	if cfg.Speech.Rate == 0 {
		cfg.Speech.Rate = 1.0
	}
	if cfg.Speech.Pitch == 0 {
		cfg.Speech.Pitch = 1.0
	}
	if cfg.Session.DefaultSetSeconds == 0 {
		cfg.Session.DefaultSetSeconds = 30
	}
	if cfg.Session.DefaultRestSeconds == 0 {
		cfg.Session.DefaultRestSeconds = 60
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Database.Enabled() {
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is required when a database is configured")
		}
	}
	return c.validateLocal()
}

func (c *Config) validateLocal() error {
	if c.Session.DefaultSetSeconds < 0 || c.Session.DefaultRestSeconds < 0 {
		return fmt.Errorf("session durations must not be negative")
	}
	if c.Speech.Rate < 0 || c.Speech.Rate > 4 {
		return fmt.Errorf("speech.rate must be between 0 and 4")
	}
	if c.Speech.Pitch < 0 || c.Speech.Pitch > 4 {
		return fmt.Errorf("speech.pitch must be between 0 and 4")
	}
	return nil
}
