// Package config loads the gateway configuration from a YAML file, an
// optional dotenv file and SIGAUTH_* environment variables, in that order of
// precedence from lowest to highest.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vitalvas/sigauth/signedreq"
)

var (
	ErrInvalidValue   = errors.New("config: invalid value")
	ErrMissingValue   = errors.New("config: missing value")
	ErrUnknownBackend = errors.New("config: unknown replay backend")
)

// Replay backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the full gateway configuration.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Admin    AdminConfig    `yaml:"admin"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Security SecurityConfig `yaml:"security"`
	Replay   ReplayConfig   `yaml:"replay"`
}

type AppConfig struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
}

type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	IdleTimeout  Duration `yaml:"idle_timeout"`

	// MaxConnections caps concurrently accepted connections. Zero means no
	// limit.
	MaxConnections int `yaml:"max_connections"`

	// TrustedProxies lists peers whose forwarding headers carry the client
	// address.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type AdminConfig struct {
	// Addr of the health and metrics listener. Empty disables it.
	Addr string `yaml:"addr"`
}

type UpstreamConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// SecurityConfig controls request signature verification.
type SecurityConfig struct {
	Enabled            bool     `yaml:"enabled"`
	RequiredKeyID      string   `yaml:"required_key_id"`
	Ed25519PublicKeys  []string `yaml:"ed25519_public_keys"`
	ClockSkewTolerance Duration `yaml:"clock_skew_tolerance"`
	MaxBodyBytes       int64    `yaml:"max_body_bytes"`
}

type ReplayConfig struct {
	Enabled bool        `yaml:"enabled"`
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Default returns the configuration used for any value not set elsewhere.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Env:      "dev",
			LogLevel: "info",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  Duration(15 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
			IdleTimeout:  Duration(60 * time.Second),
		},
		Admin: AdminConfig{
			Addr: ":9090",
		},
		Upstream: UpstreamConfig{
			Timeout: Duration(30 * time.Second),
		},
		Security: SecurityConfig{
			ClockSkewTolerance: Duration(signedreq.DefaultClockSkewTolerance),
		},
		Replay: ReplayConfig{
			Backend: BackendMemory,
		},
	}
}

// Options controls where Load looks for configuration.
type Options struct {
	// Path of the YAML file. Empty skips the file.
	Path string

	// EnvFiles are dotenv files loaded into the process environment before
	// overrides are applied. Variables already set are not replaced. A
	// missing file is ignored.
	EnvFiles []string

	// LookupEnv reads environment variables. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load reads configuration per opts and validates it.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	if opts.Path != "" {
		data, err := os.ReadFile(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", opts.Path, err)
		}

		if err := decode(bytes.NewReader(data), cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", opts.Path, err)
		}
	}

	for _, f := range opts.EnvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes YAML from r over the defaults and validates the result.
// Environment variables are not consulted.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()

	if err := decode(r, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

// Validate checks cross-field constraints. Key material is validated when
// the verifier is built.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr", ErrMissingValue)
	}

	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("%w: server.max_connections must not be negative", ErrInvalidValue)
	}

	if c.Upstream.URL == "" {
		return fmt.Errorf("%w: upstream.url", ErrMissingValue)
	}

	if c.Security.ClockSkewTolerance < 0 {
		return fmt.Errorf("%w: security.clock_skew_tolerance must not be negative", ErrInvalidValue)
	}

	if c.Security.MaxBodyBytes < 0 {
		return fmt.Errorf("%w: security.max_body_bytes must not be negative", ErrInvalidValue)
	}

	if c.Replay.Enabled {
		switch c.Replay.Backend {
		case BackendMemory:
		case BackendRedis:
			if c.Replay.Redis.Addr == "" {
				return fmt.Errorf("%w: replay.redis.addr", ErrMissingValue)
			}
		default:
			return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Replay.Backend)
		}
	}

	return nil
}

// SecuritySettings maps the security section to verifier settings. The
// replay cache is attached by the caller.
func (c *Config) SecuritySettings() signedreq.Settings {
	return signedreq.Settings{
		Enabled:       c.Security.Enabled,
		RequiredKeyID: c.Security.RequiredKeyID,
		PublicKeys:    c.Security.Ed25519PublicKeys,
		Tolerance:     c.Security.ClockSkewTolerance.Std(),
		MaxBodyBytes:  c.Security.MaxBodyBytes,
	}
}
