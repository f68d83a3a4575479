package config

import (
	"fmt"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SIGAUTH_"

type envBinding struct {
	name  string
	apply func(c *Config, v string) error
}

var envBindings = []envBinding{
	{"APP_ENV", func(c *Config, v string) error { c.App.Env = v; return nil }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.App.LogLevel = v; return nil }},
	{"SERVER_ADDR", func(c *Config, v string) error { c.Server.Addr = v; return nil }},
	{"SERVER_READ_TIMEOUT", durationEnv(func(c *Config) *Duration { return &c.Server.ReadTimeout })},
	{"SERVER_WRITE_TIMEOUT", durationEnv(func(c *Config) *Duration { return &c.Server.WriteTimeout })},
	{"SERVER_IDLE_TIMEOUT", durationEnv(func(c *Config) *Duration { return &c.Server.IdleTimeout })},
	{"SERVER_MAX_CONNECTIONS", func(c *Config, v string) error { return parseInt(v, &c.Server.MaxConnections) }},
	{"SERVER_TRUSTED_PROXIES", func(c *Config, v string) error { c.Server.TrustedProxies = splitList(v); return nil }},
	{"ADMIN_ADDR", func(c *Config, v string) error { c.Admin.Addr = v; return nil }},
	{"UPSTREAM_URL", func(c *Config, v string) error { c.Upstream.URL = v; return nil }},
	{"UPSTREAM_TIMEOUT", durationEnv(func(c *Config) *Duration { return &c.Upstream.Timeout })},
	{"SECURITY_ENABLED", func(c *Config, v string) error { return parseBool(v, &c.Security.Enabled) }},
	{"SECURITY_REQUIRED_KEY_ID", func(c *Config, v string) error { c.Security.RequiredKeyID = v; return nil }},
	{"SECURITY_ED25519_PUBLIC_KEYS", func(c *Config, v string) error { c.Security.Ed25519PublicKeys = splitList(v); return nil }},
	{"SECURITY_CLOCK_SKEW_TOLERANCE", durationEnv(func(c *Config) *Duration { return &c.Security.ClockSkewTolerance })},
	{"SECURITY_MAX_BODY_BYTES", func(c *Config, v string) error {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		c.Security.MaxBodyBytes = n
		return nil
	}},
	{"REPLAY_ENABLED", func(c *Config, v string) error { return parseBool(v, &c.Replay.Enabled) }},
	{"REPLAY_BACKEND", func(c *Config, v string) error { c.Replay.Backend = strings.ToLower(strings.TrimSpace(v)); return nil }},
	{"REPLAY_REDIS_ADDR", func(c *Config, v string) error { c.Replay.Redis.Addr = v; return nil }},
	{"REPLAY_REDIS_USERNAME", func(c *Config, v string) error { c.Replay.Redis.Username = v; return nil }},
	{"REPLAY_REDIS_PASSWORD", func(c *Config, v string) error { c.Replay.Redis.Password = v; return nil }},
	{"REPLAY_REDIS_DB", func(c *Config, v string) error { return parseInt(v, &c.Replay.Redis.DB) }},
	{"REPLAY_REDIS_PREFIX", func(c *Config, v string) error { c.Replay.Redis.Prefix = v; return nil }},
}

func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	for _, b := range envBindings {
		v, ok := lookup(EnvPrefix + b.name)
		if !ok {
			continue
		}

		if err := b.apply(c, v); err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, b.name, err)
		}
	}

	return nil
}

func durationEnv(field func(*Config) *Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func parseBool(v string, dst *bool) error {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	*dst = b

	return nil
}

func parseInt(v string, dst *int) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	*dst = n

	return nil
}

// splitList splits a comma separated list, dropping blank items.
func splitList(v string) []string {
	var out []string

	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}
