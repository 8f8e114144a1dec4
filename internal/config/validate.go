package config

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	ErrInvalidPort       = errors.New("port must be between 1 and 65535")
	ErrUnknownServerType = errors.New("unknown server type")
	ErrMissingField      = errors.New("missing required field")
	ErrDuplicateName     = errors.New("duplicate server name")
	ErrInvalidDuration   = errors.New("duration must be positive")
)

// Validate checks configuration correctness. It does not modify cfg.
func Validate(cfg *Config) error {
	if cfg.HostPort < 1 || cfg.HostPort > 65535 {
		return fmt.Errorf("hostport %d: %w", cfg.HostPort, ErrInvalidPort)
	}

	names := make(map[string]int)
	for i, s := range cfg.Servers {
		where := fmt.Sprintf("servers[%d]", i)
		if s.Name != "" {
			where = fmt.Sprintf("servers[%d] (%s)", i, s.Name)
		}

		switch s.Type {
		case TypeMinecraft, TypeJellyfin, TypeDashboard:
		case "":
			return fmt.Errorf("%s: type: %w", where, ErrMissingField)
		default:
			return fmt.Errorf("%s: %w %q", where, ErrUnknownServerType, s.Type)
		}

		if s.IP == "" {
			return fmt.Errorf("%s: ip: %w", where, ErrMissingField)
		}
		if s.Port == nil {
			return fmt.Errorf("%s: port: %w", where, ErrMissingField)
		}
		if *s.Port < 1 || *s.Port > 65535 {
			return fmt.Errorf("%s: port %d: %w", where, *s.Port, ErrInvalidPort)
		}
		if s.Type == TypeMinecraft && s.Version == nil {
			return fmt.Errorf("%s: version: %w", where, ErrMissingField)
		}

		if s.Name != "" {
			key := s.Type + "/" + s.Name
			if prev, ok := names[key]; ok {
				return fmt.Errorf("%s: %w %q (also servers[%d])", where, ErrDuplicateName, s.Name, prev)
			}
			names[key] = i
		}
	}

	durations := []struct {
		name  string
		value int
	}{
		{"cache.minecraft", cfg.Cache.MinecraftMs},
		{"cache.jellyfin", cfg.Cache.JellyfinMs},
		{"cache.hardware", cfg.Cache.HardwareMs},
		{"cache.mesh", cfg.Cache.MeshMs},
		{"query.timeout_ms", cfg.Query.TimeoutMs},
		{"query.tick_ms", cfg.Query.TickMs},
		{"peer_timeout_ms", cfg.PeerTimeoutMs},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s: %w", d.name, ErrInvalidDuration)
		}
	}
	if cfg.Query.TickMs > cfg.Query.TimeoutMs {
		return fmt.Errorf("query.tick_ms %d exceeds query.timeout_ms %d", cfg.Query.TickMs, cfg.Query.TimeoutMs)
	}

	if cfg.RateLimit.RPS <= 0 || cfg.RateLimit.Burst < 1 {
		return fmt.Errorf("rate_limit: rps and burst must be positive")
	}
	if cfg.Redis.URL != "" && cfg.Redis.IntervalMs <= 0 {
		return fmt.Errorf("redis.interval_ms: %w", ErrInvalidDuration)
	}
	if cfg.History.Path != "" && cfg.History.RetentionHours <= 0 {
		return fmt.Errorf("history.retention_hours: %w", ErrInvalidDuration)
	}
	return nil
}

// Normalize fills derived values. It must run after Validate.
//
// Unnamed servers are named after their type: the first one gets the bare
// type, later ones get a numeric suffix.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	taken := make(map[string]bool)
	for _, s := range cfg.Servers {
		if s.Name != "" {
			taken[s.Type+"/"+s.Name] = true
		}
	}
	for i := range cfg.Servers {
		s := &cfg.Servers[i]
		if s.Name != "" {
			continue
		}
		name := s.Type
		for n := 2; taken[s.Type+"/"+name]; n++ {
			name = fmt.Sprintf("%s-%d", s.Type, n)
		}
		s.Name = name
		taken[s.Type+"/"+name] = true
	}
}
