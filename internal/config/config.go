// Package config loads the dashsrv configuration file.
//
// The file is YAML. Because YAML is a superset of JSON, a JSON config with the
// same keys loads unchanged.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no path is given on the command line or in
// DASHSRV_CONFIG.
const DefaultPath = "dashsrv.yaml"

// Server types.
const (
	TypeMinecraft = "minecraft"
	TypeJellyfin  = "jellyfin"
	TypeDashboard = "dashboard"
)

// Config is the whole configuration document.
type Config struct {
	HostIP    string `yaml:"hostip"`
	HostPort  int    `yaml:"hostport"`
	NodeName  string `yaml:"node_name,omitempty"`
	StaticDir string `yaml:"static_dir,omitempty"`
	Debug     bool   `yaml:"debug,omitempty"`

	Servers []ServerConfig `yaml:"servers"`

	Cache         CacheConfig     `yaml:"cache"`
	Query         QueryConfig     `yaml:"query"`
	PeerTimeoutMs int             `yaml:"peer_timeout_ms"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	Redis         RedisConfig     `yaml:"redis"`
	History       HistoryConfig   `yaml:"history"`
}

// ServerConfig is one monitored service. Port is a pointer so a missing key
// can be told apart from zero.
type ServerConfig struct {
	Type string `yaml:"type"`
	Name string `yaml:"name,omitempty"`
	IP   string `yaml:"ip"`
	Port *int   `yaml:"port"`

	// Minecraft only
	Version     *int32 `yaml:"version,omitempty"`
	ExtraDomain string `yaml:"extra-domain,omitempty"`
}

// Address returns ip:port, or just ip when no port is set.
func (s ServerConfig) Address() string {
	if s.Port == nil {
		return s.IP
	}
	return s.IP + ":" + strconv.Itoa(*s.Port)
}

// CacheConfig holds cache lifetimes in milliseconds.
type CacheConfig struct {
	MinecraftMs int `yaml:"minecraft"`
	JellyfinMs  int `yaml:"jellyfin"`
	HardwareMs  int `yaml:"hardware"`
	MeshMs      int `yaml:"mesh"`
}

// QueryConfig tunes the game server status query.
type QueryConfig struct {
	TimeoutMs int `yaml:"timeout_ms"`
	TickMs    int `yaml:"tick_ms"`
}

// RateLimitConfig is the per-client request limit of the HTTP front end.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// RedisConfig enables the report publisher when URL is set.
type RedisConfig struct {
	URL        string `yaml:"url,omitempty"`
	Password   string `yaml:"password,omitempty"`
	IntervalMs int    `yaml:"interval_ms"`
	Channel    string `yaml:"channel,omitempty"`
}

// HistoryConfig enables the status history store when Path is set.
type HistoryConfig struct {
	Path           string `yaml:"path,omitempty"`
	RetentionHours int    `yaml:"retention_hours"`
}

// DefaultConfig returns a Config with the documented defaults and no servers.
func DefaultConfig() *Config {
	return &Config{
		HostIP:   "0.0.0.0",
		HostPort: 8080,
		Servers:  []ServerConfig{},
		Cache: CacheConfig{
			MinecraftMs: 10000,
			JellyfinMs:  30000,
			HardwareMs:  5000,
			MeshMs:      5000,
		},
		Query: QueryConfig{
			TimeoutMs: 3000,
			TickMs:    50,
		},
		PeerTimeoutMs: 3000,
		RateLimit: RateLimitConfig{
			RPS:   10,
			Burst: 20,
		},
		Redis: RedisConfig{
			IntervalMs: 30000,
		},
		History: HistoryConfig{
			RetentionHours: 168,
		},
	}
}

// Load reads path, writing the default document first if the file does not
// exist. Environment overrides are applied, then the result is validated and
// normalized. A nil resolver leaves .local names as they are.
func Load(path string, resolver Resolver) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := WriteDefault(path); err != nil {
			return nil, err
		}
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ApplyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	Normalize(cfg)
	if resolver != nil {
		ResolveLocalNames(cfg, resolver)
	}
	return cfg, nil
}

// Parse decodes a document on top of DefaultConfig, so omitted keys keep
// their defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// WriteDefault writes the default document to path, creating parent
// directories as needed.
func WriteDefault(path string) error {
	return Save(path, DefaultConfig())
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides file values with DASHSRV_* environment variables.
func ApplyEnv(cfg *Config) {
	cfg.HostIP = getEnvOrDefault("DASHSRV_HOST_IP", cfg.HostIP)
	cfg.HostPort = getEnvInt("DASHSRV_HOST_PORT", cfg.HostPort)
	cfg.NodeName = getEnvOrDefault("DASHSRV_NODE_NAME", cfg.NodeName)
	cfg.Redis.URL = getEnvOrDefault("DASHSRV_REDIS_URL", cfg.Redis.URL)
	cfg.Debug = getEnvBool("DASHSRV_DEBUG", cfg.Debug)
}

// ListenAddr returns host:port for the HTTP server.
func (c *Config) ListenAddr() string {
	return c.HostIP + ":" + strconv.Itoa(c.HostPort)
}

// ServersOfType returns the servers of one type in file order.
func (c *Config) ServersOfType(typ string) []ServerConfig {
	var out []ServerConfig
	for _, s := range c.Servers {
		if s.Type == typ {
			out = append(out, s)
		}
	}
	return out
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (c CacheConfig) Minecraft() time.Duration { return ms(c.MinecraftMs) }
func (c CacheConfig) Jellyfin() time.Duration  { return ms(c.JellyfinMs) }
func (c CacheConfig) Hardware() time.Duration  { return ms(c.HardwareMs) }
func (c CacheConfig) Mesh() time.Duration      { return ms(c.MeshMs) }

func (q QueryConfig) Timeout() time.Duration { return ms(q.TimeoutMs) }
func (q QueryConfig) Tick() time.Duration    { return ms(q.TickMs) }

// PeerTimeout is the per-request timeout for peers and media servers.
func (c *Config) PeerTimeout() time.Duration { return ms(c.PeerTimeoutMs) }

// ResponseBudget is the longest a single API request can block on a cache
// miss. Peers are polled one after another, a media server check is two
// requests, and a game server query is bounded by the query timeout.
func (c *Config) ResponseBudget() time.Duration {
	peers := time.Duration(len(c.ServersOfType(TypeDashboard))) * c.PeerTimeout()
	media := 2 * c.PeerTimeout()
	return max(peers, media, c.Query.Timeout())
}

func (r RedisConfig) Interval() time.Duration { return ms(r.IntervalMs) }

func (h HistoryConfig) Retention() time.Duration {
	return time.Duration(h.RetentionHours) * time.Hour
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as a bool or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
