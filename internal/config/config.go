// Package config loads satorid configuration: daemon settings from
// SATORI_-prefixed environment variables, and the endpoint list from an
// optional YAML file supporting ${VAR} environment expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/nightcrane/satori-go/pkg/satori"
)

// Config holds all daemon configuration loaded from environment variables.
// Variable names derive from the field names under the SATORI_ prefix; an
// explicit envconfig tag would also register as an unprefixed fallback
// name, which must not happen for fields like Path.
type Config struct {
	// General
	Environment string `default:"development"`
	LogLevel    string `split_words:"true" default:"info"`

	// ConfigFile points at a YAML endpoint list (see LoadEndpointsFile).
	// Optional when a single endpoint is configured through HOST/PORT.
	ConfigFile string `split_words:"true"`

	// Single-endpoint fallback for simple deployments.
	Host      string
	Port      int    `default:"5140"`
	Path      string
	Token     string
	Secure    bool
	Allowlist string // comma-separated "platform:id" pairs

	// Ops HTTP server; empty address disables it.
	OpsAddr string `split_words:"true"`

	// Client tuning. Zero values fall back to the client's defaults.
	QueueSize      int           `split_words:"true"`
	ReconnectBase  time.Duration `split_words:"true"`
	ReconnectMax   time.Duration `split_words:"true"`
	MinUptime      time.Duration `split_words:"true"`
	LoginGrace     time.Duration `split_words:"true"`
	RequestTimeout time.Duration `split_words:"true"`

	ShutdownTimeout time.Duration `split_words:"true" default:"15s"`
}

// Load reads configuration from SATORI_-prefixed environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("satori", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Dev reports whether the daemon runs in development mode.
func (c *Config) Dev() bool {
	return c.Environment == "development"
}

// Endpoints resolves the endpoint list: the YAML file when configured,
// otherwise the single HOST/PORT endpoint, otherwise an empty list.
func (c *Config) Endpoints() ([]satori.EndpointConfig, error) {
	if c.ConfigFile != "" {
		return LoadEndpointsFile(c.ConfigFile)
	}
	if c.Host == "" {
		return nil, nil
	}
	allowlist, err := ParseAllowlist(c.Allowlist)
	if err != nil {
		return nil, err
	}
	return []satori.EndpointConfig{{
		Host:      c.Host,
		Port:      c.Port,
		Path:      c.Path,
		Token:     c.Token,
		Secure:    c.Secure,
		Allowlist: allowlist,
	}}, nil
}

// ParseAllowlist parses a comma-separated list of "platform:id" login
// identities. An empty input yields nil (no filtering).
func ParseAllowlist(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, ":") {
			return nil, fmt.Errorf("invalid allowlist entry %q, expected platform:id", part)
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// endpointsFile is the YAML shape of the endpoint list. Durations are
// strings ("10s") so the file stays human-editable.
type endpointsFile struct {
	Endpoints []endpointEntry `yaml:"endpoints"`
}

type endpointEntry struct {
	Host              string   `yaml:"host"`
	Port              int      `yaml:"port"`
	Path              string   `yaml:"path"`
	Token             string   `yaml:"token"`
	Secure            bool     `yaml:"secure"`
	Allowlist         []string `yaml:"allowlist"`
	HeartbeatInterval string   `yaml:"heartbeat_interval"`
	MissedBeats       int      `yaml:"missed_beats"`
}

// LoadEndpointsFile reads a YAML endpoint list, expanding ${VAR} and
// $VAR references from the environment first.
func LoadEndpointsFile(path string) ([]satori.EndpointConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	eps, err := ParseEndpoints(raw)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return eps, nil
}

// ParseEndpoints parses a YAML endpoint list from bytes.
func ParseEndpoints(data []byte) ([]satori.EndpointConfig, error) {
	expanded := expandEnvVars(string(data))

	var file endpointsFile
	if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
		return nil, err
	}

	out := make([]satori.EndpointConfig, 0, len(file.Endpoints))
	for i, e := range file.Endpoints {
		if e.Host == "" {
			return nil, fmt.Errorf("endpoint %d: host is required", i)
		}
		ep := satori.EndpointConfig{
			Host:        e.Host,
			Port:        e.Port,
			Path:        e.Path,
			Token:       e.Token,
			Secure:      e.Secure,
			Allowlist:   e.Allowlist,
			MissedBeats: e.MissedBeats,
		}
		if e.HeartbeatInterval != "" {
			d, err := time.ParseDuration(e.HeartbeatInterval)
			if err != nil {
				return nil, fmt.Errorf("endpoint %d: heartbeat_interval: %w", i, err)
			}
			ep.HeartbeatInterval = d
		}
		out = append(out, ep)
	}
	return out, nil
}

// envVarPattern matches ${VAR_NAME} and $VAR_NAME.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces ${VAR} and $VAR with the corresponding
// environment variable value. Missing vars become empty strings.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(match, "${")
		name = strings.TrimSuffix(name, "}")
		name = strings.TrimPrefix(name, "$")
		return os.Getenv(name)
	})
}
