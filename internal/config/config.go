package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultProbeCount      = 2
	DefaultProbeTimeoutSec = 1
	DefaultMaxWorkers      = 32
	DefaultWaitTimeoutSec  = 180
	DefaultPollIntervalSec = 2
	DefaultConnectProfile  = "ibrl"
	DefaultIPEndpoint      = "ifconfig.me"
	DefaultPingBin         = "ping"
	DefaultTunnelBin       = "doublezero"
	DefaultGossipBin       = "solana"
	DefaultCurlBin         = "curl"
)

// DefaultSTUNServers is the fallback path for external IP detection.
var DefaultSTUNServers = []string{"stun.l.google.com:19302"}

// LoggingConfig controls diagnostic output (report tables are unaffected).
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // console or json
}

// Config holds the run tunables. Read once at startup, never mutated.
type Config struct {
	ProbeCount      int `yaml:"probe_count,omitempty"`
	ProbeTimeoutSec int `yaml:"probe_timeout_sec,omitempty"`
	MaxWorkers      int `yaml:"max_workers,omitempty"`
	WaitTimeoutSec  int `yaml:"wait_timeout_sec,omitempty"`
	PollIntervalSec int `yaml:"poll_interval_sec,omitempty"`

	ConnectProfile string   `yaml:"connect_profile,omitempty"`
	IPEndpoint     string   `yaml:"ip_endpoint,omitempty"`
	STUNServers    []string `yaml:"stun_servers,omitempty"`

	PingBin   string `yaml:"ping_bin,omitempty"`
	TunnelBin string `yaml:"tunnel_bin,omitempty"`
	GossipBin string `yaml:"gossip_bin,omitempty"`
	CurlBin   string `yaml:"curl_bin,omitempty"`

	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// Default returns the built-in tunables.
func Default() Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return cfg
}

// Load reads and parses a YAML config file, filling in defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	ApplyDefaults(&cfg)
	return cfg, nil
}

// ApplyDefaults fills in default values when empty.
func ApplyDefaults(cfg *Config) {
	if cfg.ProbeCount == 0 {
		cfg.ProbeCount = DefaultProbeCount
	}
	if cfg.ProbeTimeoutSec == 0 {
		cfg.ProbeTimeoutSec = DefaultProbeTimeoutSec
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.WaitTimeoutSec == 0 {
		cfg.WaitTimeoutSec = DefaultWaitTimeoutSec
	}
	if cfg.PollIntervalSec == 0 {
		cfg.PollIntervalSec = DefaultPollIntervalSec
	}
	if cfg.ConnectProfile == "" {
		cfg.ConnectProfile = DefaultConnectProfile
	}
	if cfg.IPEndpoint == "" {
		cfg.IPEndpoint = DefaultIPEndpoint
	}
	if len(cfg.STUNServers) == 0 {
		cfg.STUNServers = append([]string(nil), DefaultSTUNServers...)
	}
	if cfg.PingBin == "" {
		cfg.PingBin = DefaultPingBin
	}
	if cfg.TunnelBin == "" {
		cfg.TunnelBin = DefaultTunnelBin
	}
	if cfg.GossipBin == "" {
		cfg.GossipBin = DefaultGossipBin
	}
	if cfg.CurlBin == "" {
		cfg.CurlBin = DefaultCurlBin
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// Validate rejects settings that would make the run meaningless.
func Validate(cfg Config) error {
	if cfg.ProbeCount < 1 {
		return fmt.Errorf("probe_count must be >= 1")
	}
	if cfg.ProbeTimeoutSec < 1 {
		return fmt.Errorf("probe_timeout_sec must be >= 1")
	}
	if cfg.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be >= 1")
	}
	if cfg.WaitTimeoutSec < 1 {
		return fmt.Errorf("wait_timeout_sec must be >= 1")
	}
	if cfg.PollIntervalSec < 1 {
		return fmt.Errorf("poll_interval_sec must be >= 1")
	}
	if cfg.ConnectProfile == "" {
		return fmt.Errorf("connect_profile is required")
	}
	return nil
}

func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSec) * time.Second
}

func (c Config) WaitTimeout() time.Duration {
	return time.Duration(c.WaitTimeoutSec) * time.Second
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}
