// Package routerconfig loads the router's YAML configuration: listen
// addresses for both transports, the T2 keyfile path, the reputation
// database DSN, the control API bind address and JWT secret, and the
// clock-skew reporting bound.
package routerconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level router configuration.
type Config struct {
	IdentityPath string         `yaml:"identity_path"`
	NTCP         NTCPConfig     `yaml:"ntcp"`
	NTCP2        NTCP2Config    `yaml:"ntcp2"`
	Reputation   ReputationConfig `yaml:"reputation"`
	Control      ControlConfig  `yaml:"control"`
	LogLevel     string         `yaml:"log_level"`

	// MaxClockSkew is the tsA/tsB gap in the T1 handshake beyond which
	// the router logs a warning and publishes an rtt_skew event; the
	// session is still accepted. spec.md leaves the exact tolerance as
	// an open question; the default is +/-90s.
	MaxClockSkew time.Duration `yaml:"max_clock_skew"`
}

// NTCPConfig configures the T1 listener.
type NTCPConfig struct {
	Listen string `yaml:"listen"`
}

// NTCP2Config configures the T2 listener and its persistent keyfile.
type NTCP2Config struct {
	Listen      string `yaml:"listen"`
	KeyfilePath string `yaml:"keyfile_path"`
}

// ReputationConfig configures the peer ban-list store.
type ReputationConfig struct {
	DSN string `yaml:"dsn"`
}

// ControlConfig configures the admin/observability API.
type ControlConfig struct {
	Listen    string `yaml:"listen"`
	JWTSecret string `yaml:"jwt_secret"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

// Default returns a Config with sensible defaults, mirroring the
// reference router's stock configuration.
func Default() *Config {
	return &Config{
		IdentityPath: "/var/lib/i2p-go/identity.key",
		NTCP:         NTCPConfig{Listen: "0.0.0.0:12345"},
		NTCP2: NTCP2Config{
			Listen:      "0.0.0.0:12346",
			KeyfilePath: "/var/lib/i2p-go/ntcp2.key",
		},
		Reputation: ReputationConfig{DSN: "sqlite:///var/lib/i2p-go/reputation.db"},
		Control: ControlConfig{
			Listen:    "127.0.0.1:7070",
			JWTSecret: "change-me-in-production",
			Username:  "admin",
			Password:  "admin",
		},
		LogLevel:     "info",
		MaxClockSkew: 90 * time.Second,
	}
}

// Load reads and parses a Config from a YAML file at path, starting
// from Default() so any field the file omits keeps its default.
func Load(path string) (*Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("routerconfig: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("routerconfig: parse %s: %w", path, err)
	}
	return cfg, nil
}
