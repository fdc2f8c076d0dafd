package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/udisondev/hermesgo/internal/version"
)

// Environment variables read by LoadFromEnv.
const (
	EnvConfig   = "HERMES_CONFIG"
	EnvUsername = "HERMES_USERNAME"
	EnvPassword = "HERMES_PASSWORD"
)

// DefaultPath is used when neither a flag nor HERMES_CONFIG names a file.
const DefaultPath = "config/hermesproxy.yaml"

var (
	// ErrMissingCredentials is returned by Validate without username or password.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrInvalidConfig is wrapped by every other Validate error.
	ErrInvalidConfig = errors.New("invalid config")
)

// Proxy holds all configuration of the proxy.
type Proxy struct {
	// Auth server
	AuthHost string `yaml:"auth_host"`
	AuthPort int    `yaml:"auth_port"`

	// Legacy client identity
	Build    uint32 `yaml:"build"`
	Locale   string `yaml:"locale"`
	Platform string `yaml:"platform"`
	OS       string `yaml:"os"`

	// Account
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Realm to enter; empty picks the first online realm.
	Realm string `yaml:"realm"`

	// Timeouts
	DialTimeout       time.Duration `yaml:"dial_timeout"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
	// SessionTTL bounds how long a session key is reused for reconnects.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// AddonFixes is an optional YAML table merged into the built-in one.
	AddonFixes string `yaml:"addon_fixes"`

	LogLevel string `yaml:"log_level"`
}

// DefaultProxy returns Proxy config with sensible defaults.
func DefaultProxy() Proxy {
	return Proxy{
		AuthHost:          "127.0.0.1",
		AuthPort:          3724,
		Build:             uint32(version.V1_12_1),
		Locale:            "enUS",
		Platform:          "x86",
		OS:                "Win",
		DialTimeout:       10 * time.Second,
		HandshakeTimeout:  30 * time.Second,
		KeepaliveInterval: 30 * time.Second,
		SessionTTL:        time.Hour,
		LogLevel:          "info",
	}
}

// LoadProxy loads proxy config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadProxy(path string) (Proxy, error) {
	cfg := DefaultProxy()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Load reads an optional .env file, picks the config path (flag value,
// then HERMES_CONFIG, then DefaultPath), loads it and applies credential
// overrides from the environment.
func Load(flagPath string) (Proxy, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Proxy{}, fmt.Errorf("loading .env: %w", err)
	}

	path := flagPath
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		path = DefaultPath
	}

	cfg, err := LoadProxy(path)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// ApplyEnv overrides credentials with HERMES_USERNAME and HERMES_PASSWORD.
func (p *Proxy) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvUsername); ok && v != "" {
		p.Username = v
	}
	if v, ok := lookup(EnvPassword); ok && v != "" {
		p.Password = v
	}
}

// Validate checks that the config can be used to log in.
func (p Proxy) Validate() error {
	if p.Username == "" || p.Password == "" {
		return ErrMissingCredentials
	}
	if _, err := version.Lookup(version.Build(p.Build)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if p.AuthHost == "" {
		return fmt.Errorf("%w: empty auth_host", ErrInvalidConfig)
	}
	if p.AuthPort <= 0 || p.AuthPort > 0xFFFF {
		return fmt.Errorf("%w: auth_port %d", ErrInvalidConfig, p.AuthPort)
	}
	for name, s := range map[string]string{"locale": p.Locale, "platform": p.Platform, "os": p.OS} {
		if len(s) == 0 || len(s) > 4 {
			return fmt.Errorf("%w: %s %q must be 1-4 characters", ErrInvalidConfig, name, s)
		}
	}
	if p.HandshakeTimeout <= 0 {
		return fmt.Errorf("%w: handshake_timeout %v", ErrInvalidConfig, p.HandshakeTimeout)
	}
	if p.KeepaliveInterval <= 0 {
		return fmt.Errorf("%w: keepalive_interval %v", ErrInvalidConfig, p.KeepaliveInterval)
	}
	if _, err := p.Level(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// AuthAddress returns the auth server address as host:port.
func (p Proxy) AuthAddress() string {
	return net.JoinHostPort(p.AuthHost, strconv.Itoa(p.AuthPort))
}

// Info returns the version entry of the configured build.
func (p Proxy) Info() (version.Info, error) {
	return version.Lookup(version.Build(p.Build))
}

// Level parses LogLevel.
func (p Proxy) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(p.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q: %w", p.LogLevel, err)
	}
	return l, nil
}
