package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/hermesgo/internal/version"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hermesproxy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadProxy_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadProxy(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultProxy(), cfg)
}

func TestLoadProxy_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
auth_host: logon.example.org
build: 12340
username: player
password: secret
realm: Icecrown
keepalive_interval: 15s
session_ttl: 2h
log_level: debug
`)

	cfg, err := LoadProxy(path)
	require.NoError(t, err)

	assert.Equal(t, "logon.example.org", cfg.AuthHost)
	assert.Equal(t, 3724, cfg.AuthPort, "default kept")
	assert.Equal(t, uint32(version.V3_3_5a), cfg.Build)
	assert.Equal(t, "Icecrown", cfg.Realm)
	assert.Equal(t, 15*time.Second, cfg.KeepaliveInterval)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "logon.example.org:3724", cfg.AuthAddress())

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	info, err := cfg.Info()
	require.NoError(t, err)
	assert.Equal(t, version.V3_3_5a, info.Build)
	require.NoError(t, cfg.Validate())
}

func TestLoadProxy_BadYAML(t *testing.T) {
	_, err := LoadProxy(writeConfig(t, "auth_port: [1, 2"))
	require.Error(t, err)
}

func TestProxy_ApplyEnv(t *testing.T) {
	env := map[string]string{EnvUsername: "fromenv", EnvPassword: ""}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultProxy()
	cfg.Password = "keep"
	cfg.ApplyEnv(lookup)

	assert.Equal(t, "fromenv", cfg.Username)
	assert.Equal(t, "keep", cfg.Password, "empty variable does not override")
}

func TestLoad_UsesEnvironment(t *testing.T) {
	path := writeConfig(t, "build: 8606\n")
	t.Setenv(EnvConfig, path)
	t.Setenv(EnvUsername, "envuser")
	t.Setenv(EnvPassword, "envpass")
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, uint32(version.V2_4_3), cfg.Build)
	assert.Equal(t, "envuser", cfg.Username)
	assert.Equal(t, "envpass", cfg.Password)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HERMES_USERNAME=dotenv\nHERMES_PASSWORD=pw\n"), 0o600))
	// godotenv не перезаписывает уже заданные переменные
	t.Setenv(EnvUsername, "")
	t.Setenv(EnvPassword, "")
	os.Unsetenv(EnvUsername)
	os.Unsetenv(EnvPassword)

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "dotenv", cfg.Username)
	assert.Equal(t, "pw", cfg.Password)
}

func TestProxy_Validate(t *testing.T) {
	valid := func() Proxy {
		cfg := DefaultProxy()
		cfg.Username, cfg.Password = "u", "p"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Proxy)
		want   error
	}{
		{"valid", func(*Proxy) {}, nil},
		{"no username", func(p *Proxy) { p.Username = "" }, ErrMissingCredentials},
		{"no password", func(p *Proxy) { p.Password = "" }, ErrMissingCredentials},
		{"unknown build", func(p *Proxy) { p.Build = 4000 }, version.ErrUnsupportedBuild},
		{"no host", func(p *Proxy) { p.AuthHost = "" }, ErrInvalidConfig},
		{"bad port", func(p *Proxy) { p.AuthPort = 70000 }, ErrInvalidConfig},
		{"long locale", func(p *Proxy) { p.Locale = "en_US" }, ErrInvalidConfig},
		{"no keepalive", func(p *Proxy) { p.KeepaliveInterval = 0 }, ErrInvalidConfig},
		{"no handshake timeout", func(p *Proxy) { p.HandshakeTimeout = 0 }, ErrInvalidConfig},
		{"negative handshake timeout", func(p *Proxy) { p.HandshakeTimeout = -time.Second }, ErrInvalidConfig},
		{"bad log level", func(p *Proxy) { p.LogLevel = "loud" }, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}
