package main

import (
	"bytes"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable config reads so the host environment and any
// .env file cannot leak into a test. An empty but set variable would still
// count as a value.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENV", "API_BASE_URL", "DEV_SERVER_PORT", "URL_SCHEME", "RUNTIME_DIR",
		"FALLBACK_FILE", "LOG_LEVEL", "REQUEST_TIMEOUT", "LOGIN_EMAIL",
		"LOGIN_PASSWORD", "DEV_GOOGLE_EMAIL",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func parseCommon(t *testing.T, args ...string) *commonFlags {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := registerCommonFlags(fs)
	require.NoError(t, fs.Parse(args))
	return f
}

func TestGetConfig(t *testing.T) {
	tests := []struct {
		name                 string
		flagValue, envValue  string
		defaultValue, expect string
	}{
		{"flag wins", "flag", "env", "default", "flag"},
		{"env over default", "", "env", "default", "env"},
		{"default", "", "", "default", "default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getConfig(tt.flagValue, tt.envValue, tt.defaultValue); got != tt.expect {
				t.Errorf("getConfig() = %q, want %q", got, tt.expect)
			}
		})
	}
}

func TestValidateServerURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://api.example.com/api/v1", false},
		{"http://localhost:8000/api/v1", false},
		{"", true},
		{"ftp://example.com", true},
		{"http://", true},
		{"://bad", true},
	}
	for _, tt := range tests {
		err := validateServerURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateServerURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfig(parseCommon(t))
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, 8000, cfg.DevServerPort)
	assert.Equal(t, "http://localhost:8000/api/v1", cfg.APIBaseURL)
	assert.Equal(t, "appscheme", cfg.URLScheme)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.NotEmpty(t, cfg.RuntimeDir)
	assert.Equal(t, "session.json", filepath.Base(cfg.FallbackFile))
}

func TestLoadConfig_EnvAndFlags(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEV_SERVER_PORT", "9001")
	t.Setenv("URL_SCHEME", "speaknative")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := loadConfig(parseCommon(t, "-log-level=debug", "-runtime-dir", "/tmp/sn-test"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9001/api/v1", cfg.APIBaseURL, "dev port feeds the default API")
	assert.Equal(t, "speaknative", cfg.URLScheme)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "debug", cfg.LogLevel, "flag beats env")
	assert.Equal(t, "/tmp/sn-test", cfg.RuntimeDir)

	t.Setenv("API_BASE_URL", "https://api.example.com/api/v1")
	cfg, err = loadConfig(parseCommon(t))
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/api/v1", cfg.APIBaseURL)

	cfg, err = loadConfig(parseCommon(t, "-api-url", "https://other.example.com/api/v1"))
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com/api/v1", cfg.APIBaseURL)
}

func TestLoadConfig_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"bad api url", map[string]string{"API_BASE_URL": "ftp://example.com"}, nil},
		{"web scheme", nil, []string{"-scheme", "https"}},
		{"malformed scheme", map[string]string{"URL_SCHEME": "1app"}, nil},
		{"bad port", map[string]string{"DEV_SERVER_PORT": "eighty"}, nil},
		{"zero timeout", map[string]string{"REQUEST_TIMEOUT": "0s"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadConfig(parseCommon(t, tt.args...))
			assert.Error(t, err)
		})
	}
}

func TestConfigWarn(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	cfg := &config{Env: "production", APIBaseURL: "http://api.example.com/api/v1", LoginEmail: "a@b.c"}
	cfg.warn(log)
	out := buf.String()
	assert.Contains(t, out, "plaintext")
	assert.Contains(t, out, "LOGIN_PASSWORD")

	buf.Reset()
	cfg = &config{Env: "development", APIBaseURL: "http://localhost:8000/api/v1"}
	cfg.warn(log)
	assert.Empty(t, buf.String())
}

func TestConfigChildEnv(t *testing.T) {
	cfg := &config{
		APIBaseURL:   "http://localhost:8000/api/v1",
		URLScheme:    "appscheme",
		RuntimeDir:   "/run/sn",
		FallbackFile: "/home/u/.config/speaknative/session.json",
		LogLevel:     "debug",
	}
	env := strings.Join(cfg.childEnv(), "\n")
	assert.Contains(t, env, "RUNTIME_DIR=/run/sn")
	assert.Contains(t, env, "API_BASE_URL=http://localhost:8000/api/v1")
	assert.Contains(t, env, "FALLBACK_FILE=/home/u/.config/speaknative/session.json")
}

func TestConfigCredentials(t *testing.T) {
	_, _, ok := (&config{LoginEmail: "a@b.c"}).credentials()
	assert.False(t, ok)

	email, password, ok := (&config{LoginEmail: "a@b.c", LoginPassword: "pw"}).credentials()
	assert.True(t, ok)
	assert.Equal(t, "a@b.c", email)
	assert.Equal(t, "pw", password)
}
