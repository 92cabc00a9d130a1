package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/go-authgate/speaknative/internal/scheme"
)

// config is the environment shared by every subcommand.
type config struct {
	Env            string        `env:"ENV" env-default:"production" env-description:"deployment environment"`
	APIBaseURL     string        `env:"API_BASE_URL" env-description:"API root, overrides the local API"`
	DevServerPort  int           `env:"DEV_SERVER_PORT" env-default:"8000" env-description:"port of the local development API"`
	URLScheme      string        `env:"URL_SCHEME" env-default:"appscheme" env-description:"custom URL scheme for external login"`
	RuntimeDir     string        `env:"RUNTIME_DIR" env-description:"directory holding the shell socket and window logs"`
	FallbackFile   string        `env:"FALLBACK_FILE" env-description:"session file used while the shell is unreachable"`
	LogLevel       string        `env:"LOG_LEVEL" env-default:"info" env-description:"debug, info, warn or error"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" env-default:"15s" env-description:"timeout of one API request"`
	LoginEmail     string        `env:"LOGIN_EMAIL" env-description:"sign in with these credentials instead of the browser"`
	LoginPassword  string        `env:"LOGIN_PASSWORD"`
	GoogleEmail    string        `env:"DEV_GOOGLE_EMAIL" env-description:"account the development API signs in through /auth/google"`
}

// commonFlags are accepted by every subcommand and override the environment.
type commonFlags struct {
	apiURL     *string
	scheme     *string
	runtimeDir *string
	logLevel   *string
}

func registerCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		apiURL: fs.String(
			"api-url",
			"",
			"API root (default: API_BASE_URL env or http://localhost:<DEV_SERVER_PORT>/api/v1)",
		),
		scheme:     fs.String("scheme", "", "custom URL scheme (default: appscheme or URL_SCHEME env)"),
		runtimeDir: fs.String("runtime-dir", "", "runtime directory (default: RUNTIME_DIR env or a temp dir)"),
		logLevel:   fs.String("log-level", "", "log level (default: info or LOG_LEVEL env)"),
	}
}

// loadConfig reads the environment and applies flags on top.
func loadConfig(f *commonFlags) (*config, error) {
	var cfg config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	// Priority: flag > env > default
	cfg.APIBaseURL = getConfig(
		*f.apiURL,
		cfg.APIBaseURL,
		fmt.Sprintf("http://localhost:%d/api/v1", cfg.DevServerPort),
	)
	cfg.URLScheme = strings.ToLower(getConfig(*f.scheme, cfg.URLScheme, "appscheme"))
	cfg.RuntimeDir = getConfig(*f.runtimeDir, cfg.RuntimeDir, filepath.Join(os.TempDir(), "speaknative"))
	cfg.LogLevel = getConfig(*f.logLevel, cfg.LogLevel, "info")
	if cfg.FallbackFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = cfg.RuntimeDir
		}
		cfg.FallbackFile = filepath.Join(dir, "speaknative", "session.json")
	}

	if err := validateServerURL(cfg.APIBaseURL); err != nil {
		return nil, fmt.Errorf("invalid API_BASE_URL: %w", err)
	}
	if err := scheme.Validate(cfg.URLScheme); err != nil {
		return nil, fmt.Errorf("invalid URL_SCHEME: %w", err)
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must be positive, got: %s", cfg.RequestTimeout)
	}
	return &cfg, nil
}

// getConfig returns value with priority: flag > env > default
func getConfig(flagValue, envValue, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue != "" {
		return envValue
	}
	return defaultValue
}

// validateServerURL validates that the server URL is properly formatted
func validateServerURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("server URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}

func (c *config) development() bool {
	return strings.EqualFold(c.Env, "development")
}

// warn reports settings that work but should not reach production.
func (c *config) warn(log *slog.Logger) {
	if strings.HasPrefix(strings.ToLower(c.APIBaseURL), "http://") && !c.development() {
		log.Warn("using HTTP instead of HTTPS, tokens will be transmitted in plaintext",
			slog.String("api", c.APIBaseURL))
	}
	if c.LoginEmail != "" && c.LoginPassword == "" {
		log.Warn("LOGIN_EMAIL is set without LOGIN_PASSWORD, ignoring it")
	}
}

// childEnv is what the shell hands to the windows it launches so they find the
// same socket, API and fallback file whatever flags the shell was started with.
func (c *config) childEnv() []string {
	return []string{
		"API_BASE_URL=" + c.APIBaseURL,
		"URL_SCHEME=" + c.URLScheme,
		"RUNTIME_DIR=" + c.RuntimeDir,
		"FALLBACK_FILE=" + c.FallbackFile,
		"LOG_LEVEL=" + c.LogLevel,
	}
}

func (c *config) credentials() (string, string, bool) {
	if c.LoginEmail == "" || c.LoginPassword == "" {
		return "", "", false
	}
	return c.LoginEmail, c.LoginPassword, true
}
