// Package releases finds the download links of the latest desktop build.
package releases

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	retry "github.com/appleboy/go-httpretry"

	"github.com/go-authgate/speaknative/internal/logging"
)

const (
	DefaultAPIBase = "https://api.github.com"
	DefaultOwner   = "jdaqu"
	DefaultRepo    = "speakNativeAi-ui"

	lookupTimeout = 10 * time.Second
)

// Downloads are the installer links for one release.
type Downloads struct {
	MacArm64 string `json:"mac_arm64"`
	MacIntel string `json:"mac_intel"`
	Version  string `json:"version"`
	// Fallback is set when the links are the static ones rather than a release's.
	Fallback bool `json:"fallback"`
}

// FallbackDownloads are served when the release API cannot be used.
func FallbackDownloads() Downloads {
	return Downloads{
		MacArm64: "/downloads/SpeakNativeAI-mac-arm64.dmg",
		MacIntel: "/downloads/SpeakNativeAI-mac-intel.dmg",
		Version:  "latest",
		Fallback: true,
	}
}

type release struct {
	TagName string  `json:"tag_name"`
	Name    string  `json:"name"`
	Assets  []asset `json:"assets"`
}

type asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// Finder looks up releases of one GitHub repository.
type Finder struct {
	apiBase string
	owner   string
	repo    string
	client  *retry.Client
	log     *slog.Logger
}

// Option configures a Finder.
type Option func(*Finder)

// WithAPIBase points the Finder at another GitHub API host.
func WithAPIBase(base string) Option {
	return func(f *Finder) { f.apiBase = strings.TrimRight(base, "/") }
}

// WithRepository selects the repository.
func WithRepository(owner, repo string) Option {
	return func(f *Finder) { f.owner, f.repo = owner, repo }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Finder) { f.log = l }
}

// NewFinder builds a Finder on top of hc wrapped with retries.
func NewFinder(hc *http.Client, opts ...Option) (*Finder, error) {
	if hc == nil {
		hc = &http.Client{Timeout: lookupTimeout}
	}
	client, err := retry.NewClient(retry.WithHTTPClient(hc))
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}
	f := &Finder{
		apiBase: DefaultAPIBase,
		owner:   DefaultOwner,
		repo:    DefaultRepo,
		client:  client,
		log:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Latest returns the installers of the latest release.
func (f *Finder) Latest(ctx context.Context) (Downloads, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", f.apiBase, f.owner, f.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Downloads{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := f.client.DoWithContext(ctx, req)
	if err != nil {
		return Downloads{}, fmt.Errorf("release lookup failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Downloads{}, fmt.Errorf("failed to read release: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Downloads{}, fmt.Errorf("release lookup returned %d", resp.StatusCode)
	}

	var rel release
	if err := json.Unmarshal(body, &rel); err != nil {
		return Downloads{}, fmt.Errorf("failed to parse release: %w", err)
	}

	names := make([]string, 0, len(rel.Assets))
	for _, a := range rel.Assets {
		names = append(names, a.Name)
	}
	f.log.Debug("release assets", slog.String("tag", rel.TagName), slog.Any("assets", names))

	arm, intel := pickInstallers(rel.Assets)
	if arm == nil || intel == nil {
		return Downloads{}, fmt.Errorf("release %s lacks a mac installer (assets: %s)",
			rel.TagName, strings.Join(names, ", "))
	}
	return Downloads{
		MacArm64: arm.BrowserDownloadURL,
		MacIntel: intel.BrowserDownloadURL,
		Version:  rel.TagName,
	}, nil
}

// Downloads returns the latest release's installers, or the static fallback
// when the lookup fails for any reason.
func (f *Finder) Downloads(ctx context.Context) Downloads {
	d, err := f.Latest(ctx)
	if err != nil {
		f.log.Warn("using fallback download links", slog.Any("error", err))
		return FallbackDownloads()
	}
	return d
}

// pickInstallers selects the first arm64 .dmg and the first other .dmg.
func pickInstallers(assets []asset) (arm, intel *asset) {
	for i := range assets {
		a := &assets[i]
		if !strings.HasSuffix(a.Name, ".dmg") {
			continue
		}
		if strings.Contains(a.Name, "arm64") {
			if arm == nil {
				arm = a
			}
		} else if intel == nil {
			intel = a
		}
	}
	return arm, intel
}
