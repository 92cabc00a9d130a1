package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-authgate/speaknative/internal/filelock"
)

// fallbackEntry is one saved token.
type fallbackEntry struct {
	AccessToken string    `json:"access_token"`
	SavedAt     time.Time `json:"saved_at"`
}

// fallbackFile is the on-disk layout, keyed by API origin so one file can serve
// several environments.
type fallbackFile struct {
	Entries map[string]fallbackEntry `json:"entries"`
}

// FileFallback is the last-resort durable replica used by SharedStore when the
// shell cannot be reached.
type FileFallback struct {
	path string
	key  string
}

// NewFileFallback stores entries for key in the JSON file at path.
func NewFileFallback(path, key string) *FileFallback {
	return &FileFallback{path: path, key: key}
}

// Path returns the backing file path.
func (f *FileFallback) Path() string { return f.path }

// Load returns the saved token or "" when none exists.
func (f *FileFallback) Load() (string, error) {
	file, err := f.read()
	if err != nil {
		return "", err
	}
	return file.Entries[f.key].AccessToken, nil
}

// Save writes token for this key, preserving entries of other keys.
func (f *FileFallback) Save(ctx context.Context, token string) error {
	return f.update(ctx, func(file *fallbackFile) {
		file.Entries[f.key] = fallbackEntry{AccessToken: token, SavedAt: time.Now().UTC()}
	})
}

// Delete removes the entry for this key.
func (f *FileFallback) Delete(ctx context.Context) error {
	return f.update(ctx, func(file *fallbackFile) {
		delete(file.Entries, f.key)
	})
}

func (f *FileFallback) read() (*fallbackFile, error) {
	file := &fallbackFile{Entries: map[string]fallbackEntry{}}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return file, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback file: %w", err)
	}

	if err := json.Unmarshal(data, file); err != nil {
		return nil, fmt.Errorf("failed to parse fallback file: %w", err)
	}
	if file.Entries == nil {
		file.Entries = map[string]fallbackEntry{}
	}
	return file, nil
}

// update applies fn under the cross-process lock and writes the result atomically.
func (f *FileFallback) update(ctx context.Context, fn func(*fallbackFile)) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create fallback dir: %w", err)
	}

	lock, err := filelock.Acquire(ctx, f.path)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lock.Release()

	file, err := f.read()
	if err != nil {
		// A corrupt file is replaced rather than blocking every future write.
		file = &fallbackFile{Entries: map[string]fallbackEntry{}}
	}
	fn(file)

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	tempFile := f.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, f.path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return fmt.Errorf(
				"failed to rename temp file: %v; additionally failed to remove temp file: %w",
				err,
				removeErr,
			)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
