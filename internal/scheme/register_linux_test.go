//go:build linux

package scheme

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-authgate/speaknative/internal/logging"
)

func TestRegister_WritesDesktopEntry(t *testing.T) {
	data := t.TempDir()
	t.Setenv("XDG_DATA_HOME", data)
	// No xdg-mime on PATH: the entry is still written.
	t.Setenv("PATH", t.TempDir())

	err := Register(context.Background(), "appscheme", "/usr/bin/speaknative", logging.Discard())
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(data, "applications", "speaknative-appscheme.desktop"))
	require.NoError(t, err)
	assert.Equal(t, desktopEntry("appscheme", "/usr/bin/speaknative"), string(content))
}

func TestRegister_RejectsInvalidScheme(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	assert.Error(t, Register(context.Background(), "https", "/usr/bin/speaknative", logging.Discard()))
}
