package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-authgate/speaknative/internal/releases"
)

func TestPrintDownloads(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printDownloads(&buf, releases.FallbackDownloads()))

	var got releases.Downloads
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, releases.FallbackDownloads(), got)
	assert.Contains(t, buf.String(), "\n  \"mac_arm64\"")
}
