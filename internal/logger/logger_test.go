package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	require.NoError(t, Init(Config{Level: "warn", Output: path}))

	Info().Msg("dropped below level")
	Warn().Str("source", "Coast").Msg("Feed unavailable")
	Error().Msg("Store failed")
	l := For("ingest")
	l.Warn().Msg("component line")

	// Later calls keep the first configuration.
	require.NoError(t, Init(Config{Level: "debug", Output: "stdout"}))
	Info().Msg("still dropped")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"source":"Coast"`)
	assert.Contains(t, lines[0], `"service":"wastewatch"`)
	assert.Contains(t, lines[1], `"level":"error"`)
	assert.Contains(t, lines[2], `"component":"ingest"`)
}
