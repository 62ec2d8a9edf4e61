package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRecentLogs(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "veilkit.log")
	lines := `{"level":"info","time":"2026-08-30T10:00:00Z","message":"first"}
not a json line
{"level":"warn","time":"2026-08-30T10:00:01Z","message":"second"}
{"level":"error","time":"2026-08-30T10:00:02Z","message":"third"}
`
	require.NoError(t, os.WriteFile(logFile, []byte(lines), 0644))

	log := zerolog.Nop()
	svc := NewLogService(&log, logFile)

	entries, err := svc.GetRecentLogs(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Message)
	assert.Equal(t, "error", entries[1].Level)
}

func TestGetRecentLogsMissingFile(t *testing.T) {
	log := zerolog.Nop()
	svc := NewLogService(&log, filepath.Join(t.TempDir(), "nope.log"))

	entries, err := svc.GetRecentLogs(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExportDiagnostics(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "veilkit.log")
	require.NoError(t, os.WriteFile(logFile, []byte("payload\n"), 0644))

	log := zerolog.Nop()
	svc := NewLogService(&log, logFile)

	out := filepath.Join(dir, "bundle", "diagnostics.log")
	require.NoError(t, svc.ExportDiagnostics(out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "payload\n", string(data))
}
