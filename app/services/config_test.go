package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VeilKit/pkg/lockbox"
)

func testConfigService(t *testing.T) *ConfigService {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("USERPROFILE", os.Getenv("HOME"))

	log := zerolog.Nop()
	svc, err := NewConfigService(&log)
	require.NoError(t, err)
	return svc
}

func TestConfigDefaults(t *testing.T) {
	svc := testConfigService(t)

	cfg := svc.GetConfig()
	assert.Equal(t, "dod3", cfg.DefaultShredMethod)
	assert.NotEmpty(t, cfg.LogDir)
	assert.Equal(t, lockbox.DefaultKDFParams(), svc.KDFParams())
}

func TestConfigRoundTrip(t *testing.T) {
	svc := testConfigService(t)

	require.NoError(t, svc.SetDefaultShredMethod("gutmann"))
	require.NoError(t, svc.SetOutputDir("/tmp/out"))

	// A fresh service sees the persisted values.
	log := zerolog.Nop()
	again, err := NewConfigService(&log)
	require.NoError(t, err)
	assert.Equal(t, "gutmann", again.GetConfig().DefaultShredMethod)
	assert.Equal(t, "/tmp/out", again.GetConfig().OutputDir)
}

func TestConfigRejectsUnknownShredMethod(t *testing.T) {
	svc := testConfigService(t)

	err := svc.SetDefaultShredMethod("nuke-from-orbit")
	assert.Error(t, err)
	assert.Equal(t, "dod3", svc.GetConfig().DefaultShredMethod)
}

func TestConfigKDFOverride(t *testing.T) {
	svc := testConfigService(t)

	svc.config.KDFTime = 3
	svc.config.KDFMemoryKiB = 65536
	svc.config.KDFThreads = 2
	require.NoError(t, svc.Save())

	params := svc.KDFParams()
	assert.Equal(t, uint32(3), params.Time)
	assert.Equal(t, uint32(65536), params.MemoryKiB)
	assert.Equal(t, uint8(2), params.Threads)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(home, ".veilkit", "config.json"))
	assert.NoError(t, err)
}
