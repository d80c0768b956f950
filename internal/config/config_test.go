package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL())
	assert.Equal(t, 8, cfg.Concurrency)
	assert.NotEmpty(t, cfg.UserAgents)
	assert.NotEmpty(t, cfg.Bait.Filenames)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := Load("/nonexistent/anyflix.toml")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "anyflix.toml")
	content := `
timeout_seconds = 10
concurrency = 2

[bait]
filenames = ["decoy.mp4"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.TimeoutSeconds)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, []string{"decoy.mp4"}, cfg.Bait.Filenames)
	// Untouched fields keep their defaults.
	assert.Equal(t, Default().CacheTTLSeconds, cfg.CacheTTLSeconds)
	assert.Equal(t, Default().UserAgents, cfg.UserAgents)
}

func TestLoadRejectsInvalidTOML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("timeout_seconds = ["), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadClampsNonPositiveValues(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "anyflix.toml")
	require.NoError(t, os.WriteFile(path, []byte("timeout_seconds = -1\nconcurrency = 0\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().TimeoutSeconds, cfg.TimeoutSeconds)
	assert.Equal(t, Default().Concurrency, cfg.Concurrency)
}

func TestIsBait(t *testing.T) {
	t.Parallel()

	policy := Default().Bait

	assert.True(t, policy.IsBait("https://cdn.example/videos/BigBuckBunny.mp4"))
	assert.True(t, policy.IsBait("https://cdn.example/videos/bigbuckbunny.mp4"))
	assert.True(t, policy.IsBait("https://test-videos.co.uk/anything/video.mp4"))
	assert.True(t, policy.IsBait(`{"mp4": "https://sample-videos.com/x.mp4"}`))

	assert.False(t, policy.IsBait("https://delivery.voe.example/v.mp4"))
	assert.False(t, policy.IsBait(""))
}
