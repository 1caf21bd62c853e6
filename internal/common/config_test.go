package common

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig_GenerationPolicy(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 150, cfg.Generation.WordsPerMinute)
	assert.Equal(t, 15, cfg.Generation.ChunkingThresholdMinutes)
	assert.Equal(t, 30, cfg.Generation.OutlineThresholdMinutes)
	assert.InDelta(t, 0.85, cfg.Generation.RegenerateBelow, 1e-9)
	assert.InDelta(t, 0.70, cfg.Generation.AcceptExpanded, 1e-9)
	assert.InDelta(t, 0.75, cfg.Generation.AcceptUnexpanded, 1e-9)
	assert.InDelta(t, 0.80, cfg.Generation.GateMinRatio, 1e-9)
	assert.Equal(t, 10, cfg.Generation.MinTags)
	assert.InDelta(t, 0.33, cfg.Credits.BaseRate, 1e-9)
	assert.InDelta(t, 3.5, cfg.Credits.TierMultipliers["premium"], 1e-9)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFiles_LaterFileOverrides(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
[server]
port = 9000

[generation]
words_per_minute = 140
`), 0644))
	require.NoError(t, os.WriteFile(override, []byte(`
[generation]
words_per_minute = 160
`), 0644))

	cfg, err := LoadFromFiles(nil, base, override)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 160, cfg.Generation.WordsPerMinute)
	assert.Equal(t, 15, cfg.Generation.MinutesPerChunk, "unset values keep defaults")
}

func TestLoadFromFiles_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "longform.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 9000\n"), 0644))

	t.Setenv("LONGFORM_SERVER_PORT", "9100")
	t.Setenv("LONGFORM_WORDS_PER_MINUTE", "130")
	t.Setenv("LONGFORM_NATS_URL", "nats://localhost:4222")

	cfg, err := LoadFromFiles(nil, path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 130, cfg.Generation.WordsPerMinute)
	assert.Equal(t, "nats://localhost:4222", cfg.Messaging.NatsURL)
}

func TestLoadFromFiles_RejectsInvalidPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[generation]\naccept_expanded = 0.9\n"), 0644))

	_, err := LoadFromFiles(nil, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "regenerate_below")
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("15 3 * * *"))
	assert.Error(t, ValidateSchedule("0 15 3 * * *"))
	assert.Error(t, ValidateSchedule("not a schedule"))
}

func TestResolveAPIKey_Priority(t *testing.T) {
	ctx := context.Background()

	t.Setenv("LONGFORM_CLAUDE_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	key, err := ResolveAPIKey(ctx, nil, "anthropic_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)

	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	key, err = ResolveAPIKey(ctx, nil, "anthropic_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err = ResolveAPIKey(ctx, nil, "anthropic_api_key", "")
	assert.Error(t, err)
}

func TestParseDurationOr(t *testing.T) {
	assert.Equal(t, "2s", ParseDurationOr("2s", 0).String())
	assert.Equal(t, "5m0s", ParseDurationOr("", 5*60*1e9).String())
	assert.Equal(t, "5m0s", ParseDurationOr("garbage", 5*60*1e9).String())
}
