package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCheckpoint(t *testing.T, root, id, doc string) {
	t.Helper()
	dir := filepath.Join(root, storeDir, docDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, storeDir, pointerFile), []byte(id+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".json"), []byte(doc), 0o644))
}

func TestActiveCheckpointWithDefaults(t *testing.T) {
	root := t.TempDir()
	writeCheckpoint(t, root, "cp-001", `{"enabled":true,"model":"claude-haiku-4-5"}`)

	cfg := NewStore(root).Active()
	require.NotNil(t, cfg)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "claude-haiku-4-5", cfg.Model)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultBufferSize, cfg.BufferSize)
	assert.Equal(t, DefaultTimeoutMs, cfg.TimeoutMs)
	assert.Equal(t, DefaultCompletionMarker, cfg.CompletionMarker)
	assert.Equal(t, DefaultContinueMessage, cfg.ContinueMessage)
}

func TestActiveCheckpointExplicitValues(t *testing.T) {
	root := t.TempDir()
	writeCheckpoint(t, root, "cp-002", `{
		"enabled": true,
		"provider": "openai",
		"max_retries": 7,
		"buffer_size": 12,
		"completion_marker": "<<DONE>>",
		"timeout_ms": 2000,
		"continue_message": "keep going"
	}`)

	cfg := NewStore(root).Active()
	require.NotNil(t, cfg)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, 7, cfg.MaxRetries)
	assert.Equal(t, 12, cfg.BufferSize)
	assert.Equal(t, "<<DONE>>", cfg.CompletionMarker)
	assert.Equal(t, 2000, cfg.TimeoutMs)
	assert.Equal(t, "keep going", cfg.ContinueMessage)
}

func TestActiveNoStore(t *testing.T) {
	assert.Nil(t, NewStore(t.TempDir()).Active())
}

func TestActiveDanglingPointer(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, storeDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, storeDir, pointerFile), []byte("cp-gone"), 0o644))

	assert.Nil(t, NewStore(root).Active())
}

func TestActiveMalformedPointer(t *testing.T) {
	for _, id := range []string{"", "   ", "../escape", `..\escape`} {
		root := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(root, storeDir), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, storeDir, pointerFile), []byte(id), 0o644))

		assert.Nil(t, NewStore(root).Active(), "pointer %q", id)
	}
}

func TestActiveMalformedDocument(t *testing.T) {
	root := t.TempDir()
	writeCheckpoint(t, root, "cp-003", `{not json`)

	assert.Nil(t, NewStore(root).Active())
}

func TestWithDefaultsPreservesSetFields(t *testing.T) {
	cfg := Config{Enabled: true, MaxRetries: 1}.WithDefaults()
	assert.Equal(t, 1, cfg.MaxRetries)
	assert.Equal(t, DefaultBufferSize, cfg.BufferSize)
}
