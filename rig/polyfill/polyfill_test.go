package polyfill

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdunlop/extbuild-go/rig/pipeline"
)

func TestConfigureInjectsShims(t *testing.T) {
	dir := filepath.Join(t.TempDir(), `cache`)
	st := New(dir, Logger(zerolog.Nop()))
	cfg := pipeline.Config{Define: map[string]string{`DEBUG`: `false`}}
	require.NoError(t, st.Configure(&cfg))

	assert.Equal(t, `globalThis`, cfg.Define[`global`])
	assert.Equal(t, `false`, cfg.Define[`DEBUG`])
	require.Len(t, cfg.Inject, 2)
	for _, path := range cfg.Inject {
		assert.True(t, filepath.IsAbs(path), path)
		assert.FileExists(t, path)
	}
	src, err := os.ReadFile(filepath.Join(dir, `process.js`))
	require.NoError(t, err)
	assert.Contains(t, string(src), `export { process }`)
	src, err = os.ReadFile(filepath.Join(dir, `buffer.js`))
	require.NoError(t, err)
	assert.Contains(t, string(src), `Buffer`)
}

func TestConfigureKeepsCurrentShims(t *testing.T) {
	dir := t.TempDir()
	st := New(dir, Logger(zerolog.Nop()))
	require.NoError(t, st.Configure(&pipeline.Config{}))

	path := filepath.Join(dir, `process.js`)
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, old, old))

	require.NoError(t, st.Configure(&pipeline.Config{}))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), `shim should not be rewritten`)
}

func TestConfigureSkipsUnwritableShims(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), `file`)
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	st := New(filepath.Join(blocker, `cache`), Logger(zerolog.Nop()))
	var cfg pipeline.Config
	require.NoError(t, st.Configure(&cfg))
	assert.Empty(t, cfg.Inject)
	assert.Equal(t, `globalThis`, cfg.Define[`global`])
}
