package main

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdunlop/extbuild-go/rig/build"
	"github.com/swdunlop/extbuild-go/rig/profile"
	"github.com/swdunlop/zugzug-go"
	"github.com/swdunlop/zugzug-go/zug/console"
)

// project writes a minimal extension and a layout rooted at it, returning the layout path.
func project(t *testing.T) (root, config string) {
	t.Helper()
	root = t.TempDir()
	src := filepath.Join(root, `src`)
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, `extension.ts`), []byte("export const activated = true;\n"), 0o644))
	config = filepath.Join(root, `extbuild.yaml`)
	require.NoError(t, os.WriteFile(config, []byte("root: "+root+"\n"), 0o644))
	return root, config
}

// runTask runs the command line args against the registered tasks with env as the whole environment.
func runTask(t *testing.T, env []string, args ...string) error {
	t.Helper()
	saved := cli
	t.Cleanup(func() { cli = saved })
	z, err := zugzug.New(zugzug.Default(`build`), tasks)
	require.NoError(t, err)
	ctx := console.With(context.Background(), console.FullEnv(env))
	return z.Run(ctx, args...)
}

func TestFlags(t *testing.T) {
	cli := CLI{Production: true, Test: true}
	assert.Equal(t, profile.Flags{Production: true, TestOnly: true}, cli.Flags())
}

func TestRunOneShot(t *testing.T) {
	root, config := project(t)
	cli := CLI{Config: config, Production: true}
	require.NoError(t, cli.Run(context.Background()))
	assert.FileExists(t, filepath.Join(root, `dist/web/extension.js`))
	assert.FileExists(t, filepath.Join(root, `dist/desktop/extension.js`))
}

func TestRunBadConfig(t *testing.T) {
	config := filepath.Join(t.TempDir(), `extbuild.yaml`)
	require.NoError(t, os.WriteFile(config, []byte("root: [\n"), 0o644))
	cli := CLI{Config: config}
	var cfgErr *build.ConfigurationError
	assert.ErrorAs(t, cli.Run(context.Background()), &cfgErr)
}

func TestRunMissingEntryPoint(t *testing.T) {
	root, config := project(t)
	require.NoError(t, os.RemoveAll(filepath.Join(root, `src`)))
	cli := CLI{Config: config}
	err := cli.Run(context.Background())
	var cfgErr *build.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.NoFileExists(t, filepath.Join(root, `dist/web/extension.js`))
}

func TestBuildTaskFlags(t *testing.T) {
	root, config := project(t)
	require.NoError(t, runTask(t, nil, `build`, `--config`, config, `-p`))
	assert.FileExists(t, filepath.Join(root, `dist/web/extension.js`))
	assert.FileExists(t, filepath.Join(root, `dist/desktop/extension.js`))
	assert.NoFileExists(t, filepath.Join(root, `dist/web/extension.js.map`))
}

func TestBuildTaskSettings(t *testing.T) {
	root, config := project(t)
	require.NoError(t, runTask(t, []string{`EXTBUILD_CONFIG=` + config, `EXTBUILD_PRODUCTION=true`}))
	assert.FileExists(t, filepath.Join(root, `dist/desktop/extension.js`))
	assert.NoFileExists(t, filepath.Join(root, `dist/desktop/extension.js.map`))
}

func TestBuildTaskFlagsOverrideSettings(t *testing.T) {
	root, config := project(t)
	require.NoError(t, runTask(t, []string{`EXTBUILD_CONFIG=` + config, `EXTBUILD_PRODUCTION=true`},
		`build`, `--production=false`))
	assert.FileExists(t, filepath.Join(root, `dist/desktop/extension.js.map`))
}

func TestBuildTaskRejectsArguments(t *testing.T) {
	_, config := project(t)
	err := runTask(t, nil, `build`, `--config`, config, `extra`)
	assert.ErrorContains(t, err, `unexpected arguments`)
}
