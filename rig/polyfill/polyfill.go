// Package polyfill provides the pipeline stage that lets browser-hosted test bundles reference Node.js globals.  It
// rewrites the bare symbol "global" to "globalThis" and injects shims for "process" and "Buffer" wherever the bundled
// code references them.  Only the browser test profile uses it; production bundles must not depend on the shims.
package polyfill

import (
	"bytes"
	"embed"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/swdunlop/extbuild-go/rig/pipeline"
)

//go:embed shims/*.js
var shims embed.FS

// Shims lists the injected shim modules by the global they provide.
var Shims = map[string]string{
	`process`: `shims/process.js`,
	`Buffer`:  `shims/buffer.js`,
}

// New returns a polyfill stage that materializes its shims under dir.
func New(dir string, options ...Option) *Stage {
	st := &Stage{dir: dir, log: zlog.Logger}
	for _, option := range options {
		option(st)
	}
	return st
}

// An Option adjusts a Stage during construction.
type Option func(*Stage)

// Logger sets the logger used to report shims that could not be written.
func Logger(log zerolog.Logger) Option {
	return func(st *Stage) { st.log = log }
}

// Stage is the polyfill pipeline stage.
type Stage struct {
	pipeline.Base
	dir string
	log zerolog.Logger
}

var _ pipeline.Stage = (*Stage)(nil)

// Name implements pipeline.Stage.
func (st *Stage) Name() string { return `polyfill` }

// Dir is the directory that receives the shim modules.
func (st *Stage) Dir() string { return st.dir }

// Configure implements pipeline.Stage.  A shim that cannot be written is logged and left out of the inject list so
// the build can still report what it is missing.
func (st *Stage) Configure(cfg *pipeline.Config) error {
	if cfg.Define == nil {
		cfg.Define = make(map[string]string, 1)
	}
	cfg.Define[`global`] = `globalThis`
	for _, global := range []string{`process`, `Buffer`} {
		path, err := st.materialize(Shims[global])
		if err != nil {
			st.log.Warn().Err(err).Str(`global`, global).Msg(`polyfill shim skipped`)
			continue
		}
		cfg.Inject = append(cfg.Inject, path)
	}
	return nil
}

// materialize writes an embedded shim under the stage directory, leaving it untouched if it is current so that
// watch mode does not see a change on every context.
func (st *Stage) materialize(name string) (string, error) {
	src, err := shims.ReadFile(name)
	if err != nil {
		return ``, err
	}
	path, err := filepath.Abs(filepath.Join(st.dir, filepath.Base(name)))
	if err != nil {
		return ``, err
	}
	if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, src) {
		return path, nil
	}
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ``, err
	}
	return path, os.WriteFile(path, src, 0o644)
}
