// Package esbuild implements the build engine on top of esbuild's Go API.  Each profile becomes an esbuild build
// context and each pipeline stage becomes an esbuild plugin.
package esbuild

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	esbuild "github.com/evanw/esbuild/pkg/api"
	"github.com/swdunlop/extbuild-go/rig"
	"github.com/swdunlop/extbuild-go/rig/build"
	"github.com/swdunlop/extbuild-go/rig/metrics"
	"github.com/swdunlop/extbuild-go/rig/pipeline"
	"github.com/swdunlop/extbuild-go/rig/profile"
)

// New returns an esbuild engine.
func New(options ...Option) *Engine {
	eng := &Engine{}
	for _, option := range options {
		option(eng)
	}
	return eng
}

// Option is a function that can manipulate the engine during construction.
type Option func(*Engine)

// Recorder reports every build pass, including those triggered by watch mode, to recorder.
func Recorder(recorder metrics.Recorder) Option {
	return func(eng *Engine) { eng.recorder = recorder }
}

// BuildOption returns an option that can manipulate the esbuild API build options of every profile after they have
// been derived from the profile.  See https://esbuild.github.io/api for information on how to use esbuild options.
func BuildOption(fn func(*esbuild.BuildOptions)) Option {
	return func(eng *Engine) { eng.build = append(eng.build, fn) }
}

// WatchOption returns an option that can manipulate the esbuild API watch options structure.
func WatchOption(fn func(*esbuild.WatchOptions)) Option {
	return func(eng *Engine) { fn(&eng.watch) }
}

// Engine creates esbuild contexts for profiles.
type Engine struct {
	recorder metrics.Recorder
	build    []func(*esbuild.BuildOptions)
	watch    esbuild.WatchOptions
}

var _ build.Engine = (*Engine)(nil)

// CreateContext implements build.Engine.
func (eng *Engine) CreateContext(p profile.Profile) (build.Context, error) {
	if err := checkEntryPoints(p); err != nil {
		return nil, err
	}
	opts, err := eng.Options(p)
	if err != nil {
		return nil, err
	}
	ctx, ctxErr := esbuild.Context(opts)
	if ctxErr != nil {
		if len(ctxErr.Errors) > 0 {
			return nil, fmt.Errorf(`esbuild failed to start: %s`, messageText(ctxErr.Errors))
		}
		return nil, errors.New(`esbuild failed to start`)
	}
	return &buildContext{profile: p.Name, ctx: ctx, watch: eng.watch}, nil
}

// Options derives the esbuild build options for a profile, running the Configure hook of each stage.
func (eng *Engine) Options(p profile.Profile) (esbuild.BuildOptions, error) {
	cfg := pipeline.Config{Define: maps.Clone(p.Define)}
	for _, st := range p.Stages {
		if err := st.Configure(&cfg); err != nil {
			return esbuild.BuildOptions{}, fmt.Errorf(`%w while configuring stage %q of %s`, err, st.Name(), p.Name)
		}
	}
	root := p.Root
	if root == `` {
		root = `.`
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return esbuild.BuildOptions{}, err
	}

	var opts esbuild.BuildOptions
	opts.AbsWorkingDir = root
	opts.LogLevel = esbuild.LogLevelSilent // the problems stage reports diagnostics
	opts.Bundle = true
	opts.Write = true
	opts.External = p.External
	opts.Target = target(profile.Target)
	opts.Format = esbuild.FormatCommonJS
	opts.MinifyWhitespace = p.Minify
	opts.MinifyIdentifiers = p.Minify
	opts.MinifySyntax = p.Minify
	opts.Sourcemap = esbuild.SourceMapNone
	if p.Sourcemap {
		opts.Sourcemap = esbuild.SourceMapLinked
	}
	opts.SourcesContent = esbuild.SourcesContentExclude
	opts.Define = cfg.Define
	opts.Inject = cfg.Inject
	switch p.Platform {
	case profile.Server:
		opts.Platform = esbuild.PlatformNode
	default:
		opts.Platform = esbuild.PlatformBrowser
	}
	for _, entry := range p.EntryPoints {
		entry, err = filepath.Abs(entry)
		if err != nil {
			return esbuild.BuildOptions{}, err
		}
		opts.EntryPoints = append(opts.EntryPoints, entry)
	}
	output, err := filepath.Abs(p.Output.Path)
	if err != nil {
		return esbuild.BuildOptions{}, err
	}
	if p.Output.Dir {
		opts.Outdir = output
	} else {
		opts.Outfile = output
	}
	for _, st := range p.Stages {
		opts.Plugins = append(opts.Plugins, plugin(st))
	}
	if eng.recorder != nil {
		opts.Plugins = append(opts.Plugins, observer(p.Name, eng.recorder))
	}
	for _, fn := range eng.build {
		fn(&opts)
	}
	return opts, nil
}

// checkEntryPoints requires every entry point to be a readable file unless a stage resolves it.
func checkEntryPoints(p profile.Profile) error {
	var errs []error
	for _, entry := range p.EntryPoints {
		virtual, err := claimed(p.Stages, entry)
		if err != nil {
			return err
		}
		if virtual {
			continue
		}
		f, err := os.Open(entry)
		if err != nil {
			errs = append(errs, fmt.Errorf(`%w while opening entry point`, err))
			continue
		}
		f.Close()
	}
	return errors.Join(errs...)
}

// claimed reports whether a resolve hook of some stage matches path.
func claimed(stages []pipeline.Stage, path string) (bool, error) {
	for _, st := range stages {
		for _, hook := range st.Resolvers() {
			rx, err := regexp.Compile(hook.Filter)
			if err != nil {
				return false, fmt.Errorf(`%w in filter of stage %q`, err, st.Name())
			}
			if rx.MatchString(path) {
				return true, nil
			}
		}
	}
	return false, nil
}

func target(name string) esbuild.Target {
	switch strings.ToLower(name) {
	case `es2015`:
		return esbuild.ES2015
	case `es2016`:
		return esbuild.ES2016
	case `es2017`:
		return esbuild.ES2017
	case `es2018`:
		return esbuild.ES2018
	case `es2019`:
		return esbuild.ES2019
	case `es2020`:
		return esbuild.ES2020
	case `es2021`:
		return esbuild.ES2021
	case `es2022`:
		return esbuild.ES2022
	default:
		return esbuild.ESNext
	}
}

type buildContext struct {
	profile string
	ctx     esbuild.BuildContext
	watch   esbuild.WatchOptions
	once    sync.Once
}

func (bc *buildContext) Rebuild() error {
	ret := bc.ctx.Rebuild()
	if len(ret.Errors) > 0 {
		return &build.BuildError{Profile: bc.profile, Diagnostics: diagnostics(ret.Errors)}
	}
	return nil
}

// Watch starts esbuild's watcher, which runs an initial build in the background, and holds until ctx is done.  The
// watcher stops when the context is disposed.
func (bc *buildContext) Watch(ctx context.Context) error {
	if err := bc.ctx.Watch(bc.watch); err != nil {
		return &build.BuildError{Profile: bc.profile, Err: err}
	}
	<-ctx.Done()
	return nil
}

func (bc *buildContext) Dispose() error {
	bc.once.Do(bc.ctx.Dispose)
	return nil
}

func messageText(msgs []esbuild.Message) string {
	seq := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		seq = append(seq, msg.Text)
	}
	return strings.Join(seq, `; `)
}

// Rig returns a rig option that makes the dev server watch the outputs of the given profiles, notifying clients when
// a bundle is rewritten.
func Rig(profiles ...profile.Profile) rig.Option {
	return func(r *rig.Config) error {
		for _, p := range profiles {
			var err error
			if p.Output.Dir {
				err = r.Watch(p.Output.Path, `*.html`, `*.css`, `*.js`)
			} else {
				err = r.Watch(filepath.Dir(p.Output.Path), filepath.Base(p.Output.Path))
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
}
