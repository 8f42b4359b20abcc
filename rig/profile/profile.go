// Package profile defines the build profiles of an extension: a browser bundle, a desktop bundle and a browser-hosted
// test bundle.  Profiles are static; the only runtime choice is which of them the invocation flags select.
package profile

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/swdunlop/extbuild-go/rig/pipeline"
	"github.com/swdunlop/extbuild-go/rig/polyfill"
	"github.com/swdunlop/extbuild-go/rig/problems"
	"github.com/swdunlop/extbuild-go/rig/testentry"
)

// Flags are derived once from the invocation and never change afterward.
type Flags struct {
	Production bool // minify and omit source maps
	Watch      bool // rebuild continuously
	TestOnly   bool // build only the test profile
}

// Profile names.
const (
	Web     = `web`
	Desktop = `desktop`
	Test    = `test`
)

// Platform is the environment a bundle runs in.
type Platform int

const (
	Browser Platform = iota
	Server
)

func (p Platform) String() string {
	if p == Server {
		return `server`
	}
	return `browser`
}

// Output is where a profile writes its bundle.
type Output struct {
	Path string
	Dir  bool // Path is a directory rather than a single file
}

// Shared settings of every profile.
const (
	Target = `es2020`
	Format = `cjs`
)

// A Profile is a fully resolved bundling configuration for one build target.
type Profile struct {
	Name        string
	Root        string // working directory of the engine
	EntryPoints []string
	Output      Output
	Platform    Platform
	External    []string
	Define      map[string]string
	Stages      []pipeline.Stage // in hook order; the problems reporter is always last
	Minify      bool
	Sourcemap   bool
}

// NewRegistry returns a registry for the given layout.
func NewRegistry(layout Layout, options ...Option) *Registry {
	reg := &Registry{layout: layout, out: os.Stdout, err: os.Stderr, log: zlog.Logger}
	for _, option := range options {
		option(reg)
	}
	return reg
}

// An Option adjusts a Registry during construction.
type Option func(*Registry)

// Report directs the problem reports of every profile to out and errs.
func Report(out, errs io.Writer) Option {
	return func(reg *Registry) { reg.out, reg.err = out, errs }
}

// Logger sets the logger handed to the stages of every profile.
func Logger(log zerolog.Logger) Option {
	return func(reg *Registry) { reg.log = log }
}

// Registry resolves profiles for a layout.
type Registry struct {
	layout Layout
	out    io.Writer
	err    io.Writer
	log    zerolog.Logger
}

// Layout returns the layout of the registry.
func (reg *Registry) Layout() Layout { return reg.layout }

// Resolve returns the profiles selected by flags: only the test profile in test mode, otherwise the web and desktop
// profiles.  Calling it twice with the same flags yields equal profiles.
func (reg *Registry) Resolve(flags Flags) []Profile {
	if flags.TestOnly {
		return []Profile{reg.test(flags)}
	}
	return []Profile{reg.web(flags), reg.desktop(flags)}
}

func (reg *Registry) base(name string, flags Flags) Profile {
	return Profile{
		Name:      name,
		Root:      reg.layout.Root,
		External:  append([]string(nil), reg.layout.External...),
		Minify:    flags.Production,
		Sourcemap: !flags.Production,
	}
}

func (reg *Registry) reporter(name string) *problems.Reporter {
	return problems.New(name, problems.Output(reg.out, reg.err), problems.Logger(reg.log))
}

func (reg *Registry) web(flags Flags) Profile {
	p := reg.base(Web, flags)
	p.EntryPoints = []string{reg.layout.Path(reg.layout.Entry)}
	p.Output = Output{Path: reg.layout.Path(reg.layout.WebOutput)}
	p.Platform = Browser
	p.Stages = []pipeline.Stage{reg.reporter(Web)}
	return p
}

func (reg *Registry) desktop(flags Flags) Profile {
	p := reg.base(Desktop, flags)
	p.EntryPoints = []string{reg.layout.Path(reg.layout.Entry)}
	p.Output = Output{Path: reg.layout.Path(reg.layout.DesktopOutput)}
	p.Platform = Server
	p.Stages = []pipeline.Stage{reg.reporter(Desktop)}
	return p
}

func (reg *Registry) test(flags Flags) Profile {
	suite := reg.layout.Path(reg.layout.SuiteDir)
	p := reg.base(Test, flags)
	p.EntryPoints = []string{filepath.Join(suite, testentry.Sentinel)}
	p.Output = Output{Path: reg.layout.Path(reg.layout.TestOutput)}
	p.Platform = Browser
	p.Define = map[string]string{`global`: `globalThis`}
	p.Stages = []pipeline.Stage{
		polyfill.New(reg.layout.Path(reg.layout.CacheDir), polyfill.Logger(reg.log)),
		testentry.New(suite, testentry.Runner(reg.layout.TestRunner)),
		reg.reporter(Test),
	}
	return p
}
