// Package pipeline defines the stages that a build profile attaches to the bundling engine.  A stage is a fixed set of
// hooks that the engine calls at well-defined points of every build pass.  Stages do not know which engine runs
// them; see the esbuild package for the adapter.
package pipeline

// A Stage is one unit of a build pipeline.  Stages that only care about some hooks should embed Base.
type Stage interface {
	// Name identifies the stage in diagnostics produced by its hooks.
	Name() string

	// Configure may adjust the engine configuration before a build context is created.
	Configure(*Config) error

	// OnStart is called at the start of every build pass.
	OnStart()

	// OnEnd is called at the end of every build pass with the diagnostics the engine collected.
	OnEnd(*Result)

	// Resolvers lists module resolution hooks.
	Resolvers() []ResolveHook

	// Loaders lists module load hooks.
	Loaders() []LoadHook
}

// Base implements every Stage hook as a no-op.
type Base struct{}

func (Base) Configure(*Config) error  { return nil }
func (Base) OnStart()                 {}
func (Base) OnEnd(*Result)            {}
func (Base) Resolvers() []ResolveHook { return nil }
func (Base) Loaders() []LoadHook      { return nil }

// Config is the part of the engine configuration that stages may change.
type Config struct {
	Define map[string]string // symbol substitutions applied to the bundled code
	Inject []string          // modules whose exports replace references to global symbols
}

// A ResolveHook intercepts module paths matching Filter, a Go regular expression.
type ResolveHook struct {
	Filter string
	Fn     func(ResolveArgs) (ResolveResult, error)
}

// A LoadHook supplies the contents of modules whose resolved path matches Filter.  If Namespace is set, only modules
// resolved into that namespace are considered.
type LoadHook struct {
	Filter    string
	Namespace string
	Fn        func(LoadArgs) (LoadResult, error)
}

// ResolveKind describes why the engine is resolving a path.
type ResolveKind int

const (
	ResolveOther ResolveKind = iota
	ResolveEntryPoint
	ResolveImport
	ResolveDynamicImport
	ResolveRequire
)

func (k ResolveKind) String() string {
	switch k {
	case ResolveEntryPoint:
		return `entry-point`
	case ResolveImport:
		return `import-statement`
	case ResolveDynamicImport:
		return `dynamic-import`
	case ResolveRequire:
		return `require-call`
	default:
		return `other`
	}
}

// ResolveArgs describes a resolution request.
type ResolveArgs struct {
	Path       string
	Importer   string
	ResolveDir string
	Kind       ResolveKind
}

// ResolveResult answers a resolution request.  An empty Path declines the request so that the engine falls back to
// its normal resolution.
type ResolveResult struct {
	Path      string
	Namespace string
}

// LoadArgs describes a load request for a resolved path.
type LoadArgs struct {
	Path      string
	Namespace string
}

// Loader selects how the engine parses loaded contents.
type Loader int

const (
	LoaderDefault Loader = iota
	LoaderJS
	LoaderTS
	LoaderTSX
)

// LoadResult is a synthesized module.  A nil Contents declines the request.
type LoadResult struct {
	Contents   *string
	ResolveDir string   // directory used to resolve imports in Contents
	Loader     Loader
	WatchDirs  []string // directories whose listing invalidates the module in watch mode
	WatchFiles []string // files whose contents invalidate the module in watch mode
}
