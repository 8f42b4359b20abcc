// Package testentry synthesizes the entry module of the browser test bundle.  The test profile names a sentinel
// entry point, ".../extensionTests.ts", which does not need to exist on disk: when the engine resolves it as an entry
// point, the aggregator takes over and generates a module that re-exports the test runner's run function and
// dynamically imports every test file in the suite directory.  The module lists its inputs so that watch mode
// regenerates it when a test file is added, removed or changed.
package testentry

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/gobwas/glob"
	"github.com/swdunlop/extbuild-go/rig/pipeline"
)

// Sentinel is the file name of the virtual test entry point.
const Sentinel = `extensionTests.ts`

// Filter matches the sentinel with either path separator.
const Filter = `[/\\]extensionTests\.ts$`

// Namespace is the engine namespace of the synthesized module; the real file system never sees it.
const Namespace = `extension-tests`

// DefaultRunner is the module that provides the run function of the test suite.
const DefaultRunner = `./mochaTestRunner`

// Pattern selects test files in the suite directory.
const Pattern = `*.test.{ts,tsx}`

var testFiles = glob.MustCompile(Pattern)

// New returns an aggregator for the test files in suiteDir.
func New(suiteDir string, options ...Option) *Aggregator {
	ag := &Aggregator{suiteDir: suiteDir, runner: DefaultRunner}
	for _, option := range options {
		option(ag)
	}
	return ag
}

// An Option adjusts an Aggregator during construction.
type Option func(*Aggregator)

// Runner sets the module, relative to the suite directory, that exports the run function.
func Runner(module string) Option {
	return func(ag *Aggregator) { ag.runner = module }
}

// Aggregator is the virtual test entry pipeline stage.
type Aggregator struct {
	pipeline.Base
	suiteDir string
	runner   string
}

var _ pipeline.Stage = (*Aggregator)(nil)

// Name implements pipeline.Stage.
func (ag *Aggregator) Name() string { return `test-entry` }

// Resolvers implements pipeline.Stage.
func (ag *Aggregator) Resolvers() []pipeline.ResolveHook {
	return []pipeline.ResolveHook{{Filter: Filter, Fn: ag.Resolve}}
}

// Loaders implements pipeline.Stage.
func (ag *Aggregator) Loaders() []pipeline.LoadHook {
	return []pipeline.LoadHook{{Filter: Filter, Namespace: Namespace, Fn: ag.Load}}
}

// Resolve claims the sentinel when it is an entry point; any other import of a file with the same name declines so
// the engine resolves the real file.
func (ag *Aggregator) Resolve(args pipeline.ResolveArgs) (pipeline.ResolveResult, error) {
	if args.Kind != pipeline.ResolveEntryPoint {
		return pipeline.ResolveResult{}, nil
	}
	path := args.Path
	if !filepath.IsAbs(path) {
		dir := args.ResolveDir
		if dir == `` {
			var err error
			dir, err = os.Getwd()
			if err != nil {
				return pipeline.ResolveResult{}, err
			}
		}
		path = filepath.Join(dir, path)
	}
	return pipeline.ResolveResult{Path: filepath.Clean(path), Namespace: Namespace}, nil
}

// Load synthesizes the test entry module from the files currently in the suite directory.
func (ag *Aggregator) Load(args pipeline.LoadArgs) (pipeline.LoadResult, error) {
	return ag.Synthesize()
}

// Synthesize discovers the test files and returns the virtual module.  It is recomputed on every call.
func (ag *Aggregator) Synthesize() (pipeline.LoadResult, error) {
	dir, err := filepath.Abs(ag.suiteDir)
	if err != nil {
		return pipeline.LoadResult{}, &DiscoveryError{Dir: ag.suiteDir, Err: err}
	}
	files, err := Discover(dir)
	if err != nil {
		return pipeline.LoadResult{}, err
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "export { run } from %s;\n", jsString(ag.runner))
	watchDirs := []string{dir}
	watchFiles := make([]string, 0, len(files))
	for _, file := range files {
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return pipeline.LoadResult{}, &DiscoveryError{Dir: dir, Err: err}
		}
		fmt.Fprintf(&buf, "import(%s);\n", jsString(`./`+filepath.ToSlash(rel)))
		if parent := filepath.Dir(file); !slices.Contains(watchDirs, parent) {
			watchDirs = append(watchDirs, parent)
		}
		watchFiles = append(watchFiles, file)
	}
	contents := buf.String()
	return pipeline.LoadResult{
		Contents:   &contents,
		ResolveDir: dir,
		Loader:     pipeline.LoaderTS,
		WatchDirs:  watchDirs,
		WatchFiles: watchFiles,
	}, nil
}

// Discover lists the absolute paths of the test files directly inside dir, sorted lexicographically so the import
// order does not depend on the file system.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &DiscoveryError{Dir: dir, Err: err}
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !testFiles.Match(entry.Name()) {
			continue
		}
		path, err := filepath.Abs(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, &DiscoveryError{Dir: dir, Err: err}
		}
		files = append(files, path)
	}
	slices.Sort(files)
	return files, nil
}

// jsString quotes s as a JavaScript string literal.  Printable runes are kept as they are; anything else is written
// as UTF-16 escapes, since JavaScript has no \U or \x{...} escape.
func jsString(s string) string {
	var buf strings.Builder
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, n := utf8.DecodeRuneInString(s[i:])
		i += n
		switch r {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\u2028', '\u2029':
			writeUnicodeEscape(&buf, r)
		default:
			if unicode.IsPrint(r) && r != utf8.RuneError {
				buf.WriteRune(r)
			} else if r1, r2 := utf16.EncodeRune(r); r1 != unicode.ReplacementChar {
				writeUnicodeEscape(&buf, r1)
				writeUnicodeEscape(&buf, r2)
			} else {
				writeUnicodeEscape(&buf, r)
			}
		}
	}
	buf.WriteByte('"')
	return buf.String()
}

func writeUnicodeEscape(buf *strings.Builder, r rune) {
	hex := strconv.FormatInt(int64(r), 16)
	buf.WriteString(`\u`)
	buf.WriteString(strings.Repeat(`0`, 4-len(hex)))
	buf.WriteString(hex)
}

// DiscoveryError reports that the suite directory could not be enumerated.
type DiscoveryError struct {
	Dir string
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf(`%v while discovering tests in %q`, e.Err, e.Dir)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }
