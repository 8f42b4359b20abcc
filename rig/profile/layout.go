package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Layout describes where an extension keeps its sources and where the bundles go.  All paths are relative to Root.
type Layout struct {
	Root          string   `yaml:"root"`
	Entry         string   `yaml:"entry"`          // extension entry point
	SuiteDir      string   `yaml:"suite_dir"`      // directory holding *.test.ts files and the test runner
	TestRunner    string   `yaml:"test_runner"`    // module exporting run, relative to SuiteDir
	WebOutput     string   `yaml:"web_output"`     // browser bundle
	DesktopOutput string   `yaml:"desktop_output"` // desktop bundle
	TestOutput    string   `yaml:"test_output"`    // browser test bundle
	CacheDir      string   `yaml:"cache_dir"`      // generated polyfill shims
	ServeDir      string   `yaml:"serve_dir"`      // served by the dev server in watch mode
	External      []string `yaml:"external"`       // modules supplied by the host at load time
}

// DefaultLayout returns the layout of a freshly scaffolded web extension.
func DefaultLayout() Layout {
	return Layout{
		Root:          `.`,
		Entry:         `src/extension.ts`,
		SuiteDir:      `src/test/suite`,
		TestRunner:    `./mochaTestRunner`,
		WebOutput:     `dist/web/extension.js`,
		DesktopOutput: `dist/desktop/extension.js`,
		TestOutput:    `dist/extensionTests.js`,
		CacheDir:      `node_modules/.cache/extbuild`,
		ServeDir:      `dist`,
		External:      []string{`vscode`},
	}
}

// LoadLayout reads a YAML layout file over the defaults.  A missing file is not an error.
func LoadLayout(path string) (Layout, error) {
	layout := DefaultLayout()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return layout, nil
	case err != nil:
		return layout, fmt.Errorf(`%w while reading layout %q`, err, path)
	}
	if err = yaml.Unmarshal(data, &layout); err != nil {
		return layout, fmt.Errorf(`%w while parsing layout %q`, err, path)
	}
	if layout.Root == `` {
		layout.Root = `.`
	}
	return layout, nil
}

// Path joins a layout-relative path to the root.
func (layout Layout) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(layout.Root, filepath.FromSlash(rel))
}
