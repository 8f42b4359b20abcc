// Package www serves the build outputs to the browser while the dev server runs.
package www

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/swdunlop/extbuild-go/rig"
	"github.com/swdunlop/html-go/hog"
)

// Rig returns a rig option that configures a rig to serve static files from the given directory.  The files have an
// entity tag derived from their size and modification time, so it is invalidated when a rebuild rewrites them.
func Rig(dir string) rig.Option {
	return func(r *rig.Config) error {
		r.Hook(&handler{dir: dir})
		return nil
	}
}

type handler struct {
	dir string
}

// RigMux implements hook.Mux.
func (h *handler) RigMux(mux *http.ServeMux) {
	mux.Handle(`GET /`, h)
}

// DependsOn places the catch-all route after the API routes.
func (h *handler) DependsOn() []string { return []string{`api`} }

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean(`/`+r.URL.Path), `/`)
	if name == `` {
		name = `index.html`
	}
	// OpenInRoot refuses names that escape dir, including through symlinks.
	f, err := os.OpenInRoot(h.dir, name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if info.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set(`ETag`, ETag(info))
	w.Header().Set(`Cache-Control`, `no-cache`)
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		http.NotFound(w, r)
		return
	}
	hog.For(r).Warn().Err(err).Str(`path`, r.URL.Path).Msg(`static file failed`)
	http.Error(w, `forbidden`, http.StatusForbidden)
}

// ETag returns the weak entity tag of a file.
func ETag(info fs.FileInfo) string {
	return fmt.Sprintf(`W/"%x-%x"`, info.Size(), info.ModTime().UnixNano())
}
