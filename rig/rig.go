// Package rig manages the dev server that runs alongside watch mode.  Options register hooks, see the hook package, and
// directories of build outputs to watch.  Clients observe rebuilt outputs by subscribing to server sent events at
// /_rig/build; each event carries the path of the changed file.
package rig

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/swdunlop/extbuild-go/rig/hook"
	"github.com/swdunlop/extbuild-go/rig/watcher"
	"github.com/swdunlop/html-go/hog"
	sse "github.com/tmaxmax/go-sse"
)

// BuildPath is where the dev server publishes build notifications.
const BuildPath = `/_rig/build`

// BuildEvent is the type of the events published at BuildPath.
const BuildEvent = `build`

// Serve will serve a rig built from the given options until the context is cancelled.
func Serve(ctx context.Context, options ...Option) error {
	cfg, err := New(options...)
	if err != nil {
		return err
	}
	return cfg.Serve(ctx)
}

// New returns a new rig configuration.
func New(options ...Option) (*Config, error) {
	cfg := new(Config)
	err := cfg.Apply(options...)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// A Config is a rig configuration.
type Config struct {
	serve   bool            // true once Serve has been called
	serving bool            // true after Serve has been called and before it returns
	hooks   []any           // hooks to apply
	done    <-chan struct{} // closed when the rig starts to shut down
	watch   []watch
}

type watch struct {
	dir      string
	patterns []string
}

// Done returns a channel that will be closed when the rig starts to shut down.  This is nil unless the rig is serving.
func (cfg *Config) Done() <-chan struct{} {
	return cfg.done
}

// Hook adds hooks to the configuration, see the hook package for interfaces that hooks can implement.  This is
// normally done by various options.
func (cfg *Config) Hook(hooks ...any) {
	cfg.hooks = append(cfg.hooks, hooks...)
}

// Apply applies the given options to the config; should not be called after Serve.
func (cfg *Config) Apply(options ...Option) error {
	if cfg.serving {
		return errors.New(`cannot apply options while a rig is running`)
	} else if cfg.serve {
		return errors.New(`cannot apply options after a rig has been run`)
	}

	for _, option := range options {
		err := option(cfg)
		if err != nil {
			return err
		}
	}
	return nil
}

// Serve runs the configured rig until the context is cancelled.  Some hook must implement hook.Listen.
func (cfg *Config) Serve(ctx context.Context) error {
	cfg.serve = true
	cfg.serving = true

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cfg.done = ctx.Done()
	defer func() { cfg.done, cfg.serving = nil, false }()

	hooks := hook.Order(cfg.hooks...)
	var listen hook.Listen
	for _, it := range hooks {
		if impl, ok := it.(hook.Listen); ok {
			listen = impl
		}
	}
	if listen == nil {
		return errors.New(`no listener configured for the rig`)
	}

	mux := http.NewServeMux()
	var events *sse.Server
	if len(cfg.watch) > 0 {
		events = &sse.Server{}
		mux.Handle(`GET `+BuildPath, events)
	}
	for _, it := range hooks {
		if impl, ok := it.(hook.Mux); ok {
			impl.RigMux(mux)
		}
	}

	var svr http.Server
	svr.Handler = mux
	for _, it := range hooks {
		if impl, ok := it.(hook.Server); ok {
			impl.RigServer(&svr)
		}
	}

	var wg sync.WaitGroup
	defer func() {
		cancel() // the notifiers only stop when ctx is done
		wg.Wait()
	}()
	for _, w := range cfg.watch {
		wr, err := startWatch(w)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer wr.Shutdown()
			notify(ctx, wr, events)
		}()
	}

	lr, err := listen.Listen(ctx)
	if err != nil {
		return err
	}
	// no need to defer lr.Close, svr.Shutdown will close it

	go func() {
		<-ctx.Done()
		if events != nil {
			_ = events.Shutdown(context.Background())
		}
		svr.Shutdown(context.Background())
	}()

	hog.From(ctx).Info().Str(`address`, lr.Addr().String()).Msg(`starting HTTP service`)
	err = svr.Serve(lr)
	hog.From(ctx).Info().Err(err).Msg(`HTTP service stopped`)
	if err == http.ErrServerClosed {
		return nil
	}
	_ = lr.Close() // just in case, since we did not have a shutdown or server close.
	return err
}

// startWatch creates the directory if the first build has not yet done so.
func startWatch(w watch) (watcher.Interface, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, err
	}
	return watcher.Start(watcher.Directory(w.dir), watcher.Include(w.patterns...))
}

// notify publishes a build event for each alert of wr until ctx is done.
func notify(ctx context.Context, wr watcher.Interface, events *sse.Server) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-wr.Alert():
			msg := &sse.Message{ID: sse.ID(uuid.NewString()), Type: sse.Type(BuildEvent)}
			msg.AppendData(filepath.ToSlash(path))
			err := events.Publish(msg)
			hog.From(ctx).Debug().Err(err).Str(`path`, path).Msg(`build notification`)
		}
	}
}

// Watch will trigger notifying clients watching "/_rig/build" when any file in the given directory changes that
// matches the given glob patterns.  This is normally done by various options like esbuild.
//
// If nothing is being watched, the "/_rig/build" endpoint will not be registered.
func (cfg *Config) Watch(dir string, patterns ...string) error {
	if cfg.serve {
		return errors.New(`cannot watch after a rig has been run`)
	}
	cfg.watch = append(cfg.watch, watch{dir, patterns})
	return nil
}

// An Option is a function that modifies a Config before it is served.
type Option func(*Config) error
