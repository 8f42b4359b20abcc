// Package api adds HTTP handlers to the dev server, such as the build metrics endpoint.
package api

import (
	"net/http"

	"github.com/swdunlop/extbuild-go/rig"
)

// MetricsPath is where Metrics serves its handler.
const MetricsPath = `/metrics`

// Rig returns a rig option that adds the handlers configured by options.  The first option that fails stops the rest
// and its error is returned when the option is applied.
func Rig(options ...Option) rig.Option {
	var cfg config
	cfg.apply(options...)
	return cfg.rigOption
}

// Metrics returns an option that serves handler, normally a Prometheus exposition handler, at MetricsPath.
func Metrics(handler http.Handler) Option {
	return Handle(`GET `+MetricsPath, handler)
}

// Use returns an option that applies the given middleware to all subsequent handlers.  The earliest middleware added
// is the outermost layer.
func Use(fn func(http.Handler) http.Handler) Option {
	return func(cfg *config) error {
		cfg.middleware = append(cfg.middleware, fn)
		return nil
	}
}

// HandleFunc accepts a http.ServeMux pattern and a handler function.
func HandleFunc(pattern string, fn func(w http.ResponseWriter, r *http.Request)) Option {
	return Handle(pattern, http.HandlerFunc(fn))
}

// Handle accepts a http.ServeMux pattern and a http.Handler.
func Handle(pattern string, handler http.Handler) Option {
	return func(cfg *config) error {
		for i := len(cfg.middleware) - 1; i >= 0; i-- {
			handler = cfg.middleware[i](handler)
		}
		cfg.routes = append(cfg.routes, route{pattern, handler})
		return nil
	}
}

// Group applies options so that middleware they add does not affect handlers outside of the group.
func Group(options ...Option) Option {
	return func(cfg *config) error {
		middleware := cfg.middleware
		defer func() { cfg.middleware = middleware }()
		for _, option := range options {
			if err := option(cfg); err != nil {
				return err
			}
		}
		return nil
	}
}

// An Option adds handlers or middleware to an API.
type Option func(*config) error

type config struct {
	middleware []func(http.Handler) http.Handler
	routes     []route
	err        error
}

type route struct {
	pattern string
	handler http.Handler
}

// RigMux adds the configured handlers to the provided ServeMux, implementing the hook.Mux interface.
func (cfg *config) RigMux(mux *http.ServeMux) {
	for _, it := range cfg.routes {
		mux.Handle(it.pattern, it.handler)
	}
}

// Provides lets other hooks depend on the API being registered first.
func (cfg *config) Provides() []string { return []string{`api`} }

func (cfg *config) apply(options ...Option) {
	for _, option := range options {
		if cfg.err != nil {
			return
		}
		cfg.err = option(cfg)
	}
}

func (cfg *config) rigOption(r *rig.Config) error {
	if cfg.err != nil {
		return cfg.err
	}
	r.Hook(cfg)
	return nil
}
