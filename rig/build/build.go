// Package build drives one build context per selected profile through either a single rebuild or a watch, using a
// bundling Engine.  Work on different profiles runs concurrently; failures are collected per profile and every context
// that was created is disposed exactly once, whatever happened to the others.
package build

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/swdunlop/extbuild-go/rig/metrics"
	"github.com/swdunlop/extbuild-go/rig/profile"
	"golang.org/x/sync/errgroup"
)

// An Engine creates build contexts for profiles.
type Engine interface {
	CreateContext(profile.Profile) (Context, error)
}

// A Context holds the incremental build state of one profile.  The orchestrator never disposes a context while a
// Rebuild or Watch on it is outstanding and never disposes it twice.
type Context interface {
	// Rebuild runs one build pass, returning a *BuildError if the engine reported errors.
	Rebuild() error

	// Watch rebuilds whenever inputs change until ctx is done.  An error means the watch could not be started.
	Watch(ctx context.Context) error

	// Dispose releases the context.
	Dispose() error
}

// New returns an orchestrator that builds the profiles of registry using engine.
func New(engine Engine, registry *profile.Registry, options ...Option) *Orchestrator {
	o := &Orchestrator{
		engine:   engine,
		registry: registry,
		recorder: metrics.NoopRecorder{},
		log:      zlog.Logger,
	}
	for _, option := range options {
		option(o)
	}
	return o
}

// An Option adjusts an Orchestrator during construction.
type Option func(*Orchestrator)

// Recorder sets where build metrics go.
func Recorder(recorder metrics.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = recorder }
}

// Logger sets the orchestrator's logger.
func Logger(log zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// Orchestrator runs build profiles.
type Orchestrator struct {
	engine   Engine
	registry *profile.Registry
	recorder metrics.Recorder
	log      zerolog.Logger
}

// Run builds the profiles selected by flags.  Without flags.Watch it rebuilds every profile once and returns an
// *AggregatedBuildError if any failed.  With flags.Watch it returns once ctx is done, or immediately if no watch
// could be started.  Invalid profiles and contexts that cannot be created produce a *ConfigurationError before
// anything is built.
func (o *Orchestrator) Run(ctx context.Context, flags profile.Flags) error {
	profiles := o.registry.Resolve(flags)
	if err := profile.Validate(profiles); err != nil {
		return &ConfigurationError{Err: err}
	}
	contexts, err := o.create(profiles)
	if err != nil {
		return err
	}
	if flags.Watch {
		return o.watch(ctx, profiles, contexts)
	}
	return o.rebuild(profiles, contexts)
}

// create makes one context per profile concurrently.  If any fails, the others are disposed.
func (o *Orchestrator) create(profiles []profile.Profile) ([]Context, error) {
	contexts := make([]Context, len(profiles))
	errs := make([]error, len(profiles))
	var g errgroup.Group
	for i, p := range profiles {
		g.Go(func() error {
			contexts[i], errs[i] = o.engine.CreateContext(p)
			if errs[i] != nil {
				contexts[i] = nil
				o.recorder.IncContextFailure(p.Name)
				errs[i] = fmt.Errorf(`%s: %w`, p.Name, errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := errors.Join(errs...); err != nil {
		o.dispose(profiles, contexts)
		return nil, &ConfigurationError{Err: err}
	}
	return contexts, nil
}

func (o *Orchestrator) rebuild(profiles []profile.Profile, contexts []Context) error {
	errs := make([]error, len(profiles))
	var g errgroup.Group
	for i, p := range profiles {
		g.Go(func() error {
			started := time.Now()
			errs[i] = contexts[i].Rebuild()
			outcome := metrics.OutcomeSuccess
			if errs[i] != nil {
				outcome = metrics.OutcomeFailed
			}
			o.recorder.ObserveRebuild(p.Name, time.Since(started), outcome)
			o.log.Debug().Str(`profile`, p.Name).Dur(`elapsed`, time.Since(started)).Err(errs[i]).Msg(`rebuild finished`)
			return nil
		})
	}
	_ = g.Wait()
	o.dispose(profiles, contexts)
	return aggregate(profiles, errs)
}

func (o *Orchestrator) watch(ctx context.Context, profiles []profile.Profile, contexts []Context) error {
	errs := make([]error, len(profiles))
	var g errgroup.Group
	for i, p := range profiles {
		g.Go(func() error {
			o.log.Info().Str(`profile`, p.Name).Msg(`watching`)
			errs[i] = contexts[i].Watch(ctx)
			if errs[i] != nil {
				o.log.Error().Str(`profile`, p.Name).Err(errs[i]).Msg(`watch failed`)
			}
			return nil
		})
	}
	_ = g.Wait()
	o.dispose(profiles, contexts)
	return aggregate(profiles, errs)
}

// dispose releases every non-nil context, logging failures.
func (o *Orchestrator) dispose(profiles []profile.Profile, contexts []Context) {
	for i, c := range contexts {
		if c == nil {
			continue
		}
		if err := c.Dispose(); err != nil {
			o.recorder.IncDisposeFailure(profiles[i].Name)
			o.log.Warn().Str(`profile`, profiles[i].Name).Err(err).Msg(`dispose failed`)
		}
	}
}

// aggregate converts per-profile errors into an *AggregatedBuildError, or nil if there were none.
func aggregate(profiles []profile.Profile, errs []error) error {
	var agg AggregatedBuildError
	for i, err := range errs {
		if err == nil {
			continue
		}
		var be *BuildError
		if !errors.As(err, &be) {
			be = &BuildError{Err: err}
		}
		if be.Profile == `` {
			be.Profile = profiles[i].Name
		}
		agg.Errors = append(agg.Errors, be)
	}
	if len(agg.Errors) == 0 {
		return nil
	}
	return &agg
}
