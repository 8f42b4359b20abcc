package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/swdunlop/extbuild-go/rig"
	"github.com/swdunlop/extbuild-go/rig/api"
	"github.com/swdunlop/extbuild-go/rig/build"
	"github.com/swdunlop/extbuild-go/rig/esbuild"
	"github.com/swdunlop/extbuild-go/rig/local"
	"github.com/swdunlop/extbuild-go/rig/metrics"
	"github.com/swdunlop/extbuild-go/rig/profile"
	"github.com/swdunlop/extbuild-go/rig/www"
	"github.com/swdunlop/zugzug-go"
	"github.com/swdunlop/zugzug-go/zug/parser"
	"golang.org/x/sync/errgroup"
)

func init() {
	tasks = append(tasks, zugzug.Tasks{
		{Name: "build", Use: "Bundles the extension for the browser and the desktop, or its browser-hosted tests", Fn: runBuild,
			Parser: parser.New(
				parser.Bool(&cli.Production, "production", "p", "Minify bundles and omit source maps"),
				parser.Bool(&cli.Watch, "watch", "w", "Rebuild whenever sources change"),
				parser.Bool(&cli.Test, "test", "t", "Build only the browser test bundle"),
				parser.String(&cli.Config, "config", "c", "Layout file; defaults apply if it is missing"),
				parser.String(&cli.Serve, "serve", "s", "Address of the dev server; only used with --watch"),
				parser.Bool(&cli.Verbose, "verbose", "v", "Enable debug logging"),
			), Settings: zugzug.Settings{
				{Var: &cli.Production, Name: `EXTBUILD_PRODUCTION`, Use: "Minify bundles and omit source maps"},
				{Var: &cli.Watch, Name: `EXTBUILD_WATCH`, Use: "Rebuild whenever sources change"},
				{Var: &cli.Test, Name: `EXTBUILD_TEST`, Use: "Build only the browser test bundle"},
				{Var: &cli.Config, Name: `EXTBUILD_CONFIG`, Use: "Layout file"},
				{Var: &cli.Serve, Name: `EXTBUILD_SERVE`, Use: "Address of the dev server in watch mode"},
				{Var: &cli.Verbose, Name: `EXTBUILD_VERBOSE`, Use: "Enable debug logging"},
			}},
	}...)
}

// CLI holds the settings of the build task.  Environment settings are applied first, then flags.
type CLI struct {
	Production bool
	Watch      bool
	Test       bool
	Config     string
	Serve      string
	Verbose    bool
}

var cli = CLI{Config: `extbuild.yaml`}

func runBuild(ctx context.Context) error {
	if args := parser.Args(ctx); len(args) > 0 {
		return fmt.Errorf(`unexpected arguments %q`, args)
	}
	if cli.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	return cli.Run(ctx)
}

// Flags derives the build flags from the command line.
func (cli *CLI) Flags() profile.Flags {
	return profile.Flags{Production: cli.Production, Watch: cli.Watch, TestOnly: cli.Test}
}

// Run builds the selected profiles.  In watch mode with an address to serve, the dev server runs until the build
// stops, and the build stops if the dev server fails.
func (cli *CLI) Run(ctx context.Context) error {
	layout, err := profile.LoadLayout(cli.Config)
	if err != nil {
		return &build.ConfigurationError{Err: err}
	}
	flags := cli.Flags()
	registry := profile.NewRegistry(layout, profile.Logger(zlog.Logger))
	recorder := metrics.NewPrometheusRecorder(prometheus.NewRegistry())
	orchestrator := build.New(
		esbuild.New(esbuild.Recorder(recorder)),
		registry,
		build.Recorder(recorder),
		build.Logger(zlog.Logger),
	)
	if !flags.Watch || cli.Serve == `` {
		return orchestrator.Run(ctx, flags)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return orchestrator.Run(ctx, flags) })
	g.Go(func() error {
		return rig.Serve(ctx,
			local.Rig(local.TCP(cli.Serve)),
			api.Rig(api.Metrics(recorder.Handler())),
			www.Rig(layout.Path(layout.ServeDir)),
			esbuild.Rig(registry.Resolve(flags)...),
		)
	})
	return g.Wait()
}
