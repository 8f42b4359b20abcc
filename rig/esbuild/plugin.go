package esbuild

import (
	"time"

	esbuild "github.com/evanw/esbuild/pkg/api"
	"github.com/swdunlop/extbuild-go/rig/metrics"
	"github.com/swdunlop/extbuild-go/rig/pipeline"
)

// plugin adapts a pipeline stage to an esbuild plugin.  esbuild runs end callbacks serially in plugin order, so a
// stage sees the errors added by the stages before it.
func plugin(st pipeline.Stage) esbuild.Plugin {
	return esbuild.Plugin{
		Name: st.Name(),
		Setup: func(pb esbuild.PluginBuild) {
			pb.OnStart(func() (esbuild.OnStartResult, error) {
				st.OnStart()
				return esbuild.OnStartResult{}, nil
			})
			pb.OnEnd(func(ret *esbuild.BuildResult) (esbuild.OnEndResult, error) {
				st.OnEnd(result(ret))
				return esbuild.OnEndResult{}, nil
			})
			for _, hook := range st.Resolvers() {
				pb.OnResolve(esbuild.OnResolveOptions{Filter: hook.Filter}, resolver(hook))
			}
			for _, hook := range st.Loaders() {
				pb.OnLoad(esbuild.OnLoadOptions{Filter: hook.Filter, Namespace: hook.Namespace}, loader(hook))
			}
		},
	}
}

func resolver(hook pipeline.ResolveHook) func(esbuild.OnResolveArgs) (esbuild.OnResolveResult, error) {
	return func(args esbuild.OnResolveArgs) (esbuild.OnResolveResult, error) {
		ret, err := hook.Fn(pipeline.ResolveArgs{
			Path:       args.Path,
			Importer:   args.Importer,
			ResolveDir: args.ResolveDir,
			Kind:       resolveKind(args.Kind),
		})
		if err != nil {
			return esbuild.OnResolveResult{}, err
		}
		return esbuild.OnResolveResult{Path: ret.Path, Namespace: ret.Namespace}, nil
	}
}

func loader(hook pipeline.LoadHook) func(esbuild.OnLoadArgs) (esbuild.OnLoadResult, error) {
	return func(args esbuild.OnLoadArgs) (esbuild.OnLoadResult, error) {
		ret, err := hook.Fn(pipeline.LoadArgs{Path: args.Path, Namespace: args.Namespace})
		if err != nil {
			return esbuild.OnLoadResult{}, err
		}
		return esbuild.OnLoadResult{
			Contents:   ret.Contents,
			ResolveDir: ret.ResolveDir,
			Loader:     loaderKind(ret.Loader),
			WatchDirs:  ret.WatchDirs,
			WatchFiles: ret.WatchFiles,
		}, nil
	}
}

func resolveKind(kind esbuild.ResolveKind) pipeline.ResolveKind {
	switch kind {
	case esbuild.ResolveEntryPoint:
		return pipeline.ResolveEntryPoint
	case esbuild.ResolveJSImportStatement:
		return pipeline.ResolveImport
	case esbuild.ResolveJSDynamicImport:
		return pipeline.ResolveDynamicImport
	case esbuild.ResolveJSRequireCall:
		return pipeline.ResolveRequire
	default:
		return pipeline.ResolveOther
	}
}

func loaderKind(kind pipeline.Loader) esbuild.Loader {
	switch kind {
	case pipeline.LoaderJS:
		return esbuild.LoaderJS
	case pipeline.LoaderTS:
		return esbuild.LoaderTS
	case pipeline.LoaderTSX:
		return esbuild.LoaderTSX
	default:
		return esbuild.LoaderDefault
	}
}

func result(ret *esbuild.BuildResult) *pipeline.Result {
	if ret == nil {
		return &pipeline.Result{}
	}
	return &pipeline.Result{Errors: diagnostics(ret.Errors), Warnings: diagnostics(ret.Warnings)}
}

func diagnostics(msgs []esbuild.Message) []pipeline.Diagnostic {
	if len(msgs) == 0 {
		return nil
	}
	seq := make([]pipeline.Diagnostic, len(msgs))
	for i, msg := range msgs {
		seq[i] = pipeline.Diagnostic{Text: msg.Text, Plugin: msg.PluginName}
		if loc := msg.Location; loc != nil {
			seq[i].Location = &pipeline.Location{File: loc.File, Line: loc.Line, Column: loc.Column}
		}
	}
	return seq
}

// observer is a plugin that times each pass of a profile.  esbuild never overlaps passes of one context, so the start
// time needs no lock.
func observer(profile string, recorder metrics.Recorder) esbuild.Plugin {
	return esbuild.Plugin{
		Name: `metrics`,
		Setup: func(pb esbuild.PluginBuild) {
			var started time.Time
			pb.OnStart(func() (esbuild.OnStartResult, error) {
				started = time.Now()
				return esbuild.OnStartResult{}, nil
			})
			pb.OnEnd(func(ret *esbuild.BuildResult) (esbuild.OnEndResult, error) {
				recorder.ObservePass(profile, time.Since(started), len(ret.Errors), len(ret.Warnings))
				return esbuild.OnEndResult{}, nil
			})
		},
	}
}
