// Package problems reports build diagnostics in the format expected by the editor's esbuild problem matcher:
//
//	[watch] build started
//	✘ [ERROR] Could not resolve "./missing"
//	    src/extension.ts:3:20:
//	[watch] build finished
//
// The start and finish lines delimit a pass so that a watching editor knows when the problem list is complete.
package problems

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/swdunlop/extbuild-go/rig/pipeline"
)

const (
	startedLine  = "[watch] build started\n"
	finishedLine = "[watch] build finished\n"
)

// New returns a reporter for the named profile.  By default it writes status lines to stdout, errors to stderr and
// warnings to the global zerolog logger.
func New(profile string, options ...Option) *Reporter {
	rp := &Reporter{
		profile: profile,
		out:     os.Stdout,
		err:     os.Stderr,
		log:     zlog.Logger,
	}
	for _, option := range options {
		option(rp)
	}
	rp.log = rp.log.With().Str(`profile`, profile).Logger()
	return rp
}

// An Option adjusts a Reporter during construction.
type Option func(*Reporter)

// Output directs status lines to out and error lines to errs.
func Output(out, errs io.Writer) Option {
	return func(rp *Reporter) { rp.out, rp.err = out, errs }
}

// Logger sets the logger that receives warnings.
func Logger(log zerolog.Logger) Option {
	return func(rp *Reporter) { rp.log = log }
}

// Reporter is a pipeline stage that prints diagnostics at the end of every pass.  It must be the last stage of a
// profile so that it sees errors added by the stages before it.
type Reporter struct {
	pipeline.Base
	profile string
	out     io.Writer
	err     io.Writer
	log     zerolog.Logger
}

var _ pipeline.Stage = (*Reporter)(nil)

// Name implements pipeline.Stage.
func (rp *Reporter) Name() string { return `problem-matcher` }

// OnStart implements pipeline.Stage.
func (rp *Reporter) OnStart() {
	_, _ = io.WriteString(rp.out, startedLine)
}

// OnEnd implements pipeline.Stage.
func (rp *Reporter) OnEnd(res *pipeline.Result) {
	if res != nil {
		var buf bytes.Buffer
		for _, msg := range res.Errors {
			FormatError(&buf, msg)
		}
		if buf.Len() > 0 {
			_, _ = rp.err.Write(buf.Bytes())
		}
		for _, msg := range res.Warnings {
			if msg.Text == `` {
				continue
			}
			evt := rp.log.Warn()
			if msg.Location != nil {
				evt = evt.Stringer(`location`, msg.Location)
			}
			evt.Msg(msg.Text)
		}
	}
	_, _ = io.WriteString(rp.out, finishedLine)
}

// FormatError writes one error line for msg and, when msg has a location, a second line with file:line:column.
// Messages without text are skipped.
func FormatError(w io.Writer, msg pipeline.Diagnostic) {
	if msg.Text == `` {
		return
	}
	fmt.Fprintf(w, "✘ [ERROR] %s\n", strings.ReplaceAll(msg.Text, "\n", "\n          "))
	if msg.Location != nil {
		fmt.Fprintf(w, "    %s:\n", msg.Location)
	}
}
