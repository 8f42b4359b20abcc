package problems

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdunlop/extbuild-go/rig/pipeline"
)

func newReporter() (*Reporter, *bytes.Buffer, *bytes.Buffer, *bytes.Buffer) {
	var out, errs, logs bytes.Buffer
	rp := New(`web`, Output(&out, &errs), Logger(zerolog.New(&logs)))
	return rp, &out, &errs, &logs
}

func TestStartEmitsOneLine(t *testing.T) {
	rp, out, errs, _ := newReporter()
	rp.OnStart()
	assert.Equal(t, "[watch] build started\n", out.String())
	assert.Empty(t, errs.String())
}

func TestErrorWithLocation(t *testing.T) {
	rp, out, errs, _ := newReporter()
	rp.OnEnd(&pipeline.Result{Errors: []pipeline.Diagnostic{{
		Text:     `syntax error`,
		Location: &pipeline.Location{File: `x.ts`, Line: 3, Column: 5},
	}}})
	lines := strings.Split(strings.TrimSuffix(errs.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `syntax error`)
	assert.Contains(t, lines[1], `x.ts:3:5`)
	assert.Equal(t, "[watch] build finished\n", out.String())
}

func TestErrorWithoutLocation(t *testing.T) {
	rp, _, errs, _ := newReporter()
	rp.OnEnd(&pipeline.Result{Errors: []pipeline.Diagnostic{{Text: `syntax error`}}})
	assert.Equal(t, "✘ [ERROR] syntax error\n", errs.String())
}

func TestErrorsKeepEngineOrder(t *testing.T) {
	rp, _, errs, _ := newReporter()
	rp.OnEnd(&pipeline.Result{Errors: []pipeline.Diagnostic{
		{Text: `first`},
		{Text: ``, Location: &pipeline.Location{File: `skipped.ts`, Line: 1}},
		{Text: `second`, Location: &pipeline.Location{File: `b.ts`, Line: 2, Column: 1}},
	}})
	assert.Equal(t, "✘ [ERROR] first\n✘ [ERROR] second\n    b.ts:2:1:\n", errs.String())
}

func TestEndWithoutErrors(t *testing.T) {
	rp, out, errs, _ := newReporter()
	rp.OnEnd(&pipeline.Result{})
	rp.OnEnd(nil)
	assert.Equal(t, "[watch] build finished\n[watch] build finished\n", out.String())
	assert.Empty(t, errs.String())
}

func TestWarningsAreLogged(t *testing.T) {
	rp, _, errs, logs := newReporter()
	rp.OnEnd(&pipeline.Result{Warnings: []pipeline.Diagnostic{{
		Text:     `unused import`,
		Location: &pipeline.Location{File: `a.ts`, Line: 1, Column: 0},
	}}})
	assert.Empty(t, errs.String())
	assert.Contains(t, logs.String(), `"level":"warn"`)
	assert.Contains(t, logs.String(), `"profile":"web"`)
	assert.Contains(t, logs.String(), `a.ts:1:0`)
}
