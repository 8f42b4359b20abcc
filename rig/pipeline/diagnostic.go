package pipeline

import "fmt"

// A Diagnostic is one message reported by the engine for a build pass.
type Diagnostic struct {
	Text     string
	Plugin   string // stage that produced the diagnostic, if any
	Location *Location
}

// Location points at the source of a diagnostic.  Line is 1-based, Column is 0-based in bytes, matching the engine.
type Location struct {
	File   string
	Line   int
	Column int
}

func (loc Location) String() string {
	return fmt.Sprintf(`%s:%d:%d`, loc.File, loc.Line, loc.Column)
}

// Result is the outcome of a build pass as seen by the stages.
type Result struct {
	Errors   []Diagnostic
	Warnings []Diagnostic
}

// Failed is true if the pass reported any errors.
func (res *Result) Failed() bool { return res != nil && len(res.Errors) > 0 }
