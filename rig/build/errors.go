package build

import (
	"fmt"
	"strings"

	"github.com/swdunlop/extbuild-go/rig/pipeline"
)

// ConfigurationError reports profiles that could not be turned into build contexts.  It is fatal: no build starts.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string { return fmt.Sprintf(`configuration error: %v`, e.Err) }
func (e *ConfigurationError) Unwrap() error { return e.Err }

// BuildError reports a failed build of one profile.  Diagnostics holds the errors reported by the engine, if any.
type BuildError struct {
	Profile     string
	Diagnostics []pipeline.Diagnostic
	Err         error
}

func (e *BuildError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `%s build failed`, e.Profile)
	switch {
	case e.Err != nil:
		fmt.Fprintf(&sb, `: %v`, e.Err)
	case len(e.Diagnostics) == 1:
		fmt.Fprintf(&sb, `: %s`, e.Diagnostics[0].Text)
	case len(e.Diagnostics) > 1:
		fmt.Fprintf(&sb, ` with %d errors, first: %s`, len(e.Diagnostics), e.Diagnostics[0].Text)
	}
	return sb.String()
}

func (e *BuildError) Unwrap() error { return e.Err }

// AggregatedBuildError collects the build errors of every failed profile of one invocation.
type AggregatedBuildError struct {
	Errors []*BuildError
}

func (e *AggregatedBuildError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e *AggregatedBuildError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		errs[i] = err
	}
	return errs
}

// Profiles lists the names of the failed profiles.
func (e *AggregatedBuildError) Profiles() []string {
	names := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		names[i] = err.Profile
	}
	return names
}
