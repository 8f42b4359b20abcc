package profile

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/swdunlop/extbuild-go/rig/problems"
)

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New(`invalid profile`)

// Validate checks the invariants that hold across a set of profiles: every profile is named, has entry points and an
// output, no two profiles share a name or write to overlapping outputs, and the problems reporter is the last stage.
func Validate(profiles []Profile) error {
	var errs []error
	invalid := func(p Profile, format string, args ...any) {
		errs = append(errs, fmt.Errorf(`%w %q: %s`, ErrInvalid, p.Name, fmt.Sprintf(format, args...)))
	}
	names := make(map[string]bool, len(profiles))
	for i, p := range profiles {
		switch {
		case p.Name == ``:
			invalid(p, `no name`)
		case names[p.Name]:
			invalid(p, `name is not unique`)
		}
		names[p.Name] = true
		if len(p.EntryPoints) == 0 {
			invalid(p, `no entry points`)
		}
		if p.Output.Path == `` {
			invalid(p, `no output`)
		}
		for j, st := range p.Stages {
			if _, ok := st.(*problems.Reporter); ok && j != len(p.Stages)-1 {
				invalid(p, `stage %d: the problems reporter must be the last stage`, j)
			}
		}
		for _, q := range profiles[:i] {
			if p.Output.Path != `` && overlaps(p.Output, q.Output) {
				invalid(p, `output %q overlaps the output of %q`, p.Output.Path, q.Name)
			}
		}
	}
	return errors.Join(errs...)
}

func overlaps(a, b Output) bool {
	ap, bp := filepath.Clean(a.Path), filepath.Clean(b.Path)
	switch {
	case ap == bp:
		return true
	case a.Dir && strings.HasPrefix(bp, ap+string(filepath.Separator)):
		return true
	case b.Dir && strings.HasPrefix(ap, bp+string(filepath.Separator)):
		return true
	}
	return false
}
