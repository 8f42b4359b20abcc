// Package hook defines interfaces that the rig recognizes in its hooks and applies while setting up the dev server.
// A hook may implement any number of them.
package hook

import (
	"context"
	"net"
	"net/http"
	"sort"
)

// Listen hooks provide the listener the dev server accepts connections on.  The last one wins.
type Listen interface {
	Listen(ctx context.Context) (net.Listener, error)
}

// Server hooks are called when the rig is setting up a new HTTP server.
type Server interface {
	RigServer(*http.Server)
}

// Mux hooks are called when the rig is setting up a new HTTP multiplexer.
type Mux interface {
	RigMux(*http.ServeMux)
}

// Order returns the hooks with each Dependent moved after the Providers it depends on, otherwise keeping the given
// order.  Cycles are not an error; the order is simply best effort.
func Order(hooks ...any) []any {
	providers := make(map[string][]int, len(hooks))
	for i, hook := range hooks {
		if provider, ok := hook.(Provider); ok {
			for _, name := range provider.Provides() {
				providers[name] = append(providers[name], i)
			}
		}
	}
	order := make([]any, 0, len(hooks))
	placed := make([]bool, len(hooks))
	var place func(int)
	place = func(i int) {
		if placed[i] {
			return
		}
		placed[i] = true
		if dependent, ok := hooks[i].(Dependent); ok {
			var items []int
			for _, name := range dependent.DependsOn() {
				items = append(items, providers[name]...)
			}
			sort.Ints(items)
			for _, j := range items {
				place(j)
			}
		}
		order = append(order, hooks[i])
	}
	for i := range hooks {
		place(i)
	}
	return order
}

// A Provider provides a name so that it can be referenced by a Dependent.
type Provider interface {
	Provides() []string
}

// A Dependent hook will not be applied until all of its dependencies have been.
type Dependent interface {
	DependsOn() []string
}
