package pluginengine

import (
	"fmt"
	"sort"
	"strings"
)

// resolveDependencies sorts candidate plugins into load order.
//
// The returned sequence guarantees that every required dependency of a name
// appears strictly before it, and that every used (soft) dependency appears
// before it whenever that dependency is itself part of the candidate set.
// A used dependency that is absent from the candidate set never blocks
// progress.
//
// Resolution proceeds in layers rather than as a single depth-first
// traversal, because soft dependencies express a preferred rather than
// mandatory order. Each iteration first emits all candidates whose required
// and used dependencies are met; if none qualify, it relaxes to candidates
// whose required dependencies alone are met. If neither set is non-empty
// while candidates remain, the pending graph contains a required-dependency
// cycle or a required dependency that was never a valid candidate, and
// resolution fails with ErrUnresolvableDependencies.
//
// Candidates that become ready in the same layer are emitted in sorted name
// order. That ordering is an implementation detail for reproducible logs,
// not a contract; callers needing a specific order must declare a (soft)
// dependency.
func resolveDependencies(candidates map[string]Dependencies) ([]string, error) {
	pending := make(map[string]Dependencies, len(candidates))
	for name, deps := range candidates {
		pending[name] = deps
	}

	resolved := make(map[string]bool, len(candidates))
	order := make([]string, 0, len(candidates))

	met := func(names []string) bool {
		for _, n := range names {
			if !resolved[n] {
				return false
			}
		}
		return true
	}

	for len(pending) > 0 {
		var ready []string
		// Candidates with both hard and soft dependencies met.
		for name, deps := range pending {
			if met(deps.Required) && met(deps.Used) {
				ready = append(ready, name)
			}
		}
		if len(ready) == 0 {
			// Relax to hard dependencies only.
			for name, deps := range pending {
				if met(deps.Required) {
					ready = append(ready, name)
				}
			}
		}
		if len(ready) == 0 {
			stuck := make([]string, 0, len(pending))
			for name := range pending {
				stuck = append(stuck, name)
			}
			sort.Strings(stuck)
			return nil, fmt.Errorf("%w: %s", ErrUnresolvableDependencies, strings.Join(stuck, ", "))
		}

		sort.Strings(ready)
		for _, name := range ready {
			resolved[name] = true
			delete(pending, name)
		}
		order = append(order, ready...)
	}

	return order, nil
}
