package pluginengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// indexOf returns the position of name in order, or -1.
func indexOf(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}

func assertBefore(t *testing.T, order []string, first, second string) {
	t.Helper()
	fi, si := indexOf(order, first), indexOf(order, second)
	require.GreaterOrEqual(t, fi, 0, "%s missing from order %v", first, order)
	require.GreaterOrEqual(t, si, 0, "%s missing from order %v", second, order)
	assert.Less(t, fi, si, "expected %s before %s in %v", first, second, order)
}

func TestResolveDependenciesEmpty(t *testing.T) {
	order, err := resolveDependencies(nil)
	require.NoError(t, err)
	assert.Empty(t, order)
}

func TestResolveDependenciesNoDeps(t *testing.T) {
	order, err := resolveDependencies(map[string]Dependencies{
		"a": {},
		"b": {},
		"c": {},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, order)
}

func TestResolveDependenciesRequiredChain(t *testing.T) {
	order, err := resolveDependencies(map[string]Dependencies{
		"web":      {Required: []string{"database", "cache"}},
		"cache":    {Required: []string{"database"}},
		"database": {},
	})
	require.NoError(t, err)
	require.Len(t, order, 3)
	assertBefore(t, order, "database", "cache")
	assertBefore(t, order, "database", "web")
	assertBefore(t, order, "cache", "web")
}

func TestResolveDependenciesSoftOrdering(t *testing.T) {
	// metrics only *uses* database, but since database is resolvable it
	// must still come first.
	order, err := resolveDependencies(map[string]Dependencies{
		"metrics":  {Used: []string{"database"}},
		"database": {},
	})
	require.NoError(t, err)
	assertBefore(t, order, "database", "metrics")
}

func TestResolveDependenciesSoftAbsentDoesNotBlock(t *testing.T) {
	order, err := resolveDependencies(map[string]Dependencies{
		"metrics": {Used: []string{"nonexistent"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"metrics"}, order)
}

func TestResolveDependenciesSoftCycleStillResolves(t *testing.T) {
	// Soft dependencies may form a cycle; the relaxed tier breaks it.
	order, err := resolveDependencies(map[string]Dependencies{
		"a": {Used: []string{"b"}},
		"b": {Used: []string{"a"}},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, order)
}

func TestResolveDependenciesMixedHardSoft(t *testing.T) {
	order, err := resolveDependencies(map[string]Dependencies{
		"app":      {Required: []string{"auth"}, Used: []string{"metrics"}},
		"auth":     {Required: []string{"database"}},
		"metrics":  {Used: []string{"database"}},
		"database": {},
	})
	require.NoError(t, err)
	require.Len(t, order, 4)
	assertBefore(t, order, "database", "auth")
	assertBefore(t, order, "auth", "app")
	assertBefore(t, order, "metrics", "app")
}

func TestResolveDependenciesRequiredCycle(t *testing.T) {
	_, err := resolveDependencies(map[string]Dependencies{
		"a": {Required: []string{"b"}},
		"b": {Required: []string{"a"}},
	})
	require.ErrorIs(t, err, ErrUnresolvableDependencies)
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
}

func TestResolveDependenciesRequiredOutsideCandidateSet(t *testing.T) {
	// A required dependency that never became a candidate (for example,
	// because it failed discovery) is unresolvable.
	_, err := resolveDependencies(map[string]Dependencies{
		"web": {Required: []string{"database"}},
	})
	require.ErrorIs(t, err, ErrUnresolvableDependencies)
	assert.Contains(t, err.Error(), "web")
}

func TestResolveDependenciesPartialProgressBeforeCycle(t *testing.T) {
	// Independent candidates resolve before the cycle is reported.
	_, err := resolveDependencies(map[string]Dependencies{
		"standalone": {},
		"a":          {Required: []string{"b"}},
		"b":          {Required: []string{"a"}},
	})
	require.ErrorIs(t, err, ErrUnresolvableDependencies)
	assert.NotContains(t, err.Error(), "standalone")
}
