package pluginengine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/cucumber/godog"
)

// PluginLifecycleBDDContext holds state for plugin lifecycle BDD tests
type PluginLifecycleBDDContext struct {
	loader    *StaticLoader
	engine    *Engine
	namespace string
	initOrder []string
	loadOK    bool
	loadErr   error
	secondErr error
}

func (ctx *PluginLifecycleBDDContext) reset() {
	ctx.loader = nil
	ctx.engine = nil
	ctx.namespace = ""
	ctx.initOrder = nil
	ctx.loadOK = false
	ctx.loadErr = nil
	ctx.secondErr = nil
}

func (ctx *PluginLifecycleBDDContext) aPluginEngineForNamespace(namespace string) error {
	ctx.namespace = namespace
	ctx.loader = NewStaticLoader()
	ctx.engine = New(namespace, WithLoader(ctx.loader))
	return nil
}

func (ctx *PluginLifecycleBDDContext) registerPlugin(name string, required []string) error {
	if ctx.loader == nil {
		return errors.New("no engine configured yet")
	}
	ctx.loader.Register(ctx.namespace, name, Registration{
		Factory: func() (any, error) {
			return &initOrderPlugin{name: name, required: required, order: &ctx.initOrder}, nil
		},
		Info: PackageInfo{PackageName: name, PackageVersion: "1.0.0"},
	})
	return nil
}

func (ctx *PluginLifecycleBDDContext) aRegisteredPlugin(name string) error {
	return ctx.registerPlugin(name, nil)
}

func (ctx *PluginLifecycleBDDContext) aRegisteredPluginRequiring(name, dep string) error {
	return ctx.registerPlugin(name, []string{dep})
}

func (ctx *PluginLifecycleBDDContext) theEngineIsConfiguredToLoad(names string) error {
	ctx.engine.Configure(ctx.namespace, splitNames(names))
	return nil
}

func (ctx *PluginLifecycleBDDContext) iLoadThePlugins() error {
	ctx.loadOK, ctx.loadErr = ctx.engine.LoadPlugins(context.Background(), true)
	return nil
}

func (ctx *PluginLifecycleBDDContext) iLoadThePluginsStrictly() error {
	ctx.loadOK, ctx.loadErr = ctx.engine.LoadPlugins(context.Background(), false)
	return nil
}

func (ctx *PluginLifecycleBDDContext) iLoadThePluginsAgain() error {
	_, ctx.secondErr = ctx.engine.LoadPlugins(context.Background(), true)
	return nil
}

func (ctx *PluginLifecycleBDDContext) theLoadShouldSucceed() error {
	if ctx.loadErr != nil {
		return fmt.Errorf("load returned error: %w", ctx.loadErr)
	}
	if !ctx.loadOK {
		return fmt.Errorf("load reported failures: %v", ctx.engine.GetFailedPlugins())
	}
	return nil
}

func (ctx *PluginLifecycleBDDContext) theLoadShouldReportFailures() error {
	if ctx.loadErr != nil {
		return fmt.Errorf("load returned error: %w", ctx.loadErr)
	}
	if ctx.loadOK {
		return errors.New("load reported success, expected failures")
	}
	return nil
}

func (ctx *PluginLifecycleBDDContext) theActivePluginsShouldBe(names string) error {
	want := splitNames(names)
	active := ctx.engine.GetActivePlugins()
	got := make([]string, 0, len(active))
	for name := range active {
		got = append(got, name)
	}
	sort.Strings(got)
	sort.Strings(want)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		return fmt.Errorf("active plugins are %v, expected %v", got, want)
	}
	return nil
}

func (ctx *PluginLifecycleBDDContext) theFailedPluginsShouldBe(names string) error {
	want := splitNames(names)
	got := ctx.engine.GetFailedPlugins()
	sort.Strings(want)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		return fmt.Errorf("failed plugins are %v, expected %v", got, want)
	}
	return nil
}

func (ctx *PluginLifecycleBDDContext) pluginShouldInitializeBefore(first, second string) error {
	fi, si := indexOf(ctx.initOrder, first), indexOf(ctx.initOrder, second)
	if fi < 0 || si < 0 {
		return fmt.Errorf("init order %v is missing %s or %s", ctx.initOrder, first, second)
	}
	if fi >= si {
		return fmt.Errorf("expected %s before %s in init order %v", first, second, ctx.initOrder)
	}
	return nil
}

func (ctx *PluginLifecycleBDDContext) theSecondLoadShouldBeRejected() error {
	if !errors.Is(ctx.secondErr, ErrPluginsAlreadyLoaded) {
		return fmt.Errorf("second load returned %v, expected ErrPluginsAlreadyLoaded", ctx.secondErr)
	}
	return nil
}

func (ctx *PluginLifecycleBDDContext) theLoadShouldFailUnresolvable() error {
	if !errors.Is(ctx.loadErr, ErrUnresolvableDependencies) {
		return fmt.Errorf("load returned %v, expected ErrUnresolvableDependencies", ctx.loadErr)
	}
	return nil
}

func splitNames(names string) []string {
	if names == "" {
		return nil
	}
	parts := strings.Split(names, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// InitializePluginLifecycleScenario registers step definitions
func InitializePluginLifecycleScenario(ctx *godog.ScenarioContext) {
	bddCtx := &PluginLifecycleBDDContext{}

	ctx.Before(func(c context.Context, _ *godog.Scenario) (context.Context, error) {
		bddCtx.reset()
		return c, nil
	})

	ctx.Step(`^a plugin engine for namespace "([^"]*)"$`, bddCtx.aPluginEngineForNamespace)
	ctx.Step(`^a registered plugin "([^"]*)"$`, bddCtx.aRegisteredPlugin)
	ctx.Step(`^a registered plugin "([^"]*)" requiring "([^"]*)"$`, bddCtx.aRegisteredPluginRequiring)
	ctx.Step(`^the engine is configured to load "([^"]*)"$`, bddCtx.theEngineIsConfiguredToLoad)
	ctx.Step(`^I load the plugins$`, bddCtx.iLoadThePlugins)
	ctx.Step(`^I load the plugins strictly$`, bddCtx.iLoadThePluginsStrictly)
	ctx.Step(`^I load the plugins again$`, bddCtx.iLoadThePluginsAgain)
	ctx.Step(`^the load should succeed$`, bddCtx.theLoadShouldSucceed)
	ctx.Step(`^the load should report failures$`, bddCtx.theLoadShouldReportFailures)
	ctx.Step(`^the active plugins should be "([^"]*)"$`, bddCtx.theActivePluginsShouldBe)
	ctx.Step(`^the failed plugins should be "([^"]*)"$`, bddCtx.theFailedPluginsShouldBe)
	ctx.Step(`^plugin "([^"]*)" should initialize before "([^"]*)"$`, bddCtx.pluginShouldInitializeBefore)
	ctx.Step(`^the second load should be rejected$`, bddCtx.theSecondLoadShouldBeRejected)
	ctx.Step(`^the load should fail with an unresolvable dependency error$`, bddCtx.theLoadShouldFailUnresolvable)
}

// Test runner
func TestPluginLifecycleBDDFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializePluginLifecycleScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/plugin_lifecycle.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
