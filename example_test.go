package pluginengine_test

import (
	"context"
	"fmt"

	"github.com/GoCodeAlone/pluginengine"
)

// greeterPlugin is a minimal plugin used in examples.
type greeterPlugin struct{}

func (p *greeterPlugin) Init(_ context.Context, _ *pluginengine.Engine) error { return nil }

func (p *greeterPlugin) Doc() string {
	return "Greeter\n\nGreets whoever loads it"
}

func Example() {
	loader := pluginengine.NewStaticLoader()
	loader.Register("example", "greeter", pluginengine.Registration{
		Factory: func() (any, error) { return &greeterPlugin{}, nil },
		Info:    pluginengine.PackageInfo{PackageName: "greeter", PackageVersion: "1.0.0"},
	})

	engine := pluginengine.New("example", pluginengine.WithLoader(loader))
	engine.Configure("example", []string{"greeter"})

	ok, err := engine.LoadPlugins(context.Background(), true)
	if err != nil {
		panic(err)
	}

	plugin := engine.GetPlugin("greeter")
	fmt.Println(ok)
	fmt.Println(plugin.Title())
	fmt.Println(plugin.Version())
	// Output:
	// true
	// Greeter
	// 1.0.0
}
