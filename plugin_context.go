package pluginengine

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// PluginContext is a strict-LIFO stack of "currently active plugin"
// references. It lets code invoked on behalf of a plugin, including
// callbacks dispatched much later by unrelated code, discover which plugin
// logically owns it.
//
// Each thread of control must use its own PluginContext; the stack travels
// on context.Context via WithPluginContext so that concurrent flows never
// interleave push/pop sequences. Re-entrant use on a single flow is
// supported and expected: scoped acquisitions nest and unwind in strict
// reverse order.
//
// All internal use goes through Scoped, which guarantees the matching pop
// on every exit path. Popping a different instance than the one most
// recently pushed indicates a scope was exited out of order and panics.
type PluginContext struct {
	mu      sync.Mutex
	entries []*PluginInstance
}

// NewPluginContext creates an empty plugin context stack.
func NewPluginContext() *PluginContext {
	return &PluginContext{}
}

// Push appends a plugin to the top of the stack.
func (c *PluginContext) Push(p *PluginInstance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, p)
}

// Pop removes and returns the top of the stack, or nil when empty. Callers
// must verify the returned instance is the one they expect to be popping;
// Scoped does this automatically.
func (c *PluginContext) Pop() *PluginInstance {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) == 0 {
		return nil
	}
	top := c.entries[len(c.entries)-1]
	c.entries = c.entries[:len(c.entries)-1]
	return top
}

// Peek returns the top of the stack without removing it, or nil when the
// stack is empty.
func (c *PluginContext) Peek() *PluginInstance {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) == 0 {
		return nil
	}
	return c.entries[len(c.entries)-1]
}

// Depth returns the number of entries on the stack.
func (c *PluginContext) Depth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Scoped runs fn with p active on the stack, guaranteeing the matching pop
// whether fn returns normally or panics. A mismatched pop means the stack
// was corrupted by unbalanced use and panics with ErrPluginContextMismatch.
func (c *PluginContext) Scoped(p *PluginInstance, fn func() error) error {
	c.Push(p)
	defer func() {
		if popped := c.Pop(); popped != p {
			panic(fmt.Sprintf("%v: popped %v, expected %v", ErrPluginContextMismatch, popped, p))
		}
	}()
	return fn()
}

// pluginContextKey is the context.Context key under which a flow's
// PluginContext travels.
type pluginContextKey struct{}

// WithPluginContext returns a context carrying the given plugin context
// stack. Each independent flow of control should carry its own stack.
func WithPluginContext(ctx context.Context, pc *PluginContext) context.Context {
	return context.WithValue(ctx, pluginContextKey{}, pc)
}

// pluginContextFrom returns the flow's plugin context stack, creating a
// fresh one when the context does not carry any. The second return reports
// whether the stack came from the context.
func pluginContextFrom(ctx context.Context) (*PluginContext, bool) {
	if pc, ok := ctx.Value(pluginContextKey{}).(*PluginContext); ok {
		return pc, true
	}
	return NewPluginContext(), false
}

// ActivePlugin returns the plugin currently active on the flow's context
// stack, or nil when no plugin scope is active.
func ActivePlugin(ctx context.Context) *PluginInstance {
	pc, ok := pluginContextFrom(ctx)
	if !ok {
		return nil
	}
	return pc.Peek()
}

// RunWithPlugin runs fn with p active for fn's dynamic extent. The context
// passed to fn carries the stack, so nested RunWithPlugin calls on the same
// flow push onto the same stack and unwind in strict reverse order.
func RunWithPlugin(ctx context.Context, p *PluginInstance, fn func(ctx context.Context) error) error {
	pc, ok := pluginContextFrom(ctx)
	if !ok {
		ctx = WithPluginContext(ctx, pc)
	}
	return pc.Scoped(p, func() error {
		return fn(ctx)
	})
}

// CallbackFunc is the callable shape accepted by WrapInPluginContext.
type CallbackFunc func(ctx context.Context) error

// callbackKey identifies a (plugin, callable) pair in the wrap cache.
type callbackKey struct {
	plugin *PluginInstance
	fn     uintptr
}

// WrapInPluginContext returns a callable that executes fn with the plugin
// active on the invoking flow's context stack for fn's dynamic extent.
//
// Wrapping is idempotent: the same (plugin, fn) pair always yields the
// identical wrapper value, so systems that de-duplicate callbacks by
// identity treat repeated registrations of one handler as one handler. The
// cache lives as long as the engine and is never evicted; it is safe to
// query concurrently from callback-registration sites.
func (e *Engine) WrapInPluginContext(p *PluginInstance, fn CallbackFunc) CallbackFunc {
	key := callbackKey{plugin: p, fn: reflect.ValueOf(fn).Pointer()}
	if cached, ok := e.wrapCache.Load(key); ok {
		return cached.(CallbackFunc)
	}
	wrapped := CallbackFunc(func(ctx context.Context) error {
		return RunWithPlugin(ctx, p, fn)
	})
	actual, _ := e.wrapCache.LoadOrStore(key, wrapped)
	return actual.(CallbackFunc)
}
