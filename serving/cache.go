package serving

import (
	"context"
	"sync"
	"sync/atomic"

	"fraudguard/ml"
)

type entry struct {
	model   ml.Classifier
	binding Binding
}

// Cache is the single-slot model cache. The slot holds either nothing or one
// classifier together with its binding; the pair is always swapped as a unit
// through one atomic pointer store, so a predict call racing a reload sees
// either the old model or the new one, never a torn state.
type Cache struct {
	resolver ResolverAPI

	// mu serializes resolution so concurrent first-use callers trigger at
	// most one resolve. Readers never take it.
	mu   sync.Mutex
	slot atomic.Pointer[entry]

	// lastFailure remembers the error set of the most recent failed
	// resolution for /model_info diagnostics.
	lastFailure atomic.Pointer[Binding]
}

// NewCache wraps a resolver in a lazily-populated single-slot cache.
func NewCache(resolver ResolverAPI) *Cache {
	return &Cache{resolver: resolver}
}

// Get returns the cached classifier, resolving on first use. Two Get calls
// without an intervening Invalidate return the same classifier instance.
func (c *Cache) Get(ctx context.Context) (ml.Classifier, Binding, error) {
	if e := c.slot.Load(); e != nil {
		return e.model, e.binding, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.slot.Load(); e != nil {
		return e.model, e.binding, nil
	}
	return c.resolve(ctx)
}

// Invalidate empties the slot; the next Get re-runs the resolver.
func (c *Cache) Invalidate() {
	c.slot.Store(nil)
}

// Reload clears the slot and eagerly re-resolves, so resolution failures
// surface to the operator triggering the reload rather than to the next
// prediction. On failure the cache stays empty; there is no silent fallback
// to the previous model.
func (c *Cache) Reload(ctx context.Context) (Binding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot.Store(nil)
	_, binding, err := c.resolve(ctx)
	return binding, err
}

// Binding reports the active binding without triggering resolution. When the
// slot is empty it returns the empty binding, annotated with the errors from
// the most recent failed resolve if there was one.
func (c *Cache) Binding() Binding {
	if e := c.slot.Load(); e != nil {
		return e.binding
	}
	if failure := c.lastFailure.Load(); failure != nil {
		return *failure
	}
	return EmptyBinding()
}

// resolve must be called with mu held.
func (c *Cache) resolve(ctx context.Context) (ml.Classifier, Binding, error) {
	res, err := c.resolver.Resolve(ctx)
	if err != nil {
		failed := res.Binding
		c.lastFailure.Store(&failed)
		return nil, res.Binding, err
	}
	c.lastFailure.Store(nil)
	c.slot.Store(&entry{model: res.Model, binding: res.Binding})
	return res.Model, res.Binding, nil
}
