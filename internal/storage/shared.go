package storage

import (
	"context"
	"sync"
)

var shared struct {
	mu    sync.Mutex
	opts  Options
	store Store
}

// newStore is swapped in tests.
var newStore = New

// Shared returns the process-wide store for opts, building it on first use.
// A call with different options replaces the cached store.
func Shared(ctx context.Context, opts Options) (Store, error) {
	shared.mu.Lock()
	defer shared.mu.Unlock()

	if shared.store != nil && shared.opts == opts {
		return shared.store, nil
	}
	s, err := newStore(ctx, opts)
	if err != nil {
		return nil, err
	}
	shared.opts = opts
	shared.store = s
	return s, nil
}

// Reconnect drops the shared store so the next Shared call builds a fresh
// client, e.g. after credentials were rotated.
func Reconnect() {
	shared.mu.Lock()
	defer shared.mu.Unlock()
	shared.store = nil
	shared.opts = Options{}
}

// Provider resolves the store to use for one operation.
type Provider func(ctx context.Context) (Store, error)

// SharedProvider resolves the shared store on every call, reading options
// from opts each time. After Reconnect, or once opts reports new values,
// the next call gets a freshly built client.
func SharedProvider(opts func() Options) Provider {
	return func(ctx context.Context) (Store, error) {
		return Shared(ctx, opts())
	}
}
