package notify

import (
	"sync"

	"payoutbot/core/metrics"
)

// Registry tracks one active subscription teardown per chat. Replacing a
// subscription tears down the previous one first, so a chat never holds two
// live channels.
type Registry struct {
	mu       sync.Mutex
	cleanups map[int64]func()
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{cleanups: make(map[int64]func())}
}

// Replace installs a teardown for the chat, running any previous one.
func (r *Registry) Replace(chatID int64, cleanup func()) {
	r.mu.Lock()
	prev := r.cleanups[chatID]
	r.cleanups[chatID] = cleanup
	r.mu.Unlock()

	if prev != nil {
		prev()
	} else {
		metrics.Subscriptions.Inc()
	}
}

// Remove runs and removes the chat's teardown, if any.
func (r *Registry) Remove(chatID int64) {
	r.mu.Lock()
	cleanup := r.cleanups[chatID]
	delete(r.cleanups, chatID)
	r.mu.Unlock()

	if cleanup != nil {
		cleanup()
		metrics.Subscriptions.Dec()
	}
}

// Drop removes the chat's entry without running the teardown. Used by a
// subscription that is shutting itself down.
func (r *Registry) Drop(chatID int64) {
	r.mu.Lock()
	_, ok := r.cleanups[chatID]
	delete(r.cleanups, chatID)
	r.mu.Unlock()

	if ok {
		metrics.Subscriptions.Dec()
	}
}

// Close tears down every active subscription.
func (r *Registry) Close() {
	r.mu.Lock()
	cleanups := r.cleanups
	r.cleanups = make(map[int64]func())
	r.mu.Unlock()

	for range cleanups {
		metrics.Subscriptions.Dec()
	}
	for _, cleanup := range cleanups {
		cleanup()
	}
}

// Active reports whether the chat currently holds a subscription.
func (r *Registry) Active(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cleanups[chatID]
	return ok
}
