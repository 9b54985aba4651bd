package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// BackendState describes what the refresher is doing for one user.
type BackendState string

// Refresh states, as shown on the dashboard.
const (
	StateUninitialized BackendState = "uninitialized"
	StateRefreshing    BackendState = "refreshing"
	StateIdle          BackendState = "idle"
)

// BackendStatus is the per-user refresh status. LastRefresh is zero until a
// scan has completed.
type BackendStatus struct {
	LastRefresh time.Time
	State       BackendState
}

type resultEntry[V any] struct {
	value V
	at    time.Time
}

// Results holds the latest completed value per username together with a
// single in-flight computation slot. Readers get the completed value
// instantly; a refresh trigger while one is already running is a no-op, so
// no two computations for the same user ever run concurrently. Writers swap
// the whole value, never mutate it, so readers never observe a partial
// update.
type Results[V any] struct {
	done     map[string]resultEntry[V]
	inflight map[string]chan struct{}
	lastErr  map[string]error
	mu       sync.RWMutex
}

// NewResults creates an empty per-user result cache.
func NewResults[V any]() *Results[V] {
	return &Results[V]{
		done:     make(map[string]resultEntry[V]),
		inflight: make(map[string]chan struct{}),
		lastErr:  make(map[string]error),
	}
}

// Latest returns the most recently completed value for user, if any.
func (r *Results[V]) Latest(user string) (V, time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.done[user]
	return e.value, e.at, ok
}

// Status reports the refresh state for user.
func (r *Results[V]) Status(user string) BackendStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, running := r.inflight[user]
	e, ok := r.done[user]
	switch {
	case running:
		return BackendStatus{State: StateRefreshing, LastRefresh: e.at}
	case ok:
		return BackendStatus{State: StateIdle, LastRefresh: e.at}
	default:
		return BackendStatus{State: StateUninitialized}
	}
}

// Trigger starts a background refresh for user unless one is already in
// flight. The computation keeps running even if the caller goes away; its
// result is stored for the next read.
func (r *Results[V]) Trigger(ctx context.Context, user string, compute func(context.Context) (V, error)) {
	r.start(ctx, user, compute)
}

// Get returns the completed value for user instantly when one exists,
// kicking off a coalesced background refresh. When no value has ever been
// computed it waits for the in-flight computation (starting one if needed)
// and returns its result, or an error if that first computation failed.
func (r *Results[V]) Get(ctx context.Context, user string, compute func(context.Context) (V, error)) (V, error) {
	if v, _, ok := r.Latest(user); ok {
		r.start(ctx, user, compute)
		return v, nil
	}

	ch := r.start(ctx, user, compute)
	select {
	case <-ch:
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.done[user]; ok {
		return e.value, nil
	}
	var zero V
	if err := r.lastErr[user]; err != nil {
		return zero, fmt.Errorf("refresh for %s failed: %w", user, err)
	}
	return zero, fmt.Errorf("refresh for %s produced no result", user)
}

// start begins a computation for user unless one is in flight, and returns
// a channel that closes when the current computation finishes.
func (r *Results[V]) start(ctx context.Context, user string, compute func(context.Context) (V, error)) <-chan struct{} {
	r.mu.Lock()
	if ch, ok := r.inflight[user]; ok {
		r.mu.Unlock()
		return ch
	}
	ch := make(chan struct{})
	r.inflight[user] = ch
	r.mu.Unlock()

	// Detach from the request context: an abandoned request should still
	// populate the cache for the next read.
	bg := context.WithoutCancel(ctx)
	go func() {
		value, err := compute(bg)

		r.mu.Lock()
		if err != nil {
			slog.Error("Scan failed, keeping previous result", "user", user, "error", err)
			r.lastErr[user] = err
		} else {
			r.done[user] = resultEntry[V]{value: value, at: time.Now()}
			r.lastErr[user] = nil
		}
		delete(r.inflight, user)
		r.mu.Unlock()
		close(ch)
	}()
	return ch
}
