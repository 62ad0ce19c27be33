package viewstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrSuperseded is returned by Wait when a newer load replaced the generation.
	ErrSuperseded = errors.New("viewstate: superseded by a newer load")
	// ErrUnmounted is returned by Wait once the view was unmounted.
	ErrUnmounted = errors.New("viewstate: view unmounted")
	// ErrUnknownGeneration is returned by Wait for a generation never started.
	ErrUnknownGeneration = errors.New("viewstate: unknown generation")
)

// FetchFunc loads the data of a view for key. ctx is cancelled when the load
// is superseded or the view unmounts.
type FetchFunc[K comparable, T any] func(ctx context.Context, key K) (T, error)

// Option customises a Controller.
type Option[K comparable, T any] func(*Controller[K, T])

// WithErrorHook registers fn to run once for every transition into Errored.
// It runs outside the controller lock.
func WithErrorHook[K comparable, T any](fn func(key K, err error)) Option[K, T] {
	return func(c *Controller[K, T]) {
		c.onError = fn
	}
}

// WithBaseContext sets the parent context of every fetch.
func WithBaseContext[K comparable, T any](ctx context.Context) Option[K, T] {
	return func(c *Controller[K, T]) {
		if ctx != nil {
			c.base = ctx
		}
	}
}

// Controller runs the fetch of one view instance. Each Load starts a new
// generation; completions belonging to an older generation are discarded so
// the latest dependency key always wins. The zero value is not usable.
type Controller[K comparable, T any] struct {
	fetch   FetchFunc[K, T]
	base    context.Context
	onError func(K, error)

	mu        sync.Mutex
	key       K
	hasKey    bool
	gen       uint64
	state     State[T]
	cancel    context.CancelFunc
	done      chan struct{} // open exactly while state is Loading
	unmounted bool
}

// New constructs an Idle controller.
func New[K comparable, T any](fetch FetchFunc[K, T], opts ...Option[K, T]) *Controller[K, T] {
	c := &Controller[K, T]{
		fetch: fetch,
		base:  context.Background(),
		state: Idle[T](),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Load moves the view to Loading for key, cancelling any in-flight fetch, and
// returns the new generation. After Unmount it returns the last generation
// and starts nothing.
func (c *Controller[K, T]) Load(key K) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(key)
}

// Reload repeats the load of the current key. It is a no-op before the first Load.
func (c *Controller[K, T]) Reload() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasKey {
		return c.gen
	}
	return c.loadLocked(c.key)
}

// Ensure joins the current generation when it already loads or holds key and
// starts a new load otherwise.
func (c *Controller[K, T]) Ensure(key K) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasKey && c.key == key && (c.state.IsLoading() || c.state.IsLoaded()) {
		return c.gen
	}
	return c.loadLocked(key)
}

func (c *Controller[K, T]) loadLocked(key K) uint64 {
	if c.unmounted {
		return c.gen
	}
	c.stopLocked()

	c.gen++
	c.key = key
	c.hasKey = true
	c.state = Loading[T]()
	c.done = make(chan struct{})

	ctx, cancel := context.WithCancel(c.base)
	c.cancel = cancel
	go c.run(ctx, c.gen, key)
	return c.gen
}

// stopLocked cancels the in-flight fetch and wakes its waiters.
func (c *Controller[K, T]) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.state.IsLoading() && c.done != nil {
		close(c.done)
	}
}

func (c *Controller[K, T]) run(ctx context.Context, gen uint64, key K) {
	data, err := c.safeFetch(ctx, key)
	c.complete(gen, key, data, err)
}

func (c *Controller[K, T]) safeFetch(ctx context.Context, key K) (data T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("viewstate: fetch panicked: %v", rec)
		}
	}()
	return c.fetch(ctx, key)
}

func (c *Controller[K, T]) complete(gen uint64, key K, data T, err error) {
	c.mu.Lock()
	if c.unmounted || gen != c.gen || !c.state.IsLoading() {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.state = Errored[T](err)
	} else {
		c.state = Loaded(data)
	}
	close(c.done)
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	hook := c.onError
	c.mu.Unlock()

	if err != nil && hook != nil {
		hook(key, err)
	}
}

// Wait blocks until generation gen settles and returns its state.
func (c *Controller[K, T]) Wait(ctx context.Context, gen uint64) (State[T], error) {
	for {
		c.mu.Lock()
		switch {
		case c.unmounted:
			c.mu.Unlock()
			return State[T]{}, ErrUnmounted
		case gen == 0 || gen > c.gen:
			c.mu.Unlock()
			return State[T]{}, ErrUnknownGeneration
		case gen < c.gen:
			c.mu.Unlock()
			return State[T]{}, ErrSuperseded
		case !c.state.IsLoading():
			state := c.state
			c.mu.Unlock()
			return state, nil
		}
		done := c.done
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return State[T]{}, ctx.Err()
		}
	}
}

// State returns the current state.
func (c *Controller[K, T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Key returns the dependency key of the latest load.
func (c *Controller[K, T]) Key() (K, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key, c.hasKey
}

// Generation returns the latest generation, zero before the first Load.
func (c *Controller[K, T]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Unmount cancels pending work. No state change is applied afterwards.
func (c *Controller[K, T]) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unmounted {
		return
	}
	c.stopLocked()
	c.unmounted = true
}

// Unmounted reports whether Unmount was called.
func (c *Controller[K, T]) Unmounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unmounted
}
