package viewstate

import (
	"sync"
	"time"
)

// IdleTimeout is how long an untouched view stays mounted.
const IdleTimeout = 10 * time.Minute

// RegistryOption customises a Registry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	idle  time.Duration
	sweep time.Duration
	now   func() time.Time
}

// WithIdleTimeout overrides IdleTimeout.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(cfg *registryConfig) {
		if d > 0 {
			cfg.idle = d
		}
	}
}

// WithSweepInterval sets how often idle views are collected. A negative
// interval disables the background sweep.
func WithSweepInterval(d time.Duration) RegistryOption {
	return func(cfg *registryConfig) {
		if d != 0 {
			cfg.sweep = d
		}
	}
}

// WithRegistryClock replaces the wall clock used for idle tracking.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(cfg *registryConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

type registryEntry[K comparable, T any] struct {
	controller *Controller[K, T]
	lastUsed   time.Time
}

// Registry owns the mounted controllers of one view kind, keyed by an id that
// combines the browser session and the view.
type Registry[K comparable, T any] struct {
	factory func() *Controller[K, T]
	cfg     registryConfig

	mu     sync.Mutex
	views  map[string]*registryEntry[K, T]
	closed bool
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewRegistry constructs a registry creating controllers with factory.
func NewRegistry[K comparable, T any](factory func() *Controller[K, T], opts ...RegistryOption) *Registry[K, T] {
	cfg := registryConfig{idle: IdleTimeout, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.sweep == 0 {
		cfg.sweep = cfg.idle / 4
	}

	r := &Registry[K, T]{
		factory: factory,
		cfg:     cfg,
		views:   make(map[string]*registryEntry[K, T]),
		stop:    make(chan struct{}),
	}
	if cfg.sweep > 0 {
		r.wg.Add(1)
		go r.sweepLoop()
	}
	return r
}

// View returns the controller mounted under id, mounting a new one when
// missing. After Close it returns an unmounted controller.
func (r *Registry[K, T]) View(id string) *Controller[K, T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		c := r.factory()
		c.Unmount()
		return c
	}
	entry, ok := r.views[id]
	if !ok {
		entry = &registryEntry[K, T]{controller: r.factory()}
		r.views[id] = entry
	}
	entry.lastUsed = r.cfg.now()
	return entry.controller
}

// Lookup returns the controller mounted under id without mounting one.
func (r *Registry[K, T]) Lookup(id string) (*Controller[K, T], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.views[id]
	if !ok {
		return nil, false
	}
	entry.lastUsed = r.cfg.now()
	return entry.controller, true
}

// Unmount unmounts and forgets the view under id.
func (r *Registry[K, T]) Unmount(id string) {
	r.mu.Lock()
	entry, ok := r.views[id]
	delete(r.views, id)
	r.mu.Unlock()
	if ok {
		entry.controller.Unmount()
	}
}

// Sweep unmounts every view idle for longer than the idle timeout and
// returns how many were removed.
func (r *Registry[K, T]) Sweep() int {
	cutoff := r.cfg.now().Add(-r.cfg.idle)
	var idle []*Controller[K, T]

	r.mu.Lock()
	for id, entry := range r.views {
		if entry.lastUsed.Before(cutoff) {
			idle = append(idle, entry.controller)
			delete(r.views, id)
		}
	}
	r.mu.Unlock()

	for _, c := range idle {
		c.Unmount()
	}
	return len(idle)
}

// Len returns the number of mounted views.
func (r *Registry[K, T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Close unmounts every view and stops the background sweep.
func (r *Registry[K, T]) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	views := r.views
	r.views = make(map[string]*registryEntry[K, T])
	close(r.stop)
	r.mu.Unlock()

	r.wg.Wait()
	for _, entry := range views {
		entry.controller.Unmount()
	}
}

func (r *Registry[K, T]) sweepLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
