package viewstate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRegistry(clock *manualClock) *Registry[string, string] {
	return NewRegistry(func() *Controller[string, string] {
		return New(func(_ context.Context, key string) (string, error) { return key, nil })
	}, WithRegistryClock(clock.Now), WithSweepInterval(-1))
}

func TestRegistryReturnsSameControllerPerID(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	reg := newTestRegistry(clock)
	t.Cleanup(reg.Close)

	a := reg.View("s1:home")
	require.Same(t, a, reg.View("s1:home"))
	require.NotSame(t, a, reg.View("s2:home"))
	require.Equal(t, 2, reg.Len())

	_, ok := reg.Lookup("s3:home")
	require.False(t, ok)
}

func TestRegistrySweepUnmountsIdleViews(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	reg := newTestRegistry(clock)
	t.Cleanup(reg.Close)

	stale := reg.View("s1:home")
	clock.Advance(IdleTimeout / 2)
	fresh := reg.View("s2:home")
	clock.Advance(IdleTimeout/2 + time.Second)

	require.Equal(t, 1, reg.Sweep())
	require.True(t, stale.Unmounted())
	require.False(t, fresh.Unmounted())
	require.NotSame(t, stale, reg.View("s1:home"))
}

func TestRegistryUnmountAndClose(t *testing.T) {
	clock := &manualClock{now: time.Unix(0, 0)}
	reg := newTestRegistry(clock)

	a := reg.View("a")
	b := reg.View("b")
	reg.Unmount("a")
	require.True(t, a.Unmounted())
	require.Equal(t, 1, reg.Len())

	reg.Close()
	require.True(t, b.Unmounted())
	require.Zero(t, reg.Len())
	require.True(t, reg.View("c").Unmounted())
}

func TestRegistryBackgroundSweep(t *testing.T) {
	reg := NewRegistry(func() *Controller[string, string] {
		return New(func(_ context.Context, key string) (string, error) { return key, nil })
	}, WithIdleTimeout(10*time.Millisecond), WithSweepInterval(5*time.Millisecond))
	t.Cleanup(reg.Close)

	c := reg.View("a")
	require.Eventually(t, c.Unmounted, time.Second, 5*time.Millisecond)
}
