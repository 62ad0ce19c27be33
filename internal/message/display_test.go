package message

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeScheduler fires timers when the fake clock is advanced past their deadline.
type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (s *fakeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{at: s.now.Add(d), fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	var due []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired && !t.at.After(s.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}

func (s *fakeScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (s *fakeScheduler) options() []Option {
	return []Option{WithAfterFunc(s.AfterFunc), WithClock(s.Now)}
}

func TestShowClearsAfterWindow(t *testing.T) {
	sched := newFakeScheduler()
	d := NewDisplay(sched.options()...)

	msg := d.Success("Product uploaded successfully")
	require.NotEmpty(t, msg.ID)
	require.Equal(t, SeveritySuccess, msg.Severity)
	require.Equal(t, DefaultWindow, msg.Remaining(sched.Now()))

	sched.Advance(DefaultWindow - time.Millisecond)
	got, ok := d.Current()
	require.True(t, ok)
	require.Equal(t, msg, got)

	sched.Advance(time.Millisecond)
	_, ok = d.Current()
	require.False(t, ok)
}

func TestShowRestartsWindowFromLastCall(t *testing.T) {
	sched := newFakeScheduler()
	d := NewDisplay(sched.options()...)

	d.Error("first")
	sched.Advance(2 * time.Second)
	second := d.Error("second")
	require.Equal(t, 1, sched.Active())

	// The first window would have ended here.
	sched.Advance(time.Second)
	got, ok := d.Current()
	require.True(t, ok)
	require.Equal(t, "second", got.Text)

	sched.Advance(2 * time.Second)
	_, ok = d.Current()
	require.False(t, ok)
	require.Zero(t, second.Remaining(sched.Now()))
}

func TestStaleTimerDoesNotClearNewerMessage(t *testing.T) {
	sched := newFakeScheduler()
	d := NewDisplay(sched.options()...)

	d.Show(SeverityError, "old")
	stale := sched.timers[0]
	d.Show(SeveritySuccess, "new")

	// Simulate a timer that fired even though Stop was called.
	stale.fn()

	got, ok := d.Current()
	require.True(t, ok)
	require.Equal(t, "new", got.Text)
}

func TestCloseStopsTimerAndIgnoresShow(t *testing.T) {
	sched := newFakeScheduler()
	d := NewDisplay(sched.options()...)

	d.Success("hello")
	d.Close()
	require.Zero(t, sched.Active())

	require.Equal(t, Message{}, d.Success("ignored"))
	_, ok := d.Current()
	require.False(t, ok)
}

func TestRealTimerClears(t *testing.T) {
	d := NewDisplay()
	d.window = 10 * time.Millisecond
	d.Error("boom")
	require.Eventually(t, func() bool {
		_, ok := d.Current()
		return !ok
	}, time.Second, 5*time.Millisecond)
}
