// Package message shows one transient success or error message at a time.
package message

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultWindow is how long a message stays visible after the last Show.
const DefaultWindow = 3 * time.Second

// Severity tags a message as a success or a failure.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Message is a visible message.
type Message struct {
	ID        string
	Severity  Severity
	Text      string
	ShownAt   time.Time
	ExpiresAt time.Time
}

// IsError reports whether the message reports a failure.
func (m Message) IsError() bool {
	return m.Severity == SeverityError
}

// Remaining returns the visible time left at now, never negative.
func (m Message) Remaining(now time.Time) time.Duration {
	if d := m.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Timer is the cancellable handle returned by an AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option customises a Display.
type Option func(*Display)

// WithAfterFunc replaces the timer scheduler.
func WithAfterFunc(fn AfterFunc) Option {
	return func(d *Display) {
		if fn != nil {
			d.afterFunc = fn
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(d *Display) {
		if now != nil {
			d.now = now
		}
	}
}

// Display holds at most one message and clears it DefaultWindow after the
// latest Show. A newer Show replaces the message and restarts the window.
type Display struct {
	mu        sync.Mutex
	window    time.Duration
	afterFunc AfterFunc
	now       func() time.Time
	current   *Message
	timer     Timer
	closed    bool
	onClear   func()
}

// NewDisplay constructs an empty display.
func NewDisplay(opts ...Option) *Display {
	d := &Display{
		window:    DefaultWindow,
		afterFunc: realAfterFunc,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Show replaces the visible message. It returns the zero Message once the
// display is closed.
func (d *Display) Show(sev Severity, text string) Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return Message{}
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	now := d.now()
	msg := Message{
		ID:        ulid.Make().String(),
		Severity:  sev,
		Text:      text,
		ShownAt:   now,
		ExpiresAt: now.Add(d.window),
	}
	d.current = &msg
	id := msg.ID
	d.timer = d.afterFunc(d.window, func() { d.expire(id) })
	return msg
}

// Success shows a success message.
func (d *Display) Success(text string) Message {
	return d.Show(SeveritySuccess, text)
}

// Error shows an error message.
func (d *Display) Error(text string) Message {
	return d.Show(SeverityError, text)
}

// Current returns the visible message, if any.
func (d *Display) Current() (Message, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return Message{}, false
	}
	if !d.now().Before(d.current.ExpiresAt) {
		return Message{}, false
	}
	return *d.current, true
}

// Clear hides the visible message and cancels its timer.
func (d *Display) Clear() {
	d.mu.Lock()
	had := d.current != nil
	d.reset()
	cb := d.onClear
	d.mu.Unlock()
	if had && cb != nil {
		cb()
	}
}

// Close clears the display and ignores every later Show.
func (d *Display) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset()
	d.closed = true
}

// expire clears the message armed under id. Timers of replaced messages that
// still fire find a different id and do nothing.
func (d *Display) expire(id string) {
	d.mu.Lock()
	if d.current == nil || d.current.ID != id {
		d.mu.Unlock()
		return
	}
	d.current = nil
	d.timer = nil
	cb := d.onClear
	d.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (d *Display) reset() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.current = nil
}

func (d *Display) empty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current == nil
}
