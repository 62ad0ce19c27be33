package message

import "sync"

// Board keeps one Display per browser session so a message shown while
// handling a POST is still visible on the page that follows the redirect.
type Board struct {
	mu       sync.Mutex
	displays map[string]*Display
	opts     []Option
}

// NewBoard constructs an empty board. opts apply to every display it creates.
func NewBoard(opts ...Option) *Board {
	return &Board{
		displays: make(map[string]*Display),
		opts:     opts,
	}
}

// For returns the display of sessionID, creating it when missing.
func (b *Board) For(sessionID string) *Display {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.displayLocked(sessionID)
}

// Show replaces the message of sessionID.
func (b *Board) Show(sessionID string, sev Severity, text string) Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.displayLocked(sessionID).Show(sev, text)
}

// Success shows a success message for sessionID.
func (b *Board) Success(sessionID, text string) Message {
	return b.Show(sessionID, SeveritySuccess, text)
}

// Error shows an error message for sessionID.
func (b *Board) Error(sessionID, text string) Message {
	return b.Show(sessionID, SeverityError, text)
}

// Current returns the visible message of sessionID without creating a display.
func (b *Board) Current(sessionID string) (Message, bool) {
	b.mu.Lock()
	d, ok := b.displays[sessionID]
	b.mu.Unlock()
	if !ok {
		return Message{}, false
	}
	return d.Current()
}

// Drop closes and forgets the display of sessionID.
func (b *Board) Drop(sessionID string) {
	b.mu.Lock()
	d, ok := b.displays[sessionID]
	delete(b.displays, sessionID)
	b.mu.Unlock()
	if ok {
		d.Close()
	}
}

// Len returns the number of live displays.
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.displays)
}

func (b *Board) displayLocked(sessionID string) *Display {
	if d, ok := b.displays[sessionID]; ok {
		return d
	}
	d := NewDisplay(b.opts...)
	d.onClear = func() { b.release(sessionID, d) }
	b.displays[sessionID] = d
	return d
}

// release forgets d once it holds nothing. Lock order is board then display.
func (b *Board) release(sessionID string, d *Display) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.displays[sessionID] == d && d.empty() {
		delete(b.displays, sessionID)
	}
}
