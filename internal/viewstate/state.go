// Package viewstate drives the idle, loading, loaded and errored lifecycle of
// data-backed views.
package viewstate

// Status names the variant held by a State.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusLoaded
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// State is one of Idle, Loading, Loaded(data) or Errored(err). Data is only
// reachable in Loaded and the error only in Errored.
type State[T any] struct {
	status Status
	data   T
	err    error
}

func Idle[T any]() State[T] { return State[T]{status: StatusIdle} }

func Loading[T any]() State[T] { return State[T]{status: StatusLoading} }

func Loaded[T any](data T) State[T] { return State[T]{status: StatusLoaded, data: data} }

func Errored[T any](err error) State[T] { return State[T]{status: StatusErrored, err: err} }

func (s State[T]) Status() Status { return s.status }

// Data returns the loaded value.
func (s State[T]) Data() (T, bool) {
	if s.status != StatusLoaded {
		var zero T
		return zero, false
	}
	return s.data, true
}

// Err returns the failure of an Errored state, nil otherwise.
func (s State[T]) Err() error {
	if s.status != StatusErrored {
		return nil
	}
	return s.err
}

func (s State[T]) IsIdle() bool    { return s.status == StatusIdle }
func (s State[T]) IsLoading() bool { return s.status == StatusLoading }
func (s State[T]) IsLoaded() bool  { return s.status == StatusLoaded }
func (s State[T]) IsErrored() bool { return s.status == StatusErrored }
