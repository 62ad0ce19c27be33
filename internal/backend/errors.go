package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// GenericMessage is shown whenever the backend gave no usable message.
const GenericMessage = "Unable to process request. Please try again later."

// Kind classifies backend failures.
type Kind int

const (
	// KindServer means the backend answered with a non-2xx status.
	KindServer Kind = iota + 1
	// KindNetwork means no response was received (dial, timeout, cancellation).
	KindNetwork
	// KindDecode means a 2xx body could not be decoded.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// APIError describes a failed backend call.
type APIError struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case KindServer:
		return fmt.Sprintf("backend: status %d: %s", e.Status, e.Message)
	case KindNetwork:
		return fmt.Sprintf("backend: no response: %v", e.Err)
	default:
		return fmt.Sprintf("backend: %s: %v", e.Kind, e.Err)
	}
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// AsAPIError extracts an *APIError from err.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr, true
	}
	return nil, false
}

// IsStatus reports whether err is a server error with the given status.
func IsStatus(err error, status int) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Kind == KindServer && apiErr.Status == status
}

// UserMessage returns the text safe to show for err. Server messages are
// returned verbatim, everything else collapses to GenericMessage.
func UserMessage(err error) string {
	apiErr, ok := AsAPIError(err)
	if !ok || apiErr.Kind != KindServer || apiErr.Message == "" {
		return GenericMessage
	}
	return apiErr.Message
}

func serverError(status int, body []byte) *APIError {
	msg := extractMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Kind: KindServer, Status: status, Message: msg}
}

func networkError(err error) *APIError {
	return &APIError{Kind: KindNetwork, Message: GenericMessage, Err: err}
}

func decodeError(status int, err error) *APIError {
	return &APIError{Kind: KindDecode, Status: status, Message: GenericMessage, Err: err}
}
