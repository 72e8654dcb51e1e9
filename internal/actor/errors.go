package actor

import "fmt"

// APIError is returned when the remote service rejects a call or the call
// never reaches it.
type APIError struct {
	StatusCode  int
	Message     string
	Description string
	Err         error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("actor api error (status %d): %s", e.StatusCode, e.Message)
	}
	return "actor api error: " + e.Message
}

func (e *APIError) Unwrap() error { return e.Err }

// OperationError is returned when the call could not be made from the
// caller's own inputs, such as missing credentials.
type OperationError struct {
	Message string
	Err     error
}

func (e *OperationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *OperationError) Unwrap() error { return e.Err }
