package trading

import "fmt"

// RejectedError means the gateway received the request and said no. The
// request is well formed from the transport's point of view; retrying without
// changing it will not help.
type RejectedError struct {
	Op     string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected by gateway: %s", e.Op, e.Reason)
}

// TransportError means the request never completed a round trip, or the
// response could not be understood. Possibly transient.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
