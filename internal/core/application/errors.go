package application

import "errors"

// ErrUnknownRequest rejects a fulfillment whose request id has no pending
// correlation, including a second delivery of an already consumed one.
var ErrUnknownRequest = errors.New("unknown randomness request")
