package ports

import "context"

// RandomnessParams are the fixed parameters of every randomness request,
// supplied at initialization and immutable afterwards.
type RandomnessParams struct {
	// Confirmations is the depth the oracle must wait for before answering.
	Confirmations uint32
	// NumValues is the number of random values requested. The round state
	// machine only ever consumes the first one.
	NumValues uint32
	// ResourceBudget caps the resources the oracle may spend on the
	// fulfillment callback.
	ResourceBudget uint64
	// RequestClass identifies the oracle lane the request is billed against.
	RequestClass string
}

type RandomnessFulfillment struct {
	RequestId string
	Values    []uint64
}

// RandomnessOracle is the boundary to the external unbiased-randomness
// service. Request issues one two-phase request and returns its correlation
// id; the result arrives later, either in-process on the Fulfillments
// channel or relayed by an external actor through the public callback
// endpoint. The oracle fulfills each request exactly once, with no latency
// bound.
type RandomnessOracle interface {
	Request(ctx context.Context, params RandomnessParams) (string, error)
	Fulfillments() <-chan RandomnessFulfillment
	Close()
}
