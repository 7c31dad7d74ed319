package domain

// Outcome is the record of a paid-out round, kept for observability only:
// it never feeds back into a control decision.
type Outcome struct {
	RoundId     string
	Winner      string
	Prize       uint64
	RandomValue uint64
	RequestId   string
	Timestamp   int64
}
