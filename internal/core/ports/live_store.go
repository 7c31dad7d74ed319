package ports

import "github.com/rafflepool/rafflepool/internal/core/domain"

type LiveStore interface {
	CurrentRound() CurrentRoundStore
	PendingRequests() PendingRequestsStore
}

type CurrentRoundStore interface {
	Upsert(fn func(m *domain.Round) *domain.Round)
	Get() *domain.Round
}

// PendingRequestsStore correlates in-flight randomness requests with the
// round they were issued for. The design keeps a map rather than a single
// slot even though only one request can be outstanding at a time.
type PendingRequestsStore interface {
	Add(requestId, roundId string)
	Get(requestId string) (string, bool)
	Delete(requestId string)
	Len() int
}
