package domain

import "context"

type RoundEventRepository interface {
	Save(ctx context.Context, id string, events ...RoundEvent) (*Round, error)
	Load(ctx context.Context, id string) (*Round, error)
	Close()
}

type RoundRepository interface {
	AddOrUpdateRound(ctx context.Context, round Round) error
	GetRoundWithId(ctx context.Context, id string) (*Round, error)
	// GetLatestRound returns the most recently opened round, or nil if the
	// store is empty.
	GetLatestRound(ctx context.Context) (*Round, error)
	GetRoundsIds(ctx context.Context, openedAfter, openedBefore int64) ([]string, error)
	Close()
}

type OutcomeRepository interface {
	AddOutcome(ctx context.Context, outcome Outcome) error
	// GetLatestOutcome returns the last recorded winner, or nil if no round
	// has concluded yet.
	GetLatestOutcome(ctx context.Context) (*Outcome, error)
	Close()
}
