package badgerdb

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/rafflepool/rafflepool/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

const outcomeStoreDir = "outcomes"

type outcomeRepository struct {
	store *badgerhold.Store
}

func NewOutcomeRepository(config ...interface{}) (domain.OutcomeRepository, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, outcomeStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open outcome store: %s", err)
	}

	return &outcomeRepository{store}, nil
}

func (r *outcomeRepository) AddOutcome(
	ctx context.Context, outcome domain.Outcome,
) error {
	if err := r.store.Upsert(outcome.RoundId, outcome); err != nil {
		return fmt.Errorf("failed to upsert outcome for round %s: %s", outcome.RoundId, err)
	}
	return nil
}

func (r *outcomeRepository) GetLatestOutcome(
	ctx context.Context,
) (*domain.Outcome, error) {
	query := badgerhold.Where("Timestamp").Gt(int64(0)).
		SortBy("Timestamp").Reverse().Limit(1)

	var outcomes []domain.Outcome
	if err := r.store.Find(&outcomes, query); err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %s", err)
	}
	if len(outcomes) <= 0 {
		return nil, nil
	}
	outcome := &outcomes[0]
	return outcome, nil
}

func (r *outcomeRepository) Close() {
	// nolint
	r.store.Close()
}
