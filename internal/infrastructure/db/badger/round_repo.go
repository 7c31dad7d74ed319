package badgerdb

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/rafflepool/rafflepool/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

const roundStoreDir = "rounds"

type roundRepository struct {
	store *badgerhold.Store
}

func NewRoundRepository(config ...interface{}) (domain.RoundRepository, error) {
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
		dir = filepath.Join(baseDir, roundStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open round store: %s", err)
	}

	return &roundRepository{store}, nil
}

func (r *roundRepository) AddOrUpdateRound(
	ctx context.Context, round domain.Round,
) error {
	if err := r.store.Upsert(round.Id, round); err != nil {
		return fmt.Errorf("failed to upsert round %s: %s", round.Id, err)
	}
	return nil
}

func (r *roundRepository) GetRoundWithId(
	ctx context.Context, id string,
) (*domain.Round, error) {
	query := badgerhold.Where("Id").Eq(id)
	rounds, err := r.findRound(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(rounds) <= 0 {
		return nil, fmt.Errorf("round with id %s not found", id)
	}
	round := &rounds[0]
	return round, nil
}

func (r *roundRepository) GetLatestRound(
	ctx context.Context,
) (*domain.Round, error) {
	query := badgerhold.Where("OpenedAt").Gt(int64(0)).
		SortBy("OpenedAt").Reverse().Limit(1)
	rounds, err := r.findRound(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(rounds) <= 0 {
		return nil, nil
	}
	round := &rounds[0]
	return round, nil
}

func (r *roundRepository) GetRoundsIds(
	ctx context.Context, openedAfter, openedBefore int64,
) ([]string, error) {
	query := badgerhold.Where("OpenedAt").Ge(openedAfter)
	if openedBefore > 0 {
		query = query.And("OpenedAt").Le(openedBefore)
	}
	rounds, err := r.findRound(ctx, query)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rounds))
	for _, round := range rounds {
		ids = append(ids, round.Id)
	}
	return ids, nil
}

func (r *roundRepository) Close() {
	// nolint
	r.store.Close()
}

func (r *roundRepository) findRound(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.Round, error) {
	var rounds []domain.Round
	if err := r.store.Find(&rounds, query); err != nil {
		return nil, fmt.Errorf("failed to query rounds: %s", err)
	}
	return rounds, nil
}
