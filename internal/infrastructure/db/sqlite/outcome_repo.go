package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/rafflepool/rafflepool/internal/core/domain"
)

type outcomeRepository struct {
	db *sql.DB
}

func NewOutcomeRepository(config ...interface{}) (domain.OutcomeRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open outcome repository: invalid config, expected db at 0")
	}

	return &outcomeRepository{db}, nil
}

func (r *outcomeRepository) AddOutcome(
	ctx context.Context, outcome domain.Outcome,
) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO outcome (round_id, winner, prize, random_value, request_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(round_id) DO NOTHING`,
		outcome.RoundId, outcome.Winner, int64(outcome.Prize),
		strconv.FormatUint(outcome.RandomValue, 10), outcome.RequestId,
		outcome.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}
	return nil
}

func (r *outcomeRepository) GetLatestOutcome(
	ctx context.Context,
) (*domain.Outcome, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT round_id, winner, prize, random_value, request_id, timestamp
		FROM outcome ORDER BY timestamp DESC LIMIT 1`,
	)

	var (
		outcome     domain.Outcome
		prize       int64
		randomValue string
	)
	if err := row.Scan(
		&outcome.RoundId, &outcome.Winner, &prize, &randomValue,
		&outcome.RequestId, &outcome.Timestamp,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	outcome.Prize = uint64(prize)
	value, err := strconv.ParseUint(randomValue, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse random value: %w", err)
	}
	outcome.RandomValue = value

	return &outcome, nil
}

func (r *outcomeRepository) Close() {
	// nolint
	r.db.Close()
}
