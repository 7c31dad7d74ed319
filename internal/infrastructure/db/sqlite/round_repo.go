package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/rafflepool/rafflepool/internal/core/domain"
)

type roundRepository struct {
	db *sql.DB
}

func NewRoundRepository(config ...interface{}) (domain.RoundRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open round repository: invalid config, expected db at 0")
	}

	return &roundRepository{db}, nil
}

func (r *roundRepository) AddOrUpdateRound(
	ctx context.Context, round domain.Round,
) error {
	return execTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO round (
				id, stake, opened_at, concluded_at, pool_amount, request_id,
				random_value, winner, prize, stage_code, ended
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				concluded_at = excluded.concluded_at,
				pool_amount = excluded.pool_amount,
				request_id = excluded.request_id,
				random_value = excluded.random_value,
				winner = excluded.winner,
				prize = excluded.prize,
				stage_code = excluded.stage_code,
				ended = excluded.ended`,
			round.Id, int64(round.Stake), round.OpenedAt, round.ConcludedAt,
			int64(round.PoolAmount), round.RequestId,
			strconv.FormatUint(round.RandomValue, 10), round.Winner,
			int64(round.Prize), int(round.Stage.Code), round.Stage.Ended,
		); err != nil {
			return err
		}

		if _, err := tx.ExecContext(
			ctx, "DELETE FROM round_entry WHERE round_id = ?", round.Id,
		); err != nil {
			return err
		}

		for i, entry := range round.Entries {
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO round_entry (round_id, position, participant, amount)
				VALUES (?, ?, ?, ?)`,
				round.Id, i, entry.Participant, int64(entry.Amount),
			); err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *roundRepository) GetRoundWithId(
	ctx context.Context, id string,
) (*domain.Round, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, stake, opened_at, concluded_at, pool_amount, request_id,
			random_value, winner, prize, stage_code, ended
		FROM round WHERE id = ?`,
		id,
	)
	round, err := r.scanRound(ctx, row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("round with id %s not found", id)
		}
		return nil, err
	}
	return round, nil
}

func (r *roundRepository) GetLatestRound(
	ctx context.Context,
) (*domain.Round, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, stake, opened_at, concluded_at, pool_amount, request_id,
			random_value, winner, prize, stage_code, ended
		FROM round ORDER BY opened_at DESC LIMIT 1`,
	)
	round, err := r.scanRound(ctx, row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return round, nil
}

func (r *roundRepository) GetRoundsIds(
	ctx context.Context, openedAfter, openedBefore int64,
) ([]string, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id FROM round
		WHERE opened_at >= ? AND (? <= 0 OR opened_at <= ?)
		ORDER BY opened_at ASC`,
		openedAfter, openedBefore, openedBefore,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	// nolint
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *roundRepository) Close() {
	// nolint
	r.db.Close()
}

func (r *roundRepository) scanRound(
	ctx context.Context, row *sql.Row,
) (*domain.Round, error) {
	var (
		round                    domain.Round
		stake, poolAmount, prize int64
		randomValue              string
		stageCode                int
	)
	if err := row.Scan(
		&round.Id, &stake, &round.OpenedAt, &round.ConcludedAt, &poolAmount,
		&round.RequestId, &randomValue, &round.Winner, &prize, &stageCode,
		&round.Stage.Ended,
	); err != nil {
		return nil, err
	}

	round.Stake = uint64(stake)
	round.PoolAmount = uint64(poolAmount)
	round.Prize = uint64(prize)
	round.Stage.Code = domain.RoundStage(stageCode)

	value, err := strconv.ParseUint(randomValue, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse random value: %w", err)
	}
	round.RandomValue = value

	entries, err := r.getEntries(ctx, round.Id)
	if err != nil {
		return nil, err
	}
	round.Entries = entries

	return &round, nil
}

func (r *roundRepository) getEntries(
	ctx context.Context, roundId string,
) ([]domain.Entry, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT participant, amount FROM round_entry
		WHERE round_id = ? ORDER BY position ASC`,
		roundId,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query round entries: %w", err)
	}
	// nolint
	defer rows.Close()

	entries := make([]domain.Entry, 0)
	for rows.Next() {
		var (
			participant string
			amount      int64
		)
		if err := rows.Scan(&participant, &amount); err != nil {
			return nil, err
		}
		entries = append(entries, domain.Entry{
			Participant: participant,
			Amount:      uint64(amount),
		})
	}
	return entries, rows.Err()
}
