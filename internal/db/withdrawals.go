package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/coinclicker/internal/reward"
)

const withdrawalColumns = `id, account_id, amount::text, status, created_at, processed_at, COALESCE(processed_by, '')`

// WithdrawalRepository implements reward.WithdrawalQueue on the
// withdrawals table.
type WithdrawalRepository struct {
	pool *pgxpool.Pool
}

func NewWithdrawalRepository(pool *pgxpool.Pool) *WithdrawalRepository {
	return &WithdrawalRepository{pool: pool}
}

func scanWithdrawal(row pgx.Row) (reward.WithdrawalRequest, error) {
	var (
		w              reward.WithdrawalRequest
		amount, status string
	)
	if err := row.Scan(&w.ID, &w.AccountID, &amount, &status, &w.CreatedAt, &w.ProcessedAt, &w.ProcessedBy); err != nil {
		return reward.WithdrawalRequest{}, err
	}
	var err error
	if w.Amount, err = decimal.NewFromString(amount); err != nil {
		return reward.WithdrawalRequest{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if w.Status, err = reward.ParseWithdrawalStatus(status); err != nil {
		return reward.WithdrawalRequest{}, err
	}
	return w, nil
}

func (r *WithdrawalRepository) Enqueue(ctx context.Context, w reward.WithdrawalRequest) error {
	if err := w.Validate(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `
        INSERT INTO withdrawals (id, account_id, amount, status, created_at)
        VALUES ($1, $2, $3::numeric, $4, $5)`,
		w.ID, w.AccountID, w.Amount.String(), string(w.Status), w.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("withdrawal %s: %w", w.ID, reward.ErrAlreadyExists)
		}
		return reward.Persistence("insert withdrawal", err)
	}
	return nil
}

func (r *WithdrawalRepository) Get(ctx context.Context, id string) (reward.WithdrawalRequest, error) {
	w, err := scanWithdrawal(r.pool.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id))
	if err != nil {
		return reward.WithdrawalRequest{}, notFound("select withdrawal", "withdrawal "+id, err)
	}
	return w, nil
}

// ListPending returns pending requests, newest first.
func (r *WithdrawalRepository) ListPending(ctx context.Context) ([]reward.WithdrawalRequest, error) {
	return r.list(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE status = 'pending' ORDER BY created_at DESC`)
}

// ListByAccount returns every request of one account, newest first.
func (r *WithdrawalRepository) ListByAccount(ctx context.Context, accountID string) ([]reward.WithdrawalRequest, error) {
	return r.list(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
}

func (r *WithdrawalRepository) list(ctx context.Context, query string, args ...any) ([]reward.WithdrawalRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, reward.Persistence("select withdrawals", err)
	}
	defer rows.Close()

	var out []reward.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, reward.Persistence("scan withdrawal", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, reward.Persistence("iterate withdrawals", err)
	}
	return out, nil
}

func (r *WithdrawalRepository) SetStatus(ctx context.Context, id string, status reward.WithdrawalStatus, processedBy string, processedAt time.Time) (reward.WithdrawalRequest, error) {
	w, err := scanWithdrawal(r.pool.QueryRow(ctx, `
        UPDATE withdrawals
        SET status = $2, processed_by = $3, processed_at = $4
        WHERE id = $1 AND status = 'pending'
        RETURNING `+withdrawalColumns,
		id, string(status), processedBy, processedAt,
	))
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return reward.WithdrawalRequest{}, reward.Persistence("update withdrawal", err)
	}

	// nothing updated: either unknown or already resolved
	existing, getErr := r.Get(ctx, id)
	if getErr != nil {
		return reward.WithdrawalRequest{}, getErr
	}
	return reward.WithdrawalRequest{}, fmt.Errorf("withdrawal %s is %s: %w", id, existing.Status, reward.ErrAlreadyResolved)
}
