// Package db holds the Postgres repositories behind the reward store
// interfaces.
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

	"github.com/sudo-init-do/coinclicker/internal/admin"
	"github.com/sudo-init-do/coinclicker/internal/reward"
)

const uniqueViolation = "23505"

const profileColumns = `id, balance::text, total_clicks, referral_code, COALESCE(referred_by, ''), version, created_at, updated_at`

// AccountRepository implements reward.AccountStore and reward.EarningStore
// on the profiles and referral_earnings tables.
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func scanAccount(row pgx.Row) (reward.Account, error) {
	var (
		a       reward.Account
		balance string
	)
	if err := row.Scan(&a.ID, &balance, &a.TotalClicks, &a.ReferralCode, &a.ReferredBy, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return reward.Account{}, err
	}
	b, err := decimal.NewFromString(balance)
	if err != nil {
		return reward.Account{}, fmt.Errorf("parse balance %q: %w", balance, err)
	}
	a.Balance = b
	return a, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// notFound maps pgx.ErrNoRows and passes everything else through
// reward.Persistence.
func notFound(op, what string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, reward.ErrNotFound)
	}
	return reward.Persistence(op, err)
}

func (r *AccountRepository) Create(ctx context.Context, a reward.Account) (reward.Account, error) {
	if err := a.Validate(); err != nil {
		return reward.Account{}, err
	}
	row := r.pool.QueryRow(ctx, `
        INSERT INTO profiles (id, balance, total_clicks, referral_code, referred_by, version)
        VALUES ($1, $2::numeric, $3, $4, $5, 1)
        RETURNING `+profileColumns,
		a.ID, a.Balance.String(), a.TotalClicks, a.ReferralCode, nullable(a.ReferredBy),
	)
	created, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return reward.Account{}, fmt.Errorf("account %s: %w", a.ID, reward.ErrAlreadyExists)
		}
		return reward.Account{}, reward.Persistence("insert profile", err)
	}
	return created, nil
}

func (r *AccountRepository) Get(ctx context.Context, id string) (reward.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		return reward.Account{}, notFound("select profile", "account "+id, err)
	}
	return a, nil
}

func (r *AccountRepository) LookupByReferralCode(ctx context.Context, code string) (reward.Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE referral_code = $1`, code))
	if err != nil {
		return reward.Account{}, notFound("select profile by code", fmt.Sprintf("referral code %q", code), err)
	}
	return a, nil
}

func (r *AccountRepository) Update(ctx context.Context, id string, m reward.Mutation, expectedVersion int64) (reward.Account, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return reward.Account{}, reward.Persistence("begin", err)
	}
	defer tx.Rollback(ctx)

	updated, err := applyLocked(ctx, tx, id, m, expectedVersion)
	if err != nil {
		return reward.Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return reward.Account{}, reward.Persistence("commit profile update", err)
	}
	return updated, nil
}

// applyLocked locks the row, compares versions, runs m and writes the
// result inside tx.
func applyLocked(ctx context.Context, tx pgx.Tx, id string, m reward.Mutation, expectedVersion int64) (reward.Account, error) {
	current, err := scanAccount(tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return reward.Account{}, notFound("lock profile", "account "+id, err)
	}
	if current.Version != expectedVersion {
		return reward.Account{}, fmt.Errorf("account %s at version %d, expected %d: %w",
			id, current.Version, expectedVersion, reward.ErrVersionConflict)
	}

	next := current
	if err := m(&next); err != nil {
		return reward.Account{}, err
	}
	if err := reward.CheckTransition(current, next); err != nil {
		return reward.Account{}, err
	}

	updated, err := scanAccount(tx.QueryRow(ctx, `
        UPDATE profiles
        SET balance = $2::numeric, total_clicks = $3, version = version + 1, updated_at = NOW()
        WHERE id = $1
        RETURNING `+profileColumns,
		id, next.Balance.String(), next.TotalClicks,
	))
	if err != nil {
		return reward.Account{}, reward.Persistence("update profile", err)
	}
	return updated, nil
}

func (r *AccountRepository) Credit(ctx context.Context, referrerID string, expectedVersion int64, e reward.ReferralEarning) (reward.Account, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return reward.Account{}, reward.Persistence("begin", err)
	}
	defer tx.Rollback(ctx)

	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	tag, err := tx.Exec(ctx, `
        INSERT INTO referral_earnings (id, referrer_id, referred_id, click_id, amount, created_at)
        VALUES ($1, $2, $3, $4, $5::numeric, $6)
        ON CONFLICT (click_id) DO NOTHING`,
		e.ID, referrerID, e.ReferredID, e.ClickID, e.Amount.String(), created,
	)
	if err != nil {
		return reward.Account{}, reward.Persistence("insert earning", err)
	}
	if tag.RowsAffected() == 0 {
		return reward.Account{}, fmt.Errorf("click %s: %w", e.ClickID, reward.ErrDuplicateEarning)
	}

	credit := func(a *reward.Account) error {
		a.Balance = a.Balance.Add(e.Amount)
		return nil
	}
	updated, err := applyLocked(ctx, tx, referrerID, credit, expectedVersion)
	if err != nil {
		return reward.Account{}, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM pending_commissions WHERE click_id = $1`, e.ClickID); err != nil {
		return reward.Account{}, reward.Persistence("settle owed commission", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return reward.Account{}, reward.Persistence("commit credit", err)
	}
	return updated, nil
}

// UpdateOwing implements reward.CommissionOutbox. The owed row shares the
// profile update's transaction.
func (r *AccountRepository) UpdateOwing(ctx context.Context, id string, m reward.Mutation, expectedVersion int64, owed reward.OwedCommission) (reward.Account, error) {
	if owed.ClickID == "" {
		return reward.Account{}, fmt.Errorf("%w: owed commission needs a click id", reward.ErrInvalidAccount)
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return reward.Account{}, reward.Persistence("begin", err)
	}
	defer tx.Rollback(ctx)

	updated, err := applyLocked(ctx, tx, id, m, expectedVersion)
	if err != nil {
		return reward.Account{}, err
	}
	_, err = tx.Exec(ctx, `
        INSERT INTO pending_commissions (click_id, account_id, clicked_at)
        VALUES ($1, $2, $3)`,
		owed.ClickID, id, updated.UpdatedAt,
	)
	if err != nil {
		return reward.Account{}, reward.Persistence("insert owed commission", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return reward.Account{}, reward.Persistence("commit profile update", err)
	}
	return updated, nil
}

func (r *AccountRepository) ListOwed(ctx context.Context, cutoff time.Time, limit int) ([]reward.OwedCommission, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.pool.Query(ctx, `
        SELECT click_id, account_id, clicked_at
        FROM pending_commissions
        WHERE clicked_at <= $1
        ORDER BY clicked_at
        LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, reward.Persistence("select owed commissions", err)
	}
	defer rows.Close()

	var out []reward.OwedCommission
	for rows.Next() {
		var o reward.OwedCommission
		if err := rows.Scan(&o.ClickID, &o.AccountID, &o.ClickedAt); err != nil {
			return nil, reward.Persistence("scan owed commission", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, reward.Persistence("iterate owed commissions", err)
	}
	return out, nil
}

func (r *AccountRepository) Settle(ctx context.Context, clickID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM pending_commissions WHERE click_id = $1`, clickID)
	return reward.Persistence("settle owed commission", err)
}

// ListEarnings returns the referrer's earnings, newest first.
func (r *AccountRepository) ListEarnings(ctx context.Context, referrerID string) ([]reward.ReferralEarning, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, referrer_id, referred_id, click_id, amount::text, created_at
        FROM referral_earnings
        WHERE referrer_id = $1
        ORDER BY created_at DESC`, referrerID)
	if err != nil {
		return nil, reward.Persistence("select earnings", err)
	}
	defer rows.Close()

	var out []reward.ReferralEarning
	for rows.Next() {
		var (
			e      reward.ReferralEarning
			amount string
		)
		if err := rows.Scan(&e.ID, &e.ReferrerID, &e.ReferredID, &e.ClickID, &amount, &e.CreatedAt); err != nil {
			return nil, reward.Persistence("scan earning", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, reward.Persistence("parse earning amount", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, reward.Persistence("iterate earnings", err)
	}
	return out, nil
}

// List returns all accounts, newest first.
func (r *AccountRepository) List(ctx context.Context) ([]reward.Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at DESC`)
	if err != nil {
		return nil, reward.Persistence("select profiles", err)
	}
	defer rows.Close()

	var out []reward.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, reward.Persistence("scan profile", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, reward.Persistence("iterate profiles", err)
	}
	return out, nil
}

// Stats summarises the account table for the admin dashboard.
func (r *AccountRepository) Stats(ctx context.Context) (admin.Stats, error) {
	var (
		st                admin.Stats
		balance, earnings string
	)
	err := r.pool.QueryRow(ctx, `
        SELECT
            (SELECT COUNT(*) FROM profiles),
            (SELECT COUNT(*) FROM profiles WHERE referred_by IS NOT NULL),
            (SELECT COALESCE(SUM(total_clicks), 0) FROM profiles),
            (SELECT COALESCE(SUM(balance), 0)::text FROM profiles),
            (SELECT COALESCE(SUM(amount), 0)::text FROM referral_earnings)`,
	).Scan(&st.Accounts, &st.ReferredAccounts, &st.TotalClicks, &balance, &earnings)
	if err != nil {
		return admin.Stats{}, reward.Persistence("select stats", err)
	}
	if st.TotalBalance, err = decimal.NewFromString(balance); err != nil {
		return admin.Stats{}, reward.Persistence("parse total balance", err)
	}
	if st.TotalCommission, err = decimal.NewFromString(earnings); err != nil {
		return admin.Stats{}, reward.Persistence("parse total commission", err)
	}
	return st, nil
}

func (r *AccountRepository) HasRole(ctx context.Context, accountID, role string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_roles WHERE account_id = $1 AND role = $2)`,
		accountID, role,
	).Scan(&ok)
	if err != nil {
		return false, reward.Persistence("select role", err)
	}
	return ok, nil
}

func (r *AccountRepository) GrantRole(ctx context.Context, accountID, role string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (account_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		accountID, role,
	)
	return reward.Persistence("insert role", err)
}
