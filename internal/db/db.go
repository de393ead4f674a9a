package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pool against dsn and checks it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
        id TEXT PRIMARY KEY,
        balance NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
        total_clicks BIGINT NOT NULL DEFAULT 0 CHECK (total_clicks >= 0),
        referral_code TEXT NOT NULL UNIQUE,
        referred_by TEXT NULL,
        version BIGINT NOT NULL DEFAULT 1,
        created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`,
	`CREATE INDEX IF NOT EXISTS idx_profiles_referred_by ON profiles(referred_by)`,
	`CREATE TABLE IF NOT EXISTS withdrawals (
        id TEXT PRIMARY KEY,
        account_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
        amount NUMERIC(20,2) NOT NULL CHECK (amount > 0),
        status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','completed','rejected')),
        created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
        processed_at TIMESTAMP WITH TIME ZONE NULL,
        processed_by TEXT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_withdrawals_status_created ON withdrawals(status, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_withdrawals_account ON withdrawals(account_id)`,
	`CREATE TABLE IF NOT EXISTS referral_earnings (
        id TEXT PRIMARY KEY,
        referrer_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
        referred_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
        click_id TEXT NOT NULL UNIQUE,
        amount NUMERIC(20,2) NOT NULL,
        created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`,
	`CREATE INDEX IF NOT EXISTS idx_referral_earnings_referrer ON referral_earnings(referrer_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS pending_commissions (
        click_id TEXT PRIMARY KEY,
        account_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
        clicked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`,
	`CREATE INDEX IF NOT EXISTS idx_pending_commissions_clicked ON pending_commissions(clicked_at)`,
	`CREATE TABLE IF NOT EXISTS user_roles (
        account_id TEXT NOT NULL,
        role TEXT NOT NULL,
        granted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (account_id, role)
    )`,
}

// EnsureSchema creates the tables the repositories need if they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
