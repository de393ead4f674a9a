package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/sudo-init-do/coinclicker/internal/auth"
	"github.com/sudo-init-do/coinclicker/internal/config"
	"github.com/sudo-init-do/coinclicker/internal/db"
)

// promote_admin grants the admin role to an existing account.
// Usage:
//
//	go run ./cmd/adminutil/promote_admin -account <id>
func main() {
	account := flag.String("account", "", "ID of the account to promote to admin")
	flag.Parse()

	if *account == "" {
		log.Fatalf("usage: go run ./cmd/adminutil/promote_admin -account <id>")
	}

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatalf("DATABASE_URL or DB_* variables must be set")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("%v", err)
	}

	repo := db.NewAccountRepository(pool)
	if _, err := repo.Get(ctx, *account); err != nil {
		log.Fatalf("no account found with id %s: %v", *account, err)
	}
	if err := repo.GrantRole(ctx, *account, auth.RoleAdmin); err != nil {
		log.Fatalf("failed to promote account to admin: %v", err)
	}

	fmt.Printf("Account %s promoted to admin.\n", *account)
}
