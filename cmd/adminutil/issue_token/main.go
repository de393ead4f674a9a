package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/sudo-init-do/coinclicker/internal/auth"
	"github.com/sudo-init-do/coinclicker/internal/config"
)

// issue_token prints a bearer token signed with JWT_SECRET, for local
// testing without the identity provider.
// Usage:
//
//	go run ./cmd/adminutil/issue_token -account <id> [-role admin] [-ttl 72h]
func main() {
	account := flag.String("account", "", "Account ID to put in the token")
	role := flag.String("role", "", "Optional role claim")
	ttl := flag.Duration("ttl", 72*time.Hour, "Token lifetime")
	flag.Parse()

	if *account == "" {
		log.Fatalf("usage: go run ./cmd/adminutil/issue_token -account <id>")
	}

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatalf("JWT_SECRET must be set")
	}

	token, err := auth.IssueToken([]byte(cfg.JWTSecret), *account, *role, *ttl)
	if err != nil {
		log.Fatalf("token generation failed: %v", err)
	}
	fmt.Println(token)
}
