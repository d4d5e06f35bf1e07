package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"voice-auth-ivr/internal/auth"
	"voice-auth-ivr/internal/config"
	"voice-auth-ivr/internal/rbac"
)

// runToken prints a signed access token, for provisioning media gateways and
// operators:
//
//	ivr token -subject gw-eu-1 -role gateway
func runToken(args []string) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "", "token subject")
	role := fs.String("role", rbac.RoleGateway, "gateway, operator or admin")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if !rbac.IsKnownRole(*role) {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		return 1
	}
	m, err := auth.NewManager(cfg.Auth)
	if err != nil {
		slog.Error("auth init failed", "err", err)
		return 1
	}
	tok, err := m.Issue(time.Now(), *subject, *role)
	if err != nil {
		slog.Error("token issue failed", "err", err)
		return 1
	}
	fmt.Println(tok)
	return 0
}
