package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vendordesk/internal/domain/account"
	"vendordesk/internal/domain/errs"
)

// SeedAccountStore defines the account store operations used by seeding.
type SeedAccountStore interface {
	Save(ctx context.Context, a account.Account) error
	GetByEmail(ctx context.Context, email string) (account.Account, error)
}

// SeedDeps holds dependencies for account seeding.
type SeedDeps struct {
	AccountStore SeedAccountStore
	GenerateID   func() string
	Now          func() time.Time
}

// SeedAdminInput carries the admin directory entry to ensure.
type SeedAdminInput struct {
	Email string
	Name  string
}

// ExecuteSeedAdmin creates the admin directory account if it does not exist.
// It is idempotent: an existing account with the same email is left unchanged.
// PRE: Database is migrated
// POST: An admin account with Email exists; returns it and whether it was created
func ExecuteSeedAdmin(ctx context.Context, input SeedAdminInput, deps SeedDeps) (account.Account, bool, error) {
	existing, err := deps.AccountStore.GetByEmail(ctx, input.Email)
	if err == nil {
		if !existing.IsAdmin() {
			return account.Account{}, false, fmt.Errorf("seed admin: %s exists with role %s", input.Email, existing.Role)
		}
		return existing, false, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return account.Account{}, false, fmt.Errorf("seed admin: %w", err)
	}

	name := input.Name
	if name == "" {
		name = "Administrator"
	}
	a := account.Account{
		ID:        deps.GenerateID(),
		Email:     input.Email,
		Name:      name,
		Role:      account.RoleAdmin,
		CreatedAt: deps.Now(),
	}
	if err := a.Validate(); err != nil {
		return account.Account{}, false, fmt.Errorf("seed admin: %w", err)
	}
	if err := deps.AccountStore.Save(ctx, a); err != nil {
		return account.Account{}, false, fmt.Errorf("seed admin: save: %w", err)
	}
	slog.Info("seed_event", "event", "admin_account_created", "email", a.Email, "account_id", a.ID)
	return a, true, nil
}

// demoClients returns the client accounts seeded in development.
func demoClients() []account.Account {
	return []account.Account{
		{Email: "dana@acme.test", Name: "Dana Whitfield", Company: "Acme Supplies"},
		{Email: "lee@northwind.test", Name: "Lee Parata", Company: "Northwind Freight"},
		{Email: "sam@harbour.test", Name: "Sam Okafor", Company: "Harbour Print Co"},
	}
}

// ExecuteSeedDemoClients creates demo client accounts that do not already exist.
// PRE: Database is migrated
// POST: Every demo client exists; returns how many were created
func ExecuteSeedDemoClients(ctx context.Context, deps SeedDeps) (int, error) {
	created := 0
	for _, def := range demoClients() {
		_, err := deps.AccountStore.GetByEmail(ctx, def.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, errs.ErrNotFound) {
			return created, fmt.Errorf("seed demo client %s: %w", def.Email, err)
		}
		def.ID = deps.GenerateID()
		def.Role = account.RoleClient
		def.CreatedAt = deps.Now()
		if err := deps.AccountStore.Save(ctx, def); err != nil {
			return created, fmt.Errorf("seed demo client %s: save: %w", def.Email, err)
		}
		created++
		slog.Info("seed_event", "event", "demo_client_created", "email", def.Email, "account_id", def.ID)
	}
	if created > 0 {
		slog.Info("seed_event", "event", "demo_clients_seeded", "created", created)
	}
	return created, nil
}
