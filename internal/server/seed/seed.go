// Package seed creates the default administrator and secretary accounts.
// Running it again leaves existing accounts untouched.
package seed

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dmitrijs2005/peny/internal/flagx"
	"github.com/dmitrijs2005/peny/internal/logging"
	"github.com/dmitrijs2005/peny/internal/server/models"
	"github.com/dmitrijs2005/peny/internal/server/services"
)

const (
	AdminEmail     = "admin@penitentiary.com"
	SecretaryEmail = "secretary@penitentiary.com"

	AdminPasswordEnv     = "SEED_ADMIN_PASSWORD"
	SecretaryPasswordEnv = "SEED_SECRETARY_PASSWORD"
)

type Passwords struct {
	Admin     string
	Secretary string
}

// LoadPasswords reads development defaults, then the environment, then
// -admin-password and -secretary-password.
func LoadPasswords(args []string) (Passwords, error) {
	p := Passwords{Admin: "admin123456", Secretary: "secretary123456"}
	if v := os.Getenv(AdminPasswordEnv); v != "" {
		p.Admin = v
	}
	if v := os.Getenv(SecretaryPasswordEnv); v != "" {
		p.Secretary = v
	}

	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.StringVar(&p.Admin, "admin-password", p.Admin, "password for "+AdminEmail)
	fs.StringVar(&p.Secretary, "secretary-password", p.Secretary, "password for "+SecretaryEmail)
	if err := fs.Parse(flagx.FilterArgs(args, []string{"-admin-password", "-secretary-password"})); err != nil {
		return p, err
	}
	return p, nil
}

func Accounts(p Passwords) []services.CreateAccountInput {
	return []services.CreateAccountInput{
		{Name: "System Administrator", Email: AdminEmail, Password: p.Admin, Role: models.RoleAdmin},
		{Name: "Secretary User", Email: SecretaryEmail, Password: p.Secretary, Role: models.RoleSecretary},
	}
}

type Ensurer interface {
	EnsureAccount(ctx context.Context, in services.CreateAccountInput) (bool, error)
}

// Run ensures every account exists and returns how many were created.
func Run(ctx context.Context, e Ensurer, accounts []services.CreateAccountInput, log logging.Logger) (int, error) {
	created := 0
	for _, a := range accounts {
		ok, err := e.EnsureAccount(ctx, a)
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", a.Email, err)
		}
		if ok {
			created++
			log.Info(ctx, "account created", "email", a.Email, "role", a.Role)
		} else {
			log.Info(ctx, "account already exists", "email", a.Email)
		}
	}
	return created, nil
}
