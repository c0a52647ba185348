package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/peny/internal/client/client"
)

// getSimpleText, getOptionalText and getPassword are indirections used to
// facilitate testing.
var getSimpleText = GetSimpleText
var getOptionalText = GetOptionalText
var getPassword = GetPassword

// readRegistration prompts for the fields shared by register and adduser.
func (a *App) readRegistration(withRole bool) (client.RegisterRequest, error) {
	var in client.RegisterRequest
	var err error

	if in.Name, err = getSimpleText(a.reader, "Enter name", a.out); err != nil {
		return in, err
	}
	if in.Email, err = getSimpleText(a.reader, "Enter email", a.out); err != nil {
		return in, err
	}
	if in.Password, err = getPassword(a.out); err != nil {
		return in, err
	}
	if withRole {
		role, err := getOptionalText(a.reader, "Enter role (ADMIN or SECRETARY)", a.out)
		if err != nil {
			return in, err
		}
		in.Role = strings.ToUpper(role)
	}
	return in, nil
}

// Register creates an account and starts a session for it.
func (a *App) Register(ctx context.Context) error {
	in, err := a.readRegistration(false)
	if err != nil {
		return err
	}

	u, err := a.api.Register(ctx, in)
	if err != nil {
		return a.report(err)
	}

	a.email = u.Email
	fmt.Fprintf(a.out, "Registered and logged in as %s\n", u.Email)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}

	u, err := a.api.Login(ctx, email, password)
	if err != nil {
		return a.report(err)
	}

	a.email = u.Email
	fmt.Fprintf(a.out, "Logged in as %s (%s)\n", u.Name, u.Role)
	return nil
}

// Logout always forgets the local session, even if the server call failed.
func (a *App) Logout(ctx context.Context) error {
	msg, err := a.api.Logout(ctx)
	a.email = ""
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if err := a.api.Refresh(ctx); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Session refreshed")
	return nil
}

func (a *App) Me(ctx context.Context) error {
	u, err := a.api.Me(ctx)
	if err != nil {
		return a.report(err)
	}
	printUser(a.out, u)
	return nil
}
