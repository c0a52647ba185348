package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/peny/internal/client/client"
	"github.com/dmitrijs2005/peny/internal/client/config"
	"github.com/dmitrijs2005/peny/internal/client/session"
	"github.com/dmitrijs2005/peny/internal/common"
)

// API is the part of client.HTTPClient the commands use.
type API interface {
	Register(ctx context.Context, in client.RegisterRequest) (*client.User, error)
	Login(ctx context.Context, email, password string) (*client.User, error)
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) (string, error)
	Me(ctx context.Context) (*client.User, error)
	ListUsers(ctx context.Context, opts client.ListOptions) (*client.UserPage, error)
	GetUser(ctx context.Context, id string) (*client.User, error)
	CreateUser(ctx context.Context, in client.RegisterRequest) (*client.User, error)
	DeleteUser(ctx context.Context, id string) (string, error)
	UploadPhoto(ctx context.Context, data []byte, contentType string) (*client.User, error)
}

type App struct {
	api    API
	reader *bufio.Reader
	out    io.Writer

	// email of the logged in user, shown in the prompt.
	email string
}

func NewApp(c *config.Config) (*App, error) {
	store := session.NewFileStore(c.SessionFile)
	tokens, err := store.Load()
	if err != nil {
		return nil, err
	}

	a := newApp(client.New(c.ServerURL, store, c.Timeout), bufio.NewReader(os.Stdin), os.Stdout)
	if !tokens.Empty() {
		a.email = tokens.Email
		if a.email == "" {
			a.email = "?"
		}
	}
	return a, nil
}

func newApp(api API, r *bufio.Reader, w io.Writer) *App {
	return &App{api: api, reader: r, out: w}
}

func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to Peny CLI (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader, a.out)
}

func (a *App) isLoggedIn() bool {
	return a.email != ""
}

func (a *App) status() string {
	if a.email == "" {
		return ""
	}
	return "(" + a.email + ")"
}

// report prints err in user terms. A session that expired on the server is
// also forgotten locally.
func (a *App) report(err error) error {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrSessionExpired), errors.Is(err, client.ErrNotLoggedIn):
		a.email = ""
		fmt.Fprintln(a.out, err)
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintln(a.out, "Server unavailable, try again later")
	case errors.Is(err, common.ErrorUnauthorized):
		fmt.Fprintln(a.out, "Unauthorized")
	case errors.As(err, &apiErr):
		fmt.Fprintln(a.out, "Error:", apiErr.Message)
	default:
		fmt.Fprintln(a.out, "Error:", err)
	}
	return err
}
