package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) error
	Me(ctx context.Context) error
	ListUsers(ctx context.Context, args []string) error
	ShowUser(ctx context.Context, args []string) error
	AddUser(ctx context.Context) error
	DeleteUser(ctx context.Context, args []string) error
	UploadPhoto(ctx context.Context, args []string) error
}

// runREPL reads commands line by line from r and dispatches them to a.
// It returns on EOF, on ctx cancellation and on "exit" or "quit".
// Handlers report their own errors, so they are ignored here.
func runREPL(ctx context.Context, a execIface, statusFn func() string, r *bufio.Reader, w io.Writer) {
	for ctx.Err() == nil {
		fmt.Fprintf(w, "peny %s> ", statusFn())
		line, err := r.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(w, "Available commands: me, users [page] [search], show <id>, adduser, delete <id>, photo <path>, refresh, logout, exit")
			} else {
				fmt.Fprintln(w, "Available commands: register, login, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "refresh":
			_ = a.Refresh(ctx)

		case "me":
			_ = a.Me(ctx)

		case "users", "ls":
			_ = a.ListUsers(ctx, args)

		case "show":
			_ = a.ShowUser(ctx, args)

		case "adduser":
			_ = a.AddUser(ctx)

		case "delete":
			_ = a.DeleteUser(ctx, args)

		case "photo":
			_ = a.UploadPhoto(ctx, args)

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return

		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}

		if err != nil {
			return
		}
	}
}
