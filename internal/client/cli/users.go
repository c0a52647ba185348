package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/peny/internal/client/client"
)

// maxPhotoSize bounds what photo reads from disk.
const maxPhotoSize = 10 << 20

func printUser(w io.Writer, u *client.User) {
	photo := "-"
	if u.PhotoURL != nil {
		photo = *u.PhotoURL
	}
	fmt.Fprintf(w, "ID:    %s\nName:  %s\nEmail: %s\nRole:  %s\nPhoto: %s\n", u.ID, u.Name, u.Email, u.Role, photo)
	if u.CreatedAt != nil {
		fmt.Fprintf(w, "Since: %s\n", u.CreatedAt.Format("2006-01-02 15:04"))
	}
}

// ListUsers takes an optional page number followed by an optional search
// string.
func (a *App) ListUsers(ctx context.Context, args []string) error {
	opts := client.ListOptions{}
	if len(args) > 0 {
		if p, err := strconv.Atoi(args[0]); err == nil {
			opts.Page = p
			args = args[1:]
		}
	}
	if len(args) > 0 {
		opts.Search = strings.Join(args, " ")
	}

	page, err := a.api.ListUsers(ctx, opts)
	if err != nil {
		return a.report(err)
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE")
	for _, u := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Page %d of %d, %d total\n", page.Page, page.TotalPages, page.Total)
	return nil
}

func (a *App) ShowUser(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: show <id>")
		return nil
	}
	u, err := a.api.GetUser(ctx, args[0])
	if err != nil {
		return a.report(err)
	}
	printUser(a.out, u)
	return nil
}

func (a *App) AddUser(ctx context.Context) error {
	in, err := a.readRegistration(true)
	if err != nil {
		return err
	}
	u, err := a.api.CreateUser(ctx, in)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Created %s with id %s\n", u.Email, u.ID)
	return nil
}

func (a *App) DeleteUser(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: delete <id>")
		return nil
	}
	msg, err := a.api.DeleteUser(ctx, args[0])
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *App) UploadPhoto(ctx context.Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(a.out, "Usage: photo <path>")
		return nil
	}

	data, err := readPhoto(args[0])
	if err != nil {
		return a.report(err)
	}

	u, err := a.api.UploadPhoto(ctx, data, http.DetectContentType(data))
	if err != nil {
		return a.report(err)
	}
	if u.PhotoURL != nil {
		fmt.Fprintln(a.out, "Photo uploaded:", *u.PhotoURL)
	}
	return nil
}

func readPhoto(path string) ([]byte, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if st.Size() > maxPhotoSize {
		return nil, fmt.Errorf("%s is larger than %d MB", path, maxPhotoSize>>20)
	}
	return os.ReadFile(path)
}
