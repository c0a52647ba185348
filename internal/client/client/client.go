// Package client talks to the Peny HTTP API on behalf of the CLI. It keeps
// the token pair in a TokenStore, attaches the access token to protected
// calls and, on a 401, refreshes once and retries the call once.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/peny/internal/client/session"
	"github.com/dmitrijs2005/peny/internal/common"
	"github.com/dmitrijs2005/peny/internal/netx"
)

type TokenStore interface {
	Load() (session.Tokens, error)
	Save(session.Tokens) error
	Clear() error
}

type HTTPClient struct {
	baseURL string
	http    *http.Client
	store   TokenStore

	// refreshMu serializes refreshes so concurrent 401s rotate only once.
	refreshMu sync.Mutex
}

func New(baseURL string, store TokenStore, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		store:   store,
	}
}

// send performs one request. A non-2xx answer is returned as *APIError.
func (c *HTTPClient) send(ctx context.Context, method, path, accessToken string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if accessToken != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// authed sends a bearer request. On 401 with a stored refresh token it
// refreshes once and retries once; if the refresh is refused the session
// is cleared and ErrSessionExpired returned.
func (c *HTTPClient) authed(ctx context.Context, method, path string, in, out any) error {
	tokens, err := c.store.Load()
	if err != nil {
		return err
	}
	if tokens.Empty() {
		return ErrNotLoggedIn
	}

	err = c.send(ctx, method, path, tokens.AccessToken, in, out)
	if !errors.Is(err, common.ErrorUnauthorized) || tokens.RefreshToken == "" {
		return err
	}

	fresh, err := c.refreshFrom(ctx, tokens.RefreshToken)
	if err != nil {
		return err
	}

	return c.send(ctx, method, path, fresh.AccessToken, in, out)
}

// refreshFrom rotates the pair that started with stale. If another caller
// already rotated it, the stored pair is used as is.
func (c *HTTPClient) refreshFrom(ctx context.Context, stale string) (session.Tokens, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	current, err := c.store.Load()
	if err != nil {
		return session.Tokens{}, err
	}
	if current.RefreshToken != "" && current.RefreshToken != stale {
		return current, nil
	}

	var res authResponse
	err = c.send(ctx, http.MethodPost, "/auth/refresh", "", tokenRequest{RefreshToken: stale}, &res)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
			_ = c.store.Clear()
			return session.Tokens{}, ErrSessionExpired
		}
		return session.Tokens{}, err
	}

	fresh := session.Tokens{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken, Email: current.Email}
	if err := c.store.Save(fresh); err != nil {
		return session.Tokens{}, err
	}
	return fresh, nil
}

func (c *HTTPClient) startSession(res authResponse) (*User, error) {
	err := c.store.Save(session.Tokens{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		Email:        res.User.Email,
	})
	if err != nil {
		return nil, err
	}
	return &res.User, nil
}

func (c *HTTPClient) Register(ctx context.Context, in RegisterRequest) (*User, error) {
	var res authResponse
	if err := c.send(ctx, http.MethodPost, "/auth/register", "", in, &res); err != nil {
		return nil, err
	}
	return c.startSession(res)
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*User, error) {
	var res authResponse
	if err := c.send(ctx, http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: password}, &res); err != nil {
		return nil, err
	}
	return c.startSession(res)
}

// Refresh rotates the stored pair explicitly.
func (c *HTTPClient) Refresh(ctx context.Context) error {
	tokens, err := c.store.Load()
	if err != nil {
		return err
	}
	if tokens.RefreshToken == "" {
		return ErrNotLoggedIn
	}
	_, err = c.refreshFrom(ctx, tokens.RefreshToken)
	return err
}

// Logout tells the server to forget the refresh token and clears the local
// session even if the server could not be reached.
func (c *HTTPClient) Logout(ctx context.Context) (string, error) {
	tokens, err := c.store.Load()
	if err != nil {
		return "", err
	}

	var res messageResponse
	sendErr := c.send(ctx, http.MethodPost, "/auth/logout", "", tokenRequest{RefreshToken: tokens.RefreshToken}, &res)
	if err := c.store.Clear(); err != nil {
		return "", err
	}
	return res.Message, sendErr
}

func (c *HTTPClient) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.authed(ctx, http.MethodGet, "/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) ListUsers(ctx context.Context, opts ListOptions) (*UserPage, error) {
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Size > 0 {
		q.Set("size", strconv.Itoa(opts.Size))
	}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.Role != "" {
		q.Set("role", opts.Role)
	}
	path := "/users"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page UserPage
	if err := c.authed(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *HTTPClient) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	if err := c.authed(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) CreateUser(ctx context.Context, in RegisterRequest) (*User, error) {
	var u User
	if err := c.authed(ctx, http.MethodPost, "/users", in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) UpdateUser(ctx context.Context, id string, patch UserPatch) (*User, error) {
	var u User
	if err := c.authed(ctx, http.MethodPatch, "/users/"+url.PathEscape(id), patch, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) DeleteUser(ctx context.Context, id string) (string, error) {
	var res messageResponse
	if err := c.authed(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

// UploadPhoto stores data as the caller's profile photo: it asks for a
// presigned URL, PUTs the bytes there and records the resulting URL on
// the profile.
func (c *HTTPClient) UploadPhoto(ctx context.Context, data []byte, contentType string) (*User, error) {
	me, err := c.Me(ctx)
	if err != nil {
		return nil, err
	}

	var up photoUpload
	if err := c.authed(ctx, http.MethodPost, "/users/me/photo-upload", nil, &up); err != nil {
		return nil, err
	}

	if err := netx.PutPresigned(ctx, c.http, up.UploadURL, contentType, data); err != nil {
		return nil, err
	}

	return c.UpdateUser(ctx, me.ID, UserPatch{PhotoURL: &up.PhotoURL})
}
