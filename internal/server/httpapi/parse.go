package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/peny/internal/common"
	"github.com/dmitrijs2005/peny/internal/server/models"
	"github.com/dmitrijs2005/peny/internal/server/services"
)

const (
	maxBodyBytes = 1 << 20

	// bcrypt ignores input past 72 bytes and x/crypto rejects it outright.
	maxPasswordBytes = 72

	defaultPageSize = 10
	maxPageSize     = 100
)

// Field rules for validate.Var. Lengths are in characters.
const (
	nameRule     = "min=2"
	emailRule    = "required,email"
	passwordRule = "min=6,max=72"
	photoRule    = "http_url"
	pageRule     = "min=1"
	sizeRule     = "min=1,max=100"
)

var (
	validate = validator.New()
	roleRule = roleOneOf()
)

func roleOneOf() string {
	names := make([]string, len(models.Roles))
	for i, r := range models.Roles {
		names[i] = string(r)
	}
	return "oneof=" + strings.Join(names, " ")
}

// check runs a single validator rule against v.
func check(v any, rule string) bool {
	return validate.Var(v, rule) == nil
}

type registerRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Role     string  `json:"role"`
	PhotoURL *string `json:"photoUrl"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type patchRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	PhotoURL *string `json:"photoUrl"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return validation("request body is required")
		}
		return validation("malformed JSON body")
	}
	return nil
}

func parseName(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !check(s, nameRule) {
		return "", validation("name must be at least 2 characters")
	}
	return s, nil
}

func parseEmail(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !check(s, emailRule) {
		return "", validation("email must be a valid address")
	}
	return s, nil
}

func parsePassword(s string) (string, error) {
	if !check(s, passwordRule) || len(s) > maxPasswordBytes {
		return "", validation("password must be between 6 and %d characters", maxPasswordBytes)
	}
	return s, nil
}

// parseRole treats an empty value as absent. Case is ignored.
func parseRole(s string) (models.Role, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	if !check(s, roleRule) {
		return "", validation("role must be one of %s, %s", models.RoleAdmin, models.RoleSecretary)
	}
	return models.Role(s), nil
}

// parsePhotoURL accepts nil and, when allowEmpty, the empty string, which
// clears the photo on update.
func parsePhotoURL(p *string, allowEmpty bool) (*string, error) {
	if p == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		if allowEmpty {
			return &s, nil
		}
		return nil, nil
	}
	if !check(s, photoRule) {
		return nil, validation("photoUrl must be an absolute http(s) URL")
	}
	return &s, nil
}

// parseAccountID reads the {id} path segment. Anything that is not a uuid
// cannot name an account, so it is reported as not found.
func parseAccountID(r *http.Request) (string, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return "", common.ErrorNotFound
	}
	return id.String(), nil
}

func parseRegister(w http.ResponseWriter, r *http.Request) (services.RegisterInput, error) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return services.RegisterInput{}, err
	}

	var (
		in  services.RegisterInput
		err error
	)
	if in.Name, err = parseName(req.Name); err != nil {
		return in, err
	}
	if in.Email, err = parseEmail(req.Email); err != nil {
		return in, err
	}
	if in.Password, err = parsePassword(req.Password); err != nil {
		return in, err
	}
	if in.Role, err = parseRole(req.Role); err != nil {
		return in, err
	}
	if in.PhotoURL, err = parsePhotoURL(req.PhotoURL, false); err != nil {
		return in, err
	}
	return in, nil
}

func parseCreateAccount(w http.ResponseWriter, r *http.Request) (services.CreateAccountInput, error) {
	in, err := parseRegister(w, r)
	return services.CreateAccountInput(in), err
}

// parseLogin checks shape only. Any well-formed pair goes to the session
// manager so a bad email and a bad password fail the same way.
func parseLogin(w http.ResponseWriter, r *http.Request) (email, password string, err error) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return "", "", err
	}
	email = strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return "", "", validation("email and password are required")
	}
	return email, req.Password, nil
}

func parseRefresh(w http.ResponseWriter, r *http.Request) (string, error) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		return "", validation("refreshToken is required")
	}
	return req.RefreshToken, nil
}

// parseLogout tolerates a missing body or token; logout always succeeds.
func parseLogout(w http.ResponseWriter, r *http.Request) string {
	var req refreshRequest
	_ = decodeJSON(w, r, &req)
	return req.RefreshToken
}

func parsePatch(w http.ResponseWriter, r *http.Request) (models.AccountPatch, error) {
	var req patchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return models.AccountPatch{}, err
	}

	var patch models.AccountPatch
	if req.Name != nil {
		name, err := parseName(*req.Name)
		if err != nil {
			return patch, err
		}
		patch.Name = &name
	}
	if req.Email != nil {
		email, err := parseEmail(*req.Email)
		if err != nil {
			return patch, err
		}
		patch.Email = &email
	}
	if req.Role != nil {
		if strings.TrimSpace(*req.Role) == "" {
			return patch, validation("role must be one of %s, %s", models.RoleAdmin, models.RoleSecretary)
		}
		role, err := parseRole(*req.Role)
		if err != nil {
			return patch, err
		}
		patch.Role = &role
	}
	photo, err := parsePhotoURL(req.PhotoURL, true)
	if err != nil {
		return patch, err
	}
	patch.PhotoURL = photo

	if patch.Empty() {
		return patch, validation("no fields to update")
	}
	return patch, nil
}

func parseListFilter(q url.Values) (models.AccountFilter, error) {
	f := models.AccountFilter{
		Search: strings.TrimSpace(q.Get("search")),
		Page:   1,
		Size:   defaultPageSize,
	}

	var err error
	if f.Page, err = intParam(q.Get("page"), 1); err != nil || !check(f.Page, pageRule) {
		return f, validation("page must be a positive integer")
	}
	if f.Size, err = intParam(q.Get("size"), defaultPageSize); err != nil || !check(f.Size, sizeRule) {
		return f, validation("size must be between 1 and %d", maxPageSize)
	}
	if f.Role, err = parseRole(q.Get("role")); err != nil {
		return f, err
	}
	return f, nil
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
