package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/peny/internal/logging"
	"github.com/dmitrijs2005/peny/internal/server/models"
	"github.com/dmitrijs2005/peny/internal/server/services"
	"github.com/dmitrijs2005/peny/internal/server/supervisor"
)

type SessionManager interface {
	Authenticator
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.AuthResult, error)
	Logout(ctx context.Context, refreshToken string) (*services.Message, error)
	GetProfile(ctx context.Context, accountID string) (*models.PublicAccount, error)
}

type AccountAdmin interface {
	Create(ctx context.Context, in services.CreateAccountInput, actorID string) (*models.PublicAccount, error)
	List(ctx context.Context, filter models.AccountFilter) (*models.Page[models.PublicAccount], error)
	Get(ctx context.Context, id string) (*models.PublicAccount, error)
	Update(ctx context.Context, id string, patch models.AccountPatch, actorID string) (*models.PublicAccount, error)
	Delete(ctx context.Context, id, actorID string) (*services.Message, error)
}

type PhotoPresigner interface {
	PresignUpload(ctx context.Context, accountID string) (*services.PhotoUpload, error)
}

// ConnectionState reports the database supervisor state.
type ConnectionState interface {
	State() supervisor.State
}

type handlers struct {
	sessions SessionManager
	accounts AccountAdmin
	photos   PhotoPresigner
	db       ConnectionState
	log      logging.Logger
}

// fail writes the mapped error response. Unmapped errors are logged since
// the client only sees a generic 500.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := statusFor(err); status == http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed", "error", err, "request_id", RequestID(r.Context()))
	}
	writeError(w, err)
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	in, err := parseRegister(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.sessions.Register(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	email, password, err := parseLogin(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.sessions.Login(r.Context(), email, password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	token, err := parseRefresh(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.sessions.Refresh(r.Context(), token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	res, err := h.sessions.Logout(r.Context(), parseLogout(w, r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	id, _ := AccountID(r.Context())
	res, err := h.sessions.GetProfile(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) createAccount(w http.ResponseWriter, r *http.Request) {
	in, err := parseCreateAccount(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	actor, _ := AccountID(r.Context())
	res, err := h.accounts.Create(r.Context(), in, actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *handlers) listAccounts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.accounts.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	patch, err := parsePatch(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	actor, _ := AccountID(r.Context())
	res, err := h.accounts.Update(r.Context(), id, patch, actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	actor, _ := AccountID(r.Context())
	res, err := h.accounts.Delete(r.Context(), id, actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) photoUpload(w http.ResponseWriter, r *http.Request) {
	id, _ := AccountID(r.Context())
	res, err := h.photos.PresignUpload(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type healthBody struct {
	State string `json:"state"`
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	st := h.db.State()
	status := http.StatusOK
	if st != supervisor.Connected {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthBody{State: st.String()})
}
