package httpapi

import (
	"net/http"
	"strings"

	"github.com/monitaro/pjmanager/internal/app/identity"
	"github.com/monitaro/pjmanager/internal/app/session"
	apperrors "github.com/monitaro/pjmanager/internal/errors"
	"github.com/monitaro/pjmanager/internal/httputil"
)

// Messages of the authentication endpoints.
const (
	MsgPasswordResetSent = "パスワード再設定メールを送信しました"
	MsgEmailRequired     = "メールアドレスを入力してください"
	MsgPasswordRequired  = "パスワードを入力してください"
)

type sessionView struct {
	User    *identity.User `json:"user"`
	IsAdmin bool           `json:"is_admin"`
	Loading bool           `json:"loading"`
}

func viewSession(st session.State) sessionView {
	return sessionView{User: st.User, IsAdmin: st.IsAdmin, Loading: st.Loading}
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		badRequest(w, err)
		return
	}
	payload.Email = strings.TrimSpace(payload.Email)
	fields := map[string]string{}
	if payload.Email == "" {
		fields["email"] = MsgEmailRequired
	}
	if payload.Password == "" {
		fields["password"] = MsgPasswordRequired
	}
	if len(fields) > 0 {
		httputil.WriteError(w, http.StatusUnprocessableEntity, apperrors.Validation(fields))
		return
	}

	id, st, err := h.app.Sessions.SignIn(r.Context(), payload.Email, payload.Password)
	if err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"session":  id,
		"user":     st.User,
		"is_admin": st.IsAdmin,
	})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if id := session.IDFromContext(r.Context()); id != "" {
		h.app.Sessions.SignOut(id)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) passwordReset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		badRequest(w, err)
		return
	}
	email := strings.TrimSpace(payload.Email)
	if email == "" {
		httputil.WriteError(w, http.StatusUnprocessableEntity, apperrors.Validation(map[string]string{"email": MsgEmailRequired}))
		return
	}
	if err := h.app.Sessions.SendPasswordReset(r.Context(), email); err != nil {
		httputil.WriteError(w, http.StatusBadGateway, err)
		return
	}
	httputil.WriteMessage(w, http.StatusAccepted, MsgPasswordResetSent)
}

func (h *handler) sessionState(w http.ResponseWriter, r *http.Request) {
	st, _ := session.FromContext(r.Context())
	httputil.WriteJSON(w, http.StatusOK, viewSession(st))
}
