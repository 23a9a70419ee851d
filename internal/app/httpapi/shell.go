package httpapi

import (
	"net/http"
	"strconv"

	"github.com/monitaro/pjmanager/internal/app/domain/project"
	"github.com/monitaro/pjmanager/internal/app/session"
	"github.com/monitaro/pjmanager/internal/app/storage"
	"github.com/monitaro/pjmanager/internal/httputil"
)

// Messages of the mail endpoint.
const (
	MsgEmailSent   = "メールが正常に送信されました"
	MsgEmailFailed = "メール送信に失敗しました"
)

// ServiceName is reported by the shell endpoints.
const ServiceName = "pjmanager"

type navEntry struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

var navigation = []navEntry{
	{Label: "案件一覧", Path: "/projects"},
	{Label: "新規案件", Path: "/projects/drafts"},
	{Label: "顧客", Path: "/customers"},
	{Label: "商品", Path: "/products"},
	{Label: "パートナー", Path: "/partners"},
}

func (h *handler) home(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"service":    ServiceName,
		"navigation": navigation,
		"session":    nil,
	}
	if st, ok := session.FromContext(r.Context()); ok {
		body["session"] = viewSession(st)
	}
	httputil.WriteJSON(w, http.StatusOK, body)
}

func (h *handler) loginInfo(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"service":        ServiceName,
		"fields":         []string{"email", "password"},
		"login":          "/auth/login",
		"password_reset": "/auth/password-reset",
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) options(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.app.Options)
}

func (h *handler) adminSummary(w http.ResponseWriter, r *http.Request) {
	counts := map[string]int{}
	for _, table := range []string{storage.TableProjects, storage.TableCustomers, storage.TableProducts, storage.TablePartners} {
		n, err := h.app.Records.Count(r.Context(), table)
		if err != nil {
			fail(w, err)
			return
		}
		counts[table] = n
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"counts":   counts,
		"sessions": h.app.Sessions.Active(),
		"services": h.app.Services(),
		"audit":    h.audit.listLimit(limit),
	})
}

func (h *handler) sendEmail(w http.ResponseWriter, r *http.Request) {
	var cols map[string]any
	if err := httputil.DecodeJSON(r.Body, &cols); err != nil {
		emailFailed(w, err)
		return
	}
	payload, err := project.FromColumns(cols)
	if err != nil {
		emailFailed(w, err)
		return
	}
	if err := h.app.Mailer.ProjectCreated(r.Context(), payload); err != nil {
		emailFailed(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": MsgEmailSent,
	})
}

// emailFailed answers /api/send-email with the failure body for any error,
// including an unreadable request.
func emailFailed(w http.ResponseWriter, err error) {
	httputil.WriteJSON(w, http.StatusInternalServerError, map[string]any{
		"success": false,
		"error":   MsgEmailFailed,
		"details": err.Error(),
	})
}
