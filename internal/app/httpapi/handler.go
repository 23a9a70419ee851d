// Package httpapi exposes the application over a JSON HTTP API.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	app "github.com/monitaro/pjmanager/internal/app"
	"github.com/monitaro/pjmanager/internal/app/identity"
	"github.com/monitaro/pjmanager/internal/app/metrics"
	"github.com/monitaro/pjmanager/internal/app/session"
	apperrors "github.com/monitaro/pjmanager/internal/errors"
	"github.com/monitaro/pjmanager/internal/httputil"
	"github.com/monitaro/pjmanager/pkg/logger"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	audit *auditLog
	log   *logger.Logger
}

// NewHandler returns the router exposing the REST API. The session guard is
// applied by Wrap; handlers read the caller from session.FromContext.
func NewHandler(application *app.Application, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{
		app:   application,
		audit: newAuditLog(200, logSink{log: log}),
		log:   log,
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, apperrors.NotFound("route", r.URL.Path))
	})
	r.Use(h.audit.middleware)

	// shell
	r.HandleFunc("/", h.home).Methods(http.MethodGet)
	r.HandleFunc("/login", h.loginInfo).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/options", h.options).Methods(http.MethodGet)
	r.Handle("/admin/summary", session.RequireAdmin(http.HandlerFunc(h.adminSummary))).Methods(http.MethodGet)

	// auth
	r.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", h.logout).Methods(http.MethodPost)
	r.HandleFunc("/auth/password-reset", h.passwordReset).Methods(http.MethodPost)
	r.HandleFunc("/auth/session", h.sessionState).Methods(http.MethodGet)

	// project list and inline edit
	r.HandleFunc("/projects", h.listProjects).Methods(http.MethodGet)
	r.HandleFunc("/projects/search/reset", h.resetSearch).Methods(http.MethodPost)
	r.HandleFunc("/projects/inline-edit", h.inlineEditState).Methods(http.MethodGet)
	r.HandleFunc("/projects/inline-edit", h.inlineEditChange).Methods(http.MethodPatch)
	r.HandleFunc("/projects/inline-edit", h.inlineEditCancel).Methods(http.MethodDelete)
	r.HandleFunc("/projects/inline-edit/save", h.inlineEditSave).Methods(http.MethodPost)
	r.HandleFunc("/projects/{id:[0-9]+}/inline-edit", h.inlineEditBegin).Methods(http.MethodPost)

	// two-step create
	r.HandleFunc("/projects/drafts", h.startDraft).Methods(http.MethodPost)
	r.HandleFunc("/projects/drafts/{draft}", h.getDraft).Methods(http.MethodGet)
	r.HandleFunc("/projects/drafts/{draft}", h.resubmitDraft).Methods(http.MethodPut)
	r.HandleFunc("/projects/drafts/{draft}", h.discardDraft).Methods(http.MethodDelete)
	r.HandleFunc("/projects/drafts/{draft}/decline", h.declineDraft).Methods(http.MethodPost)
	r.HandleFunc("/projects/drafts/{draft}/confirm", h.confirmDraft).Methods(http.MethodPost)

	// single project
	r.HandleFunc("/projects/{id:[0-9]+}", h.getProject).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id:[0-9]+}", h.updateProject).Methods(http.MethodPut)
	r.HandleFunc("/projects/{id:[0-9]+}/clone", h.cloneProject).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id:[0-9]+}/history", h.listHistory).Methods(http.MethodGet)
	r.HandleFunc("/projects/{id:[0-9]+}/history", h.addHistory).Methods(http.MethodPost)
	r.HandleFunc("/projects/{id:[0-9]+}/files/{field}", h.uploadFile).Methods(http.MethodPost)
	r.HandleFunc("/projects/{id:[0-9]+}/pdf", h.projectPDF).Methods(http.MethodGet)

	// master data
	r.HandleFunc("/customers", h.listCustomers).Methods(http.MethodGet)
	r.HandleFunc("/customers", h.createCustomer).Methods(http.MethodPost)
	r.HandleFunc("/customers/{id:[0-9]+}", h.getCustomer).Methods(http.MethodGet)
	r.HandleFunc("/products", h.listProducts).Methods(http.MethodGet)
	r.HandleFunc("/products", h.createProduct).Methods(http.MethodPost)
	r.HandleFunc("/products/{id:[0-9]+}", h.getProduct).Methods(http.MethodGet)
	r.HandleFunc("/products/{id:[0-9]+}", h.updateProduct).Methods(http.MethodPut)
	r.HandleFunc("/partners", h.listPartners).Methods(http.MethodGet)
	r.HandleFunc("/partners", h.createPartner).Methods(http.MethodPost)
	r.HandleFunc("/partners/{id:[0-9]+}", h.getPartner).Methods(http.MethodGet)
	r.HandleFunc("/partners/{id:[0-9]+}", h.updatePartner).Methods(http.MethodPut)

	r.HandleFunc("/api/send-email", h.sendEmail).Methods(http.MethodPost)
	return r
}

// caller returns the signed-in user. The guard makes sure there is one on
// every protected route.
func caller(r *http.Request) identity.User {
	st, ok := session.FromContext(r.Context())
	if !ok {
		return identity.User{}
	}
	return *st.User
}

// owner keys per-user workflow state.
func owner(r *http.Request) string {
	return caller(r).Email
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NotFound("record", raw)
	}
	return id, nil
}

func badRequest(w http.ResponseWriter, err error) {
	httputil.WriteError(w, http.StatusBadRequest, err)
}

func fail(w http.ResponseWriter, err error) {
	httputil.WriteError(w, http.StatusInternalServerError, err)
}
