package httpapi

import (
	"bytes"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/monitaro/pjmanager/internal/app/domain/project"
	"github.com/monitaro/pjmanager/internal/app/export"
	"github.com/monitaro/pjmanager/internal/app/files"
	"github.com/monitaro/pjmanager/internal/app/services/projects"
	"github.com/monitaro/pjmanager/internal/app/workflow"
	apperrors "github.com/monitaro/pjmanager/internal/errors"
	"github.com/monitaro/pjmanager/internal/httputil"
)

// MsgPDFUnavailable answers a PDF download while no font is configured.
const MsgPDFUnavailable = "PDF出力用のフォントが設定されていません"

type listResponse struct {
	projects.Result
	Criteria map[string]string    `json:"criteria"`
	Edit     *workflow.InlineEdit `json:"edit,omitempty"`
}

func boardResponse(res projects.Result, b workflow.Board) listResponse {
	out := listResponse{Result: res, Criteria: b.Criteria}
	if b.Edit.State != workflow.EditIdle {
		edit := b.Edit
		out.Edit = &edit
	}
	return out
}

// listProjects runs the criteria in the query string. Without any criteria
// parameter the caller's remembered criteria are re-run.
func (h *handler) listProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c := projects.Criteria{}
	given := false
	for _, key := range projects.CriteriaKeys() {
		if _, ok := q[key]; ok {
			given = true
			c[key] = q.Get(key)
		}
	}

	var (
		res projects.Result
		err error
	)
	if given {
		res, err = h.app.Board.Search(r.Context(), owner(r), c)
	} else {
		res, err = h.app.Board.Refresh(r.Context(), owner(r))
	}
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, boardResponse(res, h.app.Board.State(owner(r))))
}

func (h *handler) resetSearch(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.Board.Reset(r.Context(), owner(r))
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, boardResponse(res, h.app.Board.State(owner(r))))
}

func (h *handler) inlineEditState(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.app.Board.State(owner(r)).Edit)
}

func (h *handler) inlineEditBegin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}
	b, err := h.app.Board.BeginEdit(r.Context(), owner(r), id)
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b.Edit)
}

func (h *handler) inlineEditChange(w http.ResponseWriter, r *http.Request) {
	var changes map[string]any
	if err := httputil.DecodeJSON(r.Body, &changes); err != nil {
		badRequest(w, err)
		return
	}
	b, err := h.app.Board.Change(owner(r), changes)
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b.Edit)
}

func (h *handler) inlineEditCancel(w http.ResponseWriter, r *http.Request) {
	b, err := h.app.Board.Cancel(owner(r))
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b.Edit)
}

func (h *handler) inlineEditSave(w http.ResponseWriter, r *http.Request) {
	res, b, err := h.app.Board.Save(r.Context(), owner(r))
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, boardResponse(res, b))
}

func (h *handler) getProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}
	p, err := h.app.Projects.Get(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) updateProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}
	var payload project.Project
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		badRequest(w, err)
		return
	}
	updated, err := h.app.Projects.Update(r.Context(), id, payload)
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) cloneProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}
	prefill, err := h.app.Projects.Clone(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, prefill)
}

func (h *handler) listHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}
	entries, err := h.app.History.List(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (h *handler) addHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}
	var payload project.History
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		badRequest(w, err)
		return
	}
	if _, err := h.app.Projects.Get(r.Context(), id); err != nil {
		fail(w, err)
		return
	}
	created, err := h.app.History.Add(r.Context(), id, payload, caller(r).Email)
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) uploadFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}
	field, ok := files.ParseField(mux.Vars(r)["field"])
	if !ok {
		httputil.WriteError(w, http.StatusNotFound, apperrors.NotFound("file field", mux.Vars(r)["field"]))
		return
	}
	if _, err := h.app.Projects.Get(r.Context(), id); err != nil {
		fail(w, err)
		return
	}
	form, err := readMultipart(w, r)
	if err != nil {
		badRequest(w, err)
		return
	}
	attachment, ok, err := formAttachment(form, "file")
	if err != nil {
		badRequest(w, err)
		return
	}
	if !ok {
		httputil.WriteError(w, http.StatusUnprocessableEntity, apperrors.Validation(map[string]string{"file": "ファイルを選択してください"}))
		return
	}
	ref, err := h.app.Uploader.Attach(r.Context(), id, field, attachment)
	if err != nil {
		httputil.WriteError(w, http.StatusBadGateway, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ref)
}

func (h *handler) projectPDF(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err)
		return
	}
	p, err := h.app.Projects.Get(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	var buf bytes.Buffer
	if err := h.app.PDF.Render(p, &buf); err != nil {
		if errors.Is(err, export.ErrFontNotConfigured) {
			fail(w, apperrors.Unavailable(MsgPDFUnavailable, err))
			return
		}
		h.log.WithContext(r.Context()).WithError(err).WithField("project_id", id).Error("render pdf")
		fail(w, apperrors.Internal("PDFの生成に失敗しました", err))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": export.Filename(p)}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
