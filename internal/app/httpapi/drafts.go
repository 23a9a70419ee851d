package httpapi

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/monitaro/pjmanager/internal/app/domain/project"
	"github.com/monitaro/pjmanager/internal/app/export"
	"github.com/monitaro/pjmanager/internal/app/files"
	"github.com/monitaro/pjmanager/internal/app/workflow"
	"github.com/monitaro/pjmanager/internal/httputil"
)

const (
	maxUploadBytes    = 20 << 20
	maxMultipartBytes = 2*maxUploadBytes + 1<<20
)

type draftRequest struct {
	Project project.Project `json:"project"`
	CloneOf int64           `json:"clone_of,omitempty"`
}

type attachmentView struct {
	Field string `json:"field"`
	Name  string `json:"name"`
	Size  int    `json:"size"`
}

type draftView struct {
	ID           string              `json:"id"`
	State        workflow.DraftState `json:"state"`
	CloneOf      int64               `json:"clone_of,omitempty"`
	Input        project.Project     `json:"input"`
	Confirmation []export.Entry      `json:"confirmation,omitempty"`
	Attachments  []attachmentView    `json:"attachments,omitempty"`
	Project      *project.Project    `json:"project,omitempty"`
	Warnings     []string            `json:"warnings,omitempty"`
	Error        string              `json:"error,omitempty"`
}

func viewDraft(d workflow.Draft) draftView {
	v := draftView{
		ID:       d.ID,
		State:    d.State,
		CloneOf:  d.CloneOf,
		Input:    d.Input,
		Project:  d.Result,
		Warnings: d.Warnings,
		Error:    d.LastError,
	}
	if d.State != workflow.DraftEditing {
		v.Confirmation = export.Confirmation(d.Prepared)
	}
	for _, field := range files.Fields {
		if a, ok := d.Attachments[field]; ok {
			v.Attachments = append(v.Attachments, attachmentView{Field: string(field), Name: a.Name, Size: len(a.Data)})
		}
	}
	return v
}

func (h *handler) startDraft(w http.ResponseWriter, r *http.Request) {
	req, attachments, err := readDraftRequest(w, r)
	if err != nil {
		badRequest(w, err)
		return
	}
	d, err := h.app.Drafts.Start(r.Context(), owner(r), req.Project, req.CloneOf, attachments)
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, viewDraft(d))
}

func (h *handler) getDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.app.Drafts.Get(owner(r), mux.Vars(r)["draft"])
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, viewDraft(d))
}

func (h *handler) resubmitDraft(w http.ResponseWriter, r *http.Request) {
	req, attachments, err := readDraftRequest(w, r)
	if err != nil {
		badRequest(w, err)
		return
	}
	d, err := h.app.Drafts.Resubmit(r.Context(), owner(r), mux.Vars(r)["draft"], req.Project, attachments)
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, viewDraft(d))
}

func (h *handler) declineDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.app.Drafts.Decline(owner(r), mux.Vars(r)["draft"])
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, viewDraft(d))
}

func (h *handler) confirmDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.app.Drafts.Confirm(r.Context(), owner(r), mux.Vars(r)["draft"])
	if err != nil {
		fail(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, viewDraft(d))
}

func (h *handler) discardDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Drafts.Discard(owner(r), mux.Vars(r)["draft"]); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readDraftRequest accepts either a JSON body or a multipart form with a
// "project" JSON part, an optional "clone_of" value and the file parts.
func readDraftRequest(w http.ResponseWriter, r *http.Request) (draftRequest, map[files.Field]files.Attachment, error) {
	var req draftRequest
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		err := httputil.DecodeJSON(r.Body, &req)
		return req, nil, err
	}

	form, err := readMultipart(w, r)
	if err != nil {
		return req, nil, err
	}
	if raw := first(form.Value["project"]); raw != "" {
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req.Project); err != nil {
			return req, nil, fmt.Errorf("project: %w", err)
		}
	}
	if raw := first(form.Value["clone_of"]); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return req, nil, fmt.Errorf("clone_of: %w", err)
		}
		req.CloneOf = id
	}

	var attachments map[files.Field]files.Attachment
	for _, field := range files.Fields {
		a, ok, err := formAttachment(form, string(field))
		if err != nil {
			return req, nil, err
		}
		if !ok {
			continue
		}
		if attachments == nil {
			attachments = make(map[files.Field]files.Attachment)
		}
		attachments[field] = a
	}
	return req, attachments, nil
}

func readMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("multipart form: %w", err)
	}
	return r.MultipartForm, nil
}

func formAttachment(form *multipart.Form, name string) (files.Attachment, bool, error) {
	headers := form.File[name]
	if len(headers) == 0 || headers[0].Filename == "" {
		return files.Attachment{}, false, nil
	}
	fh := headers[0]
	f, err := fh.Open()
	if err != nil {
		return files.Attachment{}, false, fmt.Errorf("%s: %w", name, err)
	}
	defer f.Close()
	data, err := httputil.ReadAllStrict(f, maxUploadBytes)
	if err != nil {
		return files.Attachment{}, false, fmt.Errorf("%s: %w", name, err)
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return files.Attachment{Name: fh.Filename, ContentType: contentType, Data: data}, true, nil
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
