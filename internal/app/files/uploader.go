package files

import (
	"bytes"
	"context"

	"github.com/monitaro/pjmanager/internal/app/metrics"
	"github.com/monitaro/pjmanager/internal/app/services"
	"github.com/monitaro/pjmanager/internal/app/storage"
	apperrors "github.com/monitaro/pjmanager/internal/errors"
	"github.com/monitaro/pjmanager/pkg/logger"
)

// Uploader puts attachments into a Store and records their URL and display
// name on the project row. The two steps are independent: a failed write-back
// leaves the object in place.
type Uploader struct {
	store   Store
	records storage.RecordStore
	log     *logger.Logger
}

// NewUploader creates an Uploader.
func NewUploader(store Store, records storage.RecordStore, log *logger.Logger) *Uploader {
	if log == nil {
		log = logger.NewDefault("files")
	}
	return &Uploader{store: store, records: records, log: log}
}

// Attach stores a under the project's key for field and links it.
func (u *Uploader) Attach(ctx context.Context, projectID int64, field Field, a Attachment) (Ref, error) {
	key := Key(projectID, field, a.Name)
	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	err := u.store.Put(ctx, key, bytes.NewReader(a.Data), int64(len(a.Data)), contentType)
	metrics.RecordUpload(string(field), err)
	if err != nil {
		u.log.WithContext(ctx).
			WithField("project_id", projectID).
			WithField("field", field).
			WithError(err).
			Warn("attachment upload failed")
		return Ref{}, apperrors.Upload(err)
	}

	ref := Ref{URL: u.store.PublicURL(key), Name: a.Name}
	update := storage.Row{field.URLColumn(): ref.URL, field.NameColumn(): ref.Name}
	if err := u.records.Update(ctx, storage.TableProjects, projectID, update); err != nil {
		return ref, services.StoreError("project", projectID, err)
	}
	u.log.WithContext(ctx).
		WithField("project_id", projectID).
		WithField("key", key).
		Info("attachment stored")
	return ref, nil
}
