package history

import (
	"context"
	"strings"

	"github.com/monitaro/pjmanager/internal/app/domain/project"
	"github.com/monitaro/pjmanager/internal/app/forms"
	"github.com/monitaro/pjmanager/internal/app/services"
	"github.com/monitaro/pjmanager/internal/app/storage"
	apperrors "github.com/monitaro/pjmanager/internal/errors"
	"github.com/monitaro/pjmanager/pkg/logger"
)

// MsgInvalidCategory is reported for an unknown history category.
const MsgInvalidCategory = "区分が正しくありません"

// Categories lists the accepted history categories.
var Categories = []project.HistoryCategory{project.HistorySales, project.HistoryWork, project.HistoryMaintenance}

// Service manages the append-only history of each project.
type Service struct {
	store storage.RecordStore
	log   *logger.Logger
}

// New creates a history service backed by store.
func New(store storage.RecordStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("history")
	}
	return &Service{store: store, log: log}
}

// List returns the entries of a project, latest date first.
func (s *Service) List(ctx context.Context, projectID int64) ([]project.History, error) {
	q := storage.Query{}.Where(storage.Eq("project_id", projectID)).Order("date", true)
	return services.List[project.History](ctx, s.store, storage.TableHistory, "history", q)
}

// Add appends an entry to a project. inputBy is the signed-in user's email
// and replaces whatever the caller put in h.InputBy.
func (s *Service) Add(ctx context.Context, projectID int64, h project.History, inputBy string) (project.History, error) {
	h.ProjectID = projectID
	h.InputBy = inputBy
	h.Content = strings.TrimSpace(h.Content)

	errs := forms.Errors{}
	errs.Require(map[string]string{
		"category": string(h.Category),
		"date":     h.Date,
		"content":  h.Content,
	})
	if h.Category != "" && !validCategory(h.Category) {
		errs.Add("category", MsgInvalidCategory)
	}
	if h.Date != "" {
		if d, ok := forms.ParseDate(h.Date); ok {
			h.Date = d
		} else {
			errs.Add("date", forms.MsgInvalidDate)
		}
	}
	if err := errs.Err(); err != nil {
		return project.History{}, err
	}

	rows, err := s.store.Select(ctx, storage.TableProjects, storage.ByID(projectID))
	if err != nil {
		return project.History{}, services.StoreError("project", projectID, err)
	}
	if len(rows) == 0 {
		return project.History{}, apperrors.NotFound("project", projectID)
	}

	created, err := services.Insert(ctx, s.store, storage.TableHistory, "history", h)
	if err != nil {
		return project.History{}, err
	}
	s.log.WithContext(ctx).
		WithField("project_id", projectID).
		WithField("category", h.Category).
		Info("history entry added")
	return created, nil
}

func validCategory(c project.HistoryCategory) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
