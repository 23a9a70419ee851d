package projects

import (
	"context"

	"github.com/monitaro/pjmanager/internal/app/domain/project"
	"github.com/monitaro/pjmanager/internal/app/files"
	"github.com/monitaro/pjmanager/internal/app/forms"
	"github.com/monitaro/pjmanager/internal/app/services"
	"github.com/monitaro/pjmanager/internal/app/storage"
	apperrors "github.com/monitaro/pjmanager/internal/errors"
	"github.com/monitaro/pjmanager/pkg/logger"
)

// Validation messages for enumerated fields.
const (
	MsgInvalidTransactionType = "取引形態が正しくありません"
	MsgInvalidStatus          = "契約ステータスが正しくありません"
)

// Result is one page of the project list.
type Result struct {
	Items    []project.Project `json:"items"`
	Total    int               `json:"total"`
	Filtered int               `json:"filtered"`
}

// Service reads and writes project records.
type Service struct {
	store   storage.RecordStore
	numbers *Numberer
	log     *logger.Logger
}

// New creates a project service.
func New(store storage.RecordStore, numbers *Numberer, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("projects")
	}
	if numbers == nil {
		numbers = NewNumberer(nil, nil)
	}
	return &Service{store: store, numbers: numbers, log: log}
}

// Search returns the projects matching c, newest first, with the table size.
func (s *Service) Search(ctx context.Context, c Criteria) (Result, error) {
	q, err := c.Query()
	if err != nil {
		return Result{}, err
	}
	rows, err := s.store.Select(ctx, storage.TableProjects, q)
	if err != nil {
		return Result{}, services.StoreError("project", 0, err)
	}
	items, err := fromRows(rows)
	if err != nil {
		return Result{}, err
	}
	total, err := s.store.Count(ctx, storage.TableProjects)
	if err != nil {
		return Result{}, services.StoreError("project", 0, err)
	}
	return Result{Items: items, Total: total, Filtered: len(items)}, nil
}

// Get returns one project.
func (s *Service) Get(ctx context.Context, id int64) (project.Project, error) {
	rows, err := s.store.Select(ctx, storage.TableProjects, storage.ByID(id))
	if err != nil {
		return project.Project{}, services.StoreError("project", id, err)
	}
	if len(rows) == 0 {
		return project.Project{}, apperrors.NotFound("project", id)
	}
	p, err := project.FromColumns(rows[0])
	if err != nil {
		return project.Project{}, apperrors.Internal("decode project", err)
	}
	return p, nil
}

// Clone returns the prefill for a new project copied from id.
func (s *Service) Clone(ctx context.Context, id int64) (project.Project, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return project.Project{}, err
	}
	return src.CloneSource(), nil
}

// Normalize validates p and rewrites it into its stored form.
func Normalize(p *project.Project) error {
	errs := forms.Errors{}
	errs.Require(p.RequiredValues())
	if p.TransactionType != "" && !p.TransactionType.Valid() {
		errs.Add("transaction_type", MsgInvalidTransactionType)
	}
	if p.ContractStatus != "" && !validStatus(p.ContractStatus) {
		errs.Add("contract_status", MsgInvalidStatus)
	}
	for _, ref := range p.Dates() {
		forms.NormalizeDate(errs, ref.Column, ref.Value)
	}
	if err := errs.Err(); err != nil {
		return err
	}
	p.CompactAccessories()
	p.ApplyTransactionRules()
	return nil
}

// Prepare validates input and fills in what a new project gets on
// submission: a fresh number, today's date and the signed status.
func (s *Service) Prepare(input project.Project) (project.Project, error) {
	p := input
	p.Accessories = append([]string(nil), input.Accessories...)
	if err := Normalize(&p); err != nil {
		return project.Project{}, err
	}
	p.ID = 0
	p.CreatedAt = ""
	p.Number = s.numbers.Next()
	today := s.numbers.Today()
	p.ProjectDate = &today
	p.ContractStatus = project.StatusSigned
	return p, nil
}

// Insert stores a prepared project.
func (s *Service) Insert(ctx context.Context, p project.Project) (project.Project, error) {
	cols, err := project.Columns(p)
	if err != nil {
		return project.Project{}, apperrors.Internal("encode project", err)
	}
	delete(cols, "id")
	delete(cols, "created_at")
	row, err := s.store.Insert(ctx, storage.TableProjects, cols)
	if err != nil {
		return project.Project{}, services.StoreError("project", 0, err)
	}
	created, err := project.FromColumns(row)
	if err != nil {
		return project.Project{}, apperrors.Internal("decode project", err)
	}
	s.log.WithContext(ctx).
		WithField("project_id", created.ID).
		WithField("pj_number", created.Number).
		Info("project created")
	return created, nil
}

// Update overwrites the project with id. The stored number, id, creation
// time and attachments are never changed here.
func (s *Service) Update(ctx context.Context, id int64, p project.Project) (project.Project, error) {
	if err := Normalize(&p); err != nil {
		return project.Project{}, err
	}
	cols, err := project.Columns(p)
	if err != nil {
		return project.Project{}, apperrors.Internal("encode project", err)
	}
	for _, col := range []string{"id", "created_at", "pj_number"} {
		delete(cols, col)
	}
	for _, f := range files.Fields {
		delete(cols, f.URLColumn())
		delete(cols, f.NameColumn())
	}
	if err := s.store.Update(ctx, storage.TableProjects, id, cols); err != nil {
		return project.Project{}, services.StoreError("project", id, err)
	}
	s.log.WithContext(ctx).WithField("project_id", id).Info("project updated")
	return s.Get(ctx, id)
}

func validStatus(st project.Status) bool {
	for _, known := range project.Statuses {
		if st == known {
			return true
		}
	}
	return false
}

func fromRows(rows []storage.Row) ([]project.Project, error) {
	out := make([]project.Project, 0, len(rows))
	for _, row := range rows {
		p, err := project.FromColumns(row)
		if err != nil {
			return nil, apperrors.Internal("decode project", err)
		}
		out = append(out, p)
	}
	return out, nil
}
