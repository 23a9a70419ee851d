package partners

import (
	"context"
	"strings"

	"github.com/monitaro/pjmanager/internal/app/domain/partner"
	"github.com/monitaro/pjmanager/internal/app/forms"
	"github.com/monitaro/pjmanager/internal/app/services"
	"github.com/monitaro/pjmanager/internal/app/storage"
	"github.com/monitaro/pjmanager/pkg/logger"
)

// Service manages installation and removal partners.
type Service struct {
	store storage.RecordStore
	log   *logger.Logger
}

// New creates a partner service backed by store.
func New(store storage.RecordStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("partners")
	}
	return &Service{store: store, log: log}
}

// List returns partners ordered by name.
func (s *Service) List(ctx context.Context) ([]partner.Partner, error) {
	return services.List[partner.Partner](ctx, s.store, storage.TablePartners, "partner",
		storage.Query{}.Order("name", false))
}

// Get returns one partner.
func (s *Service) Get(ctx context.Context, id int64) (partner.Partner, error) {
	return services.Get[partner.Partner](ctx, s.store, storage.TablePartners, "partner", id)
}

// Create stores a new partner.
func (s *Service) Create(ctx context.Context, p partner.Partner) (partner.Partner, error) {
	if err := validate(&p); err != nil {
		return partner.Partner{}, err
	}
	created, err := services.Insert(ctx, s.store, storage.TablePartners, "partner", p)
	if err != nil {
		return partner.Partner{}, err
	}
	s.log.WithContext(ctx).WithField("partner_id", created.ID).Info("partner created")
	return created, nil
}

// Update overwrites the partner with id.
func (s *Service) Update(ctx context.Context, id int64, p partner.Partner) (partner.Partner, error) {
	if err := validate(&p); err != nil {
		return partner.Partner{}, err
	}
	if err := services.Update(ctx, s.store, storage.TablePartners, "partner", id, p); err != nil {
		return partner.Partner{}, err
	}
	s.log.WithContext(ctx).WithField("partner_id", id).Info("partner updated")
	return s.Get(ctx, id)
}

func validate(p *partner.Partner) error {
	p.Name = strings.TrimSpace(p.Name)
	errs := forms.Errors{}
	errs.Require(map[string]string{"name": p.Name})
	return errs.Err()
}
