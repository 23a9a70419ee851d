package customers

import (
	"context"

	"github.com/monitaro/pjmanager/internal/app/domain/customer"
	"github.com/monitaro/pjmanager/internal/app/forms"
	"github.com/monitaro/pjmanager/internal/app/services"
	"github.com/monitaro/pjmanager/internal/app/storage"
	"github.com/monitaro/pjmanager/pkg/logger"
)

// Service manages customer records. Customers have no edit path.
type Service struct {
	store storage.RecordStore
	log   *logger.Logger
}

// New creates a customer service backed by store.
func New(store storage.RecordStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("customers")
	}
	return &Service{store: store, log: log}
}

// List returns every customer, newest first, with the table's total count.
func (s *Service) List(ctx context.Context) ([]customer.Customer, int, error) {
	items, err := services.List[customer.Customer](ctx, s.store, storage.TableCustomers, "customer",
		storage.Query{}.Order("created_at", true))
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.Count(ctx, storage.TableCustomers)
	if err != nil {
		return nil, 0, services.StoreError("customer", 0, err)
	}
	return items, total, nil
}

// Get returns one customer.
func (s *Service) Get(ctx context.Context, id int64) (customer.Customer, error) {
	return services.Get[customer.Customer](ctx, s.store, storage.TableCustomers, "customer", id)
}

// Create validates and stores a new customer.
func (s *Service) Create(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	errs := forms.Errors{}
	errs.Require(map[string]string{
		"dealer_code":  c.DealerCode,
		"company_name": c.CompanyName,
	})
	if err := errs.Err(); err != nil {
		return customer.Customer{}, err
	}

	created, err := services.Insert(ctx, s.store, storage.TableCustomers, "customer", c)
	if err != nil {
		return customer.Customer{}, err
	}
	s.log.WithContext(ctx).
		WithField("customer_id", created.ID).
		WithField("dealer_code", created.DealerCode).
		Info("customer created")
	return created, nil
}
