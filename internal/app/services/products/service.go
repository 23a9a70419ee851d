package products

import (
	"context"
	"strings"

	"github.com/monitaro/pjmanager/internal/app/domain/product"
	"github.com/monitaro/pjmanager/internal/app/forms"
	"github.com/monitaro/pjmanager/internal/app/services"
	"github.com/monitaro/pjmanager/internal/app/storage"
	apperrors "github.com/monitaro/pjmanager/internal/errors"
	"github.com/monitaro/pjmanager/pkg/logger"
)

// MsgDuplicateCode is shown when a product code is already taken.
const MsgDuplicateCode = "この商品コードは既に使用されています"

// Service manages the product catalog.
type Service struct {
	store storage.RecordStore
	log   *logger.Logger
}

// New creates a product service backed by store.
func New(store storage.RecordStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("products")
	}
	return &Service{store: store, log: log}
}

// Search returns products whose name, code or model number contains term,
// ordered by id, together with the catalog size. An empty term matches all.
func (s *Service) Search(ctx context.Context, term string) ([]product.Product, int, error) {
	q := storage.Query{}.Order("id", false)
	if term = strings.TrimSpace(term); term != "" {
		q.AnyOf = []storage.Filter{
			storage.ILike("product_name", term),
			storage.ILike("product_code", term),
			storage.ILike("model_number", term),
		}
	}
	items, err := services.List[product.Product](ctx, s.store, storage.TableProducts, "product", q)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.Count(ctx, storage.TableProducts)
	if err != nil {
		return nil, 0, services.StoreError("product", 0, err)
	}
	return items, total, nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id int64) (product.Product, error) {
	return services.Get[product.Product](ctx, s.store, storage.TableProducts, "product", id)
}

// Create stores a new product. A taken code is a conflict.
func (s *Service) Create(ctx context.Context, p product.Product) (product.Product, error) {
	if err := normalize(&p); err != nil {
		return product.Product{}, err
	}
	created, err := services.Insert(ctx, s.store, storage.TableProducts, "product", p)
	if err != nil {
		return product.Product{}, duplicate(err)
	}
	s.log.WithContext(ctx).
		WithField("product_id", created.ID).
		WithField("product_code", created.Code).
		Info("product created")
	return created, nil
}

// Update overwrites the product with id.
func (s *Service) Update(ctx context.Context, id int64, p product.Product) (product.Product, error) {
	if err := normalize(&p); err != nil {
		return product.Product{}, err
	}
	if err := services.Update(ctx, s.store, storage.TableProducts, "product", id, p); err != nil {
		return product.Product{}, duplicate(err)
	}
	s.log.WithContext(ctx).WithField("product_id", id).Info("product updated")
	return s.Get(ctx, id)
}

func normalize(p *product.Product) error {
	p.Code = strings.TrimSpace(p.Code)
	errs := forms.Errors{}
	errs.Require(map[string]string{
		"product_code":  p.Code,
		"product_name":  p.Name,
		"category_main": p.CategoryMain,
	})
	if err := errs.Err(); err != nil {
		return err
	}
	for _, field := range p.OptionalText() {
		*field = forms.NullIfEmpty(*field)
	}
	return nil
}

func duplicate(err error) error {
	if storage.IsUniqueViolation(err) {
		return apperrors.Conflict(MsgDuplicateCode, err)
	}
	return err
}
