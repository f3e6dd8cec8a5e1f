package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/cache"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/observability/metrics"
	productdomain "github.com/smallbiznis/storefront/internal/product/domain"
	"github.com/smallbiznis/storefront/internal/validation"
	"github.com/smallbiznis/storefront/internal/variation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	ProductRepo productdomain.Repository
	Validator   *validation.Validator
	Catalog     *config.CatalogConfigHolder
	Cache       cache.Store      `optional:"true"`
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	productRepo productdomain.Repository
	validator   *validation.Validator
	catalog     *config.CatalogConfigHolder
	cache       cache.Store
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("variation.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		productRepo: p.ProductRepo,
		validator:   p.Validator,
		catalog:     p.Catalog,
		cache:       p.Cache,
		metrics:     p.Metrics,
	}
}

// ListByProduct returns every variation of a product, active or not.
func (s *Service) ListByProduct(ctx context.Context, productID string) ([]domain.Response, error) {
	id, err := parseProductID(productID)
	if err != nil {
		return nil, err
	}
	product, err := s.productRepo.FindByID(ctx, s.db, id, productdomain.ScopeAll)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}

	items, err := s.repo.ListByProduct(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, domain.NewResponse(&items[i]))
	}
	return resp, nil
}

// plannedEdit is an edit that passed field validation, with parsed values.
type plannedEdit struct {
	edit     domain.Edit
	id       int64
	existing *domain.Variation
}

// BatchEdit validates every edit before writing any of them, then applies the
// whole batch in one transaction. Each variation is bound to the route
// product whatever product the payload names.
func (s *Service) BatchEdit(ctx context.Context, req domain.BatchEditRequest) (*domain.BatchEditResponse, error) {
	productID, err := parseProductID(req.ProductID)
	if err != nil {
		return nil, err
	}
	product, err := s.productRepo.FindByID(ctx, s.db, productID, productdomain.ScopeAll)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}

	plan, err := s.plan(ctx, productID, req.Edits)
	if err != nil {
		if errors.Is(err, domain.ErrValidationFailed) {
			s.metrics.RecordBatchEdit(ctx, metrics.BatchEditRejected, 0)
		}
		return nil, err
	}

	now := s.clock.Now()
	saved := make([]domain.Variation, 0, len(plan))
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range plan {
			v, err := s.apply(ctx, tx, productID, p, now)
			if err != nil {
				return err
			}
			saved = append(saved, *v)
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordBatchEdit(ctx, metrics.BatchEditFailed, 0)
		return nil, fmt.Errorf("apply batch edit: %w", err)
	}

	s.invalidate(ctx, productID)
	s.metrics.RecordBatchEdit(ctx, metrics.BatchEditApplied, len(saved))
	s.log.Info("batch edit applied",
		zap.Int64("product_id", productID),
		zap.Int("edits", len(saved)),
	)

	resp := &domain.BatchEditResponse{
		Notice:     domain.BatchEditNotice,
		Variations: make([]domain.Response, 0, len(saved)),
	}
	for i := range saved {
		resp.Variations = append(resp.Variations, domain.NewResponse(&saved[i]))
	}
	return resp, nil
}

// plan validates the batch and loads the variations it targets. Every
// problem is collected so the caller sees the full set of field errors.
func (s *Service) plan(ctx context.Context, productID int64, edits []domain.Edit) ([]plannedEdit, error) {
	maxEdits := s.catalog.Get().MaxBatchEdits
	if len(edits) == 0 {
		return nil, &domain.ValidationError{Errors: []validation.FieldError{{
			Field: "edits", Code: "required", Message: "at least one edit is required",
		}}}
	}
	if len(edits) > maxEdits {
		return nil, &domain.ValidationError{Errors: []validation.FieldError{{
			Field: "edits", Code: "max", Message: fmt.Sprintf("at most %d edits per batch", maxEdits),
		}}}
	}

	var fieldErrs []validation.FieldError
	plan := make([]plannedEdit, len(edits))
	var ids []int64
	seen := make(map[int64]int, len(edits))
	for i, edit := range edits {
		prefix := fmt.Sprintf("edits[%d].", i)
		plan[i].edit = edit

		undecoded := make(map[string]bool)
		for _, fe := range edit.DecodeErrors() {
			undecoded[fe.Field] = true
			fe.Field = strings.TrimSuffix(prefix+fe.Field, ".")
			fieldErrs = append(fieldErrs, fe)
		}
		if undecoded[""] {
			continue
		}
		for _, fe := range s.validator.Struct(edit, prefix) {
			if !undecoded[strings.TrimPrefix(fe.Field, prefix)] {
				fieldErrs = append(fieldErrs, fe)
			}
		}
		if undecoded["id"] {
			continue
		}

		rawID := strings.TrimSpace(edit.ID)
		if rawID == "" {
			if undecoded["title"] {
				continue
			}
			if edit.Title == nil || strings.TrimSpace(*edit.Title) == "" {
				fieldErrs = append(fieldErrs, validation.FieldError{
					Field: prefix + "title", Code: "required", Message: "a new variation needs a title",
				})
			}
			continue
		}
		id, err := snowflake.ParseString(rawID)
		if err != nil {
			// already reported by the snowflake rule
			continue
		}
		if id == 0 {
			fieldErrs = append(fieldErrs, validation.FieldError{
				Field: prefix + "id", Code: "not_found", Message: "variation does not belong to this product",
			})
			continue
		}
		if first, dup := seen[id.Int64()]; dup {
			fieldErrs = append(fieldErrs, validation.FieldError{
				Field: prefix + "id", Code: "duplicate", Message: fmt.Sprintf("variation already edited by edits[%d]", first),
			})
			continue
		}
		seen[id.Int64()] = i
		plan[i].id = id.Int64()
		ids = append(ids, id.Int64())
	}

	existing, err := s.repo.FindByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*domain.Variation, len(existing))
	for i := range existing {
		byID[existing[i].ID] = &existing[i]
	}
	for i := range plan {
		if plan[i].id == 0 {
			continue
		}
		v, ok := byID[plan[i].id]
		if !ok || v.ProductID != productID {
			fieldErrs = append(fieldErrs, validation.FieldError{
				Field:   fmt.Sprintf("edits[%d].id", i),
				Code:    "not_found",
				Message: "variation does not belong to this product",
			})
			continue
		}
		plan[i].existing = v
	}

	if len(fieldErrs) > 0 {
		return nil, &domain.ValidationError{Errors: fieldErrs}
	}
	return plan, nil
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, productID int64, p plannedEdit, now time.Time) (*domain.Variation, error) {
	price, err := validation.ParseMoney(p.edit.Price.String())
	if err != nil {
		return nil, err
	}
	salePrice, err := validation.ParseOptionalMoney(p.edit.SalePrice)
	if err != nil {
		return nil, err
	}
	inventory, err := validation.ParseInventory(p.edit.Inventory.String())
	if err != nil {
		return nil, err
	}

	v := p.existing
	if v == nil {
		v = &domain.Variation{
			ID:        s.genID.Generate().Int64(),
			Active:    true,
			CreatedAt: now,
		}
	}
	v.ProductID = productID
	v.Price = price
	v.SalePrice = salePrice
	v.Inventory = inventory
	if p.edit.Active != nil {
		v.Active = *p.edit.Active
	}
	if p.edit.Title != nil {
		if title := strings.TrimSpace(*p.edit.Title); title != "" {
			v.Title = title
		}
	}
	v.UpdatedAt = now

	if p.existing == nil {
		err = s.repo.Create(ctx, tx, v)
	} else {
		err = s.repo.Save(ctx, tx, v)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) invalidate(ctx context.Context, productID int64) {
	if s.cache == nil {
		return
	}
	if err := cache.Bump(ctx, s.cache, productdomain.DetailCacheKey(productID)); err != nil {
		s.log.Warn("product cache invalidation failed", zap.Int64("product_id", productID), zap.Error(err))
	}
}

func parseProductID(raw string) (int64, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidProductID
	}
	return id.Int64(), nil
}
