package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/storefront/internal/cache"
	categorydomain "github.com/smallbiznis/storefront/internal/category/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/observability/metrics"
	"github.com/smallbiznis/storefront/internal/product/domain"
	productimagedomain "github.com/smallbiznis/storefront/internal/productimage/domain"
	"github.com/smallbiznis/storefront/internal/validation"
	variationdomain "github.com/smallbiznis/storefront/internal/variation/domain"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          domain.Repository
	CategoryRepo  categorydomain.Repository
	VariationRepo variationdomain.Repository
	ImageRepo     productimagedomain.Repository
	Enforcer      variationdomain.DefaultEnforcer
	Validator     *validation.Validator
	Catalog       *config.CatalogConfigHolder
	Cache         cache.Store      `optional:"true"`
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          domain.Repository
	categoryRepo  categorydomain.Repository
	variationRepo variationdomain.Repository
	imageRepo     productimagedomain.Repository
	enforcer      variationdomain.DefaultEnforcer
	validator     *validation.Validator
	catalog       *config.CatalogConfigHolder
	cache         cache.Store
	metrics       *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("product.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		categoryRepo:  p.CategoryRepo,
		variationRepo: p.VariationRepo,
		imageRepo:     p.ImageRepo,
		enforcer:      p.Enforcer,
		validator:     p.Validator,
		catalog:       p.Catalog,
		cache:         p.Cache,
		metrics:       p.Metrics,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	scope := req.Scope
	if scope == "" {
		scope = domain.ScopeActive
	}
	search, err := domain.BuildSearch(req.Query, scope)
	if err != nil {
		return nil, err
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		afterID, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		search.AfterID = afterID
	}
	limit := req.PageSize
	if limit > pagination.MaxPageSize {
		limit = pagination.MaxPageSize
	}
	if limit > 0 {
		search.Limit = limit + 1
	}

	items, err := s.repo.List(ctx, s.db, search)
	if err != nil {
		return nil, err
	}
	items, pageInfo, err := pagination.Page(items, limit, func(p domain.Product) pagination.Cursor {
		return pagination.Cursor{ID: strconv.FormatInt(p.ID, 10)}
	})
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return &domain.ListResponse{Data: resp, PageInfo: pageInfo}, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Detail, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	price, err := validation.ParseMoney(req.Price)
	if err != nil {
		return nil, domain.ErrInvalidPrice
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := s.clock.Now()
	p := &domain.Product{
		ID:          s.genID.Generate().Int64(),
		Title:       title,
		Description: trimmedOrNil(req.Description),
		Price:       price,
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.resolveCategories(ctx, tx, p, req.CategoryIDs, req.DefaultCategoryID); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, tx, p); err != nil {
			return fmt.Errorf("create product: %w", err)
		}
		if len(p.Categories) > 0 {
			if err := s.repo.ReplaceCategories(ctx, tx, p); err != nil {
				return fmt.Errorf("link categories: %w", err)
			}
		}
		_, err := s.enforcer.EnsureDefault(ctx, tx, p.ID, p.Price)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("product created", zap.Int64("product_id", p.ID))
	return s.detail(ctx, p.ID, domain.ScopeAll)
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Detail, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.repo.FindByID(ctx, tx, id, domain.ScopeAll)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.ErrNotFound
		}

		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return domain.ErrInvalidTitle
			}
			p.Title = title
		}
		if req.Description != nil {
			p.Description = trimmedOrNil(req.Description)
		}
		if req.Price != nil {
			price, err := validation.ParseMoney(*req.Price)
			if err != nil {
				return domain.ErrInvalidPrice
			}
			p.Price = price
		}
		if req.Active != nil {
			p.Active = *req.Active
		}
		if req.CategoryIDs != nil || req.DefaultCategoryID != nil {
			ids := categoryIDStrings(p.Categories)
			if req.CategoryIDs != nil {
				ids = *req.CategoryIDs
			}
			defaultID := req.DefaultCategoryID
			if defaultID == nil && p.DefaultCategoryID != nil {
				current := snowflake.ID(*p.DefaultCategoryID).String()
				defaultID = &current
			}
			if err := s.resolveCategories(ctx, tx, p, ids, defaultID); err != nil {
				return err
			}
		}
		p.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, p); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		if req.CategoryIDs != nil {
			if err := s.repo.ReplaceCategories(ctx, tx, p); err != nil {
				return fmt.Errorf("link categories: %w", err)
			}
		}
		_, err = s.enforcer.EnsureDefault(ctx, tx, p.ID, p.Price)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	return s.detail(ctx, id, domain.ScopeAll)
}

// Delete removes a product with its variations, images and category links.
func (s *Service) Delete(ctx context.Context, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.repo.FindByID(ctx, tx, id, domain.ScopeAll)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.ErrNotFound
		}
		if err := s.variationRepo.DeleteByProduct(ctx, tx, id); err != nil {
			return fmt.Errorf("delete variations: %w", err)
		}
		if err := s.imageRepo.DeleteByProduct(ctx, tx, id); err != nil {
			return fmt.Errorf("delete images: %w", err)
		}
		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return fmt.Errorf("delete product: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, id)
	s.log.Info("product deleted", zap.Int64("product_id", id))
	return nil
}

// Get returns the storefront view of an active product: active variations
// with effective prices, images and categories.
func (s *Service) Get(ctx context.Context, rawID string) (*domain.Detail, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}

	key := domain.DetailCacheKey(id)
	var (
		generation int64
		cacheable  bool
	)
	if s.cache != nil {
		cached, gen, ok, err := cache.GetVersionedJSON[domain.Detail](ctx, s.cache, key)
		if err != nil {
			s.log.Warn("product cache read failed", zap.Int64("product_id", id), zap.Error(err))
		}
		s.metrics.RecordCacheLookup(ctx, "product_detail", ok)
		if ok {
			return &cached, nil
		}
		generation, cacheable = gen, err == nil
	}

	detail, err := s.detail(ctx, id, domain.ScopeActive)
	if err != nil {
		return nil, err
	}

	if cacheable {
		ttl := time.Duration(s.catalog.Get().CacheTTLSeconds) * time.Second
		if err := cache.SetVersionedJSON(ctx, s.cache, key, generation, detail, ttl); err != nil {
			s.log.Warn("product cache write failed", zap.Int64("product_id", id), zap.Error(err))
		}
	}
	return detail, nil
}

func (s *Service) detail(ctx context.Context, id int64, scope domain.Scope) (*domain.Detail, error) {
	p, err := s.repo.FindByID(ctx, s.db, id, scope)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}

	variations, err := s.variationRepo.ListByProduct(ctx, s.db, id, scope == domain.ScopeActive)
	if err != nil {
		return nil, err
	}
	images, err := s.imageRepo.ListByProduct(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	detail := &domain.Detail{
		Response:   toResponse(p),
		Variations: make([]variationdomain.Response, 0, len(variations)),
		Images:     make([]productimagedomain.Response, 0, len(images)),
	}
	for i := range variations {
		detail.Variations = append(detail.Variations, variationdomain.NewResponse(&variations[i]))
	}
	for i := range images {
		detail.Images = append(detail.Images, productimagedomain.NewResponse(&images[i]))
	}
	return detail, nil
}

// resolveCategories loads the named categories onto p. Unknown ids are
// rejected rather than dropped.
func (s *Service) resolveCategories(ctx context.Context, tx *gorm.DB, p *domain.Product, rawIDs []string, rawDefault *string) error {
	ids := make([]int64, 0, len(rawIDs))
	seen := make(map[int64]struct{}, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil || id == 0 {
			return domain.ErrInvalidCategory
		}
		if _, dup := seen[id.Int64()]; dup {
			continue
		}
		seen[id.Int64()] = struct{}{}
		ids = append(ids, id.Int64())
	}

	categories, err := s.categoryRepo.FindByIDs(ctx, tx, ids)
	if err != nil {
		return err
	}
	if len(categories) != len(ids) {
		return domain.ErrInvalidCategory
	}
	p.Categories = categories

	p.DefaultCategoryID = nil
	p.DefaultCategory = nil
	if rawDefault == nil || strings.TrimSpace(*rawDefault) == "" {
		return nil
	}
	defaultID, err := snowflake.ParseString(strings.TrimSpace(*rawDefault))
	if err != nil || defaultID == 0 {
		return domain.ErrInvalidCategory
	}
	found, err := s.categoryRepo.FindByIDs(ctx, tx, []int64{defaultID.Int64()})
	if err != nil {
		return err
	}
	if len(found) != 1 {
		return domain.ErrInvalidCategory
	}
	id := found[0].ID
	p.DefaultCategoryID = &id
	p.DefaultCategory = &found[0]
	return nil
}

// validate maps the first failing field to its domain error.
func (s *Service) validate(req any) error {
	errs := s.validator.Struct(req, "")
	if len(errs) == 0 {
		switch r := req.(type) {
		case domain.CreateRequest:
			if strings.TrimSpace(r.Title) == "" {
				return domain.ErrInvalidTitle
			}
		}
		return nil
	}
	field := errs[0].Field
	switch {
	case field == "title":
		return domain.ErrInvalidTitle
	case field == "price":
		return domain.ErrInvalidPrice
	case strings.HasPrefix(field, "category_ids"), field == "default_category_id":
		return domain.ErrInvalidCategory
	default:
		return fmt.Errorf("%s: %s", field, errs[0].Message)
	}
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := cache.Bump(ctx, s.cache, domain.DetailCacheKey(id)); err != nil {
		s.log.Warn("product cache invalidation failed", zap.Int64("product_id", id), zap.Error(err))
	}
}

func toResponse(p *domain.Product) domain.Response {
	resp := domain.Response{
		ID:          snowflake.ID(p.ID).String(),
		Title:       p.Title,
		Description: p.Description,
		Price:       formatMoney(p.Price),
		Active:      p.Active,
		Categories:  make([]domain.CategoryRef, 0, len(p.Categories)),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	for i := range p.Categories {
		resp.Categories = append(resp.Categories, toCategoryRef(&p.Categories[i]))
	}
	if p.DefaultCategory != nil {
		ref := toCategoryRef(p.DefaultCategory)
		resp.DefaultCategory = &ref
	}
	return resp
}

func toCategoryRef(c *categorydomain.Category) domain.CategoryRef {
	return domain.CategoryRef{
		ID:    snowflake.ID(c.ID).String(),
		Title: c.Title,
		Slug:  c.Slug,
	}
}

func categoryIDStrings(categories []categorydomain.Category) []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		out = append(out, snowflake.ID(c.ID).String())
	}
	return out
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(validation.MoneyScale)
}

func parseID(raw string) (int64, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id.Int64(), nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
