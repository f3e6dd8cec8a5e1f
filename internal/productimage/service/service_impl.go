package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/cache"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	productdomain "github.com/smallbiznis/storefront/internal/product/domain"
	"github.com/smallbiznis/storefront/internal/productimage/domain"
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
	Catalog     *config.CatalogConfigHolder
	Cache       cache.Store `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	productRepo productdomain.Repository
	catalog     *config.CatalogConfigHolder
	cache       cache.Store
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("productimage.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		productRepo: p.ProductRepo,
		catalog:     p.Catalog,
		cache:       p.Cache,
	}
}

// Create records an image of a product under its resolved storage path. The
// image id is generated before the path so the file name is unique.
func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	productID, err := parseID(req.ProductID)
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

	id := s.genID.Generate().Int64()
	path, err := domain.ResolvePathWithPrefix(s.catalog.Get().ImagePrefix, product.Title, product.ID, id, req.Filename)
	if err != nil {
		return nil, err
	}

	img := &domain.ProductImage{
		ID:               id,
		ProductID:        product.ID,
		Path:             path,
		OriginalFilename: strings.TrimSpace(req.Filename),
		CreatedAt:        s.clock.Now(),
	}
	if err := s.repo.Create(ctx, s.db, img); err != nil {
		return nil, fmt.Errorf("create product image: %w", err)
	}

	s.invalidate(ctx, product.ID)
	s.log.Info("product image stored",
		zap.Int64("product_id", product.ID),
		zap.Int64("image_id", img.ID),
		zap.String("path", img.Path),
	)
	resp := domain.NewResponse(img)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, rawProductID string) ([]domain.Response, error) {
	productID, err := parseID(rawProductID)
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

	items, err := s.repo.ListByProduct(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, domain.NewResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Delete(ctx context.Context, rawProductID, rawImageID string) error {
	productID, err := parseID(rawProductID)
	if err != nil {
		return err
	}
	imageID, err := parseID(rawImageID)
	if err != nil {
		return err
	}

	img, err := s.repo.FindByID(ctx, s.db, productID, imageID)
	if err != nil {
		return err
	}
	if img == nil {
		return domain.ErrNotFound
	}
	if err := s.repo.Delete(ctx, s.db, productID, imageID); err != nil {
		return fmt.Errorf("delete product image: %w", err)
	}

	s.invalidate(ctx, productID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, productID int64) {
	if s.cache == nil {
		return
	}
	if err := cache.Bump(ctx, s.cache, productdomain.DetailCacheKey(productID)); err != nil {
		s.log.Warn("product cache invalidation failed", zap.Int64("product_id", productID), zap.Error(err))
	}
}

func parseID(raw string) (int64, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id.Int64(), nil
}
