package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/observability/metrics"
	productdomain "github.com/smallbiznis/storefront/internal/product/domain"
	"github.com/smallbiznis/storefront/internal/variation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type EnforcerParams struct {
	fx.In

	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	ProductRepo productdomain.Repository
	Catalog     *config.CatalogConfigHolder
	Metrics     *metrics.Metrics `optional:"true"`
}

type Enforcer struct {
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	productRepo productdomain.Repository
	catalog     *config.CatalogConfigHolder
	metrics     *metrics.Metrics
}

func NewEnforcer(p EnforcerParams) domain.DefaultEnforcer {
	return &Enforcer{
		log:         p.Log.Named("variation.enforcer"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		productRepo: p.ProductRepo,
		catalog:     p.Catalog,
		metrics:     p.Metrics,
	}
}

// EnsureDefault creates the default variation when the product has none.
// It locks the product row first where the dialect has row locks; the
// default_for unique index covers saves that still counted zero concurrently.
// Returns nil when the product already has variations or a default.
func (e *Enforcer) EnsureDefault(ctx context.Context, tx *gorm.DB, productID int64, price decimal.Decimal) (*domain.Variation, error) {
	if _, err := e.productRepo.LockByID(ctx, tx, productID); err != nil {
		return nil, fmt.Errorf("lock product %d: %w", productID, err)
	}

	count, err := e.repo.CountByProduct(ctx, tx, productID)
	if err != nil {
		return nil, fmt.Errorf("count variations: %w", err)
	}
	if count > 0 {
		return nil, nil
	}

	now := e.clock.Now()
	v := &domain.Variation{
		ID:         e.genID.Generate().Int64(),
		ProductID:  productID,
		Title:      e.catalog.Get().DefaultVariationTitle,
		Price:      price,
		Active:     true,
		DefaultFor: &productID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	created, err := e.repo.CreateDefault(ctx, tx, v)
	if err != nil {
		return nil, fmt.Errorf("create default variation: %w", err)
	}
	if !created {
		e.log.Debug("default variation already created by a concurrent save",
			zap.Int64("product_id", productID),
		)
		return nil, nil
	}

	e.metrics.RecordDefaultVariationCreated(ctx)
	e.log.Debug("default variation created",
		zap.Int64("product_id", productID),
		zap.Int64("variation_id", v.ID),
	)
	return v, nil
}
