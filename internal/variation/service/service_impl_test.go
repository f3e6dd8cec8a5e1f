package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/storefront/internal/cache"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/migration"
	productdomain "github.com/smallbiznis/storefront/internal/product/domain"
	productrepo "github.com/smallbiznis/storefront/internal/product/repository"
	"github.com/smallbiznis/storefront/internal/validation"
	"github.com/smallbiznis/storefront/internal/variation/domain"
	"github.com/smallbiznis/storefront/internal/variation/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc      domain.Service
	enforcer domain.DefaultEnforcer
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	store    cache.Store
}

func setup(t *testing.T, catalog config.CatalogConfig) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migration.AutoMigrate(db))

	node := mustNode(t)
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	holder := config.NewStaticCatalogConfig(catalog)
	repo := repository.Provide()
	products := productrepo.Provide()
	store := cache.NewMemoryStore(cache.NewTTLCache[string, []byte](clk))

	return &fixture{
		svc: New(Params{
			DB:          db,
			Log:         zap.NewNop(),
			GenID:       node,
			Clock:       clk,
			Repo:        repo,
			ProductRepo: products,
			Validator:   validation.New(),
			Catalog:     holder,
			Cache:       store,
		}),
		enforcer: NewEnforcer(EnforcerParams{
			Log:         zap.NewNop(),
			GenID:       node,
			Clock:       clk,
			Repo:        repo,
			ProductRepo: products,
			Catalog:     holder,
		}),
		db:    db,
		node:  node,
		clock: clk,
		store: store,
	}
}

// seedProduct stores a product with its default variation.
func (f *fixture) seedProduct(t *testing.T, title, price string) (*productdomain.Product, *domain.Variation) {
	t.Helper()
	p := &productdomain.Product{
		ID:        f.node.Generate().Int64(),
		Title:     title,
		Price:     decimal.RequireFromString(price),
		Active:    true,
		CreatedAt: f.clock.Now(),
		UpdatedAt: f.clock.Now(),
	}
	require.NoError(t, f.db.Create(p).Error)

	var v *domain.Variation
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		v, err = f.enforcer.EnsureDefault(context.Background(), tx, p.ID, p.Price)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, v)
	return p, v
}

func (f *fixture) variation(t *testing.T, id int64) domain.Variation {
	t.Helper()
	var v domain.Variation
	require.NoError(t, f.db.First(&v, "id = ?", id).Error)
	return v
}

func idOf(id int64) string {
	return snowflake.ID(id).String()
}

func strptr(s string) *string { return &s }

func TestEnsureDefaultIsIdempotent(t *testing.T) {
	f := setup(t, config.DefaultCatalogConfig())
	p, v := f.seedProduct(t, "Shirt", "19.99")

	assert.Equal(t, "Default", v.Title)
	assert.True(t, v.Price.Equal(decimal.RequireFromString("19.99")))
	assert.True(t, v.Active)
	assert.Nil(t, v.SalePrice)
	assert.Nil(t, v.Inventory)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		again, err := f.enforcer.EnsureDefault(context.Background(), tx, p.ID, p.Price)
		assert.Nil(t, again)
		return err
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.db.Model(&domain.Variation{}).Where("product_id = ?", p.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

// staleCountRepo answers CountByProduct with zero, as a save that counted
// before a concurrent save committed its default would see.
type staleCountRepo struct {
	domain.Repository
}

func (staleCountRepo) CountByProduct(context.Context, *gorm.DB, int64) (int64, error) {
	return 0, nil
}

func TestEnsureDefaultAfterStaleCountKeepsOneDefault(t *testing.T) {
	f := setup(t, config.DefaultCatalogConfig())
	p, first := f.seedProduct(t, "Shirt", "19.99")

	racing := NewEnforcer(EnforcerParams{
		Log:         zap.NewNop(),
		GenID:       f.node,
		Clock:       f.clock,
		Repo:        staleCountRepo{Repository: repository.Provide()},
		ProductRepo: productrepo.Provide(),
		Catalog:     config.NewStaticCatalogConfig(config.DefaultCatalogConfig()),
	})
	err := f.db.Transaction(func(tx *gorm.DB) error {
		again, err := racing.EnsureDefault(context.Background(), tx, p.ID, p.Price)
		assert.Nil(t, again)
		return err
	})
	require.NoError(t, err)

	var items []domain.Variation
	require.NoError(t, f.db.Where("product_id = ?", p.ID).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, first.ID, items[0].ID)
	require.NotNil(t, items[0].DefaultFor)
	assert.Equal(t, p.ID, *items[0].DefaultFor)
}

func TestEnsureDefaultUsesConfiguredTitle(t *testing.T) {
	catalog := config.DefaultCatalogConfig()
	catalog.DefaultVariationTitle = "Standard"
	f := setup(t, catalog)

	_, v := f.seedProduct(t, "Shirt", "5")
	assert.Equal(t, "Standard", v.Title)
}

func TestEnsureDefaultMissingProduct(t *testing.T) {
	f := setup(t, config.DefaultCatalogConfig())

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.enforcer.EnsureDefault(context.Background(), tx, 42, decimal.NewFromInt(1))
		return err
	})
	require.ErrorIs(t, err, productdomain.ErrNotFound)
}

func TestBatchEditRejectsNegativePriceWithoutWriting(t *testing.T) {
	f := setup(t, config.DefaultCatalogConfig())
	p, v := f.seedProduct(t, "Shirt", "10")

	_, err := f.svc.BatchEdit(context.Background(), domain.BatchEditRequest{
		ProductID: idOf(p.ID),
		Edits: []domain.Edit{
			{ID: idOf(v.ID), Price: json.Number("12")},
			{Title: strptr("Large"), Price: json.Number("-5")},
		},
	})
	require.ErrorIs(t, err, domain.ErrValidationFailed)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Errors, 1)
	assert.Equal(t, "edits[1].price", verr.Errors[0].Field)
	assert.Equal(t, "money", verr.Errors[0].Code)

	stored := f.variation(t, v.ID)
	assert.True(t, stored.Price.Equal(decimal.NewFromInt(10)))
	var count int64
	require.NoError(t, f.db.Model(&domain.Variation{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestBatchEditBindsEditsToRouteProduct(t *testing.T) {
	f := setup(t, config.DefaultCatalogConfig())
	p, v := f.seedProduct(t, "Shirt", "10")
	other, _ := f.seedProduct(t, "Hat", "3")

	resp, err := f.svc.BatchEdit(context.Background(), domain.BatchEditRequest{
		ProductID: idOf(p.ID),
		Edits: []domain.Edit{
			{ID: idOf(v.ID), ProductID: idOf(other.ID), Price: json.Number("5"), SalePrice: json.Number("4.50"), Inventory: json.Number("-1")},
			{ProductID: idOf(other.ID), Title: strptr("Large"), Price: json.Number("6")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BatchEditNotice, resp.Notice)
	require.Len(t, resp.Variations, 2)

	updated := resp.Variations[0]
	assert.Equal(t, idOf(p.ID), updated.ProductID)
	assert.Equal(t, "5.00", updated.Price)
	assert.Equal(t, "4.50", updated.EffectivePrice)
	assert.True(t, updated.Unlimited)

	created := resp.Variations[1]
	assert.Equal(t, idOf(p.ID), created.ProductID)
	assert.Equal(t, "Large", created.Title)
	assert.True(t, created.Active)

	stored := f.variation(t, v.ID)
	assert.Equal(t, p.ID, stored.ProductID)
	assert.Equal(t, "Default", stored.Title)
}

func TestBatchEditRejectsVariationOfAnotherProduct(t *testing.T) {
	f := setup(t, config.DefaultCatalogConfig())
	p, _ := f.seedProduct(t, "Shirt", "10")
	_, foreign := f.seedProduct(t, "Hat", "3")

	_, err := f.svc.BatchEdit(context.Background(), domain.BatchEditRequest{
		ProductID: idOf(p.ID),
		Edits:     []domain.Edit{{ID: idOf(foreign.ID), Price: json.Number("1")}},
	})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "edits[0].id", verr.Errors[0].Field)
	assert.Equal(t, "not_found", verr.Errors[0].Code)

	stored := f.variation(t, foreign.ID)
	assert.True(t, stored.Price.Equal(decimal.NewFromInt(3)))
}

func TestBatchEditCollectsEveryError(t *testing.T) {
	f := setup(t, config.DefaultCatalogConfig())
	p, v := f.seedProduct(t, "Shirt", "10")

	_, err := f.svc.BatchEdit(context.Background(), domain.BatchEditRequest{
		ProductID: idOf(p.ID),
		Edits: []domain.Edit{
			{ID: idOf(v.ID), Price: json.Number("1.999")},
			{ID: idOf(v.ID), Price: json.Number("2")},
			{Price: json.Number("3"), Inventory: json.Number("lots")},
		},
	})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))

	fields := map[string]string{}
	for _, fe := range verr.Errors {
		fields[fe.Field] = fe.Code
	}
	assert.Equal(t, map[string]string{
		"edits[0].price":     "money",
		"edits[1].id":        "duplicate",
		"edits[2].inventory": "inventory",
		"edits[2].title":     "required",
	}, fields)
}

func TestBatchEditReportsMistypedFields(t *testing.T) {
	f := setup(t, config.DefaultCatalogConfig())
	p, v := f.seedProduct(t, "Shirt", "10")

	body := `{"edits":[
		{"id":"` + idOf(v.ID) + `","price":"abc"},
		{"id":"` + idOf(v.ID) + `","price":5,"active":"yes","inventory":1.5},
		7
	]}`
	var req domain.BatchEditRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	req.ProductID = idOf(p.ID)

	_, err := f.svc.BatchEdit(context.Background(), req)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))

	fields := map[string]string{}
	for _, fe := range verr.Errors {
		fields[fe.Field] = fe.Code
	}
	assert.Equal(t, map[string]string{
		"edits[0].price":     "money",
		"edits[1].id":        "duplicate",
		"edits[1].active":    "boolean",
		"edits[1].inventory": "inventory",
		"edits[2]":           "object",
	}, fields)
	assert.True(t, f.variation(t, v.ID).Price.Equal(decimal.RequireFromString("10")))
}

func TestBatchEditBatchSize(t *testing.T) {
	catalog := config.DefaultCatalogConfig()
	catalog.MaxBatchEdits = 1
	f := setup(t, catalog)
	p, v := f.seedProduct(t, "Shirt", "10")

	_, err := f.svc.BatchEdit(context.Background(), domain.BatchEditRequest{ProductID: idOf(p.ID)})
	require.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = f.svc.BatchEdit(context.Background(), domain.BatchEditRequest{
		ProductID: idOf(p.ID),
		Edits: []domain.Edit{
			{ID: idOf(v.ID), Price: json.Number("1")},
			{Title: strptr("XL"), Price: json.Number("1")},
		},
	})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "edits", verr.Errors[0].Field)
	assert.Equal(t, "max", verr.Errors[0].Code)
}

func TestBatchEditUnknownProduct(t *testing.T) {
	f := setup(t, config.DefaultCatalogConfig())

	_, err := f.svc.BatchEdit(context.Background(), domain.BatchEditRequest{
		ProductID: idOf(f.node.Generate().Int64()),
		Edits:     []domain.Edit{{Title: strptr("XL"), Price: json.Number("1")}},
	})
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = f.svc.BatchEdit(context.Background(), domain.BatchEditRequest{ProductID: "x"})
	require.ErrorIs(t, err, domain.ErrInvalidProductID)
}

func TestBatchEditInvalidatesProductDetail(t *testing.T) {
	f := setup(t, config.DefaultCatalogConfig())
	p, v := f.seedProduct(t, "Shirt", "10")
	ctx := context.Background()

	key := productdomain.DetailCacheKey(p.ID)
	require.NoError(t, cache.SetVersionedJSON(ctx, f.store, key, 0, productdomain.Detail{}, time.Minute))

	active := false
	_, err := f.svc.BatchEdit(ctx, domain.BatchEditRequest{
		ProductID: idOf(p.ID),
		Edits:     []domain.Edit{{ID: idOf(v.ID), Price: json.Number("10"), Active: &active}},
	})
	require.NoError(t, err)

	_, gen, ok, err := cache.GetVersionedJSON[productdomain.Detail](ctx, f.store, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), gen)
	assert.False(t, f.variation(t, v.ID).Active)
}

func TestListByProductIncludesInactive(t *testing.T) {
	f := setup(t, config.DefaultCatalogConfig())
	p, v := f.seedProduct(t, "Shirt", "10")
	require.NoError(t, f.db.Model(&domain.Variation{}).Where("id = ?", v.ID).Update("active", false).Error)

	items, err := f.svc.ListByProduct(context.Background(), idOf(p.ID))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].Active)
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}
