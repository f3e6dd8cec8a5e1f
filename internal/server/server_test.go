package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/storefront/internal/authorization"
	categorydomain "github.com/smallbiznis/storefront/internal/category/domain"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/observability"
	productdomain "github.com/smallbiznis/storefront/internal/product/domain"
	productimagedomain "github.com/smallbiznis/storefront/internal/productimage/domain"
	"github.com/smallbiznis/storefront/internal/ratelimit"
	"github.com/smallbiznis/storefront/internal/validation"
	variationdomain "github.com/smallbiznis/storefront/internal/variation/domain"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"github.com/smallbiznis/storefront/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	staffToken  = "staff-token"
	viewerToken = "viewer-token"
)

type fakeProductService struct {
	listReq productdomain.ListRequest
	getErr  error
}

func (f *fakeProductService) Create(ctx context.Context, req productdomain.CreateRequest) (*productdomain.Detail, error) {
	return &productdomain.Detail{Response: productdomain.Response{ID: "1", Title: req.Title, Price: req.Price}}, nil
}

func (f *fakeProductService) Update(ctx context.Context, req productdomain.UpdateRequest) (*productdomain.Detail, error) {
	return &productdomain.Detail{Response: productdomain.Response{ID: req.ID}}, nil
}

func (f *fakeProductService) Delete(ctx context.Context, id string) error {
	return nil
}

func (f *fakeProductService) Get(ctx context.Context, id string) (*productdomain.Detail, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &productdomain.Detail{Response: productdomain.Response{ID: id}}, nil
}

func (f *fakeProductService) List(ctx context.Context, req productdomain.ListRequest) (*productdomain.ListResponse, error) {
	f.listReq = req
	if req.PageToken == "bogus" {
		return nil, pagination.ErrInvalidPageToken
	}
	return &productdomain.ListResponse{Data: []productdomain.Response{{ID: "1", Title: "Shirt"}}}, nil
}

type fakeVariationService struct {
	batchReq variationdomain.BatchEditRequest
	batchErr error
	calls    int
}

func (f *fakeVariationService) ListByProduct(ctx context.Context, productID string) ([]variationdomain.Response, error) {
	return []variationdomain.Response{{ID: "2", ProductID: productID}}, nil
}

func (f *fakeVariationService) BatchEdit(ctx context.Context, req variationdomain.BatchEditRequest) (*variationdomain.BatchEditResponse, error) {
	f.calls++
	f.batchReq = req
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	return &variationdomain.BatchEditResponse{
		Notice:     variationdomain.BatchEditNotice,
		Variations: []variationdomain.Response{{ID: "2", ProductID: req.ProductID, Price: "5.00"}},
	}, nil
}

type fakeImageService struct{}

func (fakeImageService) Create(ctx context.Context, req productimagedomain.CreateRequest) (*productimagedomain.Response, error) {
	if _, err := productimagedomain.Extension(req.Filename); err != nil {
		return nil, err
	}
	return &productimagedomain.Response{ID: "3", ProductID: req.ProductID, OriginalFilename: req.Filename}, nil
}

func (fakeImageService) List(ctx context.Context, productID string) ([]productimagedomain.Response, error) {
	return nil, nil
}

func (fakeImageService) Delete(ctx context.Context, productID, imageID string) error {
	return productimagedomain.ErrNotFound
}

type fakeCategoryService struct {
	listReq categorydomain.ListRequest
}

func (f *fakeCategoryService) Create(ctx context.Context, req categorydomain.CreateRequest) (*categorydomain.Response, error) {
	return nil, categorydomain.ErrDuplicate
}

func (f *fakeCategoryService) List(ctx context.Context, req categorydomain.ListRequest) ([]categorydomain.Response, error) {
	f.listReq = req
	return []categorydomain.Response{}, nil
}

func (f *fakeCategoryService) GetBySlug(ctx context.Context, slug string) (*categorydomain.Response, error) {
	return nil, categorydomain.ErrNotFound
}

type testServer struct {
	engine     *gin.Engine
	products   *fakeProductService
	variations *fakeVariationService
	categories *fakeCategoryService
}

func newTestServer(t *testing.T, limiter *ratelimit.BatchEditLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	httpMetrics, err := telemetry.NewMetricsWithRegisterer(prometheus.NewRegistry())
	require.NoError(t, err)
	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)

	ts := &testServer{
		engine:     NewEngine(observability.Config{}, httpMetrics),
		products:   &fakeProductService{},
		variations: &fakeVariationService{},
		categories: &fakeCategoryService{},
	}
	NewServer(ServerParams{
		Gin: ts.engine,
		Cfg: config.Config{AuthTokens: map[string]config.Actor{
			staffToken:  {Name: "alice", Role: authorization.RoleStaff},
			viewerToken: {Name: "bob", Role: authorization.RoleViewer},
		}},
		AuthzSvc:         authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		CategorySvc:      ts.categories,
		ProductSvc:       ts.products,
		VariationSvc:     ts.variations,
		ProductImageSvc:  fakeImageService{},
		BatchEditLimiter: limiter,
	})
	return ts
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

var batchBody = map[string]any{
	"edits": []map[string]any{{"id": "2", "product_id": "999", "price": 5}},
}

func TestListProductsIsPublic(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/products?q=+shirt+", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shirt", ts.products.listReq.Query)
	assert.Equal(t, productdomain.ScopeActive, ts.products.listReq.Scope)
	assert.Equal(t, pagination.DefaultPageSize, ts.products.listReq.PageSize)

	var resp productdomain.ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.False(t, resp.PageInfo.HasMore)
}

func TestListProductsPageParams(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/products?page_size=10&page_token=abc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, ts.products.listReq.PageSize)
	assert.Equal(t, "abc", ts.products.listReq.PageToken)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/products?page_size=1000", "", nil).Code)

	rec = ts.do(http.MethodGet, "/api/products?page_token=bogus", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "page_token", decodeError(t, rec).Errors[0].Field)
}

func TestListProductsAllScopeRequiresStaff(t *testing.T) {
	ts := newTestServer(t, nil)

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/products?scope=all", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/api/products?scope=all", viewerToken, nil).Code)

	rec := ts.do(http.MethodGet, "/api/products?scope=all", staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, productdomain.ScopeAll, ts.products.listReq.Scope)

	rec = ts.do(http.MethodGet, "/api/products?scope=hidden", staffToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "scope", decodeError(t, rec).Errors[0].Field)
}

func TestUnknownTokenIsRejected(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/products", "stolen", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Type)
}

func TestGetProductNotFound(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.products.getErr = productdomain.ErrNotFound

	rec := ts.do(http.MethodGet, "/api/products/42", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchEditBindsRouteProduct(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/products/77/variations/batch", staffToken, batchBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/api/products", rec.Header().Get("Location"))

	var resp variationdomain.BatchEditResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, variationdomain.BatchEditNotice, resp.Notice)
	require.Len(t, resp.Variations, 1)

	assert.Equal(t, "77", ts.variations.batchReq.ProductID)
	require.Len(t, ts.variations.batchReq.Edits, 1)
	assert.Equal(t, "5", ts.variations.batchReq.Edits[0].Price.String())
}

func TestBatchEditRequiresStaff(t *testing.T) {
	ts := newTestServer(t, nil)

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodPost, "/api/products/77/variations/batch", "", batchBody).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, "/api/products/77/variations/batch", viewerToken, batchBody).Code)
	assert.Zero(t, ts.variations.calls)
}

func TestBatchEditValidationErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.variations.batchErr = &variationdomain.ValidationError{Errors: []validation.FieldError{
		{Field: "edits[0].price", Code: "money", Message: "must be a non-negative amount with at most 2 decimal places"},
	}}

	rec := ts.do(http.MethodPost, "/api/products/77/variations/batch", staffToken, batchBody)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "edits[0].price", payload.Errors[0].Field)
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestBatchEditForwardsMistypedFields(t *testing.T) {
	ts := newTestServer(t, nil)

	body := map[string]any{"edits": []map[string]any{
		{"price": "abc"},
		{"price": 5, "active": "yes"},
	}}
	rec := ts.do(http.MethodPost, "/api/products/77/variations/batch", staffToken, body)
	require.Equal(t, http.StatusOK, rec.Code)

	edits := ts.variations.batchReq.Edits
	require.Len(t, edits, 2)
	require.Len(t, edits[0].DecodeErrors(), 1)
	assert.Equal(t, "price", edits[0].DecodeErrors()[0].Field)
	assert.Equal(t, "money", edits[0].DecodeErrors()[0].Code)
	require.Len(t, edits[1].DecodeErrors(), 1)
	assert.Equal(t, "active", edits[1].DecodeErrors()[0].Field)
	assert.Equal(t, "boolean", edits[1].DecodeErrors()[0].Code)
	assert.Equal(t, "5", edits[1].Price.String())
}

func TestBatchEditMalformedBody(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/products/77/variations/batch", staffToken, map[string]any{"edits": "nope"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Errors[0].Code)
}

func TestBatchEditRateLimitAndLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := ratelimit.NewBatchEditLimiter(config.Config{RateLimit: config.RateLimitConfig{
		Enabled:              true,
		BatchEditRate:        0.001,
		BatchEditBurst:       2,
		BatchEditLockSeconds: 30,
	}}, client)
	require.NoError(t, err)
	ts := newTestServer(t, limiter)

	// another editor holds the product
	lease, locked, err := limiter.LockProduct(context.Background(), "77", "user:carol")
	require.NoError(t, err)
	require.True(t, locked)
	rec := ts.do(http.MethodPost, "/api/products/77/variations/batch", staffToken, batchBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "product-lock", rec.Header().Get("X-Rate-Limited-Reason"))
	require.NoError(t, lease.Release(context.Background()))

	rec = ts.do(http.MethodPost, "/api/products/77/variations/batch", staffToken, batchBody)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, "/api/products/77/variations/batch", staffToken, batchBody)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "actor-rate", rec.Header().Get("X-Rate-Limited-Reason"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, 1, ts.variations.calls)
}

func TestCreateImageInvalidFilename(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/products/77/images", staffToken, map[string]string{"filename": "README"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "filename", payload.Errors[0].Field)
	assert.Equal(t, "invalid_filename", payload.Errors[0].Code)

	rec = ts.do(http.MethodPost, "/api/products/77/images", staffToken, map[string]string{"filename": "front.jpg"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/products/77/images/3", staffToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategories(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/categories", staffToken, map[string]string{"title": "Shoes"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/categories/shoes", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/api/categories?include_inactive=true", viewerToken, nil).Code)

	rec = ts.do(http.MethodGet, "/api/categories?include_inactive=true", staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ts.categories.listReq.IncludeInactive)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}
