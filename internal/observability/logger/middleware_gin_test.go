package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/storefront/internal/observability/context"
	"github.com/smallbiznis/storefront/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
)

func TestGinMiddlewarePropagatesIdentifiers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))

	var seenRequestID, seenCorrelationID string
	r.GET("/api/products", func(c *gin.Context) {
		seenRequestID = obscontext.RequestIDFromContext(c.Request.Context())
		seenCorrelationID = correlation.ExtractCorrelationID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("X-Request-Id", "req-1")
	req.Header.Set(correlation.HeaderName, "corr-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-1", seenRequestID)
	assert.Equal(t, "corr-1", seenCorrelationID)
	assert.Equal(t, "req-1", w.Header().Get("X-Request-Id"))
	assert.Equal(t, "corr-1", w.Header().Get(correlation.HeaderName))
}

func TestGinMiddlewareGeneratesIdentifiers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.NotEmpty(t, w.Header().Get(correlation.HeaderName))
}

func TestRouteClassification(t *testing.T) {
	assert.True(t, isBatchEdit("/api/products/:id/variations/batch"))
	assert.False(t, isBatchEdit("/api/products/:id/variations"))
	assert.True(t, isHealthCheck("/metrics"))
	assert.True(t, isHealthCheck("/health"))
	assert.False(t, isHealthCheck("/api/products"))
}
