package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/storefront/internal/observability/context"
	"github.com/smallbiznis/storefront/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	rateLimitReasonActorRate   = "actor-rate"
	rateLimitReasonProductLock = "product-lock"
)

// BatchEditRateLimit throttles batch edits per actor and holds a per-product
// lock for the duration of the request. It is a no-op without Redis.
func (s *Server) BatchEditRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.batchEditLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)
		actor, ok := obscontext.ActorFromContext(ctx)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		result, err := s.batchEditLimiter.Allow(ctx, actor.Subject())
		if err != nil {
			logger.FromContext(ctx).Warn("batch edit rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			c.Header("Retry-After", retryAfterSeconds(result.RetryAfter))
			s.denyBatchEdit(c, endpoint, rateLimitReasonActorRate, ErrRateLimited)
			return
		}

		productID := strings.TrimSpace(c.Param("id"))
		lease, locked, err := s.batchEditLimiter.LockProduct(ctx, productID, actor.Subject())
		if err != nil {
			logger.FromContext(ctx).Warn("batch edit product lock failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !locked {
			holder, err := s.batchEditLimiter.ProductLockHolder(ctx, productID)
			if err != nil {
				logger.FromContext(ctx).Warn("batch edit lock holder lookup failed", zap.Error(err))
			}
			logger.FromContext(ctx).Info("batch edit waits for product lock",
				zap.String("product_id", productID),
				zap.String("holder", holder),
			)
			s.denyBatchEdit(c, endpoint, rateLimitReasonProductLock, ErrConflict)
			return
		}
		defer func() {
			if err := lease.Release(ctx); err != nil {
				logger.FromContext(ctx).Warn("batch edit product unlock failed",
					zap.String("product_id", productID),
					zap.Error(err),
				)
			}
		}()

		c.Next()
	}
}

func (s *Server) denyBatchEdit(c *gin.Context, endpoint, reason string, err error) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("batch edit rejected by limiter",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, reason)

	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, err)
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
