package tracing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/storefront/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// routeParamAttributes maps catalog route parameters to span attributes.
var routeParamAttributes = map[string]attribute.Key{
	"id":       "catalog.product_id",
	"image_id": "catalog.image_id",
	"slug":     "catalog.category_slug",
}

// GinMiddleware opens a server span per request and tags it with the catalog
// entity the route addresses. Search text never reaches the span.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("storefront/http")
	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "catalog "+method, trace.WithSpanKind(trace.SpanKindServer))
		ctx = withRequestBaggage(ctx, span)

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		span.SetName("catalog " + method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		}
		attrs = append(attrs, CatalogAttributes(c)...)
		span.SetAttributes(SafeAttributes(attrs...)...)

		if c.Writer.Status() >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
		span.End()
	}
}

// CatalogAttributes describes the catalog request handled by c: the product,
// image or category it addresses, the listing scope, whether it searched and
// the caller's role.
func CatalogAttributes(c *gin.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for _, p := range c.Params {
		key, ok := routeParamAttributes[p.Key]
		if ok && strings.TrimSpace(p.Value) != "" {
			attrs = append(attrs, key.String(strings.TrimSpace(p.Value)))
		}
	}

	switch scope := strings.ToLower(strings.TrimSpace(c.Query("scope"))); scope {
	case "":
	case "active", "all":
		attrs = append(attrs, attribute.String("catalog.scope", scope))
	default:
		attrs = append(attrs, attribute.String("catalog.scope", "invalid"))
	}
	if strings.TrimSpace(c.Query("q")) != "" {
		attrs = append(attrs, attribute.Bool("catalog.search", true))
	}

	if actor, ok := obscontext.ActorFromContext(c.Request.Context()); ok {
		attrs = append(attrs, attribute.String("catalog.actor_role", actor.Role))
	} else {
		attrs = append(attrs, attribute.String("catalog.actor_role", "anonymous"))
	}
	return attrs
}

func withRequestBaggage(ctx context.Context, span trace.Span) context.Context {
	requestID := obscontext.RequestIDFromContext(ctx)
	if requestID == "" {
		return ctx
	}
	span.SetAttributes(attribute.String("request_id", requestID))

	member, err := baggage.NewMember("request_id", requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.New(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}
