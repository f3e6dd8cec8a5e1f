package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/storefront/internal/authorization"
	"github.com/smallbiznis/storefront/internal/cache"
	"github.com/smallbiznis/storefront/internal/category"
	categorydomain "github.com/smallbiznis/storefront/internal/category/domain"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/observability"
	obsmiddleware "github.com/smallbiznis/storefront/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/storefront/internal/observability/metrics"
	obstracing "github.com/smallbiznis/storefront/internal/observability/tracing"
	"github.com/smallbiznis/storefront/internal/product"
	productdomain "github.com/smallbiznis/storefront/internal/product/domain"
	"github.com/smallbiznis/storefront/internal/productimage"
	productimagedomain "github.com/smallbiznis/storefront/internal/productimage/domain"
	"github.com/smallbiznis/storefront/internal/ratelimit"
	"github.com/smallbiznis/storefront/internal/validation"
	"github.com/smallbiznis/storefront/internal/variation"
	variationdomain "github.com/smallbiznis/storefront/internal/variation/domain"
	"github.com/smallbiznis/storefront/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	cache.Module,
	validation.Module,
	category.Module,
	product.Module,
	variation.Module,
	productimage.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *telemetry.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *telemetry.Metrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine           *gin.Engine
	cfg              config.Config
	authzSvc         authorization.Service
	categorySvc      categorydomain.Service
	productSvc       productdomain.Service
	variationSvc     variationdomain.Service
	productImageSvc  productimagedomain.Service
	obsMetrics       *obsmetrics.Metrics
	batchEditLimiter *ratelimit.BatchEditLimiter
}

type ServerParams struct {
	fx.In

	Gin              *gin.Engine
	Cfg              config.Config
	AuthzSvc         authorization.Service
	CategorySvc      categorydomain.Service
	ProductSvc       productdomain.Service
	VariationSvc     variationdomain.Service
	ProductImageSvc  productimagedomain.Service
	ObsMetrics       *obsmetrics.Metrics          `optional:"true"`
	BatchEditLimiter *ratelimit.BatchEditLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:           p.Gin,
		cfg:              p.Cfg,
		authzSvc:         p.AuthzSvc,
		categorySvc:      p.CategorySvc,
		productSvc:       p.ProductSvc,
		variationSvc:     p.VariationSvc,
		productImageSvc:  p.ProductImageSvc,
		obsMetrics:       p.ObsMetrics,
		batchEditLimiter: p.BatchEditLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.Authenticate())

	// -------- Products --------
	api.GET("/products", s.ListProducts)
	api.POST("/products", s.authorize(authorization.ObjectProduct, authorization.ActionProductCreate), s.CreateProduct)
	api.GET("/products/:id", s.GetProductByID)
	api.PATCH("/products/:id", s.authorize(authorization.ObjectProduct, authorization.ActionProductUpdate), s.UpdateProduct)
	api.DELETE("/products/:id", s.authorize(authorization.ObjectProduct, authorization.ActionProductDelete), s.DeleteProduct)

	// -------- Variations --------
	api.GET("/products/:id/variations", s.authorize(authorization.ObjectVariation, authorization.ActionVariationView), s.ListVariations)
	api.POST("/products/:id/variations/batch",
		s.authorize(authorization.ObjectVariation, authorization.ActionVariationBatchUpdate),
		s.BatchEditRateLimit(),
		s.BatchEditVariations,
	)

	// -------- Images --------
	api.GET("/products/:id/images", s.ListProductImages)
	api.POST("/products/:id/images", s.authorize(authorization.ObjectProductImage, authorization.ActionProductImageCreate), s.CreateProductImage)
	api.DELETE("/products/:id/images/:image_id", s.authorize(authorization.ObjectProductImage, authorization.ActionProductImageDelete), s.DeleteProductImage)

	// -------- Categories --------
	api.GET("/categories", s.ListCategories)
	api.POST("/categories", s.authorize(authorization.ObjectCategory, authorization.ActionCategoryCreate), s.CreateCategory)
	api.GET("/categories/:slug", s.GetCategoryBySlug)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
