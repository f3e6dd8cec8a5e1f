package productimage

import (
	"github.com/smallbiznis/storefront/internal/productimage/repository"
	"github.com/smallbiznis/storefront/internal/productimage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("productimage.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
