package variation

import (
	"github.com/smallbiznis/storefront/internal/variation/repository"
	"github.com/smallbiznis/storefront/internal/variation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("variation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewEnforcer),
)
