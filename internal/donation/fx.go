package donation

import (
	"github.com/givebridge/givebridge/internal/donation/repository"
	"github.com/givebridge/givebridge/internal/donation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("donation",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
