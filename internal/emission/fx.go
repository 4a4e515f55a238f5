package emission

import (
	"github.com/ecotrail/emissiondesk/internal/emission/repository"
	"github.com/ecotrail/emissiondesk/internal/emission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("emission.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
