package importexport

import "go.uber.org/fx"

var Module = fx.Module("importexport.service",
	fx.Provide(New),
)
