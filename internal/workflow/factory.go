package workflow

import (
	emissiondomain "github.com/ecotrail/emissiondesk/internal/emission/domain"
	"github.com/ecotrail/emissiondesk/internal/importexport"
	"github.com/ecotrail/emissiondesk/internal/reference"
	referencedomain "github.com/ecotrail/emissiondesk/internal/reference/domain"
	"github.com/ecotrail/emissiondesk/internal/sessionctx"
	"github.com/ecotrail/emissiondesk/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type FactoryParams struct {
	fx.In

	Log      *zap.Logger
	Store    emissiondomain.Service
	Importer *importexport.Service
	RefRepo  referencedomain.Repository
	Metrics  *telemetry.Metrics `optional:"true"`
}

// Factory builds one workflow controller per console session. Each session
// gets its own reference cache; sessions never share mutable state.
type Factory struct {
	log      *zap.Logger
	store    emissiondomain.Service
	importer *importexport.Service
	refRepo  referencedomain.Repository
	metrics  *telemetry.Metrics
}

func NewFactory(p FactoryParams) *Factory {
	return &Factory{
		log:      p.Log,
		store:    p.Store,
		importer: p.Importer,
		refRepo:  p.RefRepo,
		metrics:  p.Metrics,
	}
}

func (f *Factory) NewSession(session sessionctx.Session, productID string) *Controller {
	cache := reference.NewCache(f.log, f.refRepo, f.metrics)
	return NewController(f.log, f.store, f.importer, cache, f.metrics, session, productID)
}

var Module = fx.Module("workflow",
	fx.Provide(NewFactory),
)
