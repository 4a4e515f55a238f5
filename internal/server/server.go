package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ecotrail/emissiondesk/internal/config"
	"github.com/ecotrail/emissiondesk/internal/emission"
	emissiondomain "github.com/ecotrail/emissiondesk/internal/emission/domain"
	"github.com/ecotrail/emissiondesk/internal/importexport"
	"github.com/ecotrail/emissiondesk/internal/migration"
	"github.com/ecotrail/emissiondesk/internal/reference"
	referencedomain "github.com/ecotrail/emissiondesk/internal/reference/domain"
	"github.com/ecotrail/emissiondesk/internal/workflow"
	"github.com/ecotrail/emissiondesk/pkg/db"
	"github.com/ecotrail/emissiondesk/pkg/telemetry"
)

var Module = fx.Module("http.server",
	config.Module,
	db.Module,
	migration.Module,
	telemetry.Module,
	fx.Provide(NewEngine),
	reference.Module,
	emission.Module,
	importexport.Module,
	workflow.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log.Named("http")))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
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
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	db          *gorm.DB
	genID       *snowflake.Node
	emissionSvc emissiondomain.Service
	refRepo     referencedomain.Repository
	importSvc   *importexport.Service
	workflows   *workflow.Factory
	sessions    *sessionRegistry
	metrics     *telemetry.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	DB          *gorm.DB
	GenID       *snowflake.Node
	EmissionSvc emissiondomain.Service
	RefRepo     referencedomain.Repository
	ImportSvc   *importexport.Service
	Workflows   *workflow.Factory
	Metrics     *telemetry.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("server"),
		db:          p.DB,
		genID:       p.GenID,
		emissionSvc: p.EmissionSvc,
		refRepo:     p.RefRepo,
		importSvc:   p.ImportSvc,
		workflows:   p.Workflows,
		sessions:    newSessionRegistry(p.Cfg.WorkflowSessionTTL),
		metrics:     p.Metrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.CompanyContext())

	api.GET("/references/emission-factors", s.ListEmissionReferences)

	products := api.Group("/products/:productId")
	{
		products.GET("/lifecycle-stages", s.ListLifecycleStages)
		products.GET("/bom-items", s.ListBomItems)

		records := products.Group("/transport-emissions")
		{
			records.GET("", s.ListEmissionRecords)
			records.POST("", s.CreateEmissionRecord)
			records.PATCH("/:recordId", s.UpdateEmissionRecord)
			records.DELETE("/:recordId", s.DeleteEmissionRecord)

			records.POST("/import", s.ImportEmissionRecords)
			records.GET("/template", s.DownloadTemplate)
			records.GET("/export", s.ExportEmissionRecords)
		}

		products.POST("/workflow", s.CreateWorkflowSession)
	}

	sessions := api.Group("/workflow/:sessionId")
	{
		sessions.GET("", s.WorkflowState)
		sessions.POST("/intent", s.WorkflowIntent)
		sessions.POST("/import", s.WorkflowImport)
		sessions.DELETE("", s.EndWorkflowSession)
	}
}
