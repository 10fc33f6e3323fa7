package router

import (
	"github.com/gin-gonic/gin"
	"github.com/not-nullexception/team-classifier/config"
	"github.com/not-nullexception/team-classifier/internal/api/handlers"
	"github.com/not-nullexception/team-classifier/internal/api/middleware"
	"github.com/not-nullexception/team-classifier/internal/classifier"
	"github.com/not-nullexception/team-classifier/internal/db"
	"github.com/not-nullexception/team-classifier/internal/queue"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Version is reported by the health endpoints
const Version = "1.0.0"

// Setup builds the public API. repository may be nil, in which case the read routes are not served.
func Setup(
	cfg *config.Config,
	repository db.Repository,
	queueClient queue.Client,
	model *classifier.Model,
) *gin.Engine {
	r := newEngine(cfg, "api")

	imageHandler := handlers.NewImageHandler(queueClient, model)

	checks := map[string]handlers.Check{
		"rabbitmq": handlers.ConnectedCheck(queueClient.Connected),
	}
	if repository != nil {
		checks["database"] = repository.Ping
	}
	healthHandler := handlers.NewHealthHandler(Version, checks)

	r.GET("/health", healthHandler.Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/images", imageHandler.SubmitImage)
		api.POST("/classify", imageHandler.ClassifyImage)

		if repository != nil {
			classificationHandler := handlers.NewClassificationHandler(repository)

			classifications := api.Group("/classifications")
			{
				classifications.GET("", classificationHandler.ListClassifications)
				classifications.GET("/stats", classificationHandler.Stats)
				classifications.GET("/:id", classificationHandler.GetClassification)
			}
		}
	}

	return r
}

// SetupStatus builds the worker's status server: health checks and metrics only
func SetupStatus(cfg *config.Config, checks map[string]handlers.Check) *gin.Engine {
	r := newEngine(cfg, "status")

	healthHandler := handlers.NewHealthHandler(Version, checks)

	r.GET("/health", healthHandler.Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func newEngine(cfg *config.Config, component string) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()

	// Tracing must come first so the contextual logger sees the span
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(middleware.ContextualLogger(component))
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())
	r.Use(middleware.Metrics())

	return r
}
