package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jgarciait/aqsign-demo-sub001/internal/api/handlers"
	"github.com/jgarciait/aqsign-demo-sub001/internal/api/middleware"
	"github.com/jgarciait/aqsign-demo-sub001/internal/services"
	"github.com/jgarciait/aqsign-demo-sub001/pkg/metrics"
)

type Router struct {
	engine            *gin.Engine
	logger            *zap.Logger
	metrics           *metrics.MetricsCollector
	docHandler        *handlers.DocumentHandler
	annotationHandler *handlers.AnnotationHandler
	signatureHandler  *handlers.SignatureHandler
	renderHandler     *handlers.RenderHandler
	reqMiddleware     *middleware.RequestMiddleware
}

func NewRouter(
	logger *zap.Logger,
	metrics *metrics.MetricsCollector,
	documents *services.DocumentService,
	annotations *services.AnnotationService,
	signatures *services.SignatureService,
	renders *services.RenderService,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	reqMiddleware := middleware.NewRequestMiddleware(logger)
	engine.Use(reqMiddleware.ProcessRequest())
	engine.Use(reqMiddleware.RecoverPanic())

	return &Router{
		engine:            engine,
		logger:            logger,
		metrics:           metrics,
		docHandler:        handlers.NewDocumentHandler(documents, logger),
		annotationHandler: handlers.NewAnnotationHandler(annotations, signatures, logger),
		signatureHandler:  handlers.NewSignatureHandler(signatures, logger),
		renderHandler:     handlers.NewRenderHandler(renders, logger),
		reqMiddleware:     reqMiddleware,
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "up", "name": "aqsign"})
	})

	r.engine.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"counters":  r.metrics.GetCounters(),
			"latencies": r.metrics.GetLatencies(),
			"sizes":     r.metrics.GetSizes(),
		})
	})

	api := r.engine.Group("/api")
	{
		api.POST("/documents", r.docHandler.Create)
		api.GET("/documents", r.docHandler.List)
		api.GET("/documents/:id", r.docHandler.Get)
		api.POST("/documents/:id/send", r.docHandler.Send)
		api.POST("/documents/:id/sign", r.docHandler.Sign)
		api.POST("/documents/:id/return", r.docHandler.Return)
		api.POST("/documents/:id/resend", r.docHandler.Resend)

		api.PUT("/documents/:id/annotations", r.annotationHandler.Put)
		api.GET("/documents/:id/annotations", r.annotationHandler.Get)

		api.POST("/documents/:id/signatures", r.signatureHandler.Add)
		api.PUT("/documents/:id/signatures", r.signatureHandler.PutConsolidated)
		api.PATCH("/documents/:id/signatures/:sigId/position", r.signatureHandler.PatchPosition)
		api.DELETE("/documents/:id/signatures/:sigId", r.signatureHandler.Delete)
		api.DELETE("/documents/:id/signatures", r.signatureHandler.Clear)

		api.GET("/documents/:id/print", r.renderHandler.Print)
		api.GET("/documents/:id/final", r.renderHandler.Final)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
