package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/rabbitry/internal/observability"
	"github.com/mamadbah2/rabbitry/internal/server/handlers"
)

// Handlers groups the HTTP adapters served by the engine. Webhook is optional.
type Handlers struct {
	Farms     *handlers.FarmHandler
	Animals   *handlers.AnimalHandler
	Housing   *handlers.HousingHandler
	Breeding  *handlers.BreedingHandler
	Finance   *handlers.FinanceHandler
	Reporting *handlers.ReportingHandler
	Webhook   *handlers.WebhookHandler
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, metrics *observability.Metrics, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))
	r.Use(metricsMiddleware(metrics))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if h.Webhook != nil {
		r.GET("/webhook", h.Webhook.Verify)
		r.POST("/webhook", h.Webhook.Receive)
	}

	api := r.Group("/api", handlers.RequireUser())
	api.POST("/farms", h.Farms.Create)

	farm := api.Group("/farms/:farmID")
	farm.GET("", h.Farms.Get)
	farm.PUT("", h.Farms.Update)

	farm.POST("/animals", h.Animals.Register)
	farm.GET("/animals", h.Animals.List)
	farm.GET("/animals/:animalID", h.Animals.Get)
	farm.PATCH("/animals/:animalID", h.Animals.Update)
	farm.POST("/animals/:animalID/move", h.Animals.Move)
	farm.POST("/animals/:animalID/release", h.Animals.Release)
	farm.POST("/animals/:animalID/wean", h.Animals.Wean)
	farm.POST("/animals/:animalID/death", h.Animals.Death)
	farm.POST("/animals/:animalID/medical", h.Animals.Medical)
	farm.GET("/animals/:animalID/history", h.Animals.History)
	farm.POST("/sales", h.Animals.Sell)

	farm.POST("/housing", h.Housing.Create)
	farm.GET("/housing", h.Housing.List)
	farm.POST("/housing/reconcile", h.Housing.Reconcile)

	farm.POST("/matings", h.Breeding.Create)
	farm.GET("/matings", h.Breeding.List)
	farm.GET("/matings/:matingID", h.Breeding.Get)
	farm.POST("/matings/:matingID/palpation", h.Breeding.Palpation)
	farm.POST("/matings/:matingID/delivery", h.Breeding.Delivery)
	farm.GET("/upcoming", h.Breeding.Upcoming)

	farm.POST("/transactions", h.Finance.Create)
	farm.GET("/transactions", h.Finance.List)
	farm.GET("/transactions/summary", h.Finance.Summary)

	farm.GET("/summary", h.Reporting.Summary)
	farm.GET("/notifications", h.Reporting.Notifications)
	farm.POST("/notifications/:notificationID/read", h.Reporting.MarkRead)
	farm.GET("/export", h.Reporting.Export)
	farm.POST("/advisor", h.Reporting.Ask)

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

func metricsMiddleware(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.ObserveRequest(c.FullPath(), strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}
