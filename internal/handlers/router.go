package handlers

import (
	"net/http"
	"time"

	"github.com/apsdehal/go-logger"
	"github.com/gin-gonic/gin"
	"github.com/kareem-ic/paysim-sandbox/internal/metrics"
)

// RouterConfig groups dependencies for the HTTP surface.
type RouterConfig struct {
	Service     PaymentService
	Logger      *logger.Logger
	ServiceName string
}

// NewRouter builds the gin engine shared by the local server and the Lambda adapter.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), metrics.GinMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			"service":   cfg.ServiceName,
		})
	})
	r.GET("/metrics", metrics.Handler())

	RegisterPaymentRoutes(r, cfg.Service, cfg.Logger)
	return r
}
