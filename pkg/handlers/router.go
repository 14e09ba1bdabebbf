package handlers

import (
	"net/http"
	"time"

	"github.com/arnavshah/screening-planner/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// NewRouter wires every route onto a fresh engine
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(h.Log), gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Screening Planner API",
			"version": "1.0.0",
		})
	})
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", h.MetricsHandler())
	r.POST("/admin/login", h.Login)

	api := r.Group("/api/planner")
	api.Use(h.AuthMiddleware(models.RoleAdmin, models.RoleProgramma))
	{
		api.POST("/preview", h.PlannerPreview)
		api.POST("/run", h.PlannerRun)
	}
	return r
}

// RequestLogger logs one line per request and tags it with a request id
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}
