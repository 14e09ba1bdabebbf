package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/arnavshah/screening-planner/internal/metrics"
	"github.com/arnavshah/screening-planner/internal/runlock"
	"github.com/arnavshah/screening-planner/pkg/auth"
	"github.com/arnavshah/screening-planner/pkg/models"
	"github.com/arnavshah/screening-planner/pkg/planner"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const claimsKey = "claims"

// Runner runs a planning pass
type Runner interface {
	Run(ctx context.Context, req planner.Request) (*planner.Result, error)
}

// Pinger checks a backing dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains dependencies for the route handlers
type Handler struct {
	DB       *gorm.DB
	Planner  Runner
	Tokens   *auth.Manager
	Lock     runlock.Locker
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Health   Pinger
	Log      *zap.Logger
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

// AuthMiddleware verifies the bearer token and requires one of roles
func (h *Handler) AuthMiddleware(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			fail(c, http.StatusUnauthorized, "Authorization header required")
			return
		}
		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := h.Tokens.VerifyToken(token)
		if err != nil {
			fail(c, http.StatusUnauthorized, "Invalid token")
			return
		}
		if len(roles) > 0 && !claims.HasAnyRole(roles...) {
			fail(c, http.StatusForbidden, "Insufficient role")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// Login exchanges email and password for a bearer token
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := auth.Authenticate(h.DB.WithContext(c.Request.Context()), req.Email, req.Password)
	if err != nil {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.Tokens.CreateToken(user.ID, user.Email, auth.UserRoles(user))
	if err != nil {
		h.Log.Error("create token failed", zap.String("user_id", user.ID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Could not create token")
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// Healthz reports whether the database answers
func (h *Handler) Healthz(c *gin.Context) {
	if h.Health != nil {
		if err := h.Health.Ping(c.Request.Context()); err != nil {
			h.Log.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// MetricsHandler serves the prometheus registry
func (h *Handler) MetricsHandler() gin.HandlerFunc {
	g := h.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

func claimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}
