package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"resource-tracker/internal/auth"
	"resource-tracker/internal/imagesearch"
	"resource-tracker/internal/middleware"
	"resource-tracker/internal/service"
	"resource-tracker/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Pinger reports database reachability for the health check.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	Log            *zap.Logger
	DB             Pinger
	Tokens         *auth.TokenManager
	Permissions    *middleware.PermissionResolver
	Sessions       *middleware.SessionResolver
	AllowedOrigins []string
	SecureCookie   bool

	Users     service.UserService
	Roles     service.RoleService
	Resources service.ResourceService
	Requests  service.RequestService
	Dashboard service.DashboardService
	Audit     service.AuditService
	Images    *imagesearch.Client
	Hub       *websocket.Hub // optional
}

// NewRouter wires middleware and every route onto a new gin engine.
func NewRouter(d Dependencies) (*gin.Engine, error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}
	if d.Sessions == nil {
		return nil, errors.New("router: session resolver is required")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Prometheus())
	router.Use(middleware.RequestLogger(d.Log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = d.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "Idempotency-Key"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	if len(corsConfig.AllowOrigins) > 0 {
		router.Use(cors.New(corsConfig))
	}

	router.GET("/health", healthCheck(d.DB))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if d.Hub != nil {
		router.GET("/ws", d.Hub.ServeWs)
	}

	public := router.Group("")
	protected := router.Group("", middleware.RequireSession(d.Tokens, d.Sessions))

	NewAuthHandler(d.Users, d.Permissions, d.SecureCookie, d.Log).RegisterRoutes(public, protected)
	NewDashboardHandler(d.Dashboard, d.Permissions, d.Log).RegisterRoutes(protected)
	NewResourceHandler(d.Resources, d.Permissions, d.Log).RegisterRoutes(protected)
	NewRequestHandler(d.Requests, d.Resources, d.Permissions, d.Log).RegisterRoutes(protected)
	NewUserHandler(d.Users, d.Permissions, d.Sessions, d.Log).RegisterRoutes(protected)
	NewRoleHandler(d.Roles, d.Permissions, d.Log).RegisterRoutes(protected)
	NewAuditHandler(d.Audit, d.Permissions, d.Log).RegisterRoutes(protected)
	NewImageHandler(d.Images, d.Permissions, d.Log).RegisterRoutes(protected)

	return router, nil
}

// healthCheck answers 503 while the database is unreachable.
// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200  {object}  object
// @Failure      503  {object}  object
// @Router       /health [get]
func healthCheck(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK", "time": time.Now().Unix()})
	}
}
