package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/rtp-engine/internal/config"
	"github.com/wfunc/rtp-engine/internal/middleware"
	"github.com/wfunc/rtp-engine/internal/service"
	"github.com/wfunc/rtp-engine/internal/utils"
	ws "github.com/wfunc/rtp-engine/internal/websocket"
	"go.uber.org/zap"
)

// Router API路由器
type Router struct {
	engine            *gin.Engine
	authHandler       *AuthHandler
	simulationHandler *SimulationHandler
	websocketHandler  *WebSocketHandler
	authMiddleware    *middleware.AuthMiddleware
	wsPath            string
	log               *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(cfg *config.Config, simulator *service.Simulator, hub *ws.Hub, log *zap.Logger) *Router {
	switch cfg.Server.Mode {
	case "production", "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	jwtManager := utils.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.TokenExpiry)

	router := &Router{
		engine:            engine,
		authHandler:       NewAuthHandler(jwtManager, cfg.Security.OperatorKeyHash, cfg.Security.TokenExpiry, log),
		simulationHandler: NewSimulationHandler(simulator, log),
		websocketHandler:  NewWebSocketHandler(hub, &cfg.WebSocket, log),
		authMiddleware:    middleware.NewAuthMiddleware(jwtManager),
		wsPath:            cfg.WebSocket.Path,
		log:               log,
	}
	if router.wsPath == "" {
		router.wsPath = "/ws"
	}

	router.setupRoutes()
	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// 运行监控WebSocket
	r.engine.GET(r.wsPath, r.websocketHandler.MonitorWebSocket)

	// API v1路由组
	v1 := r.engine.Group("/api/v1")
	{
		// 认证相关路由（不需要认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/token", r.authHandler.IssueToken)
		}

		// 模拟运行路由（需要认证）
		simulations := v1.Group("/simulations")
		simulations.Use(r.authMiddleware.RequireAuth())
		{
			simulations.POST("", r.simulationHandler.StartSimulation)
			simulations.GET("", r.simulationHandler.ListSimulations)
			simulations.GET("/statistics", r.simulationHandler.GetStatistics)
			simulations.GET("/:run_id", r.simulationHandler.GetSimulation)
			simulations.GET("/:run_id/snapshots", r.simulationHandler.GetSnapshots)
		}
	}
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Engine 返回Gin引擎
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
