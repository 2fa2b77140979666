package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/worker-safety/internal/api/middleware"
)

// RouteOptions 路由注册参数
type RouteOptions struct {
	Auth      middleware.AuthConfig
	RateLimit middleware.RateLimitConfig
	// WSPath 非空时挂载实时订阅
	WSPath    string
	WSHandler http.Handler
}

// RegisterRoutes 注册 /api 路由与实时订阅入口
func RegisterRoutes(r *gin.Engine, h *Handler, opts RouteOptions, logger *zap.Logger) {
	if r == nil || h == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	api := r.Group("/api")
	api.Use(middleware.CORS())
	if opts.Auth.Enabled {
		api.Use(middleware.APIKeyAuth(opts.Auth, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(opts.Auth.APIKeys)))
	} else {
		logger.Warn("api authentication disabled - only for development!")
	}

	// 遥测接入（按客户端限流）
	api.POST("/sensor-data", middleware.RateLimit(opts.RateLimit, logger), h.IngestSensorData)

	// 告警处置
	api.GET("/alerts", h.ListAlerts)
	api.POST("/alerts/acknowledge", h.BatchAcknowledge)
	api.GET("/alerts/:id", h.GetAlert)
	api.POST("/alerts/:id/acknowledge", h.AcknowledgeAlert)
	api.POST("/alerts/:id/assign", h.AssignAlert)
	api.PUT("/alerts/:id/notes", h.UpdateNotes)
	api.POST("/alerts/:id/resolve", h.ResolveAlert)
	api.POST("/alerts/:id/archive", h.ArchiveAlert)

	// 运维
	api.POST("/escalation/sweep", h.TriggerSweep)

	if opts.WSPath != "" && opts.WSHandler != nil {
		r.GET(opts.WSPath, gin.WrapH(opts.WSHandler))
	}

	logger.Info("api routes registered", zap.Int("endpoints", 10), zap.String("ws", opts.WSPath))
}
