// Package api - REST-поверхность движка: выгрузка буферов рендереру,
// запись в октодерево, параметры кадра, снимки и точки обзора.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/voxel-engine/internal/app"
	"github.com/annel0/voxel-engine/internal/auth"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/middleware"
)

// RestServer представляет REST API сервер
type RestServer struct {
	router   *gin.Engine
	http     *http.Server
	service  *app.WorldService
	auth     *auth.Authenticator
	webhooks *WebhookForwarder
	metrics  *ServerMetrics
}

// Config содержит зависимости REST сервера
type Config struct {
	Addr     string               // адрес для запуска сервера
	Service  *app.WorldService    // сервис мира
	Auth     *auth.Authenticator  // nil - изменяющие маршруты открыты
	Webhooks *WebhookForwarder    // nil - маршруты webhook'ов не регистрируются
	Registry *prometheus.Registry // реестр для HTTP-метрик и /metrics
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) *RestServer {
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	loggerMw := middleware.NewRequestLogger()
	router.Use(loggerMw.Handler())

	promMw := middleware.NewHTTPMetrics("rest_api", cfg.Registry)
	router.Use(promMw.Handler())
	promMw.Mount(router, cfg.Registry)

	rs := &RestServer{
		router:   router,
		service:  cfg.Service,
		auth:     cfg.Auth,
		webhooks: cfg.Webhooks,
		metrics:  NewServerMetrics(),
	}
	rs.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	rs.setupRoutes()
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")

	if rs.auth != nil {
		api.POST("/auth/token", rs.handleLogin)
	}

	// Чтение открыто всегда
	api.GET("/world", rs.handleWorldInfo)
	api.GET("/world/blocks", rs.handleWorldBlocks)
	api.GET("/world/chunks", rs.handleWorldChunks)
	api.GET("/world/voxel", rs.handleWorldVoxel)
	api.GET("/octree", rs.handleOctreeInfo)
	api.GET("/octree/nodes", rs.handleOctreeNodes)
	api.GET("/octree/voxel", rs.handleOctreeVoxel)
	api.GET("/frame", rs.handleGetFrame)
	api.GET("/stats", rs.handleStats)
	api.GET("/snapshots", rs.handleListSnapshots)
	api.GET("/snapshots/:id", rs.handleGetSnapshot)
	api.GET("/viewpoints", rs.handleListViewpoints)

	// Изменения требуют JWT, если аутентификация включена
	write := api.Group("/")
	if rs.auth != nil {
		write.Use(rs.jwtMiddleware())
	}
	{
		write.POST("/world/generate", rs.handleGenerate)
		write.PUT("/octree/voxel", rs.handleSetOctreeVoxel)
		write.PUT("/frame", rs.handleSetFrame)
		write.POST("/snapshots/:layout", rs.handleSaveSnapshot)
		write.DELETE("/snapshots/:id", rs.handleDeleteSnapshot)
		write.POST("/snapshots/:id/restore", rs.handleRestoreSnapshot)
		write.PUT("/viewpoints/:name", rs.handleSaveViewpoint)
		write.POST("/viewpoints/:name/apply", rs.handleApplyViewpoint)
		write.DELETE("/viewpoints/:name", rs.handleDeleteViewpoint)

		if rs.webhooks != nil {
			write.GET("/webhooks", rs.handleListWebhooks)
			write.POST("/webhooks", rs.handleCreateWebhook)
			write.DELETE("/webhooks/:id", rs.handleDeleteWebhook)
		}
	}
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Handler возвращает http.Handler (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// Start запускает REST сервер и блокируется до Shutdown
func (rs *RestServer) Start() error {
	logging.Info("🌐 REST API слушает %s", rs.http.Addr)
	if err := rs.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown дожидается завершения активных запросов
func (rs *RestServer) Shutdown(ctx context.Context) error {
	return rs.http.Shutdown(ctx)
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"time":      time.Now().Unix(),
		"populated": rs.service.WorldInfo().Populated,
	})
}

// handleStats возвращает статистику хранилищ и процесса
func (rs *RestServer) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data: gin.H{
			"storage": rs.service.Stats(),
			"server":  rs.metrics.Snapshot(),
		},
	})
}
