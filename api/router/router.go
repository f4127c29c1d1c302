package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rkscollector/rkscollector/api/handler"
	"github.com/rkscollector/rkscollector/pkg/logger"
	"github.com/rkscollector/rkscollector/pkg/ssh"
)

const version = "1.0.0"

// Options 路由依赖；Runs、DBHealth、Metrics 可为空
type Options struct {
	Mode     string
	Service  handler.Executor
	Device   func() ssh.ConnectionInfo
	Runs     handler.RunReader
	DBHealth func() error
	// Metrics 为 nil 时不注册指标端点
	Metrics     http.Handler
	MetricsPath string
}

// SetupRouter 设置路由
func SetupRouter(opts Options) *gin.Engine {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())

	opHandler := handler.NewOperationHandler(opts.Service, opts.Device)
	runHandler := handler.NewRunHandler(opts.Runs)
	healthHandler := handler.NewHealthHandler(opts.Service.Transport(), opts.DBHealth)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    "Ruckus AP Diagnostics",
			"version": version,
			"status":  "running",
		})
	})
	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(opts.Metrics))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		ops := v1.Group("/operations")
		{
			ops.GET("", opHandler.ListOperations)
			ops.GET("/:name", opHandler.RunOperation)
			ops.POST("/:name", opHandler.RunOperation)
		}

		runs := v1.Group("/runs")
		{
			runs.GET("", runHandler.ListRuns)
			runs.GET("/:id", runHandler.GetRun)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "route not found",
			"path":    c.Request.URL.Path,
		})
	})
	return r
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestIDMiddleware 请求ID中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// LoggingMiddleware 请求日志，不记录请求体
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"duration":   time.Since(start),
			"client_ip":  c.ClientIP(),
		})
		if status >= http.StatusInternalServerError {
			entry.Error("HTTP request")
			return
		}
		entry.Info("HTTP request")
	}
}
