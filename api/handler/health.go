package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler 健康检查；db 为 nil 时不检查数据库
type HealthHandler struct {
	transport string
	db        func() error
	started   time.Time
}

func NewHealthHandler(transport string, db func() error) *HealthHandler {
	return &HealthHandler{transport: transport, db: db, started: time.Now()}
}

// Health GET /api/v1/health
func (h *HealthHandler) Health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":    "healthy",
		"transport": h.transport,
		"uptime":    time.Since(h.started).Round(time.Second).String(),
	}
	if h.db != nil {
		if err := h.db(); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = err.Error()
		} else {
			body["database"] = "ok"
		}
	}
	c.JSON(status, body)
}
