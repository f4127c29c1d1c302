package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rkscollector/rkscollector/internal/database"
	"github.com/rkscollector/rkscollector/internal/model"
	"github.com/rkscollector/rkscollector/pkg/logger"
)

// RunReader 执行记录查询
type RunReader interface {
	List(ctx context.Context, f database.RunFilter) ([]model.OperationRun, error)
	Get(ctx context.Context, id string) (*model.OperationRun, error)
}

// RunHandler 执行记录处理器；store 为 nil 表示未启用
type RunHandler struct {
	store RunReader
}

func NewRunHandler(store RunReader) *RunHandler {
	return &RunHandler{store: store}
}

func (h *RunHandler) enabled(c *gin.Context) bool {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Code:    "HISTORY_DISABLED",
			Message: "run history is disabled",
		})
		return false
	}
	return true
}

// ListRuns GET /api/v1/runs?operation=&limit=
func (h *RunHandler) ListRuns(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.store.List(c.Request.Context(), database.RunFilter{
		Operation: c.Query("operation"),
		Limit:     limit,
	})
	if err != nil {
		logger.WithField("error", err).Error("failed to list runs")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "QUERY_FAILED", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": len(runs), "runs": runs})
}

// GetRun GET /api/v1/runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	run, err := h.store.Get(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, database.ErrRunNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "RUN_NOT_FOUND", Message: err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "QUERY_FAILED", Message: err.Error()})
	default:
		c.JSON(http.StatusOK, run)
	}
}
