package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rkscollector/rkscollector/internal/service"
	"github.com/rkscollector/rkscollector/pkg/logger"
	"github.com/rkscollector/rkscollector/pkg/ssh"
)

// Executor 诊断服务
type Executor interface {
	Operations() []service.OperationInfo
	Execute(ctx context.Context, name string, info ssh.ConnectionInfo) service.Envelope
	Transport() string
}

// OperationHandler 诊断操作处理器
type OperationHandler struct {
	svc    Executor
	device func() ssh.ConnectionInfo
}

// NewOperationHandler device 提供请求未指定时使用的默认连接参数
func NewOperationHandler(svc Executor, device func() ssh.ConnectionInfo) *OperationHandler {
	if device == nil {
		device = func() ssh.ConnectionInfo { return ssh.ConnectionInfo{} }
	}
	return &OperationHandler{svc: svc, device: device}
}

// RunRequest 连接参数覆盖，全部可选
type RunRequest struct {
	Host     string `json:"host" binding:"omitempty,ip|hostname"`
	Port     int    `json:"port" binding:"omitempty,min=1,max=65535"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// ListOperations 列出可执行的操作
// @Router /api/v1/operations [get]
func (h *OperationHandler) ListOperations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"transport":  h.svc.Transport(),
		"operations": h.svc.Operations(),
	})
}

// RunOperation 执行一个操作并返回 Envelope
//
// POST 可携带 RunRequest，GET 使用默认连接参数。
// @Router /api/v1/operations/{name} [post]
func (h *OperationHandler) RunOperation(c *gin.Context) {
	var req RunRequest
	if c.Request.Method == http.MethodPost {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			logger.WithField("error", err).Warn("invalid operation request")
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Code:    "INVALID_PARAMS",
				Message: "invalid request parameters: " + err.Error(),
			})
			return
		}
	}

	env := h.svc.Execute(c.Request.Context(), c.Param("name"), h.connectionFor(req))
	c.JSON(statusFor(env), env)
}

// connectionFor 合并请求参数与默认连接参数
//
// 目标主机或端口被改写时不沿用默认密码，请求必须自带密码。
func (h *OperationHandler) connectionFor(req RunRequest) ssh.ConnectionInfo {
	def := h.device()
	info := def
	if req.Host != "" {
		info.Host = req.Host
	}
	if req.Port != 0 {
		info.Port = req.Port
	}
	if !sameTarget(def, info) {
		info.Password = ""
	}
	if req.Username != "" {
		info.Username = req.Username
	}
	if req.Password != "" {
		info.Password = req.Password
	}
	return info
}

func sameTarget(a, b ssh.ConnectionInfo) bool {
	a, b = a.WithDefaults(), b.WithDefaults()
	return strings.EqualFold(strings.TrimSpace(a.Host), strings.TrimSpace(b.Host)) && a.Port == b.Port
}

// statusFor 按错误分类映射 HTTP 状态码
func statusFor(env service.Envelope) int {
	if env.Success {
		return http.StatusOK
	}
	switch env.ErrorKind {
	case "unknown_operation":
		return http.StatusNotFound
	case "configuration":
		return http.StatusBadRequest
	case "timeout":
		return http.StatusGatewayTimeout
	case "connection", "parse":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
