package ssh

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/rkscollector/rkscollector/internal/errs"
)

const (
	DefaultPort     = 22
	DefaultUsername = "admin"
)

var validate = validator.New()

// ConnectionInfo 单次调用的设备连接参数，按值传递，不做持久化
type ConnectionInfo struct {
	Host     string `json:"host" validate:"required"`
	Port     int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Username string `json:"username"`
	Password string `json:"-" validate:"required"`
}

// WithDefaults 返回补全端口与用户名后的副本
func (c ConnectionInfo) WithDefaults() ConnectionInfo {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if strings.TrimSpace(c.Username) == "" {
		c.Username = DefaultUsername
	}
	c.Host = strings.TrimSpace(c.Host)
	return c
}

// Validate 校验必填参数；错误信息只包含字段名
func (c ConnectionInfo) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", errs.ErrConfiguration, err)
	}
	missing := lo.FilterMap(verrs, func(fe validator.FieldError, _ int) (string, bool) {
		return strings.ToLower(fe.Field()), fe.Tag() == "required"
	})
	invalid := lo.FilterMap(verrs, func(fe validator.FieldError, _ int) (string, bool) {
		return strings.ToLower(fe.Field()), fe.Tag() != "required"
	})
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required connection parameter(s): "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid connection parameter(s): "+strings.Join(invalid, ", "))
	}
	return fmt.Errorf("%w: %s", errs.ErrConfiguration, strings.Join(parts, "; "))
}

// Address host:port
func (c ConnectionInfo) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// String 用于日志，密码始终遮蔽
func (c ConnectionInfo) String() string {
	pw := "<empty>"
	if c.Password != "" {
		pw = "***"
	}
	return fmt.Sprintf("%s@%s (password: %s)", c.Username, c.Address(), pw)
}
