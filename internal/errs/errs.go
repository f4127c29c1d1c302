package errs

import "errors"

// 连接参数缺失，不会发起任何会话
var (
	ErrConfiguration = errors.New("configuration error")
)

// 会话层错误
var (
	ErrConnection = errors.New("connection error")
	ErrTimeout    = errors.New("timeout error")
)

var (
	ErrParse            = errors.New("parse error")
	ErrUnknownOperation = errors.New("unknown operation")
)

// Kind 返回错误分类标识，用于响应封装
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrUnknownOperation):
		return "unknown_operation"
	default:
		return "internal"
	}
}
