package ssh

import (
	"context"
	"time"
)

// Transport 打开一次交互会话、执行至多一条命令并返回完整会话记录
//
// 每次 Run 独立建立与释放连接，实现之间只在超时策略上不同。
type Transport interface {
	Name() string
	Run(ctx context.Context, info ConnectionInfo, command string) (*CommandResult, error)
}

// CommandResult 单次会话结果
type CommandResult struct {
	Command  string        `json:"command"`
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration"`
	// Partial 会话在 Done 之前被超时截断
	Partial bool `json:"partial"`
}

// Config 网络传输配置
type Config struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Settle      time.Duration `mapstructure:"settle"`
	LineEnding  string        `mapstructure:"line_ending"`
	Markers     Markers       `mapstructure:"markers"`
}

// DefaultConfig 网络传输默认配置
func DefaultConfig() Config {
	return Config{
		Timeout:     10 * time.Second,
		DialTimeout: 10 * time.Second,
		Settle:      DefaultSettle,
		LineEnding:  DefaultLineEnding,
		Markers:     DefaultMarkers(),
	}
}

func (c Config) driverOptions() DriverOptions {
	return DriverOptions{
		Markers:    c.Markers,
		LineEnding: c.LineEnding,
		Settle:     c.Settle,
	}
}
