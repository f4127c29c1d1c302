package collect

import (
	"encoding/json"
	"time"
)

// Command 一条设备命令；按射频下发的命令带 Radio
type Command struct {
	Line  string `json:"command"`
	Radio string `json:"radio,omitempty"`
}

// CommandOutput 单次会话的完整记录
type CommandOutput struct {
	Command
	Raw string `json:"raw"`
	// Partial 会话被超时截断
	Partial  bool          `json:"partial,omitempty"`
	Duration time.Duration `json:"-"`
}

// RawStorePaths 原始记录映射（命令 -> 归档路径）
type RawStorePaths map[string]string

func (r RawStorePaths) Marshal() string {
	if r == nil {
		return "{}"
	}
	b, _ := json.Marshal(r)
	return string(b)
}
