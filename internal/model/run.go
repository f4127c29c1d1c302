package model

import (
	"time"
)

// OperationRun 一次诊断操作的执行记录，不保存任何凭据
type OperationRun struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Operation  string    `json:"operation" gorm:"type:varchar(64);not null;index"`
	DeviceHost string    `json:"device_host" gorm:"type:varchar(128);not null;index"`
	Transport  string    `json:"transport" gorm:"type:varchar(16);not null"`
	Status     string    `json:"status" gorm:"type:varchar(16);not null"`
	ErrorKind  string    `json:"error_kind" gorm:"type:varchar(32)"`
	ErrorMsg   string    `json:"error_msg" gorm:"type:text"`
	Result     string    `json:"result" gorm:"type:text"`
	RawPaths   string    `json:"raw_paths" gorm:"type:text"` // 命令 -> 归档路径（JSON）
	Partial    bool      `json:"partial"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Duration   int64     `json:"duration"` // 执行时长，毫秒
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`

	Commands []CommandRun `json:"commands,omitempty" gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

// TableName 表名
func (OperationRun) TableName() string {
	return "operation_runs"
}

// RunStatus 执行状态
const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// CommandRun 操作内单条命令的会话记录
type CommandRun struct {
	ID          uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	RunID       string `json:"run_id" gorm:"type:varchar(64);not null;index"`
	Command     string `json:"command" gorm:"type:varchar(128)"`
	Radio       string `json:"radio" gorm:"type:varchar(16)"`
	OutputBytes int    `json:"output_bytes"`
	Partial     bool   `json:"partial"`
	Duration    int64  `json:"duration"` // 毫秒
}

// TableName 表名
func (CommandRun) TableName() string {
	return "command_runs"
}
