package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rkscollector/rkscollector/internal/errs"
	"github.com/rkscollector/rkscollector/pkg/logger"
)

// Envelope 操作结果的统一封装，交给 HTTP/CLI 层
type Envelope struct {
	Operation  string          `json:"operation"`
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data,omitempty"`
	Text       string          `json:"text"`
	Error      string          `json:"error,omitempty"`
	ErrorKind  string          `json:"errorKind,omitempty"`
	Partial    bool            `json:"partial,omitempty"`
	DurationMS int64           `json:"durationMs"`
	RunID      string          `json:"runId,omitempty"`
}

var errNoResult = errors.New("operation produced no result")

// Wrap 封装解析结果或错误，不会 panic；错误文本中的 secrets 替换为 ***
func Wrap(operation string, record any, err error, secrets ...string) (env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			env = failure(operation, fmt.Errorf("internal error: %v", r), secrets)
		}
	}()

	if err != nil {
		return failure(operation, err, secrets)
	}
	if record == nil {
		return failure(operation, errNoResult, secrets)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return failure(operation, fmt.Errorf("failed to encode result: %w", err), secrets)
	}
	text, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return failure(operation, fmt.Errorf("failed to encode result: %w", err), secrets)
	}
	return Envelope{
		Operation: operation,
		Success:   true,
		Data:      data,
		Text:      string(text),
	}
}

func failure(operation string, err error, secrets []string) Envelope {
	msg := logger.Redact(fmt.Sprintf("Error executing %s: %s", operation, err.Error()), secrets...)
	return Envelope{
		Operation: operation,
		Success:   false,
		Text:      msg,
		Error:     msg,
		ErrorKind: errs.Kind(err),
	}
}
