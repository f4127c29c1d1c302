package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/rkscollector/rkscollector/addone/collect"
	"github.com/rkscollector/rkscollector/internal/config"
	"github.com/rkscollector/rkscollector/internal/errs"
	"github.com/rkscollector/rkscollector/internal/metrics"
	"github.com/rkscollector/rkscollector/internal/model"
	"github.com/rkscollector/rkscollector/pkg/logger"
	"github.com/rkscollector/rkscollector/pkg/ssh"
)

// RunRecorder 保存执行记录
type RunRecorder interface {
	Save(ctx context.Context, run *model.OperationRun) error
}

// Options 诊断服务依赖，除 Transport 外均可为空
type Options struct {
	Transport   ssh.Transport
	Radios      RadioSet
	MaxSessions int
	Archive     TranscriptWriter
	Runs        RunRecorder
	Metrics     *metrics.Metrics
}

// OperationInfo 对外公布的操作描述
type OperationInfo struct {
	Name        string   `json:"name"`
	LegacyName  string   `json:"legacyName"`
	Description string   `json:"description"`
	Commands    []string `json:"commands"`
}

// DiagnosticService 解析操作名、下发命令、解析结果并封装
type DiagnosticService struct {
	transport  ssh.Transport
	dispatcher *Dispatcher
	radios     RadioSet
	archive    TranscriptWriter
	runs       RunRecorder
	metrics    *metrics.Metrics
}

// NewDiagnosticService 创建诊断服务
func NewDiagnosticService(opts Options) *DiagnosticService {
	def := DefaultRadioSet()
	if len(opts.Radios.Default) == 0 {
		opts.Radios.Default = def.Default
	}
	if len(opts.Radios.Channel) == 0 {
		opts.Radios.Channel = def.Channel
	}
	return &DiagnosticService{
		transport:  opts.Transport,
		dispatcher: NewDispatcher(opts.Transport, opts.MaxSessions, opts.Metrics),
		radios:     opts.Radios,
		archive:    opts.Archive,
		runs:       opts.Runs,
		metrics:    opts.Metrics,
	}
}

// NewTransport 按配置选择传输实现
func NewTransport(cfg *config.Config) (ssh.Transport, error) {
	switch cfg.SSH.Transport {
	case "", "network":
		return ssh.NewClient(cfg.NetworkConfig()), nil
	case "process":
		return ssh.NewProcessTransport(cfg.Process), nil
	default:
		return nil, fmt.Errorf("%w: unsupported transport %q", errs.ErrConfiguration, cfg.SSH.Transport)
	}
}

// NewFromConfig 按配置装配诊断服务；runs 与 m 可为 nil
func NewFromConfig(cfg *config.Config, runs RunRecorder, m *metrics.Metrics) (*DiagnosticService, error) {
	transport, err := NewTransport(cfg)
	if err != nil {
		return nil, err
	}
	opts := Options{
		Transport:   transport,
		Radios:      RadioSet{Default: cfg.Radios.Default, Channel: cfg.Radios.Channel},
		MaxSessions: cfg.SSH.MaxSessions,
		Metrics:     m,
	}
	if w := NewStorageWriter(cfg.Archive); w != nil {
		opts.Archive = w
	}
	if runs != nil {
		opts.Runs = runs
	}
	return NewDiagnosticService(opts), nil
}

// Transport 当前使用的传输名称
func (s *DiagnosticService) Transport() string {
	return s.transport.Name()
}

// Operations 可执行的操作列表，命令按当前射频配置展开
func (s *DiagnosticService) Operations() []OperationInfo {
	return lo.Map(Operations(), func(spec OperationSpec, _ int) OperationInfo {
		return OperationInfo{
			Name:        spec.Name,
			LegacyName:  spec.LegacyName,
			Description: spec.Description,
			Commands: lo.Map(spec.Commands(s.radios), func(c collect.Command, _ int) string {
				if c.Line == "" {
					return "<login banner>"
				}
				return c.Line
			}),
		}
	})
}

// Execute 执行一个操作，结果与错误都封装在 Envelope 中
//
// 连接参数在任何传输活动之前校验。
func (s *DiagnosticService) Execute(ctx context.Context, name string, info ssh.ConnectionInfo) Envelope {
	start := time.Now()
	runID := uuid.NewString()
	info = info.WithDefaults()

	op, err := ParseOperation(name)
	if err != nil {
		env := Wrap(name, nil, err, info.Password)
		env.RunID = runID
		env.DurationMS = time.Since(start).Milliseconds()
		s.metrics.ObserveOperation("unknown", env.ErrorKind, time.Since(start))
		return env
	}
	spec := op.Spec()

	log := logger.WithFields(logrus.Fields{
		"run_id":    runID,
		"operation": spec.Name,
		"host":      info.Address(),
		"transport": s.transport.Name(),
	})

	var (
		record  any
		outputs []collect.CommandOutput
		paths   collect.RawStorePaths
	)
	err = info.Validate()
	if err == nil {
		outputs, err = s.dispatcher.Dispatch(ctx, info, spec.Commands(s.radios))
	}
	if err == nil {
		paths = s.archiveOutputs(ctx, runID, spec.Name, info, outputs, start)
		record, err = spec.Parse(outputs)
	}

	env := Wrap(spec.Name, record, err, info.Password)
	elapsed := time.Since(start)
	env.RunID = runID
	env.DurationMS = elapsed.Milliseconds()
	env.Partial = lo.SomeBy(outputs, func(o collect.CommandOutput) bool { return o.Partial })

	s.metrics.ObserveOperation(spec.Name, env.ErrorKind, elapsed)
	s.recordRun(ctx, runID, info, env, outputs, paths, start)

	if env.Success {
		log.WithFields(logrus.Fields{"duration": elapsed, "partial": env.Partial}).Info("operation completed")
	} else {
		log.WithFields(logrus.Fields{"duration": elapsed, "kind": env.ErrorKind}).Warn(env.Error)
	}
	return env
}

// archiveOutputs 归档失败只记日志，不影响操作结果
func (s *DiagnosticService) archiveOutputs(ctx context.Context, runID, operation string, info ssh.ConnectionInfo, outputs []collect.CommandOutput, start time.Time) collect.RawStorePaths {
	if s.archive == nil {
		return nil
	}
	paths := collect.RawStorePaths{}
	for _, out := range outputs {
		meta := TranscriptMeta{
			RunID:      runID,
			Operation:  operation,
			DeviceHost: info.Host,
			Command:    out.Line,
			Radio:      out.Radio,
			Time:       start,
		}
		obj, err := s.archive.Write(ctx, meta, logger.Redact(out.Raw, info.Password))
		if err != nil {
			logger.WithFields(logrus.Fields{"run_id": runID, "command": out.Line, "error": err}).Warn("transcript archive")
		}
		if obj.URI != "" {
			key := out.Line
			if key == "" {
				key = "banner"
			}
			paths[key] = obj.URI
		}
	}
	return paths
}

// recordRun 执行记录写入失败只记日志
func (s *DiagnosticService) recordRun(ctx context.Context, runID string, info ssh.ConnectionInfo, env Envelope, outputs []collect.CommandOutput, paths collect.RawStorePaths, start time.Time) {
	if s.runs == nil {
		return
	}
	end := time.Now()
	run := &model.OperationRun{
		ID:         runID,
		Operation:  env.Operation,
		DeviceHost: info.Host,
		Transport:  s.transport.Name(),
		Status:     model.RunStatusSuccess,
		Partial:    env.Partial,
		RawPaths:   paths.Marshal(),
		StartTime:  start,
		EndTime:    end,
		Duration:   env.DurationMS,
		Commands: lo.Map(outputs, func(o collect.CommandOutput, _ int) model.CommandRun {
			return model.CommandRun{
				RunID:       runID,
				Command:     o.Line,
				Radio:       o.Radio,
				OutputBytes: len(o.Raw),
				Partial:     o.Partial,
				Duration:    o.Duration.Milliseconds(),
			}
		}),
	}
	if env.Success {
		run.Result = string(env.Data)
	} else {
		run.Status = model.RunStatusFailed
		run.ErrorKind = env.ErrorKind
		run.ErrorMsg = env.Error
	}
	// 请求上下文可能已取消，记录仍需落库
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.runs.Save(saveCtx, run); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithFields(logrus.Fields{"run_id": runID, "error": err}).Warn("failed to record operation run")
	}
}
