package service

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/semaphore"

	"github.com/rkscollector/rkscollector/addone/collect"
	"github.com/rkscollector/rkscollector/internal/metrics"
	"github.com/rkscollector/rkscollector/internal/util"
	"github.com/rkscollector/rkscollector/pkg/ssh"
)

// Dispatcher 每条命令一次独立会话，并发执行后按命令顺序汇总
type Dispatcher struct {
	transport ssh.Transport
	sessions  *semaphore.Weighted
	metrics   *metrics.Metrics
}

// NewDispatcher maxSessions<=0 时不限制同时打开的会话数
func NewDispatcher(transport ssh.Transport, maxSessions int, m *metrics.Metrics) *Dispatcher {
	d := &Dispatcher{transport: transport, metrics: m}
	if maxSessions > 0 {
		d.sessions = semaphore.NewWeighted(int64(maxSessions))
	}
	return d
}

// Dispatch 任一会话失败即取消其余会话并返回该错误，不做部分汇总
func (d *Dispatcher) Dispatch(ctx context.Context, info ssh.ConnectionInfo, commands []collect.Command) ([]collect.CommandOutput, error) {
	outputs := make([]collect.CommandOutput, len(commands))
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	for i, cmd := range commands {
		p.Go(func(ctx context.Context) error {
			if d.sessions != nil {
				if err := d.sessions.Acquire(ctx, 1); err != nil {
					return err
				}
				defer d.sessions.Release(1)
			}
			done := d.metrics.SessionStarted(d.transport.Name())
			res, err := d.transport.Run(ctx, info, cmd.Line)
			done(res != nil && res.Partial, err)
			if err != nil {
				return fmt.Errorf("%s: %w", commandLabel(cmd.Line), err)
			}
			outputs[i] = collect.CommandOutput{
				Command:  cmd,
				Raw:      util.NormalizeOutput(res.Output),
				Partial:  res.Partial,
				Duration: res.Duration,
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

func commandLabel(line string) string {
	if line == "" {
		return "login banner"
	}
	return fmt.Sprintf("command %q", line)
}
