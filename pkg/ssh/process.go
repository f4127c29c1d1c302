package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rkscollector/rkscollector/internal/errs"
	"github.com/rkscollector/rkscollector/pkg/logger"
)

// ProcessConfig 进程托管传输配置
type ProcessConfig struct {
	Binary         string        `mapstructure:"binary"`
	Image          string        `mapstructure:"image"`
	ExtraArgs      []string      `mapstructure:"extra_args"`
	ConnectTimeout int           `mapstructure:"connect_timeout"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Settle         time.Duration `mapstructure:"settle"`
	LineEnding     string        `mapstructure:"line_ending"`
	Markers        Markers       `mapstructure:"markers"`
}

// DefaultProcessConfig 通过 docker 容器内的 ssh 客户端连接设备
func DefaultProcessConfig() ProcessConfig {
	return ProcessConfig{
		Binary:         "docker",
		Image:          "dogkeeper886/ssh-sshrsa",
		ConnectTimeout: 30,
		Timeout:        45 * time.Second,
		Settle:         DefaultSettle,
		LineEnding:     DefaultLineEnding,
		Markers: Markers{
			Login:    "Please login:",
			Password: "password",
			Prompt:   "rkscli:",
			Rejected: "Login incorrect",
		},
	}
}

const stderrExcerpt = 500

// ProcessTransport 在外部进程中运行同一套登录握手
//
// 超时策略：时限到期强制结束进程并返回 ErrTimeout；进程非零退出返回 ErrConnection。
type ProcessTransport struct {
	config      ProcessConfig
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewProcessTransport 创建进程托管传输，零值字段使用默认配置
func NewProcessTransport(config ProcessConfig) *ProcessTransport {
	def := DefaultProcessConfig()
	if config.Binary == "" {
		config.Binary = def.Binary
	}
	if config.Image == "" {
		config.Image = def.Image
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = def.ConnectTimeout
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.Settle == 0 {
		config.Settle = def.Settle
	}
	if config.Markers == (Markers{}) {
		config.Markers = def.Markers
	}
	config.Markers = config.Markers.orDefault()
	return &ProcessTransport{config: config, execCommand: exec.CommandContext}
}

// Name 传输名称
func (p *ProcessTransport) Name() string { return "process" }

// Args 构造进程参数，不包含密码
func (p *ProcessTransport) Args(info ConnectionInfo) []string {
	info = info.WithDefaults()
	args := []string{"run", "--rm", "-i"}
	args = append(args, p.config.ExtraArgs...)
	args = append(args,
		p.config.Image,
		"ssh",
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "ConnectTimeout="+strconv.Itoa(p.config.ConnectTimeout),
	)
	if info.Port != DefaultPort {
		args = append(args, "-p", strconv.Itoa(info.Port))
	}
	return append(args, info.Username+"@"+info.Host)
}

// Run 启动进程并通过其 stdin/stdout 驱动状态机
func (p *ProcessTransport) Run(ctx context.Context, info ConnectionInfo, command string) (*CommandResult, error) {
	info = info.WithDefaults()
	if err := info.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	start := time.Now()
	log := logger.WithFields(logrus.Fields{
		"transport": p.Name(),
		"host":      info.Address(),
		"command":   command,
	})

	cmd := p.execCommand(ctx, p.config.Binary, p.Args(info)...)
	cmd.WaitDelay = 2 * time.Second
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get stdin: %v", errs.ErrConnection, err)
	}
	pr, pw := io.Pipe()
	var stderr bytes.Buffer
	cmd.Stdout = pw
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start %s: %v", errs.ErrConnection, p.config.Binary, err)
	}
	waitCh := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		_ = pw.Close()
		waitCh <- err
	}()

	driver := NewDriver(stdin, info, command, DriverOptions{
		Markers:    p.config.Markers,
		LineEnding: p.config.LineEnding,
		Settle:     p.config.Settle,
	})
	output, driveErr := driver.Drive(ctx, pr)
	_ = stdin.Close()

	var waitErr error
	select {
	case waitErr = <-waitCh:
	case <-ctx.Done():
		// CommandContext 会结束进程
		waitErr = <-waitCh
	}
	_ = pr.Close()

	result := &CommandResult{
		Command:  command,
		Output:   output,
		Duration: time.Since(start),
	}
	logger.DebugCommandOutput(command, output, 5, info.Password)

	if errors.Is(driveErr, errs.ErrTimeout) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.WithField("state", driver.State().String()).Warn("process session timed out")
		return result, fmt.Errorf("%w: ssh process did not finish within %s", errs.ErrTimeout, p.config.Timeout)
	}
	if ctx.Err() != nil {
		return result, fmt.Errorf("process session aborted: %w", ctx.Err())
	}
	if waitErr != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		msg := logger.Redact(strings.TrimSpace(stderr.String()), info.Password)
		if len(msg) > stderrExcerpt {
			msg = msg[:stderrExcerpt]
		}
		return result, fmt.Errorf("%w: ssh process exited with code %d: %s", errs.ErrConnection, code, msg)
	}
	if driveErr != nil {
		return result, driveErr
	}
	log.WithField("duration", result.Duration).Debug("process session finished")
	return result, nil
}
