package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rkscollector/rkscollector/internal/errs"
	"github.com/rkscollector/rkscollector/pkg/logger"
)

// State 会话状态，只前进不回退
type State int

const (
	AwaitingLogin State = iota
	AwaitingPassword
	Authenticated
	CommandSent
	Done
)

func (s State) String() string {
	switch s {
	case AwaitingLogin:
		return "AwaitingLogin"
	case AwaitingPassword:
		return "AwaitingPassword"
	case Authenticated:
		return "Authenticated"
	case CommandSent:
		return "CommandSent"
	case Done:
		return "Done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	DefaultSettle      = 100 * time.Millisecond
	DefaultLineEnding  = "\n"
	DefaultExitCommand = "exit"
)

// DriverOptions 状态机可选参数，零值即默认
type DriverOptions struct {
	Markers     Markers
	LineEnding  string
	ExitCommand string
	// Settle 命令完成后发送 exit 之前的等待，期间到达的输出仍会被收集
	Settle time.Duration
	// OnTransition 每次状态变更时回调
	OnTransition func(from, to State)
}

// Driver 单条命令的交互会话状态机
//
// Driver 不做任何 I/O 调度，Feed 由 Drive 或测试直接调用。
type Driver struct {
	markers  Markers
	eol      string
	exit     string
	settle   time.Duration
	onChange func(from, to State)

	username string
	password string
	command  string

	w         io.Writer
	state     State
	buf       strings.Builder
	scanFrom  int
	completed bool
}

// NewDriver 创建状态机，w 为设备输入端
func NewDriver(w io.Writer, info ConnectionInfo, command string, opts DriverOptions) *Driver {
	info = info.WithDefaults()
	d := &Driver{
		markers:  opts.Markers.orDefault(),
		eol:      opts.LineEnding,
		exit:     opts.ExitCommand,
		settle:   opts.Settle,
		onChange: opts.OnTransition,
		username: info.Username,
		password: info.Password,
		command:  strings.TrimSpace(command),
		w:        w,
		state:    AwaitingLogin,
	}
	if d.eol == "" {
		d.eol = DefaultLineEnding
	}
	if d.exit == "" {
		d.exit = DefaultExitCommand
	}
	if d.settle < 0 {
		d.settle = 0
	}
	return d
}

// State 当前状态
func (d *Driver) State() State { return d.state }

// Output 到目前为止的完整会话记录
func (d *Driver) Output() string { return d.buf.String() }

// Completed 命令已完成、exit 尚未发送
func (d *Driver) Completed() bool { return d.completed && d.state == CommandSent }

// Feed 追加一段设备输出，并推进缓冲区允许的全部状态
func (d *Driver) Feed(chunk []byte) error {
	d.buf.Write(chunk)
	if d.state == Done {
		return nil
	}
	buf := d.buf.String()
	for {
		switch d.state {
		case AwaitingLogin:
			end, ok := MatchFrom(buf, d.markers.Login, d.scanFrom)
			if !ok {
				return nil
			}
			if err := d.send(d.username); err != nil {
				return err
			}
			d.advance(AwaitingPassword, end)
		case AwaitingPassword:
			end, ok := MatchFrom(buf, d.markers.Password, d.scanFrom)
			if !ok {
				return nil
			}
			if err := d.send(d.password); err != nil {
				return err
			}
			d.advance(Authenticated, end)
		case Authenticated:
			end, ok := MatchFrom(buf, d.markers.Prompt, d.scanFrom)
			if at, rejected := d.rejectedAt(buf); rejected && (!ok || at < end) {
				return fmt.Errorf("%w: authentication rejected for user %q", errs.ErrConnection, d.username)
			}
			if !ok {
				return nil
			}
			if d.command == "" {
				if err := d.send(d.exit); err != nil {
					return err
				}
				d.advance(Done, end)
				return nil
			}
			if err := d.send(d.command); err != nil {
				return err
			}
			d.advance(CommandSent, end)
		case CommandSent:
			if d.completed {
				return nil
			}
			end, ok := MatchFrom(buf, d.markers.Prompt, d.scanFrom)
			if !ok {
				return nil
			}
			d.scanFrom = end
			d.completed = true
			return nil
		default:
			return nil
		}
	}
}

// Finish 命令完成后发送 exit 并进入 Done
func (d *Driver) Finish() error {
	if !d.Completed() {
		return fmt.Errorf("cannot finish session in state %s", d.state)
	}
	if err := d.send(d.exit); err != nil {
		return err
	}
	d.advance(Done, d.scanFrom)
	return nil
}

// rejectedAt 密码提交后出现拒绝提示或再次出现登录提示，返回最早的匹配位置
func (d *Driver) rejectedAt(buf string) (int, bool) {
	at, found := 0, false
	for _, marker := range []string{d.markers.Rejected, d.markers.Login} {
		if end, ok := MatchFrom(buf, marker, d.scanFrom); ok && (!found || end < at) {
			at, found = end, true
		}
	}
	return at, found
}

func (d *Driver) send(line string) error {
	if _, err := io.WriteString(d.w, line+d.eol); err != nil {
		return fmt.Errorf("%w: write to session in state %s: %v", errs.ErrConnection, d.state, err)
	}
	return nil
}

func (d *Driver) advance(to State, scanFrom int) {
	from := d.state
	d.state = to
	d.scanFrom = scanFrom
	logger.Debugf("session state %s -> %s", from, to)
	if d.onChange != nil {
		d.onChange(from, to)
	}
}

type streamEvent struct {
	data []byte
	err  error
}

// Drive 从 r 读取设备输出驱动状态机，直到 Done、流结束或 ctx 到期
//
// 出现命令提示符之前流结束返回 ErrConnection；命令发出后流结束视为设备关闭会话，返回已收集的记录；
// ctx 超时返回已收集的记录与 ErrTimeout，由传输层决定是否作为失败上报。
func (d *Driver) Drive(ctx context.Context, r io.Reader) (string, error) {
	events := make(chan streamEvent, 16)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case events <- streamEvent{data: chunk}:
				case <-stop:
					// 继续读空，避免写端阻塞
					_, _ = io.Copy(io.Discard, r)
					return
				}
			}
			if err != nil {
				select {
				case events <- streamEvent{err: err}:
				case <-stop:
				}
				return
			}
		}
	}()

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return d.Output(), fmt.Errorf("%w: session deadline exceeded in state %s", errs.ErrTimeout, d.state)
			}
			return d.Output(), fmt.Errorf("session aborted in state %s: %w", d.state, ctx.Err())
		case <-settle:
			if err := d.Finish(); err != nil {
				return d.Output(), err
			}
			return d.Output(), nil
		case ev := <-events:
			if len(ev.data) > 0 {
				if err := d.Feed(ev.data); err != nil {
					return d.Output(), err
				}
			}
			if d.state == Done {
				return d.Output(), nil
			}
			if d.Completed() && settle == nil {
				settle = time.After(d.settle)
			}
			if ev.err != nil {
				if d.state <= Authenticated {
					return d.Output(), fmt.Errorf("%w: session closed before command prompt (state %s): %v", errs.ErrConnection, d.state, ev.err)
				}
				return d.Output(), nil
			}
		}
	}
}
