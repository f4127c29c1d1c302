package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/rkscollector/rkscollector/internal/errs"
	"github.com/rkscollector/rkscollector/pkg/logger"
)

// Client 直连网络传输
//
// 超时策略：会话时限到期时返回已收集的部分记录（Partial=true），不返回错误。
type Client struct {
	config Config
}

// NewClient 创建SSH客户端，零值字段使用默认配置
func NewClient(config Config) *Client {
	def := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = def.DialTimeout
	}
	if config.Settle == 0 {
		config.Settle = def.Settle
	}
	config.Markers = config.Markers.orDefault()
	return &Client{config: config}
}

// Name 传输名称
func (c *Client) Name() string { return "network" }

// Run 建立连接、完成登录握手并执行一条命令
func (c *Client) Run(ctx context.Context, info ConnectionInfo, command string) (*CommandResult, error) {
	info = info.WithDefaults()
	if err := info.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	log := logger.WithFields(logrus.Fields{
		"transport": c.Name(),
		"host":      info.Address(),
		"command":   command,
	})

	conn, err := c.dial(ctx, info)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	session, err := conn.NewSession()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open session channel: %v", errs.ErrConnection, err)
	}
	defer session.Close()

	if err := requestPty(session); err != nil {
		return nil, fmt.Errorf("%w: failed to request pty: %v", errs.ErrConnection, err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get stdin: %v", errs.ErrConnection, err)
	}
	// stdout 与 stderr 合并为同一条流送入状态机
	pr, pw := io.Pipe()
	session.Stdout = pw
	session.Stderr = pw

	if err := session.Shell(); err != nil {
		return nil, fmt.Errorf("%w: failed to start shell: %v", errs.ErrConnection, err)
	}
	go func() {
		_ = session.Wait()
		_ = pw.Close()
	}()
	// 返回前关闭读端，解除 stdout 拷贝协程的阻塞
	defer pr.Close()

	driver := NewDriver(stdin, info, command, c.config.driverOptions())
	output, err := driver.Drive(ctx, pr)
	result := &CommandResult{
		Command:  command,
		Output:   output,
		Duration: time.Since(start),
	}
	logger.DebugCommandOutput(command, output, 5, info.Password)

	switch {
	case err == nil:
		log.WithField("duration", result.Duration).Debug("session finished")
		return result, nil
	case errors.Is(err, errs.ErrTimeout):
		result.Partial = true
		log.WithField("state", driver.State().String()).Warn("session timed out, returning partial output")
		return result, nil
	default:
		return result, err
	}
}

func (c *Client) dial(ctx context.Context, info ConnectionInfo) (*ssh.Client, error) {
	password := info.Password
	sshConfig := &ssh.ClientConfig{
		User: info.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			// 部分 AP 固件只开放 keyboard-interactive
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.config.DialTimeout,
		Config: ssh.Config{
			KeyExchanges: []string{
				"curve25519-sha256",
				"curve25519-sha256@libssh.org",
				"ecdh-sha2-nistp256",
				"ecdh-sha2-nistp384",
				"ecdh-sha2-nistp521",
				"diffie-hellman-group14-sha256",
				"diffie-hellman-group14-sha1",
				"diffie-hellman-group1-sha1",
				"diffie-hellman-group-exchange-sha256",
				"diffie-hellman-group-exchange-sha1",
			},
			Ciphers: []string{
				"aes128-gcm@openssh.com",
				"aes256-gcm@openssh.com",
				"aes128-ctr",
				"aes192-ctr",
				"aes256-ctr",
				"aes128-cbc",
				"3des-cbc",
			},
			MACs: []string{
				"hmac-sha2-256-etm@openssh.com",
				"hmac-sha2-256",
				"hmac-sha1",
				"hmac-sha1-96",
			},
		},
		HostKeyAlgorithms: []string{
			"ssh-ed25519",
			"rsa-sha2-256",
			"rsa-sha2-512",
			"ssh-rsa",
			"ecdsa-sha2-nistp256",
			"ecdsa-sha2-nistp384",
			"ecdsa-sha2-nistp521",
		},
	}

	address := info.Address()
	dialer := &net.Dialer{Timeout: c.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to dial %s: %v", errs.ErrConnection, address, err)
	}

	// 握手不感知 ctx，用连接截止时间兜底
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, sshConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: ssh handshake with %s failed: %v", errs.ErrConnection, address, err)
	}
	// 会话阶段的时限由 Drive 负责
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// requestPty 按终端类型依次回退
func requestPty(session *ssh.Session) error {
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	var lastErr error
	for _, term := range []string{"vt100", "xterm", "ansi", "dumb"} {
		err := session.RequestPty(term, 80, 24, modes)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}
