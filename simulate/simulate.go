package simulate

import (
	"bufio"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"golang.org/x/crypto/ssh"

	"github.com/rkscollector/rkscollector/pkg/logger"
)

// Config Ruckus AP 模拟器配置
type Config struct {
	Listen   string `mapstructure:"listen"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// ShellPassword rkscli 登录使用的密码，为空时与 SSH 密码相同
	ShellPassword string `mapstructure:"shell_password"`
	Model    string `mapstructure:"model"`
	Serial   string `mapstructure:"serial"`
	// Responses 命令 -> 输出，未配置的命令先查 ResponseDir 再查内置输出
	Responses   map[string]string `mapstructure:"responses"`
	ResponseDir string            `mapstructure:"response_dir"`
	// ChunkSize/ChunkDelay 把输出拆成小块发送，模拟提示符跨读取到达
	ChunkSize  int           `mapstructure:"chunk_size"`
	ChunkDelay time.Duration `mapstructure:"chunk_delay"`
	// StallCommands 收到这些命令后不再输出
	StallCommands []string `mapstructure:"stall_commands"`
	// Silent shell 打开后不输出任何内容
	Silent      bool   `mapstructure:"silent"`
	MaxConn     int    `mapstructure:"max_conn"`
	HostKeyFile string `mapstructure:"host_key_file"`
}

// DefaultConfig 本地回环、随机端口
func DefaultConfig() Config {
	return Config{
		Listen:   "127.0.0.1:0",
		Username: "admin",
		Password: "ruckus",
		Model:    "R750 Multimedia Hotzone Wireless",
		Serial:   "302139001234",
	}
}

// LoadConfig 读取模拟器 yaml 配置，缺省字段取 DefaultConfig
func LoadConfig(path string) (Config, error) {
	def := DefaultConfig()
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetDefault("listen", def.Listen)
	v.SetDefault("username", def.Username)
	v.SetDefault("password", def.Password)
	v.SetDefault("shell_password", def.ShellPassword)
	v.SetDefault("model", def.Model)
	v.SetDefault("serial", def.Serial)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("failed to read simulate config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal simulate config: %w", err)
	}
	return cfg, nil
}

// DefaultResponses 内置的 rkscli 命令输出
func DefaultResponses() map[string]string {
	return map[string]string{
		"get acx": "ACX Service is enabled.\nAP is managed by ACX.\nState: RUN\nServer List: ap.ruckus.cloud\n" +
			"Connection status: Connected\nConfiguration Update State: IDLE\nACX heartbeat intervals: 30 seconds\n" +
			"Controller Cert Validation Result: Success\nOK",
		"get extant wifi0":     "External Antenna Mode: Disabled\nOK",
		"get extant wifi1":     "External Antenna Mode: Enabled\nOK",
		"get extantgain wifi0": "External Antenna Gain: 3 dBi\nOK",
		"get extantgain wifi1": "External Antenna Gain: 5 dBi\nOK",
		"get admctl wifi0": "Client Admission Control: Enabled\nRadio Load threshold: 75 %\n" +
			"Client Count threshold: 20 clients\nClient throughput threshold: 5.5 Mbps\nOK",
		"get admctl wifi1":  "Client Admission Control: Disabled\nOK",
		"get channel wifi0": "Channel: 6 (2437 MHz)\nOK",
		"get channel wifi1": "Channel: 36 (5180 MHz)\nOK",
		"get channel wifi2": "Invalid radio interface name",
	}
}

// Server 单设备 SSH 模拟服务
type Server struct {
	cfg      Config
	hostKey  ssh.Signer
	listener net.Listener

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	active int
	closed bool
	wg     sync.WaitGroup
}

// New 创建模拟器，未配置 HostKeyFile 时使用内存中的 ed25519 密钥
func New(cfg Config) (*Server, error) {
	def := DefaultConfig()
	if cfg.Listen == "" {
		cfg.Listen = def.Listen
	}
	if cfg.Username == "" {
		cfg.Username = def.Username
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Serial == "" {
		cfg.Serial = def.Serial
	}
	signer, err := loadOrCreateHostKey(cfg.HostKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to init host key: %w", err)
	}
	return &Server{cfg: cfg, hostKey: signer, conns: make(map[net.Conn]struct{})}, nil
}

func loadOrCreateHostKey(path string) (ssh.Signer, error) {
	if path != "" {
		if bs, err := os.ReadFile(path); err == nil {
			return ssh.ParsePrivateKey(bs)
		}
	}
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	if path != "" {
		blk, err := ssh.MarshalPrivateKey(priv, "rkscollector simulator")
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, pem.EncodeToMemory(blk), 0o600); err != nil {
			return nil, err
		}
	}
	return ssh.NewSignerFromKey(priv)
}

// Start 开始监听
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	s.listener = ln
	logger.WithField("addr", ln.Addr().String()).Info("simulator listening")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.mu.Lock()
			if s.closed || (s.cfg.MaxConn > 0 && s.active >= s.cfg.MaxConn) {
				s.mu.Unlock()
				_ = conn.Close()
				logger.Warnf("simulator: reject connection from %s", conn.RemoteAddr())
				continue
			}
			s.active++
			s.conns[conn] = struct{}{}
			s.mu.Unlock()

			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.handleConn(c)
				s.mu.Lock()
				s.active--
				delete(s.conns, c)
				s.mu.Unlock()
			}(conn)
		}
	}()
	return nil
}

// Addr 实际监听地址
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Listen
	}
	return s.listener.Addr().String()
}

// HostPort 拆分后的监听地址
func (s *Server) HostPort() (string, int) {
	addr, ok := s.listener.Addr().(*net.TCPAddr)
	if !ok {
		return "", 0
	}
	return addr.IP.String(), addr.Port
}

// Stop 关闭监听与全部连接并等待会话退出
func (s *Server) Stop() {
	s.mu.Lock()
	s.closed = true
	if s.listener != nil {
		_ = s.listener.Close()
	}
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) handleConn(nc net.Conn) {
	log := logger.WithField("remote", nc.RemoteAddr().String())
	srvCfg := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if s.checkCredentials(meta.User(), string(password)) {
				return nil, nil
			}
			return nil, errors.New("access denied")
		},
		KeyboardInteractiveCallback: func(meta ssh.ConnMetadata, challenge ssh.KeyboardInteractiveChallenge) (*ssh.Permissions, error) {
			answers, err := challenge(meta.User(), "", []string{"Password: "}, []bool{false})
			if err != nil {
				return nil, err
			}
			if len(answers) == 1 && s.checkCredentials(meta.User(), answers[0]) {
				return nil, nil
			}
			return nil, errors.New("access denied")
		},
	}
	srvCfg.AddHostKey(s.hostKey)

	conn, chans, reqs, err := ssh.NewServerConn(nc, srvCfg)
	if err != nil {
		log.WithField("error", err).Debug("simulator: handshake failed")
		_ = nc.Close()
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	for ch := range chans {
		if ch.ChannelType() != "session" {
			_ = ch.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := ch.Accept()
		if err != nil {
			log.WithField("error", err).Warn("simulator: channel accept failed")
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleSession(channel, requests, log)
		}()
	}
}

func (s *Server) checkCredentials(user, password string) bool {
	return user == s.cfg.Username && password == s.cfg.Password
}

func (s *Server) checkShellCredentials(user, password string) bool {
	if s.cfg.ShellPassword == "" {
		return s.checkCredentials(user, password)
	}
	return user == s.cfg.Username && password == s.cfg.ShellPassword
}

func (s *Server) handleSession(channel ssh.Channel, requests <-chan *ssh.Request, log *logrus.Entry) {
	defer channel.Close()
	for req := range requests {
		switch req.Type {
		case "pty-req", "env", "window-change":
			_ = req.Reply(true, nil)
		case "shell":
			_ = req.Reply(true, nil)
			go ssh.DiscardRequests(requests)
			s.runShell(channel, log)
			return
		default:
			_ = req.Reply(false, nil)
		}
	}
}

// runShell rkscli 交互：Please login / password / rkscli 提示符
func (s *Server) runShell(channel ssh.Channel, log *logrus.Entry) {
	reader := bufio.NewReader(channel)
	if s.cfg.Silent {
		_, _ = io.Copy(io.Discard, reader)
		return
	}
	banner := fmt.Sprintf("Ruckus %s AP: %s", s.cfg.Model, s.cfg.Serial)
	s.write(channel, "\r\n"+banner+"\r\n")

	authenticated := false
	for attempt := 0; attempt < 3 && !authenticated; attempt++ {
		s.write(channel, "Please login: ")
		user, err := readLine(reader)
		if err != nil {
			return
		}
		s.write(channel, user+"\r\n")
		s.write(channel, "password : ")
		pass, err := readLine(reader)
		if err != nil {
			return
		}
		s.write(channel, "\r\n")
		if s.checkShellCredentials(user, pass) {
			authenticated = true
			break
		}
		s.write(channel, "Login incorrect\r\n")
	}
	if !authenticated {
		return
	}
	s.write(channel, "Copyright(C) 2024 Ruckus Wireless, Inc. All Rights Reserved.\r\n\r\n** "+banner+"\r\n\r\nrkscli: ")

	for {
		line, err := readLine(reader)
		if err != nil {
			return
		}
		cmd := strings.TrimSpace(line)
		s.write(channel, line+"\r\n")
		log.WithField("command", cmd).Debug("simulator: command")
		switch {
		case cmd == "":
			s.write(channel, "rkscli: ")
		case equalAny(cmd, "exit", "quit"):
			return
		case equalAny(cmd, s.cfg.StallCommands...):
			_, _ = io.Copy(io.Discard, reader)
			return
		default:
			s.write(channel, ensureCRLF(s.response(cmd))+"rkscli: ")
		}
	}
}

func (s *Server) response(cmd string) string {
	if out, ok := s.cfg.Responses[cmd]; ok {
		return out
	}
	if s.cfg.ResponseDir != "" {
		name := strings.ReplaceAll(cmd, " ", "_") + ".txt"
		if bs, err := os.ReadFile(filepath.Join(s.cfg.ResponseDir, name)); err == nil {
			return string(bs)
		}
	}
	if out, ok := DefaultResponses()[cmd]; ok {
		return out
	}
	return "Unknown command: " + cmd
}

// write 按 ChunkSize 拆块发送
func (s *Server) write(w io.Writer, text string) {
	data := []byte(text)
	size := s.cfg.ChunkSize
	if size <= 0 {
		size = len(data)
	}
	for len(data) > 0 {
		n := min(size, len(data))
		if _, err := w.Write(data[:n]); err != nil {
			return
		}
		data = data[n:]
		if s.cfg.ChunkDelay > 0 && len(data) > 0 {
			time.Sleep(s.cfg.ChunkDelay)
		}
	}
}

// readLine 读取以 \n、\r 或 \r\n 结尾的一行
func readLine(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			return sb.String(), err
		}
		switch b {
		case '\n':
			return sb.String(), nil
		case '\r':
			if r.Buffered() > 0 {
				if next, err := r.Peek(1); err == nil && next[0] == '\n' {
					_, _ = r.ReadByte()
				}
			}
			return sb.String(), nil
		default:
			sb.WriteByte(b)
		}
	}
}

func ensureCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "\r\n")
	if !strings.HasSuffix(s, "\r\n") {
		s += "\r\n"
	}
	return s
}

func equalAny(s string, opts ...string) bool {
	for _, o := range opts {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(o)) {
			return true
		}
	}
	return false
}
