package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rkscollector/rkscollector/pkg/ssh"
)

const testBanner = "\r\nRuckus R750 Multimedia Hotzone Wireless AP: 302139001234\r\nPlease login: admin\r\npassword : \r\nrkscli: "

// fakeTransport 按命令返回预置记录
type fakeTransport struct {
	mu        sync.Mutex
	calls     []string
	bodies    map[string]string
	failures  map[string]error
	partial   map[string]bool
	delay     time.Duration
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

func newFakeTransport(bodies map[string]string) *fakeTransport {
	return &fakeTransport{bodies: bodies, failures: map[string]error{}, partial: map[string]bool{}}
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Run(ctx context.Context, info ssh.ConnectionInfo, command string) (*ssh.CommandResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, command)
	f.mu.Unlock()

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxFlight.Load()
		if n <= cur || f.maxFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("session aborted: %w", ctx.Err())
		}
	}
	if err, ok := f.failures[command]; ok {
		return nil, err
	}
	var out strings.Builder
	out.WriteString(testBanner)
	if command != "" {
		out.WriteString(command + "\r\n" + f.bodies[command] + "\r\nrkscli: ")
	}
	out.WriteString("exit\r\n")
	return &ssh.CommandResult{Command: command, Output: out.String(), Partial: f.partial[command], Duration: time.Millisecond}, nil
}

func (f *fakeTransport) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
