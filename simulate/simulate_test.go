package simulate

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLine(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("admin\npassword\r\nget acx\rexit"))
	for _, want := range []string{"admin", "password", "get acx"} {
		got, err := readLine(r)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	got, err := readLine(r)
	assert.Error(t, err)
	assert.Equal(t, "exit", got)
}

func TestEnsureCRLF(t *testing.T) {
	assert.Equal(t, "a\r\nb\r\n", ensureCRLF("a\nb"))
	assert.Equal(t, "a\r\n", ensureCRLF("a\r\n"))
}

func TestResponseLookupOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "get_channel_wifi0.txt"), []byte("Channel: 11\nOK"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "get_acx.txt"), []byte("from file"), 0o644))

	srv, err := New(Config{
		Responses:   map[string]string{"get acx": "from config"},
		ResponseDir: dir,
	})
	require.NoError(t, err)
	assert.Equal(t, "from config", srv.response("get acx"))
	assert.Equal(t, "Channel: 11\nOK", srv.response("get channel wifi0"))
	assert.Equal(t, DefaultResponses()["get channel wifi1"], srv.response("get channel wifi1"))
	assert.Equal(t, "Unknown command: reboot", srv.response("reboot"))
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simulate.yaml")
	yaml := "listen: 127.0.0.1:2222\npassword: secret\nstall_commands: [get acx]\nchunk_size: 4\nchunk_delay: 5ms\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:2222", cfg.Listen)
	assert.Equal(t, "admin", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, []string{"get acx"}, cfg.StallCommands)
	assert.Equal(t, 4, cfg.ChunkSize)
	assert.Equal(t, "5ms", cfg.ChunkDelay.String())

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestHostKeyPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "host_ed25519")
	a, err := New(Config{HostKeyFile: path})
	require.NoError(t, err)
	b, err := New(Config{HostKeyFile: path})
	require.NoError(t, err)
	assert.Equal(t, a.hostKey.PublicKey().Marshal(), b.hostKey.PublicKey().Marshal())
}
