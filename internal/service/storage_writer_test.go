package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkscollector/rkscollector/internal/config"
)

func TestTranscriptObjectPath(t *testing.T) {
	meta := TranscriptMeta{
		RunID:      "Run-1",
		Operation:  "antenna_info",
		DeviceHost: "192.0.2.10",
		Command:    "get extant wifi0",
		Time:       time.Date(2024, 3, 9, 14, 58, 30, 0, time.UTC),
	}
	assert.Equal(t, "transcripts/192.0.2.10/20240309/145830_run-1/antenna_info/get_extant_wifi0.txt", meta.objectPath("/transcripts/"))

	meta.Command = ""
	assert.True(t, strings.HasSuffix(meta.objectPath(""), "/banner.txt"))
	assert.Equal(t, "unknown", slug("  ###  "))
}

func TestLocalStorageWriter(t *testing.T) {
	dir := t.TempDir()
	w := NewLocalStorageWriter(dir, "raw")
	obj, err := w.Write(context.Background(), TranscriptMeta{
		RunID:      "abc",
		Operation:  "management_status",
		DeviceHost: "ap-1",
		Command:    "get acx",
	}, "State: RUN\r\n")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(obj.URI, "file://"))
	path := strings.TrimPrefix(obj.URI, "file://")
	assert.True(t, strings.HasPrefix(path, filepath.Join(dir, "raw", "ap-1")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "State: RUN\r\n", string(data))
	assert.Equal(t, int64(len(data)), obj.Size)
	assert.True(t, strings.HasPrefix(obj.Checksum, "sha256:"))
}

func TestNewStorageWriter(t *testing.T) {
	assert.Nil(t, NewStorageWriter(config.ArchiveConfig{Backend: "none"}))
	assert.IsType(t, &LocalStorageWriter{}, NewStorageWriter(config.ArchiveConfig{Backend: "local"}))

	// minio 配置不完整时回退本地并返回预警
	dir := t.TempDir()
	w := NewStorageWriter(config.ArchiveConfig{Backend: "minio", Local: config.LocalConfig{BaseDir: dir}})
	require.IsType(t, &DelegatingStorageWriter{}, w)
	obj, err := w.Write(context.Background(), TranscriptMeta{RunID: "r", Operation: "identify", DeviceHost: "h"}, "banner")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrote to local instead")
	assert.True(t, strings.HasPrefix(obj.URI, "file://"+dir))
}

func TestRetryWaitsOnlyBetweenAttempts(t *testing.T) {
	var (
		calls int
		last  time.Time
	)
	fail := errors.New("put failed")
	start := time.Now()
	err := retry(context.Background(), []time.Duration{time.Millisecond, 300 * time.Millisecond}, func(context.Context) error {
		calls++
		last = time.Now()
		return fail
	})
	require.ErrorIs(t, err, fail)
	assert.Equal(t, 3, calls)
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
	assert.Less(t, time.Since(last), 150*time.Millisecond, "no wait after the final attempt")

	calls = 0
	require.NoError(t, retry(context.Background(), nil, func(context.Context) error { calls++; return nil }))
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = retry(ctx, []time.Duration{time.Hour}, func(context.Context) error { return fail })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMinioEnsureBucketOnceConcurrent(t *testing.T) {
	w := &MinioStorageWriter{}
	var calls atomic.Int32
	ensure := func(context.Context) error {
		calls.Add(1)
		time.Sleep(5 * time.Millisecond)
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, w.ensureOnce(context.Background(), ensure))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestMinioEnsureBucketRetriedAfterFailure(t *testing.T) {
	w := &MinioStorageWriter{}
	fail := errors.New("bucket unavailable")
	require.ErrorIs(t, w.ensureOnce(context.Background(), func(context.Context) error { return fail }), fail)

	called := false
	require.NoError(t, w.ensureOnce(context.Background(), func(context.Context) error { called = true; return nil }))
	assert.True(t, called)
	require.NoError(t, w.ensureOnce(context.Background(), func(context.Context) error { return fail }))
}
