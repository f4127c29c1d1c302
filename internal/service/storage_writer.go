package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/rkscollector/rkscollector/internal/config"
	"github.com/rkscollector/rkscollector/pkg/logger"
)

const transcriptContentType = "text/plain; charset=utf-8"

// TranscriptWriter 会话记录归档
type TranscriptWriter interface {
	Write(ctx context.Context, meta TranscriptMeta, content string) (StoredObject, error)
}

// TranscriptMeta 归档路径信息
type TranscriptMeta struct {
	RunID      string
	Operation  string
	DeviceHost string
	Command    string
	Radio      string
	Time       time.Time
}

// StoredObject 归档结果
type StoredObject struct {
	URI         string `json:"uri"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
	ContentType string `json:"content_type"`
}

// objectPath prefix/device/date/run/operation/command.txt
func (m TranscriptMeta) objectPath(prefix string) string {
	ts := m.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	parts := []string{}
	if p := strings.Trim(strings.TrimSpace(prefix), "/"); p != "" {
		parts = append(parts, p)
	}
	run := slug(m.RunID)
	parts = append(parts,
		slug(m.DeviceHost),
		ts.Format("20060102"),
		ts.Format("150405")+"_"+run,
		slug(m.Operation),
	)
	name := m.Command
	if strings.TrimSpace(name) == "" {
		name = "banner"
	}
	return path.Join(append(parts, slug(name)+".txt")...)
}

// NewStorageWriter 按配置创建归档写入器；backend=none 返回 nil
func NewStorageWriter(cfg config.ArchiveConfig) TranscriptWriter {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "local":
		return &LocalStorageWriter{baseDir: cfg.Local.BaseDir, prefix: cfg.Prefix}
	case "minio":
		return &DelegatingStorageWriter{
			local: &LocalStorageWriter{baseDir: cfg.Local.BaseDir, prefix: cfg.Prefix},
			minio: initMinioWriter(cfg),
		}
	default:
		return nil
	}
}

// DelegatingStorageWriter 优先写 MinIO，失败回退本地
//
// 回退成功时同时返回对象与预警错误，调用方记录即可。
type DelegatingStorageWriter struct {
	local *LocalStorageWriter
	minio *MinioStorageWriter
}

func (w *DelegatingStorageWriter) Write(ctx context.Context, meta TranscriptMeta, content string) (StoredObject, error) {
	if w.minio == nil {
		obj, err := w.local.Write(ctx, meta, content)
		if err != nil {
			return StoredObject{}, fmt.Errorf("minio client not initialized; local fallback failed: %w", err)
		}
		return obj, errors.New("minio client not initialized; wrote to local instead")
	}
	obj, err := w.minio.Write(ctx, meta, content)
	if err == nil {
		return obj, nil
	}
	logger.WithField("error", err).Warn("minio write failed, falling back to local")
	local, lerr := w.local.Write(ctx, meta, content)
	if lerr != nil {
		return StoredObject{}, fmt.Errorf("minio write failed: %v; local fallback failed: %w", err, lerr)
	}
	return local, fmt.Errorf("minio write failed: %w; fell back to local", err)
}

// LocalStorageWriter 本地文件归档
type LocalStorageWriter struct {
	baseDir string
	prefix  string
}

// NewLocalStorageWriter baseDir 为空时使用 ./data/archive
func NewLocalStorageWriter(baseDir, prefix string) *LocalStorageWriter {
	return &LocalStorageWriter{baseDir: baseDir, prefix: prefix}
}

func (w *LocalStorageWriter) Write(_ context.Context, meta TranscriptMeta, content string) (StoredObject, error) {
	baseDir := strings.TrimSpace(w.baseDir)
	if baseDir == "" {
		baseDir = "./data/archive"
	}
	fullPath := filepath.Join(baseDir, filepath.FromSlash(meta.objectPath(w.prefix)))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return StoredObject{}, fmt.Errorf("failed to create dir: %w", err)
	}
	data := []byte(content)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return StoredObject{}, fmt.Errorf("failed to write file: %w", err)
	}
	return StoredObject{
		URI:         "file://" + fullPath,
		Size:        int64(len(data)),
		Checksum:    checksum(data),
		ContentType: transcriptContentType,
	}, nil
}

// MinioStorageWriter MinIO 对象存储归档
type MinioStorageWriter struct {
	client   *minio.Client
	endpoint string
	bucket   string
	prefix   string
	backoff  []time.Duration

	mu            sync.Mutex
	bucketEnsured bool
}

// defaultBackoff 三次尝试之间的等待
var defaultBackoff = []time.Duration{time.Second, 2 * time.Second}

// initMinioWriter 配置不完整或客户端创建失败时返回 nil
func initMinioWriter(cfg config.ArchiveConfig) *MinioStorageWriter {
	mc := cfg.Minio
	host := strings.TrimSpace(mc.Host)
	if host == "" || mc.Port <= 0 {
		logger.Warnf("MinIO configuration incomplete; host/port missing")
		return nil
	}
	endpoint := net.JoinHostPort(host, strconv.Itoa(mc.Port))

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          20,
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(mc.AccessKey, mc.SecretKey, ""),
		Secure:    mc.Secure,
		Transport: transport,
	})
	if err != nil {
		logger.WithField("error", err).Error("MinIO client initialization failed")
		return nil
	}
	return &MinioStorageWriter{
		client:   client,
		endpoint: endpoint,
		bucket:   strings.TrimSpace(mc.Bucket),
		prefix:   cfg.Prefix,
		backoff:  defaultBackoff,
	}
}

func (w *MinioStorageWriter) Write(ctx context.Context, meta TranscriptMeta, content string) (StoredObject, error) {
	if w == nil || w.client == nil {
		return StoredObject{}, errors.New("minio client not initialized")
	}
	if w.bucket == "" {
		return StoredObject{}, errors.New("minio bucket not configured")
	}
	if err := w.ensureOnce(ctx, w.ensureBucket); err != nil {
		return StoredObject{}, fmt.Errorf("minio ensure bucket failed: %w", err)
	}

	objectName := meta.objectPath(w.prefix)
	data := []byte(content)
	err := retry(ctx, w.backoff, func(ctx context.Context) error {
		_, err := w.client.PutObject(ctx, w.bucket, objectName, bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: transcriptContentType})
		return err
	})
	if err != nil {
		return StoredObject{}, fmt.Errorf("minio put object failed after retries: %w", err)
	}
	return StoredObject{
		URI:         "minio://" + path.Join(w.bucket, objectName),
		Size:        int64(len(data)),
		Checksum:    checksum(data),
		ContentType: transcriptContentType,
	}, nil
}

// ensureOnce 成功一次后不再调用 fn；失败时下次写入重试
func (w *MinioStorageWriter) ensureOnce(ctx context.Context, fn func(context.Context) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.bucketEnsured {
		return nil
	}
	if err := fn(ctx); err != nil {
		return err
	}
	w.bucketEnsured = true
	return nil
}

func (w *MinioStorageWriter) ensureBucket(ctx context.Context) error {
	return retry(ctx, w.backoff, func(ctx context.Context) error {
		exists, err := w.client.BucketExists(ctx, w.bucket)
		if err == nil && !exists {
			err = w.client.MakeBucket(ctx, w.bucket, minio.MakeBucketOptions{})
		}
		return err
	})
}

// retry 最多 len(backoff)+1 次，仅在两次尝试之间等待
func retry(ctx context.Context, backoff []time.Duration, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= len(backoff); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff[attempt-1]):
			}
		}
		attemptCtx, cancel := attemptContext(ctx, 10*time.Second)
		err = fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
	}
	return err
}

// attemptContext 单次尝试的时限，不超过父上下文的剩余时间
func attemptContext(parent context.Context, prefer time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := parent.Deadline(); ok {
		if remain := time.Until(deadline); remain < prefer {
			return context.WithDeadline(parent, deadline)
		}
	}
	return context.WithTimeout(parent, prefer)
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

var slugRe = regexp.MustCompile(`[^a-z0-9._-]+`)

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_").Replace(s)
	s = slugRe.ReplaceAllString(s, "")
	if s == "" {
		s = "unknown"
	}
	return s
}
