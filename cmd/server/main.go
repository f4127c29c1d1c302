package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rkscollector/rkscollector/api/router"
	"github.com/rkscollector/rkscollector/internal/config"
	"github.com/rkscollector/rkscollector/internal/database"
	"github.com/rkscollector/rkscollector/internal/metrics"
	"github.com/rkscollector/rkscollector/internal/service"
	"github.com/rkscollector/rkscollector/pkg/logger"
	"github.com/rkscollector/rkscollector/pkg/ssh"
	"github.com/rkscollector/rkscollector/simulate"
)

// liveService 配置热更新时整体替换诊断服务
type liveService struct {
	current atomic.Pointer[service.DiagnosticService]
}

func (l *liveService) Operations() []service.OperationInfo { return l.current.Load().Operations() }
func (l *liveService) Transport() string                   { return l.current.Load().Transport() }
func (l *liveService) Execute(ctx context.Context, name string, info ssh.ConnectionInfo) service.Envelope {
	return l.current.Load().Execute(ctx, name, info)
}

func main() {
	configPath := flag.String("config", "", "config file (default: configs/config.yaml if present)")
	simPath := flag.String("simulate", "", "start a local AP simulator from this yaml file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Infof("Starting Ruckus AP diagnostics server (transport=%s)", cfg.SSH.Transport)

	var (
		runs     *database.RunStore
		dbHealth func() error
	)
	if cfg.Database.Enabled {
		if err := database.InitSQLite(cfg.Database); err != nil {
			logger.Fatalf("Failed to initialize database: %v", err)
		}
		defer database.Close()
		runs = database.NewRunStore(database.GetDB())
		dbHealth = database.Health
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	svc := &liveService{}
	build := func(c *config.Config) error {
		var rec service.RunRecorder
		if runs != nil {
			rec = runs
		}
		s, err := service.NewFromConfig(c, rec, m)
		if err != nil {
			return err
		}
		svc.current.Store(s)
		return nil
	}
	if err := build(cfg); err != nil {
		logger.Fatalf("Failed to create diagnostic service: %v", err)
	}

	if *simPath != "" {
		sc, err := simulate.LoadConfig(*simPath)
		if err != nil {
			logger.Fatalf("Failed to load simulator config: %v", err)
		}
		sim, err := simulate.New(sc)
		if err != nil {
			logger.Fatalf("Failed to create simulator: %v", err)
		}
		if err := sim.Start(); err != nil {
			logger.Fatalf("Failed to start simulator: %v", err)
		}
		defer sim.Stop()
	}

	opts := router.Options{
		Mode:    cfg.Server.Mode,
		Service: svc,
		Device: func() ssh.ConnectionInfo {
			return config.Get().ConnectionInfo()
		},
		DBHealth:    dbHealth,
		MetricsPath: cfg.Metrics.Path,
	}
	if runs != nil {
		opts.Runs = runs
	}
	if m != nil {
		opts.Metrics = m.Handler()
	}

	server := &http.Server{
		Addr:           cfg.GetServerAddr(),
		Handler:        router.SetupRouter(opts),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
	go func() {
		logger.Infof("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	watchPath := *configPath
	if watchPath == "" {
		watchPath = "configs/config.yaml"
	}
	go watchConfig(watchPath, func() {
		newCfg, err := config.Load(*configPath)
		if err != nil {
			logger.Warnf("Config reload failed: %v", err)
			return
		}
		if err := logger.Init(newCfg.Log); err != nil {
			logger.Warnf("Logger reload failed: %v", err)
		}
		if err := build(newCfg); err != nil {
			logger.Warnf("Service reload failed: %v", err)
			return
		}
		logger.Info("Config reloaded")
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
		return
	}
	logger.Info("Server shutdown complete")
}

// watchConfig 文件变更后去抖触发 reload
func watchConfig(path string, reload func()) {
	if _, err := os.Stat(path); err != nil {
		logger.Debugf("Config watch skipped: %v", err)
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("Config watch init failed: %v", err)
		return
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		logger.Warnf("Config watch add failed: %v", err)
		return
	}

	var debounce *time.Timer
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(300*time.Millisecond, reload)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("Config watch error: %v", err)
		}
	}
}
