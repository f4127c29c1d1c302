package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rkscollector/rkscollector/pkg/logger"
	"github.com/rkscollector/rkscollector/simulate"
)

func main() {
	configPath := flag.String("config", "", "simulator yaml (default: built-in responses)")
	listen := flag.String("listen", "", "listen address, e.g. 127.0.0.1:2222")
	debug := flag.Bool("debug", false, "log every command")
	flag.Parse()

	if err := logger.Init(logger.Config{Level: "info", Format: "text", Output: "stdout", Debug: *debug}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg := simulate.DefaultConfig()
	if *configPath != "" {
		loaded, err := simulate.LoadConfig(*configPath)
		if err != nil {
			logger.Fatalf("%v", err)
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	srv, err := simulate.New(cfg)
	if err != nil {
		logger.Fatalf("Failed to create simulator: %v", err)
	}
	if err := srv.Start(); err != nil {
		logger.Fatalf("Failed to start simulator: %v", err)
	}
	logger.Infof("Simulated AP %s (%s) on %s, login %s", cfg.Serial, cfg.Model, srv.Addr(), cfg.Username)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	srv.Stop()
}
