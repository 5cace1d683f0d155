package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"pickvest/internal/app"
	"pickvest/internal/config"
	"pickvest/internal/logger"
)

func main() {
	var (
		cfgPath = flag.String("config", defaultConfigPath(), "path to the YAML config file")
		poll    = flag.Bool("poll", false, "wait for new loan and picks snapshots before investing")
		wait    = flag.Bool("wait", false, "sleep until just before the next hour mark first")
		logPath = flag.String("log", "", "append logs to this file in addition to stdout")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("loading config failed: %v", err)
	}
	if *logPath != "" {
		cfg.App.LogPath = *logPath
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("initializing log file failed: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)

	secrets, err := config.LoadSecrets(cfg.App.SecretsPath)
	if err != nil {
		log.Fatalf("loading secrets failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	investor, err := app.New(cfg, secrets)
	if err != nil {
		log.Fatalf("initializing app failed: %v", err)
	}
	defer investor.Close()

	if err := investor.Run(ctx, app.Options{Poll: *poll, Wait: *wait}); err != nil {
		log.Fatalf("run failed: %v", err)
	}
}

func defaultConfigPath() string {
	if p := os.Getenv("PICKVEST_CONFIG"); p != "" {
		return p
	}
	return "configs/config.yaml"
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
