package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AnsonZhang2009/playground-todo-list/internal/client/taskclient"
	"github.com/AnsonZhang2009/playground-todo-list/internal/client/taskstore"
	"github.com/AnsonZhang2009/playground-todo-list/internal/tui"
	"github.com/AnsonZhang2009/playground-todo-list/shared/logger"
)

func main() {
	configPath := flag.String("config", "todo.toml", "path to client config file")
	serverURL := flag.String("server", "", "tasks server URL (overrides config)")
	flag.Parse()

	logrusLogger := logger.Init("todo")

	cfg, err := tui.LoadConfig(*configPath)
	if err != nil {
		logrusLogger.WithError(err).Fatal("failed to load config")
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}

	// The TUI owns the terminal; logs go to a file or nowhere.
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logrusLogger.WithError(err).Fatal("failed to open log file")
		}
		defer f.Close()
		logrusLogger.SetOutput(f)
	} else {
		logrusLogger.SetOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	gateway := taskclient.NewClient(cfg.ServerURL, timeout, logrusLogger)
	store := taskstore.New(gateway, logrusLogger)

	if err := tui.Run(ctx, store); err != nil {
		logrusLogger.SetOutput(os.Stderr)
		logrusLogger.WithError(err).Fatal("tui failed")
	}
}
