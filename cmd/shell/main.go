// Command shell runs the webdesk kernel: the window manager, app registry
// and loader, session store, and pop-out synchronizer behind a REST and
// WebSocket surface for the hosting page.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/glasspane/webdesk/internal/config"
	"github.com/glasspane/webdesk/internal/logging"
	"github.com/glasspane/webdesk/internal/server"
)

func main() {
	port := flag.String("port", "", "listen port (overrides PORT)")
	dev := flag.Bool("dev", false, "development logging")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	srv, err := server.New(cfg, log)
	if err != nil {
		log.Fatal("failed to build server", zap.Error(err))
	}
	defer srv.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(net.JoinHostPort(cfg.Server.Host, cfg.Server.Port))
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("shutdown incomplete", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil {
			log.Fatal("server error", zap.Error(err))
		}
	}
}
