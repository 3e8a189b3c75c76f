package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resplan/internal/httpapi"
)

func runServe(args []string, workspacePath string) error {
	s, err := openSession(workspacePath)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.StringVar(&s.cfg.ListenAddr, "addr", s.cfg.ListenAddr, "Listen address")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Grace period for in-flight requests on shutdown")
	bindConfigFlags(fs, &s.cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}

	defer func() {
		_ = s.logger.Close()
	}()

	finish := s.begin("serve", map[string]any{"addr": s.cfg.ListenAddr})
	svc, err := s.service()
	if err != nil {
		finish(nil, err)
		return err
	}
	handler := httpapi.New(svc, httpapi.WithAuditLogger(s.logger)).Handler()
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("%s listening on %s (workspace %s)", appName, s.cfg.ListenAddr, s.ws.Root)
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			serveErr = fmt.Errorf("shutdown: %w", err)
		}
	}
	finish(map[string]any{"addr": s.cfg.ListenAddr}, serveErr)
	return serveErr
}
