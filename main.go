package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/krau/digitvision/config"
	"github.com/krau/digitvision/onnx"
	"github.com/krau/digitvision/server"
	"github.com/krau/digitvision/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	slog.Info("Starting digitvision")

	cfg := config.C()

	if err := onnx.Init(); err != nil {
		return err
	}
	defer onnx.Destroy()

	classifier, err := service.NewClassifier(service.ClassifierOptions{
		ModelPath:      cfg.ModelPath(),
		PoolSize:       cfg.PoolSize,
		IntraOpThreads: cfg.IntraOpThreads,
	})
	if err != nil {
		return err
	}
	defer classifier.Close()

	var metrics *server.Metrics
	if cfg.Metrics {
		metrics = server.NewMetrics()
	}

	gin.SetMode(gin.ReleaseMode)
	r := server.NewRouter(server.NewHandler(classifier, metrics), server.Options{
		MaxUploadSize: cfg.MaxUploadSize,
		AllowOrigins:  cfg.AllowOrigins,
		Metrics:       metrics,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeoutDuration(),
		WriteTimeout: cfg.WriteTimeoutDuration(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Listening on", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	return srv.Shutdown(shutdownCtx)
}
