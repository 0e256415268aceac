package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/outblock/imagevalidator/internal/api"
	"github.com/outblock/imagevalidator/internal/config"
	"github.com/outblock/imagevalidator/internal/exifdata"
	"github.com/outblock/imagevalidator/internal/llmclient"
	"github.com/outblock/imagevalidator/internal/obs"
	"github.com/outblock/imagevalidator/internal/pipeline"
	"github.com/outblock/imagevalidator/internal/processor"

	"go.uber.org/zap"
)

// BuildVersion is set at build time via -ldflags, mirroring the teacher's
// BuildCommit convention; surfaced on GET /health.
var BuildVersion = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	logger, err := obs.New(os.Getenv("ENV") != "production")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Infow("starting image validator",
		"image_base_dir", cfg.ImageBaseDir,
		"llm_api_url", cfg.LLMAPIURL,
		"llm_model", cfg.LLMModelName,
		"queue_size", cfg.QueueSize,
		"throttle_requests_per_minute", cfg.ThrottleRequestsPerMinute,
		"request_timeout", cfg.RequestTimeout,
		"processing_timeout", cfg.ProcessingTimeout,
		"bind_addr", cfg.BindAddr(),
		"version", BuildVersion,
	)

	vlm := llmclient.New(cfg.LLMAPIURL, cfg.LLMModelName, cfg.RequestTimeout, logger)
	exifReader := exifdata.NewFileReader()
	proc := processor.New(cfg.ImageBaseDir, vlm, exifReader)

	p := pipeline.New(pipeline.Config{
		QueueSize:                 cfg.QueueSize,
		ProcessingTimeout:         cfg.ProcessingTimeout,
		ThrottleRequestsPerMinute: cfg.ThrottleRequestsPerMinute,
		ThrottleInterval:          cfg.ThrottleInterval,
	}, proc, logger)

	server := api.NewServer(cfg.BindAddr(), p, logger, BuildVersion)

	serveErr := make(chan error, 1)
	go func() {
		logger.Infow("http server listening", "addr", cfg.BindAddr())
		serveErr <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Fatalw("http server failed", "error", err)
		}
	case sig := <-sigCh:
		logger.Infow("received shutdown signal", "signal", sig.String())
	}

	shutdown(server, p, logger)
}

// shutdown stops accepting new HTTP connections first, waiting up to 10s for
// in-flight requests, then closes the pipeline to new submissions and lets it
// drain within its own grace period.
func shutdown(server *api.Server, p *pipeline.Pipeline, logger *zap.SugaredLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Infow("http server shutdown error", "error", err)
	}

	p.Shutdown()
	logger.Infow("shutdown complete")
}
