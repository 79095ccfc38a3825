package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"

	"aws-sqs-reliable-queue/config"
	"aws-sqs-reliable-queue/internal/app/worker"
	httpserver "aws-sqs-reliable-queue/internal/pkg/http"
	"aws-sqs-reliable-queue/internal/pkg/logger"
	"aws-sqs-reliable-queue/internal/pkg/observability/metrics"
	"aws-sqs-reliable-queue/internal/pkg/queue/factory"
)

func main() {
	if err := logger.Setup(); err != nil {
		log.Fatalf("unable to set logger: %v", err)
	}

	cfg, err := config.Parse()
	if err != nil {
		logger.Fatal("unable to parse config", logger.Err(err))
	}

	metrics.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpserver.StartHTTPServer(ctx)

	q, err := factory.New(ctx, cfg)
	if err != nil {
		logger.Fatal("unable to provision queue", logger.Err(err))
	}
	logger.Info("queue ready",
		logger.String("type", cfg.QueueType), logger.String("name", cfg.QueueName))

	w := &worker.Worker{
		Queue:     q,
		Validator: validator.New(),
		Config:    cfg,
	}
	w.Run(ctx)

	logger.Info("worker stopped")
}
