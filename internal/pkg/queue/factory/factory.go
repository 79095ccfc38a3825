// Package factory resolves the configured queue backend once at process
// start. The backend is an explicit configuration value, never mutable
// global state.
package factory

import (
	"context"
	"fmt"

	"aws-sqs-reliable-queue/config"
	"aws-sqs-reliable-queue/internal/pkg/queue"
	redisQueue "aws-sqs-reliable-queue/internal/pkg/queue/redis"
	sqsQueue "aws-sqs-reliable-queue/internal/pkg/queue/sqs"
)

// New provisions the queue named by cfg on the configured backend and
// returns a ready handle bound to it.
func New(ctx context.Context, cfg *config.Config) (queue.Queue, error) {
	policy := queue.ClaimPolicy{
		ClaimTimeoutSeconds: cfg.QueueClaimTimeoutSeconds,
		WaitTimeSeconds:     cfg.QueueWaitTimeSeconds,
	}

	switch queue.Backend(cfg.QueueType) {
	case queue.BackendSQS:
		sqsCfg := sqsQueue.Config{
			Region:          cfg.QueueAwsSqsRegion,
			Endpoint:        cfg.QueueAwsSqsEndpoint,
			AccessKeyID:     cfg.QueueAwsAccessKeyID,
			SecretAccessKey: cfg.QueueAwsSecretAccessKey,
			NamePrefix:      cfg.QueueNamePrefix,
			Policy:          policy,
		}
		client, err := sqsQueue.NewClient(ctx, sqsCfg)
		if err != nil {
			return nil, fmt.Errorf("create sqs client: %w", err)
		}
		return sqsQueue.NewProvisioner(client, sqsCfg).Provision(ctx, cfg.QueueName)
	case queue.BackendRedis:
		client := redisQueue.NewClient(cfg.QueueRedisEndpoint, cfg.QueueRedisDB)
		return redisQueue.New(client, cfg.QueueRedisKeyPrefix+cfg.QueueName, policy), nil
	default:
		return nil, fmt.Errorf("unsupported queue type %q", cfg.QueueType)
	}
}
