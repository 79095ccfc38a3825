package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config defines all environment variables and derived config for the
// reliable queue and the worker built on it.
type Config struct {
	// Transformed time.Duration fields (not loaded from env directly)
	QueueClaimTimeoutDuration time.Duration `env:"-"` // default message lease (duration)
	QueueWaitTimeDuration     time.Duration `env:"-"` // long-poll wait (duration)
	PollingIntervalDuration   time.Duration `env:"-"` // delay between claim attempts (duration)

	QueueType                string `env:"QUEUE_TYPE" envDefault:"sqs"`
	QueueName                string `env:"QUEUE_NAME,required"`
	QueueNamePrefix          string `env:"QUEUE_NAME_PREFIX"`
	QueueClaimTimeoutSeconds int32  `env:"QUEUE_CLAIM_TIMEOUT_SECONDS" envDefault:"300"`
	QueueWaitTimeSeconds     int32  `env:"QUEUE_WAIT_TIME_SECONDS" envDefault:"20"`
	QueueWorkerPoolSize      int    `env:"QUEUE_WORKER_POOL_SIZE" envDefault:"10"`
	PollingInterval          int32  `env:"POLLING_INTERVAL" envDefault:"5"`

	QueueAwsSqsRegion       string `env:"QUEUE_AWS_SQS_REGION"`
	QueueAwsSqsEndpoint     string `env:"QUEUE_AWS_SQS_ENDPOINT"`
	QueueAwsAccessKeyID     string `env:"QUEUE_AWS_ACCESS_KEY_ID"`
	QueueAwsSecretAccessKey string `env:"QUEUE_AWS_SECRET_ACCESS_KEY"`

	QueueRedisEndpoint  string `env:"REDIS_QUEUE_ENDPOINT"`
	QueueRedisKeyPrefix string `env:"REDIS_QUEUE_KEY_PREFIX" envDefault:"queue-"`
	QueueRedisDB        int    `env:"REDIS_QUEUE_DB" envDefault:"0"`
}

// Parse loads configuration from environment variables, validates and
// normalizes it.
func Parse() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.normalize()

	return &cfg, nil
}

// validate performs all required configuration checks.
func (c *Config) validate() error {
	if c.QueueType != "sqs" && c.QueueType != "redis" {
		return errors.New("QUEUE_TYPE must be 'sqs' or 'redis'")
	}

	if c.QueueClaimTimeoutSeconds <= 0 {
		return errors.New("QUEUE_CLAIM_TIMEOUT_SECONDS must be greater than 0")
	}

	// SQS caps long polling at 20 seconds.
	if c.QueueWaitTimeSeconds < 0 || c.QueueWaitTimeSeconds > 20 {
		return errors.New("QUEUE_WAIT_TIME_SECONDS must be between 0 and 20")
	}

	if c.QueueWorkerPoolSize <= 0 || c.QueueWorkerPoolSize > 10 {
		return errors.New("QUEUE_WORKER_POOL_SIZE must be between 1 and 10")
	}

	if c.QueueType == "sqs" && c.QueueAwsSqsRegion == "" {
		return errors.New("QUEUE_AWS_SQS_REGION is required for SQS queue type")
	}

	if c.QueueType == "redis" && c.QueueRedisEndpoint == "" {
		return errors.New("REDIS_QUEUE_ENDPOINT is required for Redis queue type")
	}

	return nil
}

// normalize converts int values to duration and sets derived fields.
func (c *Config) normalize() {
	c.QueueClaimTimeoutDuration = time.Duration(c.QueueClaimTimeoutSeconds) * time.Second
	c.QueueWaitTimeDuration = time.Duration(c.QueueWaitTimeSeconds) * time.Second
	c.PollingIntervalDuration = time.Duration(c.PollingInterval) * time.Second
}
