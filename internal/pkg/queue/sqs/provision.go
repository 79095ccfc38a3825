package sqs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"aws-sqs-reliable-queue/internal/pkg/logger"
	"aws-sqs-reliable-queue/internal/pkg/queue"
	"aws-sqs-reliable-queue/internal/pkg/queue/codec"
)

// SQS rejects queue names longer than 80 characters.
const maxQueueNameLength = 80

// SQS refuses to recreate a queue for up to 60 seconds after deletion.
const deletedRecentlyBackoff = 60 * time.Second

// Provisioner creates queues idempotently and binds ReliableQueue handles
// to them.
type Provisioner struct {
	api     sqsAPI
	prefix  string
	policy  queue.ClaimPolicy
	codec   codec.Codec
	backoff time.Duration
}

// NewProvisioner returns a Provisioner using api and the settings in cfg.
func NewProvisioner(api sqsAPI, cfg Config) *Provisioner {
	return &Provisioner{
		api:     api,
		prefix:  cfg.NamePrefix,
		policy:  cfg.Policy,
		codec:   codec.JSON{},
		backoff: deletedRecentlyBackoff,
	}
}

// RemoteName derives the remote-visible queue name from the logical name:
// "prefix_name" when a prefix is configured, cut to the service's 80
// character limit.
func RemoteName(prefix, name string) string {
	remote := name
	if prefix != "" {
		remote = prefix + "_" + name
	}
	if len(remote) > maxQueueNameLength {
		remote = remote[:maxQueueNameLength]
	}
	return remote
}

// Provision creates the queue for the given logical name and returns a
// ReliableQueue bound to it. CreateQueue is idempotent on the remote side:
// an existing queue with the same name yields its URL instead of an error.
//
// A queue name deleted within the service's cooldown window fails with
// QueueDeletedRecently; that failure is transient and Provision retries
// after a fixed backoff, once per failure, until the condition clears or
// ctx is cancelled. Any other error ends provisioning.
func (p *Provisioner) Provision(ctx context.Context, name string) (*ReliableQueue, error) {
	remote := RemoteName(p.prefix, name)

	for {
		out, err := p.api.CreateQueue(ctx, &sqs.CreateQueueInput{
			QueueName: aws.String(remote),
		})
		if err == nil {
			return &ReliableQueue{
				api:      p.api,
				queueURL: aws.ToString(out.QueueUrl),
				name:     remote,
				policy:   p.policy,
				codec:    p.codec,
			}, nil
		}

		var deleted *types.QueueDeletedRecently
		if !errors.As(err, &deleted) {
			logger.Error("unable to create queue", logger.String("queue", remote), logger.Err(err))
			return nil, fmt.Errorf("create queue %s: %w", remote, err)
		}

		logger.Warn("queue was recently deleted, waiting before retry",
			logger.String("queue", remote), logger.Duration("backoff", p.backoff))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.backoff):
		}
	}
}
