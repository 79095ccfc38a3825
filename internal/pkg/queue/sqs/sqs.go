package sqs

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"aws-sqs-reliable-queue/internal/pkg/logger"
	"aws-sqs-reliable-queue/internal/pkg/queue"
	"aws-sqs-reliable-queue/internal/pkg/queue/codec"
)

// sqsAPI is the subset of the SQS client used by this package. Tests
// substitute a mock.
type sqsAPI interface {
	CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	DeleteQueue(ctx context.Context, params *sqs.DeleteQueueInput, optFns ...func(*sqs.Options)) (*sqs.DeleteQueueOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// Config holds SQS-specific settings.
type Config struct {
	Region          string
	Endpoint        string // custom endpoint for LocalStack or compatible services
	AccessKeyID     string // static credentials; the default chain applies when empty
	SecretAccessKey string
	NamePrefix      string
	Policy          queue.ClaimPolicy
}

// NewClient creates an SQS service client.
func NewClient(ctx context.Context, cfg Config) (*sqs.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	if cfg.Endpoint != "" {
		return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}), nil
	}
	return sqs.NewFromConfig(awsCfg), nil
}

// ReliableQueue is the SQS-backed reliable queue. The queue URL is resolved
// once at provisioning time and never changes for the life of the instance.
type ReliableQueue struct {
	api      sqsAPI
	queueURL string
	name     string
	policy   queue.ClaimPolicy
	codec    codec.Codec
}

var _ queue.Queue = (*ReliableQueue)(nil)

// Name reports the remote-visible queue name.
func (q *ReliableQueue) Name() string {
	return q.name
}

// URL reports the resolved queue URL.
func (q *ReliableQueue) URL() string {
	return q.queueURL
}

// Enqueue encodes payload as wire text and sends it. A claimed item passed
// in by mistake is unwrapped and its inner payload enqueued instead.
func (q *ReliableQueue) Enqueue(ctx context.Context, payload any) (string, error) {
	if inner, ok := queue.InnerPayload(payload); ok {
		logger.Warn("enqueue called with a claimed item; enqueueing its inner payload")
		if raw, ok := inner.(string); ok {
			return q.send(ctx, raw)
		}
		payload = inner
	}
	body, err := q.codec.Encode(payload)
	if err != nil {
		return "", err
	}
	return q.send(ctx, body)
}

// EnqueueRaw sends body without encoding.
func (q *ReliableQueue) EnqueueRaw(ctx context.Context, body string) (string, error) {
	return q.send(ctx, body)
}

func (q *ReliableQueue) send(ctx context.Context, body string) (string, error) {
	out, err := q.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		logger.Error("unable to send message to queue", logger.String("queue", q.name), logger.Err(err))
		return "", fmt.Errorf("send message: %w", err)
	}
	id := aws.ToString(out.MessageId)
	if id == "" {
		return "", queue.ErrNotEnqueued
	}
	return id, nil
}

// Claim leases one message. The remote visibility timeout is the effective
// lease and the long-poll duration is the effective wait; with the cap in
// ClaimPolicy.Effective a short lease can never sit behind a longer poll.
// Returns (nil, nil) when the queue is empty or the delivery carries no
// receipt handle.
func (q *ReliableQueue) Claim(ctx context.Context, leaseSeconds int32, deserialize bool) (*queue.Item, error) {
	lease, wait := q.policy.Effective(leaseSeconds)

	out, err := q.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: 1,
		VisibilityTimeout:   lease,
		WaitTimeSeconds:     wait,
	})
	if err != nil {
		return nil, fmt.Errorf("receive message: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}

	msg := out.Messages[0]
	if aws.ToString(msg.ReceiptHandle) == "" {
		// Without a receipt handle the delivery can be neither released
		// nor deleted; treat it as a miss and let it reappear on lease
		// expiry.
		logger.Warn("received message without receipt handle", logger.String("queue", q.name))
		return nil, nil
	}

	item := &queue.Item{
		ID:            aws.ToString(msg.MessageId),
		ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		Body:          aws.ToString(msg.Body),
	}
	if deserialize {
		payload, err := q.codec.Decode(item.Body)
		if err != nil {
			return nil, fmt.Errorf("decode message %s: %w", item.ID, err)
		}
		item.Payload = payload
	}
	return item, nil
}

// Release zeroes the delivery's visibility timeout, making the item
// immediately claimable again.
func (q *ReliableQueue) Release(ctx context.Context, item *queue.Item) error {
	if item == nil || item.ReceiptHandle == "" {
		return queue.ErrMissingReceiptHandle
	}
	out, err := q.api.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(q.queueURL),
		ReceiptHandle:     aws.String(item.ReceiptHandle),
		VisibilityTimeout: 0,
	})
	if err != nil {
		return fmt.Errorf("change message visibility: %w", err)
	}
	if out == nil {
		return fmt.Errorf("change message visibility: empty response")
	}
	return nil
}

// Delete permanently removes a claimed item. Both tokens are validated
// locally first; deleting without them is a programming error, not a
// remote condition. The remote call is keyed by the receipt handle, the
// only token valid for this specific delivery.
func (q *ReliableQueue) Delete(ctx context.Context, item *queue.Item) error {
	if item == nil || item.ID == "" {
		return queue.ErrMissingItemID
	}
	if item.ReceiptHandle == "" {
		return queue.ErrMissingReceiptHandle
	}
	_, err := q.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(item.ReceiptHandle),
	})
	if err != nil {
		logger.Error("unable to delete message from queue",
			logger.String("queue", q.name), logger.String("id", item.ID), logger.Err(err))
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// ApproximateCount reports the approximate backlog size. The count is a
// heuristic; an absent or unparseable attribute is 0, not an error.
func (q *ReliableQueue) ApproximateCount(ctx context.Context) (int, error) {
	out, err := q.api.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(q.queueURL),
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeNameApproximateNumberOfMessages,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("get queue attributes: %w", err)
	}
	raw, ok := out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)]
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// Destroy deletes the remote queue entirely.
func (q *ReliableQueue) Destroy(ctx context.Context) error {
	_, err := q.api.DeleteQueue(ctx, &sqs.DeleteQueueInput{
		QueueUrl: aws.String(q.queueURL),
	})
	if err != nil {
		return fmt.Errorf("delete queue: %w", err)
	}
	return nil
}
