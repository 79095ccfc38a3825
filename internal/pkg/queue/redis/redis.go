package redisQueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"aws-sqs-reliable-queue/internal/pkg/logger"
	"aws-sqs-reliable-queue/internal/pkg/queue"
	"aws-sqs-reliable-queue/internal/pkg/queue/codec"
)

// ReliableQueue implements the reliable queue contract on a Redis list.
// Claim moves entries into a per-queue processing list with BRPOPLPUSH so
// an entry survives a crashed consumer; Delete removes it from the
// processing list and Release pushes it back onto the main list.
//
// Unlike SQS there is no timed lease expiry: an entry claimed and never
// deleted or released stays in the processing list. This backend is meant
// for deployments without AWS access, not for strict visibility semantics.
type ReliableQueue struct {
	client *redis.Client
	key    string
	policy queue.ClaimPolicy
	codec  codec.Codec
}

var _ queue.Queue = (*ReliableQueue)(nil)

// envelope is the stored wire form: the generated message ID plus the
// encoded body. SQS assigns message IDs; Redis does not, so we do.
type envelope struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

// NewClient creates a new redis client.
func NewClient(addr string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:       addr,
		DB:         db,
		MaxRetries: 10,
	})
}

// New returns a ReliableQueue over the list stored at key.
func New(client *redis.Client, key string, policy queue.ClaimPolicy) *ReliableQueue {
	return &ReliableQueue{
		client: client,
		key:    key,
		policy: policy,
		codec:  codec.JSON{},
	}
}

func (q *ReliableQueue) processingKey() string {
	return q.key + ":processing"
}

// Enqueue encodes payload and pushes it onto the list, returning the
// generated message ID.
func (q *ReliableQueue) Enqueue(ctx context.Context, payload any) (string, error) {
	if inner, ok := queue.InnerPayload(payload); ok {
		logger.Warn("enqueue called with a claimed item; enqueueing its inner payload")
		if raw, ok := inner.(string); ok {
			return q.EnqueueRaw(ctx, raw)
		}
		payload = inner
	}
	body, err := q.codec.Encode(payload)
	if err != nil {
		return "", err
	}
	return q.push(ctx, body)
}

// EnqueueRaw pushes body without encoding.
func (q *ReliableQueue) EnqueueRaw(ctx context.Context, body string) (string, error) {
	return q.push(ctx, body)
}

func (q *ReliableQueue) push(ctx context.Context, body string) (string, error) {
	env := envelope{ID: uuid.NewString(), Body: body}
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, string(data)).Err(); err != nil {
		return "", fmt.Errorf("push message: %w", err)
	}
	return env.ID, nil
}

// Claim pops one entry into the processing list, blocking up to the
// effective wait. The raw stored entry doubles as the receipt handle; it
// is the value needed to remove the entry from the processing list later.
func (q *ReliableQueue) Claim(ctx context.Context, leaseSeconds int32, deserialize bool) (*queue.Item, error) {
	_, wait := q.policy.Effective(leaseSeconds)

	var raw string
	var err error
	if wait == 0 {
		raw, err = q.client.RPopLPush(ctx, q.key, q.processingKey()).Result()
	} else {
		raw, err = q.client.BRPopLPush(ctx, q.key, q.processingKey(), time.Duration(wait)*time.Second).Result()
	}
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop message: %w", err)
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		// Entry is not ours; put it back on the main list so it is not
		// silently lost in the processing list.
		q.client.LRem(ctx, q.processingKey(), 1, raw)
		q.client.LPush(ctx, q.key, raw)
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	item := &queue.Item{
		ID:            env.ID,
		ReceiptHandle: raw,
		Body:          env.Body,
	}
	if deserialize {
		payload, err := q.codec.Decode(env.Body)
		if err != nil {
			return nil, fmt.Errorf("decode message %s: %w", env.ID, err)
		}
		item.Payload = payload
	}
	return item, nil
}

// Release moves a claimed entry from the processing list back to the main
// list so another claimant can pick it up.
func (q *ReliableQueue) Release(ctx context.Context, item *queue.Item) error {
	if item == nil || item.ReceiptHandle == "" {
		return queue.ErrMissingReceiptHandle
	}
	if err := q.client.LRem(ctx, q.processingKey(), 1, item.ReceiptHandle).Err(); err != nil {
		return fmt.Errorf("remove from processing list: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, item.ReceiptHandle).Err(); err != nil {
		return fmt.Errorf("requeue message: %w", err)
	}
	return nil
}

// Delete removes a claimed entry from the processing list for good.
func (q *ReliableQueue) Delete(ctx context.Context, item *queue.Item) error {
	if item == nil || item.ID == "" {
		return queue.ErrMissingItemID
	}
	if item.ReceiptHandle == "" {
		return queue.ErrMissingReceiptHandle
	}
	if err := q.client.LRem(ctx, q.processingKey(), 1, item.ReceiptHandle).Err(); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// ApproximateCount reports the length of the main list.
func (q *ReliableQueue) ApproximateCount(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return int(n), nil
}

// Destroy deletes the main and processing lists.
func (q *ReliableQueue) Destroy(ctx context.Context) error {
	if err := q.client.Del(ctx, q.key, q.processingKey()).Err(); err != nil {
		return fmt.Errorf("delete queue: %w", err)
	}
	return nil
}
