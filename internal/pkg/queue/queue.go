package queue

import (
	"context"
	"errors"
)

// Backend identifies a queue backend implementation.
type Backend string

const (
	BackendSQS   Backend = "sqs"
	BackendRedis Backend = "redis"
)

var (
	// ErrNotEnqueued is returned when the backend accepted the send call
	// but assigned no message ID. The message may not exist; the caller
	// decides whether to retry.
	ErrNotEnqueued = errors.New("queue: message not enqueued")

	// ErrMissingItemID is returned when an operation requires the item ID
	// and the item has none. Raised before any remote call.
	ErrMissingItemID = errors.New("queue: item has no ID")

	// ErrMissingReceiptHandle is returned when an operation requires the
	// receipt handle and the item has none. Raised before any remote call.
	ErrMissingReceiptHandle = errors.New("queue: item has no receipt handle")
)

// Item is a single claimed delivery of a message.
//
// ID identifies the enqueued message and is stable across deliveries.
// ReceiptHandle identifies this specific delivery and is the token required
// to release or delete it. A claimed item always carries a non-empty
// ReceiptHandle; backends drop deliveries without one.
type Item struct {
	ID            string
	ReceiptHandle string
	Body          string
	Payload       any
}

// ClaimPolicy holds the default lease and long-poll durations bound to a
// queue at provisioning time. All values are whole seconds.
type ClaimPolicy struct {
	ClaimTimeoutSeconds int32
	WaitTimeSeconds     int32
}

// Effective resolves the lease and wait durations for one claim request.
// The lease is leaseSeconds when non-zero, else the policy default. The
// wait is capped at the lease so a claim can never block past the point
// where its own lease would expire.
func (p ClaimPolicy) Effective(leaseSeconds int32) (lease, wait int32) {
	lease = leaseSeconds
	if lease == 0 {
		lease = p.ClaimTimeoutSeconds
	}
	wait = p.WaitTimeSeconds
	if wait > lease {
		wait = lease
	}
	return lease, wait
}

// Queue is the reliable queue contract. Implementations hold no mutable
// state between calls; all delivery coordination is delegated to the
// backend's visibility mechanism, so a single instance may be shared by
// concurrent callers.
type Queue interface {
	// Enqueue encodes payload and sends it, returning the message ID
	// assigned by the backend. Returns ErrNotEnqueued when the backend
	// assigned none.
	Enqueue(ctx context.Context, payload any) (string, error)

	// EnqueueRaw sends body without encoding.
	EnqueueRaw(ctx context.Context, body string) (string, error)

	// Claim leases one message for leaseSeconds (the policy default when
	// zero), blocking up to the effective wait. Returns (nil, nil) when no
	// message is available; an empty queue is not an error. When
	// deserialize is true the body is decoded into Item.Payload.
	Claim(ctx context.Context, leaseSeconds int32, deserialize bool) (*Item, error)

	// Release makes a claimed item immediately visible to other claimants
	// again.
	Release(ctx context.Context, item *Item) error

	// Delete permanently removes a claimed item. Requires both the item ID
	// and the receipt handle; a missing token fails locally before any
	// remote call.
	Delete(ctx context.Context, item *Item) error

	// ApproximateCount reports the approximate backlog size. An unknown
	// count is 0, not an error; callers use it for heuristics only.
	ApproximateCount(ctx context.Context) (int, error)

	// Destroy deletes the remote queue itself.
	Destroy(ctx context.Context) error
}

// InnerPayload detects a claimed item passed back in as an enqueue payload.
// When payload is an Item the inner value is returned so the caller can
// enqueue the actual message content instead of the item wrapper.
func InnerPayload(payload any) (any, bool) {
	var item *Item
	switch v := payload.(type) {
	case *Item:
		item = v
	case Item:
		item = &v
	default:
		return nil, false
	}
	if item.Payload != nil {
		return item.Payload, true
	}
	return item.Body, true
}
