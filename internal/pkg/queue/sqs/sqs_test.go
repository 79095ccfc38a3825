package sqs

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"aws-sqs-reliable-queue/internal/pkg/queue"
	"aws-sqs-reliable-queue/internal/pkg/queue/codec"
)

// mockSQSAPI implements sqsAPI for testing.
type mockSQSAPI struct {
	mock.Mock
}

func (m *mockSQSAPI) CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.CreateQueueOutput), args.Error(1)
}

func (m *mockSQSAPI) DeleteQueue(ctx context.Context, params *sqs.DeleteQueueInput, optFns ...func(*sqs.Options)) (*sqs.DeleteQueueOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.DeleteQueueOutput), args.Error(1)
}

func (m *mockSQSAPI) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.SendMessageOutput), args.Error(1)
}

func (m *mockSQSAPI) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.ReceiveMessageOutput), args.Error(1)
}

func (m *mockSQSAPI) ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.ChangeMessageVisibilityOutput), args.Error(1)
}

func (m *mockSQSAPI) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.DeleteMessageOutput), args.Error(1)
}

func (m *mockSQSAPI) GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.GetQueueAttributesOutput), args.Error(1)
}

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/000000000000/env1_jobs"

func newTestQueue(api sqsAPI, policy queue.ClaimPolicy) *ReliableQueue {
	return &ReliableQueue{
		api:      api,
		queueURL: testQueueURL,
		name:     "env1_jobs",
		policy:   policy,
		codec:    codec.JSON{},
	}
}

func TestClaimWaitCappedByLease(t *testing.T) {
	m := new(mockSQSAPI)
	q := newTestQueue(m, queue.ClaimPolicy{ClaimTimeoutSeconds: 300, WaitTimeSeconds: 20})

	m.On("ReceiveMessage", mock.Anything, mock.MatchedBy(func(params *sqs.ReceiveMessageInput) bool {
		return params.VisibilityTimeout == 5 &&
			params.WaitTimeSeconds == 5 &&
			params.MaxNumberOfMessages == 1
	})).Return(&sqs.ReceiveMessageOutput{}, nil)

	item, err := q.Claim(context.Background(), 5, true)
	require.NoError(t, err)
	assert.Nil(t, item)
	m.AssertExpectations(t)
}

func TestClaimUsesPolicyDefaults(t *testing.T) {
	m := new(mockSQSAPI)
	q := newTestQueue(m, queue.ClaimPolicy{ClaimTimeoutSeconds: 300, WaitTimeSeconds: 20})

	m.On("ReceiveMessage", mock.Anything, mock.MatchedBy(func(params *sqs.ReceiveMessageInput) bool {
		return params.VisibilityTimeout == 300 && params.WaitTimeSeconds == 20
	})).Return(&sqs.ReceiveMessageOutput{}, nil)

	_, err := q.Claim(context.Background(), 0, true)
	require.NoError(t, err)
	m.AssertExpectations(t)
}

func TestClaimEmptyQueueIsNotAnError(t *testing.T) {
	m := new(mockSQSAPI)
	q := newTestQueue(m, queue.ClaimPolicy{ClaimTimeoutSeconds: 30, WaitTimeSeconds: 0})

	m.On("ReceiveMessage", mock.Anything, mock.Anything).Return(&sqs.ReceiveMessageOutput{}, nil)

	item, err := q.Claim(context.Background(), 0, true)
	assert.NoError(t, err)
	assert.Nil(t, item)
}

func TestClaimDropsDeliveryWithoutReceiptHandle(t *testing.T) {
	m := new(mockSQSAPI)
	q := newTestQueue(m, queue.ClaimPolicy{ClaimTimeoutSeconds: 30, WaitTimeSeconds: 0})

	m.On("ReceiveMessage", mock.Anything, mock.Anything).Return(&sqs.ReceiveMessageOutput{
		Messages: []types.Message{
			{MessageId: aws.String("m-1"), Body: aws.String(`{}`)},
		},
	}, nil)

	item, err := q.Claim(context.Background(), 0, true)
	assert.NoError(t, err)
	assert.Nil(t, item)
}

func TestEnqueueReturnsAssignedMessageID(t *testing.T) {
	m := new(mockSQSAPI)
	q := newTestQueue(m, queue.ClaimPolicy{})

	m.On("SendMessage", mock.Anything, mock.MatchedBy(func(params *sqs.SendMessageInput) bool {
		return aws.ToString(params.MessageBody) == `{"id":42,"job":"resize"}`
	})).Return(&sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil)

	id, err := q.Enqueue(context.Background(), map[string]any{"job": "resize", "id": 42})
	require.NoError(t, err)
	assert.Equal(t, "m-1", id)
	m.AssertExpectations(t)
}

func TestEnqueueWithoutMessageID(t *testing.T) {
	m := new(mockSQSAPI)
	q := newTestQueue(m, queue.ClaimPolicy{})

	m.On("SendMessage", mock.Anything, mock.Anything).Return(&sqs.SendMessageOutput{}, nil)

	_, err := q.Enqueue(context.Background(), "payload")
	assert.ErrorIs(t, err, queue.ErrNotEnqueued)
}

func TestEnqueueUnwrapsClaimedItem(t *testing.T) {
	m := new(mockSQSAPI)
	q := newTestQueue(m, queue.ClaimPolicy{})

	m.On("SendMessage", mock.Anything, mock.MatchedBy(func(params *sqs.SendMessageInput) bool {
		return aws.ToString(params.MessageBody) == `{"job":"resize"}`
	})).Return(&sqs.SendMessageOutput{MessageId: aws.String("m-2")}, nil)

	item := &queue.Item{
		ID:            "m-1",
		ReceiptHandle: "rh-1",
		Body:          `{"job":"resize"}`,
	}
	id, err := q.Enqueue(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, "m-2", id)
	m.AssertExpectations(t)
}

func TestEnqueueRawSkipsEncoding(t *testing.T) {
	m := new(mockSQSAPI)
	q := newTestQueue(m, queue.ClaimPolicy{})

	m.On("SendMessage", mock.Anything, mock.MatchedBy(func(params *sqs.SendMessageInput) bool {
		return aws.ToString(params.MessageBody) == "plain text, not json"
	})).Return(&sqs.SendMessageOutput{MessageId: aws.String("m-3")}, nil)

	id, err := q.EnqueueRaw(context.Background(), "plain text, not json")
	require.NoError(t, err)
	assert.Equal(t, "m-3", id)
}

func TestReleaseZeroesVisibility(t *testing.T) {
	m := new(mockSQSAPI)
	q := newTestQueue(m, queue.ClaimPolicy{})

	m.On("ChangeMessageVisibility", mock.Anything, mock.MatchedBy(func(params *sqs.ChangeMessageVisibilityInput) bool {
		return aws.ToString(params.ReceiptHandle) == "rh-1" && params.VisibilityTimeout == 0
	})).Return(&sqs.ChangeMessageVisibilityOutput{}, nil)

	err := q.Release(context.Background(), &queue.Item{ID: "m-1", ReceiptHandle: "rh-1"})
	assert.NoError(t, err)
	m.AssertExpectations(t)
}

func TestReleaseWithoutReceiptHandle(t *testing.T) {
	m := new(mockSQSAPI)
	q := newTestQueue(m, queue.ClaimPolicy{})

	err := q.Release(context.Background(), &queue.Item{ID: "m-1"})
	assert.ErrorIs(t, err, queue.ErrMissingReceiptHandle)
	m.AssertNotCalled(t, "ChangeMessageVisibility", mock.Anything, mock.Anything)
}

func TestDeleteWithoutItemIDFailsBeforeRemoteCall(t *testing.T) {
	m := new(mockSQSAPI)
	q := newTestQueue(m, queue.ClaimPolicy{})

	err := q.Delete(context.Background(), &queue.Item{ReceiptHandle: "rh-1"})
	assert.ErrorIs(t, err, queue.ErrMissingItemID)
	m.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything)
}

func TestDeleteWithoutReceiptHandleFailsBeforeRemoteCall(t *testing.T) {
	m := new(mockSQSAPI)
	q := newTestQueue(m, queue.ClaimPolicy{})

	err := q.Delete(context.Background(), &queue.Item{ID: "m-1"})
	assert.ErrorIs(t, err, queue.ErrMissingReceiptHandle)
	m.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything)
}

func TestDeleteUsesReceiptHandle(t *testing.T) {
	m := new(mockSQSAPI)
	q := newTestQueue(m, queue.ClaimPolicy{})

	m.On("DeleteMessage", mock.Anything, mock.MatchedBy(func(params *sqs.DeleteMessageInput) bool {
		return aws.ToString(params.ReceiptHandle) == "rh-1"
	})).Return(&sqs.DeleteMessageOutput{}, nil)

	err := q.Delete(context.Background(), &queue.Item{ID: "m-1", ReceiptHandle: "rh-1"})
	assert.NoError(t, err)
	m.AssertExpectations(t)
}

func TestApproximateCount(t *testing.T) {
	tests := []struct {
		name       string
		attributes map[string]string
		want       int
	}{
		{
			name:       "count present",
			attributes: map[string]string{string(types.QueueAttributeNameApproximateNumberOfMessages): "42"},
			want:       42,
		},
		{
			name:       "attribute absent",
			attributes: map[string]string{},
			want:       0,
		},
		{
			name:       "attribute unparseable",
			attributes: map[string]string{string(types.QueueAttributeNameApproximateNumberOfMessages): "not-a-number"},
			want:       0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(mockSQSAPI)
			q := newTestQueue(m, queue.ClaimPolicy{})

			m.On("GetQueueAttributes", mock.Anything, mock.Anything).Return(&sqs.GetQueueAttributesOutput{
				Attributes: tt.attributes,
			}, nil)

			count, err := q.ApproximateCount(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, tt.want, count)
		})
	}
}

func TestDestroyDeletesRemoteQueue(t *testing.T) {
	m := new(mockSQSAPI)
	q := newTestQueue(m, queue.ClaimPolicy{})

	m.On("DeleteQueue", mock.Anything, mock.MatchedBy(func(params *sqs.DeleteQueueInput) bool {
		return aws.ToString(params.QueueUrl) == testQueueURL
	})).Return(&sqs.DeleteQueueOutput{}, nil)

	assert.NoError(t, q.Destroy(context.Background()))
	m.AssertExpectations(t)
}

// TestItemLifecycle walks one message through enqueue, claim, delete and a
// final claim against the then-empty queue.
func TestItemLifecycle(t *testing.T) {
	m := new(mockSQSAPI)
	q := newTestQueue(m, queue.ClaimPolicy{ClaimTimeoutSeconds: 300, WaitTimeSeconds: 20})
	ctx := context.Background()

	body := `{"id":42,"job":"resize"}`

	m.On("SendMessage", mock.Anything, mock.Anything).
		Return(&sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil).Once()

	m.On("ReceiveMessage", mock.Anything, mock.MatchedBy(func(params *sqs.ReceiveMessageInput) bool {
		return params.VisibilityTimeout == 30 && params.WaitTimeSeconds == 20
	})).Return(&sqs.ReceiveMessageOutput{
		Messages: []types.Message{
			{
				MessageId:     aws.String("m-1"),
				ReceiptHandle: aws.String("rh-1"),
				Body:          aws.String(body),
			},
		},
	}, nil).Once()

	m.On("DeleteMessage", mock.Anything, mock.Anything).
		Return(&sqs.DeleteMessageOutput{}, nil).Once()

	m.On("ReceiveMessage", mock.Anything, mock.Anything).
		Return(&sqs.ReceiveMessageOutput{}, nil).Once()

	id, err := q.Enqueue(ctx, map[string]any{"job": "resize", "id": 42})
	require.NoError(t, err)
	assert.Equal(t, "m-1", id)

	item, err := q.Claim(ctx, 30, true)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "m-1", item.ID)
	assert.NotEmpty(t, item.ReceiptHandle)
	assert.Equal(t, map[string]any{"job": "resize", "id": float64(42)}, item.Payload)

	require.NoError(t, q.Delete(ctx, item))

	again, err := q.Claim(ctx, 30, true)
	require.NoError(t, err)
	assert.Nil(t, again)

	m.AssertExpectations(t)
}
