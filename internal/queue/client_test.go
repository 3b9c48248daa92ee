package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	info, _ := args.Get(0).(*asynq.TaskInfo)
	return info, args.Error(1)
}

func (m *mockEnqueuer) Close() error {
	return m.Called().Error(0)
}

func TestEnqueuePush(t *testing.T) {
	e := &mockEnqueuer{}
	userID := uuid.New()

	e.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		var p PushSendPayload
		if task.Type() != TypePushSend || json.Unmarshal(task.Payload(), &p) != nil {
			return false
		}
		return p.UserID == userID && p.Action == "order_create"
	}), mock.Anything).Return(&asynq.TaskInfo{ID: "1"}, nil).Once()

	err := NewClientWith(e).EnqueuePush(context.Background(), PushSendPayload{UserID: userID, Action: "order_create"})
	require.NoError(t, err)
	e.AssertExpectations(t)
}

func TestEnqueueWebhookDeliver_WrapsError(t *testing.T) {
	e := &mockEnqueuer{}
	boom := errors.New("redis down")
	e.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).Return(nil, boom)

	err := NewClientWith(e).EnqueueWebhookDeliver(context.Background(), WebhookDeliverPayload{WebhookID: uuid.New()})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), TypeWebhookDeliver)
}
