package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/contractorhub/internal/models"
	"github.com/nikhilbhutani/contractorhub/internal/push"
	"github.com/nikhilbhutani/contractorhub/internal/queue"
)

type memSubscriptions struct {
	subs      []models.PushSubscription
	forgotten []string
}

func (m *memSubscriptions) List(_ context.Context, userID uuid.UUID) ([]models.PushSubscription, error) {
	var out []models.PushSubscription
	for _, s := range m.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSubscriptions) Forget(_ context.Context, arn string) error {
	m.forgotten = append(m.forgotten, arn)
	return nil
}

type scriptedPublisher struct {
	results map[string]error
	sent    []string
	msgs    []push.Message
}

func (p *scriptedPublisher) Publish(_ context.Context, arn string, msg push.Message) error {
	p.sent = append(p.sent, arn)
	p.msgs = append(p.msgs, msg)
	return p.results[arn]
}

func pushTask(t *testing.T, p queue.PushSendPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	return asynq.NewTask(queue.TypePushSend, data)
}

func TestPushWorker_PublishesToEveryDevice(t *testing.T) {
	user := uuid.New()
	subs := &memSubscriptions{subs: []models.PushSubscription{
		{ID: uuid.New(), UserID: user, EndpointARN: "arn:phone"},
		{ID: uuid.New(), UserID: user, EndpointARN: "arn:tablet"},
		{ID: uuid.New(), UserID: uuid.New(), EndpointARN: "arn:other"},
	}}
	pub := &scriptedPublisher{}
	entity := uuid.New()

	err := NewPushWorker(subs, pub).ProcessTask(context.Background(), pushTask(t, queue.PushSendPayload{
		UserID: user, Action: models.ActionMarketItemBid, Title: "New bid", EntityID: entity,
	}))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"arn:phone", "arn:tablet"}, pub.sent)
	assert.Equal(t, "New bid", pub.msgs[0].Title)
	assert.Equal(t, entity, pub.msgs[0].EntityID)
}

func TestPushWorker_ForgetsDisabledEndpoints(t *testing.T) {
	user := uuid.New()
	subs := &memSubscriptions{subs: []models.PushSubscription{
		{ID: uuid.New(), UserID: user, EndpointARN: "arn:stale"},
		{ID: uuid.New(), UserID: user, EndpointARN: "arn:live"},
	}}
	pub := &scriptedPublisher{results: map[string]error{"arn:stale": push.ErrEndpointDisabled}}

	err := NewPushWorker(subs, pub).ProcessTask(context.Background(), pushTask(t, queue.PushSendPayload{UserID: user}))
	require.NoError(t, err)
	assert.Equal(t, []string{"arn:stale"}, subs.forgotten)
}

func TestPushWorker_PartialFailureIsNotRetried(t *testing.T) {
	user := uuid.New()
	subs := &memSubscriptions{subs: []models.PushSubscription{
		{ID: uuid.New(), UserID: user, EndpointARN: "arn:a"},
		{ID: uuid.New(), UserID: user, EndpointARN: "arn:b"},
	}}
	pub := &scriptedPublisher{results: map[string]error{"arn:a": errors.New("throttled")}}

	err := NewPushWorker(subs, pub).ProcessTask(context.Background(), pushTask(t, queue.PushSendPayload{UserID: user}))
	assert.NoError(t, err)
}

func TestPushWorker_TotalFailureIsRetried(t *testing.T) {
	user := uuid.New()
	subs := &memSubscriptions{subs: []models.PushSubscription{
		{ID: uuid.New(), UserID: user, EndpointARN: "arn:a"},
	}}
	pub := &scriptedPublisher{results: map[string]error{"arn:a": errors.New("throttled")}}

	err := NewPushWorker(subs, pub).ProcessTask(context.Background(), pushTask(t, queue.PushSendPayload{UserID: user}))
	assert.ErrorContains(t, err, "throttled")
}

func TestPushWorker_NoDevices(t *testing.T) {
	pub := &scriptedPublisher{}
	err := NewPushWorker(&memSubscriptions{}, pub).ProcessTask(context.Background(), pushTask(t, queue.PushSendPayload{UserID: uuid.New()}))
	require.NoError(t, err)
	assert.Empty(t, pub.sent)
}

func TestPushWorker_MalformedPayloadSkipsRetry(t *testing.T) {
	err := NewPushWorker(&memSubscriptions{}, &scriptedPublisher{}).
		ProcessTask(context.Background(), asynq.NewTask(queue.TypePushSend, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type deliverFunc func(ctx context.Context, p queue.WebhookDeliverPayload) error

func (f deliverFunc) Deliver(ctx context.Context, p queue.WebhookDeliverPayload) error {
	return f(ctx, p)
}

func TestWebhookWorker_PassesPayloadThrough(t *testing.T) {
	want := queue.WebhookDeliverPayload{
		WebhookID: uuid.New(),
		Action:    models.ActionOrderCreate,
		Payload:   json.RawMessage(`{"title":"Order"}`),
	}
	data, err := json.Marshal(want)
	require.NoError(t, err)

	var got queue.WebhookDeliverPayload
	w := NewWebhookWorker(deliverFunc(func(_ context.Context, p queue.WebhookDeliverPayload) error {
		got = p
		return nil
	}))
	require.NoError(t, w.ProcessTask(context.Background(), asynq.NewTask(queue.TypeWebhookDeliver, data)))
	assert.Equal(t, want.WebhookID, got.WebhookID)
	assert.JSONEq(t, `{"title":"Order"}`, string(got.Payload))
}

func TestWebhookWorker_ReturnsDeliveryError(t *testing.T) {
	data, _ := json.Marshal(queue.WebhookDeliverPayload{WebhookID: uuid.New()})
	w := NewWebhookWorker(deliverFunc(func(context.Context, queue.WebhookDeliverPayload) error {
		return errors.New("503 after retries")
	}))
	assert.Error(t, w.ProcessTask(context.Background(), asynq.NewTask(queue.TypeWebhookDeliver, data)))
}
