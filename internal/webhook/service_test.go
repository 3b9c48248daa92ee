package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/contractorhub/internal/audit"
	"github.com/nikhilbhutani/contractorhub/internal/models"
	"github.com/nikhilbhutani/contractorhub/internal/queue"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQueue struct {
	payloads []queue.WebhookDeliverPayload
	failFor  uuid.UUID
}

func (q *stubQueue) EnqueueWebhookDeliver(_ context.Context, p queue.WebhookDeliverPayload) error {
	if p.WebhookID == q.failFor {
		return errors.New("redis down")
	}
	q.payloads = append(q.payloads, p)
	return nil
}

type stubAuditor struct {
	entries []audit.Entry
}

func (a *stubAuditor) Record(_ context.Context, e audit.Entry) error {
	a.entries = append(a.entries, e)
	return nil
}

func TestCreate_RejectsUnknownAction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc := NewService(mock, &stubQueue{}, &stubAuditor{})
	_, err = svc.Create(context.Background(), UserOwner(uuid.New()), uuid.New(), CreateRequest{
		Name: "x", URL: hookURL, Actions: []string{"order_exploded"},
	})
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_ReturnsSecretAndAudits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	contractorID, actorID, webhookID := uuid.New(), uuid.New(), uuid.New()
	mock.ExpectQuery("INSERT INTO webhooks").
		WithArgs(&contractorID, (*uuid.UUID)(nil), "orders", hookURL, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{
			"webhook_id", "contractor_id", "user_id", "name", "url", "actions", "is_active", "created_at",
		}).AddRow(webhookID, &contractorID, (*uuid.UUID)(nil), "orders", hookURL, []string{"order_create"}, true, time.Now()))

	auditor := &stubAuditor{}
	svc := NewService(mock, &stubQueue{}, auditor)
	wh, err := svc.Create(context.Background(), ContractorOwner(contractorID), actorID, CreateRequest{
		Name: "orders", URL: hookURL, Actions: []string{"order_create"},
	})
	require.NoError(t, err)
	assert.Equal(t, webhookID, wh.ID)
	assert.Contains(t, wh.Secret, "whsec_")
	require.Len(t, auditor.entries, 1)
	assert.Equal(t, models.AuditWebhookCreated, auditor.entries[0].Action)
	assert.Equal(t, &contractorID, auditor.entries[0].ContractorID)
}

func TestDispatch_EnqueuesPerMatchAndCollectsFailures(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	contractorID := uuid.New()
	ok1, bad, ok2 := uuid.New(), uuid.New(), uuid.New()
	mock.ExpectQuery("SELECT webhook_id FROM webhooks").
		WithArgs([]byte(`["market_item_bid"]`), &contractorID, []uuid.UUID{}).
		WillReturnRows(pgxmock.NewRows([]string{"webhook_id"}).AddRow(ok1).AddRow(bad).AddRow(ok2))

	q := &stubQueue{failFor: bad}
	svc := NewService(mock, q, &stubAuditor{})
	n, err := svc.Dispatch(context.Background(), &contractorID, nil, Event{Action: "market_item_bid"})

	require.Error(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, q.payloads, 2)

	var ev Event
	require.NoError(t, json.Unmarshal(q.payloads[0].Payload, &ev))
	assert.Equal(t, "market_item_bid", ev.Action)
}

func TestDispatch_NoOwnersIsNoop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	n, err := NewService(mock, &stubQueue{}, &stubAuditor{}).Dispatch(context.Background(), nil, nil, Event{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
