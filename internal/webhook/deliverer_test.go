package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jarcoal/httpmock"
	"github.com/nikhilbhutani/contractorhub/internal/queue"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hookURL = "https://hooks.example.com/contractorhub"

func newTestDeliverer(t *testing.T) (*Deliverer, pgxmock.PgxPoolIface, *httpmock.MockTransport) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	transport := httpmock.NewMockTransport()
	d := NewDeliverer(mock, &http.Client{Transport: transport}, 3)
	d.delay = time.Millisecond
	return d, mock, transport
}

func testPayload(t *testing.T) queue.WebhookDeliverPayload {
	t.Helper()
	raw, err := json.Marshal(Event{
		Action:     "order_create",
		EntityID:   uuid.New(),
		Title:      "New order",
		Body:       "A customer placed an order",
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)
	return queue.WebhookDeliverPayload{WebhookID: uuid.New(), Action: "order_create", Payload: raw}
}

func expectTarget(mock pgxmock.PgxPoolIface, p queue.WebhookDeliverPayload, url string) {
	mock.ExpectQuery("SELECT url, secret, is_active FROM webhooks").WithArgs(p.WebhookID).
		WillReturnRows(pgxmock.NewRows([]string{"url", "secret", "is_active"}).AddRow(url, "whsec_test", true))
}

func TestDeliver_SignedJSON(t *testing.T) {
	d, mock, transport := newTestDeliverer(t)
	p := testPayload(t)
	expectTarget(mock, p, hookURL)

	transport.RegisterResponder(http.MethodPost, hookURL, func(req *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(req.Body)
		if req.Header.Get("X-Webhook-Signature") != Sign(body, "whsec_test") {
			return httpmock.NewStringResponse(http.StatusUnauthorized, "bad signature"), nil
		}
		if req.Header.Get("X-Webhook-Event") != "order_create" {
			return httpmock.NewStringResponse(http.StatusBadRequest, "bad event"), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, "ok"), nil
	})
	mock.ExpectExec("INSERT INTO webhook_deliveries").
		WithArgs(p.WebhookID, "order_create", pgxmock.AnyArg(), 200, 1, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, d.Deliver(context.Background(), p))
	assert.Equal(t, 1, transport.GetTotalCallCount())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliver_RetriesServerErrors(t *testing.T) {
	d, mock, transport := newTestDeliverer(t)
	p := testPayload(t)
	expectTarget(mock, p, hookURL)

	transport.RegisterResponder(http.MethodPost, hookURL,
		httpmock.ResponderFromMultipleResponses([]*http.Response{
			httpmock.NewStringResponse(http.StatusBadGateway, ""),
			httpmock.NewStringResponse(http.StatusNoContent, ""),
		}))
	mock.ExpectExec("INSERT INTO webhook_deliveries").
		WithArgs(p.WebhookID, "order_create", pgxmock.AnyArg(), 204, 2, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, d.Deliver(context.Background(), p))
	assert.Equal(t, 2, transport.GetTotalCallCount())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliver_ClientErrorIsNotRetried(t *testing.T) {
	d, mock, transport := newTestDeliverer(t)
	p := testPayload(t)
	expectTarget(mock, p, hookURL)

	transport.RegisterResponder(http.MethodPost, hookURL, httpmock.NewStringResponder(http.StatusNotFound, ""))
	mock.ExpectExec("INSERT INTO webhook_deliveries").
		WithArgs(p.WebhookID, "order_create", pgxmock.AnyArg(), 404, 1, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, d.Deliver(context.Background(), p))
	assert.Equal(t, 1, transport.GetTotalCallCount())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliver_ExhaustedRetriesReturnError(t *testing.T) {
	d, mock, transport := newTestDeliverer(t)
	p := testPayload(t)
	expectTarget(mock, p, hookURL)

	transport.RegisterResponder(http.MethodPost, hookURL, httpmock.NewStringResponder(http.StatusServiceUnavailable, ""))
	mock.ExpectExec("INSERT INTO webhook_deliveries").
		WithArgs(p.WebhookID, "order_create", pgxmock.AnyArg(), 503, 3, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.Error(t, d.Deliver(context.Background(), p))
	assert.Equal(t, 3, transport.GetTotalCallCount())
}

func TestDeliver_DiscordEmbed(t *testing.T) {
	d, mock, transport := newTestDeliverer(t)
	p := testPayload(t)
	discordURL := "https://discord.com/api/webhooks/123/abc"
	expectTarget(mock, p, discordURL)

	var got struct {
		Embeds []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Timestamp   string `json:"timestamp"`
		} `json:"embeds"`
	}
	transport.RegisterResponder(http.MethodPost, discordURL, func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("X-Webhook-Signature") != "" {
			return httpmock.NewStringResponse(http.StatusBadRequest, "unexpected signature"), nil
		}
		if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
			return nil, err
		}
		return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
	})
	mock.ExpectExec("INSERT INTO webhook_deliveries").
		WithArgs(p.WebhookID, "order_create", pgxmock.AnyArg(), 204, 1, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, d.Deliver(context.Background(), p))
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "New order", got.Embeds[0].Title)
	assert.Equal(t, "A customer placed an order", got.Embeds[0].Description)
	assert.Equal(t, "2026-01-02T03:04:05Z", got.Embeds[0].Timestamp)
}

func TestDeliver_MissingWebhookIsDropped(t *testing.T) {
	d, mock, transport := newTestDeliverer(t)
	p := testPayload(t)
	mock.ExpectQuery("SELECT url, secret, is_active FROM webhooks").WithArgs(p.WebhookID).
		WillReturnRows(pgxmock.NewRows([]string{"url", "secret", "is_active"}))

	require.NoError(t, d.Deliver(context.Background(), p))
	assert.Zero(t, transport.GetTotalCallCount())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsDiscordURL(t *testing.T) {
	assert.True(t, IsDiscordURL("https://discord.com/api/webhooks/1/x"))
	assert.True(t, IsDiscordURL("https://discordapp.com/api/webhooks/1/x"))
	assert.False(t, IsDiscordURL("https://discord.com/channels/1"))
	assert.False(t, IsDiscordURL("https://example.com/api/webhooks/1/x"))
}
