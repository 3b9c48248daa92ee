package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nikhilbhutani/contractorhub/internal/database"
	"github.com/nikhilbhutani/contractorhub/internal/metrics"
	"github.com/nikhilbhutani/contractorhub/internal/queue"
)

// Deliverer performs one queued webhook delivery: it renders the body for the
// target (Discord embed or signed JSON), posts it with retries and records
// the outcome in webhook_deliveries.
type Deliverer struct {
	db         database.Querier
	httpClient *http.Client
	attempts   uint
	delay      time.Duration
}

func NewDeliverer(db database.Querier, httpClient *http.Client, attempts uint) *Deliverer {
	if attempts == 0 {
		attempts = 1
	}
	return &Deliverer{db: db, httpClient: httpClient, attempts: attempts, delay: 500 * time.Millisecond}
}

type target struct {
	url    string
	secret string
	active bool
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func (d *Deliverer) Deliver(ctx context.Context, p queue.WebhookDeliverPayload) error {
	var t target
	err := d.db.QueryRow(ctx,
		"SELECT url, secret, is_active FROM webhooks WHERE webhook_id = $1", p.WebhookID,
	).Scan(&t.url, &t.secret, &t.active)
	if errors.Is(err, pgx.ErrNoRows) {
		slog.Info("webhook gone before delivery", "webhook_id", p.WebhookID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load webhook: %w", err)
	}
	if !t.active {
		return nil
	}

	discord := IsDiscordURL(t.url)
	channel := metrics.ChannelWebhook
	body := []byte(p.Payload)
	if discord {
		channel = metrics.ChannelDiscord
		if body, err = discordBody(p.Payload); err != nil {
			return fmt.Errorf("render discord body: %w", err)
		}
	}

	var attempts uint
	var status int
	err = retry.Do(
		func() error {
			attempts++
			var postErr error
			status, postErr = d.post(ctx, t, p, body, discord)
			return postErr
		},
		retry.Attempts(d.attempts),
		retry.Delay(d.delay),
		retry.MaxDelay(5*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return se.code == http.StatusTooManyRequests || se.code >= 500
			}
			return !errors.Is(err, context.Canceled)
		}),
		retry.OnRetry(func(n uint, err error) {
			slog.Debug("webhook delivery retrying", "webhook_id", p.WebhookID, "attempt", n+1, "error", err)
		}),
	)

	metrics.DeliveriesTotal.WithLabelValues(channel, metrics.Result(err)).Inc()
	d.record(ctx, p, status, attempts, err)

	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code < 500 && se.code != http.StatusTooManyRequests {
			slog.Warn("webhook rejected delivery", "webhook_id", p.WebhookID, "status", se.code)
			return nil
		}
		return fmt.Errorf("deliver webhook %s: %w", p.WebhookID, err)
	}
	return nil
}

func (d *Deliverer) post(ctx context.Context, t target, p queue.WebhookDeliverPayload, body []byte, discord bool) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return 0, retry.Unrecoverable(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if !discord {
		req.Header.Set("X-Webhook-Event", p.Action)
		req.Header.Set("X-Webhook-Signature", Sign(body, t.secret))
		req.Header.Set("X-Webhook-ID", p.WebhookID.String())
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return resp.StatusCode, &statusError{code: resp.StatusCode}
	}
	return resp.StatusCode, nil
}

func (d *Deliverer) record(ctx context.Context, p queue.WebhookDeliverPayload, status int, attempts uint, deliveryErr error) {
	var deliveredAt *time.Time
	var errText *string
	if deliveryErr == nil {
		now := time.Now()
		deliveredAt = &now
	} else {
		msg := deliveryErr.Error()
		errText = &msg
	}

	_, err := d.db.Exec(ctx,
		`INSERT INTO webhook_deliveries (webhook_id, action, payload, response_status, attempts, error, delivered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.WebhookID, p.Action, []byte(p.Payload), status, int(attempts), errText, deliveredAt,
	)
	if err != nil {
		slog.Error("failed to record webhook delivery", "error", err, "webhook_id", p.WebhookID)
	}
}

// Sign returns the X-Webhook-Signature value for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}

func IsDiscordURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	switch host {
	case "discord.com", "discordapp.com", "ptb.discord.com", "canary.discord.com":
		return strings.HasPrefix(u.Path, "/api/webhooks/")
	}
	return false
}

const discordColor = 0x5865F2

func discordBody(payload json.RawMessage) ([]byte, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}

	title := ev.Title
	if title == "" {
		title = ev.Action
	}
	fields := []map[string]any{
		{"name": "Action", "value": ev.Action, "inline": true},
	}
	if ev.EntityID != uuid.Nil {
		fields = append(fields, map[string]any{"name": "Entity", "value": ev.EntityID.String(), "inline": true})
	}

	return json.Marshal(map[string]any{
		"embeds": []map[string]any{{
			"title":       title,
			"description": ev.Body,
			"color":       discordColor,
			"timestamp":   ev.OccurredAt.UTC().Format(time.RFC3339),
			"fields":      fields,
		}},
	})
}
