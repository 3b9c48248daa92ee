package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nikhilbhutani/contractorhub/internal/database"
	"github.com/nikhilbhutani/contractorhub/internal/models"
)

var ErrSubscriptionNotFound = errors.New("push subscription not found")

type EndpointRegistrar interface {
	CreateEndpoint(ctx context.Context, deviceToken, userData string) (string, error)
	DeleteEndpoint(ctx context.Context, endpointARN string) error
}

// Subscriptions stores the SNS endpoints registered per user.
type Subscriptions struct {
	db        database.Querier
	registrar EndpointRegistrar
}

func NewSubscriptions(db database.Querier, registrar EndpointRegistrar) *Subscriptions {
	return &Subscriptions{db: db, registrar: registrar}
}

// Subscribe registers a device token with SNS and records the endpoint.
// Registering the same token again returns the existing subscription.
func (s *Subscriptions) Subscribe(ctx context.Context, userID uuid.UUID, platform, deviceToken string) (*models.PushSubscription, error) {
	arn, err := s.registrar.CreateEndpoint(ctx, deviceToken, userID.String())
	if err != nil {
		return nil, err
	}

	sub := models.PushSubscription{UserID: userID, Platform: platform, EndpointARN: arn}
	err = s.db.QueryRow(ctx,
		`INSERT INTO push_subscriptions (user_id, platform, endpoint_arn)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (endpoint_arn) DO UPDATE SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform
		 RETURNING subscription_id, created_at`,
		userID, platform, arn,
	).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert push subscription: %w", err)
	}
	return &sub, nil
}

func (s *Subscriptions) List(ctx context.Context, userID uuid.UUID) ([]models.PushSubscription, error) {
	rows, err := s.db.Query(ctx,
		`SELECT subscription_id, user_id, platform, endpoint_arn, created_at
		 FROM push_subscriptions WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	subs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.PushSubscription, error) {
		var p models.PushSubscription
		err := row.Scan(&p.ID, &p.UserID, &p.Platform, &p.EndpointARN, &p.CreatedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan push subscription: %w", err)
	}
	return subs, nil
}

func (s *Subscriptions) Unsubscribe(ctx context.Context, userID, subscriptionID uuid.UUID) error {
	var arn string
	err := s.db.QueryRow(ctx,
		"DELETE FROM push_subscriptions WHERE subscription_id = $1 AND user_id = $2 RETURNING endpoint_arn",
		subscriptionID, userID,
	).Scan(&arn)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSubscriptionNotFound
	}
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return s.registrar.DeleteEndpoint(ctx, arn)
}

// Forget drops a subscription whose endpoint SNS reported as disabled.
func (s *Subscriptions) Forget(ctx context.Context, endpointARN string) error {
	_, err := s.db.Exec(ctx, "DELETE FROM push_subscriptions WHERE endpoint_arn = $1", endpointARN)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}
