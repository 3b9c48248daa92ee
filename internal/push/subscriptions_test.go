package push

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribe(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID, subID := uuid.New(), uuid.New()
	mock.ExpectQuery("INSERT INTO push_subscriptions").
		WithArgs(userID, "ios", "arn:endpoint/device-token").
		WillReturnRows(pgxmock.NewRows([]string{"subscription_id", "created_at"}).AddRow(subID, time.Now()))

	subs := NewSubscriptions(mock, NewGatewayWith(&fakeSNS{}, "arn:app"))
	sub, err := subs.Subscribe(context.Background(), userID, "ios", "device-token")
	require.NoError(t, err)
	assert.Equal(t, subID, sub.ID)
	assert.Equal(t, "arn:endpoint/device-token", sub.EndpointARN)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnsubscribe_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID, subID := uuid.New(), uuid.New()
	mock.ExpectQuery("DELETE FROM push_subscriptions").WithArgs(subID, userID).
		WillReturnRows(pgxmock.NewRows([]string{"endpoint_arn"}))

	subs := NewSubscriptions(mock, NewGatewayWith(&fakeSNS{}, "arn:app"))
	err = subs.Unsubscribe(context.Background(), userID, subID)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
