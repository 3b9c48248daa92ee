package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/contractorhub/internal/models"
)

type contextKey string

const (
	userKey       contextKey = "user"
	contractorKey contextKey = "contractor"
)

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

func UserIDFromContext(ctx context.Context) uuid.UUID {
	if u := UserFromContext(ctx); u != nil {
		return u.ID
	}
	return uuid.Nil
}

func WithContractor(ctx context.Context, c *models.Contractor) context.Context {
	return context.WithValue(ctx, contractorKey, c)
}

func ContractorFromContext(ctx context.Context) *models.Contractor {
	c, _ := ctx.Value(contractorKey).(*models.Contractor)
	return c
}
