package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nikhilbhutani/contractorhub/internal/account"
	"github.com/nikhilbhutani/contractorhub/internal/models"
)

// Claims are issued by the marketplace's login flow. Sub is the user id.
type Claims struct {
	Sub      string `json:"sub"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type JWTMiddleware struct {
	secret []byte
	users  UserLookup
}

func NewJWTMiddleware(secret string, users UserLookup) *JWTMiddleware {
	return &JWTMiddleware{
		secret: []byte(secret),
		users:  users,
	}
}

func (m *JWTMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r)
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secret, nil
		})
		if errors.Is(err, jwt.ErrTokenExpired) {
			writeError(w, http.StatusUnauthorized, "token expired")
			return
		}
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		userID, err := uuid.Parse(claims.Sub)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid user ID in token")
			return
		}

		ctx := r.Context()
		user, err := m.users.GetUserByID(ctx, userID)
		if errors.Is(err, account.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "user not found")
			return
		}
		if err != nil {
			slog.Error("load user for token", "user_id", userID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		ctx = account.WithUser(ctx, user)
		ctx = context.WithValue(ctx, claimsKey, claims)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSiteAdmin must run after Authenticate.
func RequireSiteAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !account.UserFromContext(r.Context()).IsAdmin() {
			writeError(w, http.StatusForbidden, "site admin required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey string

const claimsKey ctxKey = "claims"

func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
