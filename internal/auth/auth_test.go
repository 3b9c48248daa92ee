package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/contractorhub/internal/account"
	"github.com/nikhilbhutani/contractorhub/internal/models"
)

const testSecret = "test-secret"

type stubUsers map[uuid.UUID]*models.User

func (s stubUsers) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, account.ErrUserNotFound
}

func signToken(t *testing.T, sub string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Sub:              sub,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(expires)},
	})
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(account.UserIDFromContext(r.Context()).String()))
}

func TestJWTMiddleware(t *testing.T) {
	user := &models.User{ID: uuid.New(), Username: "hauler"}
	mw := NewJWTMiddleware(testSecret, stubUsers{user.ID: user})
	h := mw.Authenticate(http.HandlerFunc(echoUser))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + signToken(t, user.ID.String(), time.Now().Add(time.Hour)), http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, user.ID.String(), time.Now().Add(-time.Hour)), http.StatusUnauthorized},
		{"unknown user", "Bearer " + signToken(t, uuid.NewString(), time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"bad subject", "Bearer " + signToken(t, "nobody", time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, user.ID.String(), rec.Body.String())
			}
		})
	}
}

func TestRequireSiteAdmin(t *testing.T) {
	h := RequireSiteAdmin(http.HandlerFunc(echoUser))

	for role, want := range map[string]int{models.SiteRoleAdmin: http.StatusOK, models.SiteRoleUser: http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(account.WithUser(req.Context(), &models.User{ID: uuid.New(), Role: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}
}

type stubContractors map[string]*models.Contractor

func (s stubContractors) GetContractorBySpectrumID(_ context.Context, id string) (*models.Contractor, error) {
	if c, ok := s[id]; ok {
		return c, nil
	}
	return nil, account.ErrContractorNotFound
}

type stubPerms struct {
	members map[uuid.UUID]bool
	perms   map[uuid.UUID]models.Permission
}

func (p stubPerms) IsMember(_ context.Context, _, userID uuid.UUID) (bool, error) {
	return p.members[userID], nil
}

func (p stubPerms) HasPermission(_ context.Context, _, userID uuid.UUID, perm models.Permission) (bool, error) {
	return p.perms[userID] == perm, nil
}

func TestContractorGuard(t *testing.T) {
	c := &models.Contractor{ID: uuid.New(), SpectrumID: "ACME"}
	manager, member, outsider := uuid.New(), uuid.New(), uuid.New()
	guard := NewContractorGuard(stubContractors{"ACME": c}, stubPerms{
		members: map[uuid.UUID]bool{manager: true, member: true},
		perms:   map[uuid.UUID]models.Permission{manager: models.PermManageWebhooks},
	})

	r := chi.NewRouter()
	seen := func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(account.ContractorFromContext(r.Context()).SpectrumID))
	}
	r.With(guard.RequireMember).Get("/contractors/{spectrum_id}/members", seen)
	r.With(guard.RequirePermission(models.PermManageWebhooks)).Get("/contractors/{spectrum_id}/webhooks", seen)

	tests := []struct {
		name   string
		user   uuid.UUID
		path   string
		status int
	}{
		{"member reads members", member, "/contractors/ACME/members", http.StatusOK},
		{"outsider refused", outsider, "/contractors/ACME/members", http.StatusForbidden},
		{"manager manages webhooks", manager, "/contractors/ACME/webhooks", http.StatusOK},
		{"member lacks permission", member, "/contractors/ACME/webhooks", http.StatusForbidden},
		{"unknown contractor", member, "/contractors/NOPE/members", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req = req.WithContext(account.WithUser(req.Context(), &models.User{ID: tt.user}))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "ACME", rec.Body.String())
			}
		})
	}
}

func TestServiceKeyMiddleware(t *testing.T) {
	mw := NewServiceKeyMiddleware("X-Service-Key", HashKey("s3cret"))
	h := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for key, want := range map[string]int{"s3cret": http.StatusNoContent, "wrong": http.StatusUnauthorized, "": http.StatusUnauthorized} {
		req := httptest.NewRequest(http.MethodPost, "/internal/events/order_created", nil)
		if key != "" {
			req.Header.Set("X-Service-Key", key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, key)
	}
}

func TestServiceKeyMiddleware_UnconfiguredRejects(t *testing.T) {
	h := NewServiceKeyMiddleware("X-Service-Key", "").Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Service-Key", "anything")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
