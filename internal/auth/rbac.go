package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nikhilbhutani/contractorhub/internal/account"
	"github.com/nikhilbhutani/contractorhub/internal/models"
)

// ContractorParam is the chi URL parameter naming the contractor.
const ContractorParam = "spectrum_id"

type ContractorLookup interface {
	GetContractorBySpectrumID(ctx context.Context, spectrumID string) (*models.Contractor, error)
}

type PermissionChecker interface {
	IsMember(ctx context.Context, contractorID, userID uuid.UUID) (bool, error)
	HasPermission(ctx context.Context, contractorID, userID uuid.UUID, perm models.Permission) (bool, error)
}

// ContractorGuard resolves the contractor named in the route and checks the
// authenticated user's standing in it. Handlers read the contractor back with
// account.ContractorFromContext.
type ContractorGuard struct {
	contractors ContractorLookup
	perms       PermissionChecker
}

func NewContractorGuard(contractors ContractorLookup, perms PermissionChecker) *ContractorGuard {
	return &ContractorGuard{contractors: contractors, perms: perms}
}

// RequireMember admits any member of the contractor.
func (g *ContractorGuard) RequireMember(next http.Handler) http.Handler {
	return g.guard(func(ctx context.Context, c *models.Contractor, userID uuid.UUID) (bool, error) {
		return g.perms.IsMember(ctx, c.ID, userID)
	})(next)
}

// RequirePermission admits members whose effective permissions include perm.
func (g *ContractorGuard) RequirePermission(perm models.Permission) func(http.Handler) http.Handler {
	return g.guard(func(ctx context.Context, c *models.Contractor, userID uuid.UUID) (bool, error) {
		return g.perms.HasPermission(ctx, c.ID, userID, perm)
	})
}

// Resolve only loads the contractor; the handler's service performs its own
// checks.
func (g *ContractorGuard) Resolve(next http.Handler) http.Handler {
	return g.guard(func(context.Context, *models.Contractor, uuid.UUID) (bool, error) {
		return true, nil
	})(next)
}

type check func(ctx context.Context, c *models.Contractor, userID uuid.UUID) (bool, error)

func (g *ContractorGuard) guard(allowed check) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			user := account.UserFromContext(ctx)
			if user == nil {
				writeError(w, http.StatusUnauthorized, "no user in context")
				return
			}

			c, err := g.contractors.GetContractorBySpectrumID(ctx, chi.URLParam(r, ContractorParam))
			if errors.Is(err, account.ErrContractorNotFound) {
				writeError(w, http.StatusNotFound, "contractor not found")
				return
			}
			if err != nil {
				slog.Error("load contractor", "spectrum_id", chi.URLParam(r, ContractorParam), "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			ok, err := allowed(ctx, c, user.ID)
			if err != nil {
				slog.Error("permission check failed", "contractor_id", c.ID, "user_id", user.ID, "error", err)
				writeError(w, http.StatusInternalServerError, "permission check failed")
				return
			}
			if !ok {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r.WithContext(account.WithContractor(ctx, c)))
		})
	}
}
