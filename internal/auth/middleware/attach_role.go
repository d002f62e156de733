package auth

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-survey/internal/rbac"
	"github.com/mind-engage/mindengage-survey/internal/survey"
)

type UserLookup interface {
	GetUser(ctx context.Context, id int64) (survey.User, error)
}

// AttachRoleFromDB replaces the claimed role with the stored one and rejects
// inactive accounts. allowClaimFallback keeps the claim for unknown users
// (offline mode only).
func AttachRoleFromDB(users UserLookup, allowClaimFallback bool, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub, ok := SubjectFromContext(ctx)
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing subject")
				return
			}
			claimRole := rbac.RoleFromContext(ctx)

			u, err := users.GetUser(ctx, sub)
			switch {
			case err == nil && !u.Active:
				writeError(w, http.StatusForbidden, "account disabled")

			case err == nil:
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, string(u.Role))))

			case errors.Is(err, survey.ErrNotFound):
				if allowClaimFallback && survey.Role(claimRole).Valid() {
					next.ServeHTTP(w, r)
					return
				}
				writeError(w, http.StatusForbidden, "forbidden")

			default:
				log.Error("role lookup failed", zap.Int64("user_id", sub), zap.Error(err))
				writeError(w, http.StatusForbidden, "forbidden")
			}
		})
	}
}
