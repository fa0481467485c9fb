package middleware

import (
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
)

// RequireCompany rejects callers that are not attached to a company yet.
func RequireCompany(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			response.Unauthorized(w, user.ErrInvalidClaims.Error())
			return
		}

		if actor.CompanyID == "" || actor.Role == user.RolePending {
			response.Forbidden(w, user.ErrCompanyIDRequired.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}
