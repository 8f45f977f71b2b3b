package middleware

import (
	"context"
	"net/http"

	"github.com/Sokrates1989/backup-restore/internal/api/response"
)

// GetIdentity extracts the APIKeyIdentity from the request context.
func GetIdentity(ctx context.Context) *APIKeyIdentity {
	identity, _ := ctx.Value(APIKeyIdentityKey).(*APIKeyIdentity)
	return identity
}

// HasScope checks if the identity has the given resource:action scope (or
// the *:* wildcard).
func HasScope(identity *APIKeyIdentity, resource, action string) bool {
	if identity == nil {
		return false
	}
	target := resource + ":" + action
	for _, s := range identity.Scopes {
		if s == "*:*" || s == target {
			return true
		}
	}
	return false
}

// RequireScope returns middleware that checks the key has the given
// resource:action scope.
func RequireScope(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetIdentity(r.Context())
			if !HasScope(identity, resource, action) {
				response.WriteError(w, http.StatusForbidden, "insufficient scope: requires "+resource+":"+action)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
