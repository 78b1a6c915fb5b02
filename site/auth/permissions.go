package auth

import (
	"fmt"
	"net/http"

	"labsite/site/schema"
)

// RequireRole rejects requests whose authenticated user ranks below minRole.
// The role hierarchy is ordinal: viewer < editor < admin, and a route
// requiring role R accepts any user with ordinal >= R.
func RequireRole(minRole schema.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !user.Role.AtLeast(minRole) {
				http.Error(w, fmt.Sprintf("user %v with role %v does not meet required role %v", user.Id, user.Role, minRole), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

func EditorOnly() func(http.Handler) http.Handler {
	return RequireRole(schema.RoleEditor)
}

func AdminOnly() func(http.Handler) http.Handler {
	return RequireRole(schema.RoleAdmin)
}
