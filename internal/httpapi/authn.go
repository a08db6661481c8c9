package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"omnihub.io/internal/auth"
	"omnihub.io/internal/ledger"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/api/auth/register",
	"/api/auth/login",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

type principalKey struct{}

// principalFromContext returns the authenticated user loaded by withAuth.
func principalFromContext(ctx context.Context) (ledger.User, bool) {
	u, ok := ctx.Value(principalKey{}).(ledger.User)
	return u, ok
}

// withAuth authenticates every non-public request: the bearer token is
// validated, then the user is re-read from the ledger so suspensions
// and balance changes take effect immediately, not at next login.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := auth.ParseAndValidate(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		user, err := a.store.GetUser(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				writeError(w, r, http.StatusUnauthorized, "invalid token")
				return
			}
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}
		if !user.Active {
			writeError(w, r, http.StatusForbidden, "account suspended")
			return
		}

		ctx := context.WithValue(r.Context(), principalKey{}, user)
		ctx = auth.ContextWithUser(ctx, user.ID, string(user.Role))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePrincipal fetches the authenticated user or writes a 401.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (ledger.User, bool) {
	u, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
	}
	return u, ok
}

// requireAdmin fetches the authenticated admin or writes a 401/403.
func requireAdmin(w http.ResponseWriter, r *http.Request) (ledger.User, bool) {
	u, ok := requirePrincipal(w, r)
	if !ok {
		return ledger.User{}, false
	}
	if u.Role != ledger.RoleAdmin {
		writeError(w, r, http.StatusForbidden, "admin access required")
		return ledger.User{}, false
	}
	return u, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
