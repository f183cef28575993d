package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/model"
)

// UserEnsurer loads a member profile, creating it the first time a token
// subject is seen.
type UserEnsurer interface {
	EnsureUser(ctx context.Context, id, name string) (*model.User, error)
}

// RequireAuth validates the bearer token and populates the auth.Session.
// The token is read from the Authorization header, or from the access_token
// query parameter for websocket upgrades.
func RequireAuth(tokens *auth.Tokens, users UserEnsurer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				unauthorized(w, "missing token")
				return
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}

			u, err := users.EnsureUser(r.Context(), claims.Subject, claims.Name)
			if err != nil || u == nil {
				writeError(w, http.StatusServiceUnavailable, "could not load profile")
				return
			}

			sess := auth.Session{
				UserID:   u.ID,
				UserName: u.Name,
				FamilyID: u.FamilyID,
			}
			ctx := auth.WithAuth(r.Context(), sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="larder"`)
	writeError(w, http.StatusUnauthorized, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
