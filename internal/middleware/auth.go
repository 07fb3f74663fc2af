package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/nag/internal/auth"
	"github.com/dukerupert/nag/internal/model"
	"github.com/dukerupert/nag/internal/store"
)

const sessionCookieName = "nag_id_token"

// anonymousUserID is the fixture identity used when auth is disabled. The
// flag is read-once config threaded through the handler factory, not
// process-wide mutable state.
var anonymousUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// RequireAuth gates a handler behind OIDC identity. When authEnabled is
// false it injects the anonymous fixture identity unconditionally (used for
// single-user or trusted-network deployments); otherwise it verifies a
// bearer ID token — from the Authorization header, falling back to a
// cookie for browser navigations — against verifier and resolves the user
// record via users.GetOrCreate.
func RequireAuth(authEnabled bool, verifier *auth.OIDCVerifier, users *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authEnabled {
				ctx := auth.WithIdentity(r.Context(), auth.Identity{UserID: anonymousUserID, Anonymous: true})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			raw := bearerToken(r)
			if raw == "" {
				writeUnauthorized(w, "missing bearer token")
				return
			}

			claims, err := verifier.Verify(raw)
			if err != nil {
				writeUnauthorized(w, "invalid id token")
				return
			}

			u, err := users.GetOrCreate(&model.User{
				ID:          uuid.New(),
				OIDCIssuer:  claims.Issuer,
				OIDCSubject: claims.Subject,
				Email:       nonEmpty(claims.Email),
				Name:        nonEmpty(claims.Name),
				Picture:     nonEmpty(claims.Picture),
				CreatedAt:   time.Now().UTC(),
			})
			if err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			ctx := auth.WithIdentity(r.Context(), auth.Identity{
				UserID: u.ID,
				Email:  claims.Email,
				Name:   claims.Name,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(sessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// writeUnauthorized emits an RFC-7807 problem-details body.
func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"type":"about:blank","title":"Unauthorized","status":401,"detail":"` + detail + `"}`))
}
