package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const studentIDKey contextKey = "studentID"

// StudentFromContext returns the authenticated student ID set by
// RequireStudent.
func StudentFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(studentIDKey).(int64)
	return id, ok
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

// RequireAdmin gates the admin surface on a valid admin bearer token.
func RequireAdmin(t *Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r)
			if raw == "" {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			claims, err := t.Parse(raw)
			if err != nil || claims.Role != RoleAdmin {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireStudent gates the instrument-submission surface. The bearer's
// embedded session token is checked against the stored one on every
// request, so a superseded session fails here no matter how fresh the JWT
// is. A 401 from this middleware tells the client to drop its credential
// and re-enter through the class join flow.
func RequireStudent(t *Tokens, guard *SessionGuard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r)
			if raw == "" {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			claims, err := t.Parse(raw)
			if err != nil || claims.Role != RoleStudent {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			studentID, err := claims.StudentID()
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			ok, err := guard.Validate(r.Context(), studentID, claims.SessionToken)
			if err != nil {
				http.Error(w, "session check failed", http.StatusInternalServerError)
				return
			}
			if !ok {
				http.Error(w, "session superseded", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), studentIDKey, studentID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
