package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/slotkeeper/libs/auth"
	"github.com/md-rashed-zaman/slotkeeper/libs/httpx"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/slotkeeper/services/scheduling-service/internal/model"
)

const (
	HeaderUserID = "X-User-Id"
	HeaderRole   = "X-Role"
)

type identityKey struct{}

func withIdentity(ctx context.Context, actor booking.Actor) context.Context {
	return context.WithValue(ctx, identityKey{}, actor)
}

// IdentityFrom returns the caller attached by one of the identity middlewares.
func IdentityFrom(ctx context.Context) (booking.Actor, bool) {
	actor, ok := ctx.Value(identityKey{}).(booking.Actor)
	return actor, ok
}

// HeaderIdentity trusts X-User-Id and X-Role as set by an upstream gateway.
func HeaderIdentity() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
			role, err := model.ParseRole(r.Header.Get(HeaderRole))
			if userID == "" || err != nil {
				http.Error(w, "missing or invalid identity headers", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), booking.Actor{ID: userID, Role: role})))
		})
	}
}

// JWTIdentity verifies a bearer token and takes the caller from its subject
// and role claims.
func JWTIdentity(verifier auth.Verifier) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := verifier.Verify(strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")))
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			role, err := model.ParseRole(claims.Role)
			if err != nil {
				http.Error(w, "invalid role claim", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), booking.Actor{ID: claims.Subject, Role: role})))
		})
	}
}

func requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := IdentityFrom(r.Context())
		if !ok || actor.Role != model.RoleOperator {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
