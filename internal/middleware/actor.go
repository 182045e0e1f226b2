package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// Role is the authorization role of the calling actor.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleStaff    Role = "STAFF"
	RoleMechanic Role = "MECHANIC"
	RoleCustomer Role = "CUSTOMER"
)

// Headers set by the authentication gateway in front of the service.
const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorRole = "X-Actor-Role"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleMechanic, RoleCustomer:
		return true
	}
	return false
}

// Actor identifies who is making the request.
type Actor struct {
	ID   string
	Role Role
}

type actorKey struct{}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by ActorIdentity.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// ActorIdentity reads the actor headers and rejects requests without a known role.
func ActorIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderActorID))
		role := Role(strings.ToUpper(strings.TrimSpace(r.Header.Get(HeaderActorRole))))

		if id == "" || role == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized: actor identity required")
			return
		}
		if !role.Valid() {
			writeError(w, http.StatusUnauthorized, "Unauthorized: unknown actor role")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), Actor{ID: id, Role: role})))
	})
}

// RequireRole admits only actors holding one of roles. It must run after ActorIdentity.
func RequireRole(roles ...Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized: actor identity required")
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "Forbidden: insufficient role")
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
