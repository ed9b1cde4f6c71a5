package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/skillpath/scheduling/internal/model"
)

type contextKey string

const actorKey contextKey = "actor"

// Identity headers injected by the gateway after authentication. The engine
// does not verify tokens itself; it trusts what the gateway asserted.
const (
	headerActorID      = "X-Actor-Id"
	headerActorRole    = "X-Actor-Role"
	headerOrganization = "X-Organization-Id"
)

// ActorMiddleware reads the gateway identity headers into a model.Actor.
// Requests without a complete identity are rejected before any handler runs.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID, err := uuid.Parse(r.Header.Get(headerActorID))
		if err != nil {
			http.Error(w, "missing or invalid actor identity", http.StatusUnauthorized)
			return
		}
		orgID, err := uuid.Parse(r.Header.Get(headerOrganization))
		if err != nil {
			http.Error(w, "missing or invalid organization scope", http.StatusUnauthorized)
			return
		}
		role := model.Role(r.Header.Get(headerActorRole))
		if !role.IsValid() {
			http.Error(w, "missing or invalid actor role", http.StatusUnauthorized)
			return
		}

		actor := model.Actor{ID: actorID, Role: role, OrganizationID: orgID}
		ctx := context.WithValue(r.Context(), actorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFrom(r *http.Request) model.Actor {
	actor, _ := r.Context().Value(actorKey).(model.Actor)
	return actor
}
