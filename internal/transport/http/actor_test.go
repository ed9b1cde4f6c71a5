package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillpath/scheduling/internal/model"
)

func TestActorMiddleware(t *testing.T) {
	actorID := uuid.New()
	orgID := uuid.New()

	var seen model.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = actorFrom(r)
		w.WriteHeader(http.StatusOK)
	})
	handler := ActorMiddleware(next)

	newRequest := func(id, role, org string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/scheduling/bookings", nil)
		if id != "" {
			r.Header.Set(headerActorID, id)
		}
		if role != "" {
			r.Header.Set(headerActorRole, role)
		}
		if org != "" {
			r.Header.Set(headerOrganization, org)
		}
		return r
	}

	t.Run("complete identity passes through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newRequest(actorID.String(), "CONSULTANT", orgID.String()))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, actorID, seen.ID)
		assert.Equal(t, model.RoleConsultant, seen.Role)
		assert.Equal(t, orgID, seen.OrganizationID)
	})

	t.Run("missing actor id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newRequest("", "CONSULTANT", orgID.String()))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed organization id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newRequest(actorID.String(), "CONSULTANT", "not-a-uuid"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown role", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newRequest(actorID.String(), "SUPERUSER", orgID.String()))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
