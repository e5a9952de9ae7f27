// Package rbac performs the capability check at the HTTP boundary. The
// identity collaborator authenticates callers upstream and forwards the user
// id and granted capabilities in trusted headers; core services never inspect
// roles themselves.
package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/farmsync/farmsync/internal/shared"
)

// Capability names guarding procurement and inventory actions.
const (
	CapMasterView         = "master.view"
	CapMasterEdit         = "master.edit"
	CapProcurementView    = "procurement.view"
	CapProcurementEdit    = "procurement.edit"
	CapProcurementApprove = "procurement.approve"
	CapInventoryView      = "inventory.view"
)

const (
	headerUserID       = "X-User-Id"
	headerCapabilities = "X-Capabilities"
)

// ActorMiddleware resolves the caller identity from gateway headers and
// stores it on the request context.
func ActorMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawID := r.Header.Get(headerUserID)
			if rawID == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := uuid.Parse(rawID)
			if err != nil {
				if logger != nil {
					logger.Warn("malformed user id header", slog.String("value", rawID))
				}
				next.ServeHTTP(w, r)
				return
			}
			caps := make(map[string]struct{})
			for _, c := range strings.Split(r.Header.Get(headerCapabilities), ",") {
				c = strings.TrimSpace(c)
				if c != "" {
					caps[c] = struct{}{}
				}
			}
			actor := &shared.Actor{UserID: userID, Capabilities: caps}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
		})
	}
}

// Require ensures the caller holds every listed capability.
func Require(capabilities ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := shared.ActorFromContext(r.Context())
			if actor == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			for _, c := range capabilities {
				if !actor.Can(c) {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
