package rbac

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/odyssey-erp/souq/internal/platform/httpx"
	"github.com/odyssey-erp/souq/internal/shared"
)

// Default headers set by the authenticating gateway.
const (
	DefaultActorIDHeader   = "X-Actor-ID"
	DefaultActorRoleHeader = "X-Actor-Role"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Evaluator  *Evaluator
	Logger     *slog.Logger
	IDHeader   string
	RoleHeader string
}

// Actor resolves the gateway-authenticated actor into the request context.
// Requests without a valid actor pass through unauthenticated.
func (m Middleware) Actor(next http.Handler) http.Handler {
	idHeader := m.IDHeader
	if idHeader == "" {
		idHeader = DefaultActorIDHeader
	}
	roleHeader := m.RoleHeader
	if roleHeader == "" {
		roleHeader = DefaultActorRoleHeader
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawID := strings.TrimSpace(r.Header.Get(idHeader))
		rawRole := r.Header.Get(roleHeader)
		if rawID == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := strconv.ParseInt(rawID, 10, 64)
		role, ok := ParseRole(rawRole)
		if err != nil || !ok || id <= 0 {
			if m.Logger != nil {
				m.Logger.Warn("rbac invalid actor headers", slog.String("id", rawID), slog.String("role", rawRole))
			}
			next.ServeHTTP(w, r)
			return
		}
		ctx := ContextWithActor(r.Context(), Actor{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireActor rejects requests without an authenticated actor.
func (m Middleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ActorFromContext(r.Context()); !ok {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAny ensures the current actor has at least one of the required permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			for _, perm := range normalized {
				decision, err := m.Evaluator.Authorize(r.Context(), actor, perm)
				if err != nil {
					if m.Logger != nil {
						m.Logger.Error("rbac require any", slog.Any("error", err))
					}
					httpx.RespondError(w, shared.Forbidden(perm))
					return
				}
				if decision.Allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.RespondError(w, shared.Forbidden(normalized[0]))
		})
	}
}

func normalizePermissions(perms []string) []string {
	seen := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = NormalizeName(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}
