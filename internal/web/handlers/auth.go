package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/elecmate/winback-service/internal/logger"
)

// AdminIdentity is the authenticated caller, kept for audit logging.
type AdminIdentity struct {
	ID   uuid.UUID
	Name string
}

type contextKey string

const adminContextKey contextKey = "admin"

// AdminFromContext returns the authenticated admin, if any.
func AdminFromContext(ctx context.Context) (AdminIdentity, bool) {
	admin, ok := ctx.Value(adminContextKey).(AdminIdentity)
	return admin, ok
}

// Authenticator verifies the caller holds an administrative role before any
// data access. It fails closed: missing header, unknown token and non-admin
// profile all produce a 401 with no partial data.
type Authenticator struct {
	identity TokenResolver
	profiles ProfileLoader
	log      *logger.Logger
}

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(identity TokenResolver, profiles ProfileLoader) *Authenticator {
	return &Authenticator{
		identity: identity,
		profiles: profiles,
		log:      logger.Get(),
	}
}

// RequireAdmin is middleware gating a handler behind the admin check.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeAuthError(w, "Unauthorized")
			return
		}

		userID, err := a.identity.ResolveToken(r.Context(), token)
		if err != nil {
			a.log.Error().Err(err).Msg("token resolution failed")
			writeAuthError(w, "Unauthorized")
			return
		}
		if userID == uuid.Nil {
			writeAuthError(w, "Unauthorized")
			return
		}

		profile, err := a.profiles.GetByID(r.Context(), userID)
		if err != nil {
			a.log.Error().Err(err).Msg("profile lookup failed during auth")
			writeAuthError(w, "Unauthorized")
			return
		}
		if profile == nil || !profile.IsAdmin {
			writeAuthError(w, "Unauthorized: Admin access required")
			return
		}

		admin := AdminIdentity{ID: profile.ID, Name: profile.FullName}
		ctx := context.WithValue(r.Context(), adminContextKey, admin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		_ = err // Client disconnected
	}
}
