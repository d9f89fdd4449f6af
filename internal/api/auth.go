package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/irislab/iris-core/internal/audit"
	"github.com/irislab/iris-core/internal/auth"
)

// minPasswordLength is the minimum accepted password length.
const minPasswordLength = 8

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int            `json:"expires_in"`
	Identity    *auth.Identity `json:"identity"`
}

// handleLogin authenticates an identity by email and password and returns
// a JWT access token. Unknown email and wrong password collapse into the
// same 401: login must not reveal which part failed.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	identity, err := s.identities.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrIdentityNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		writeInternalError(w, "login failed")
		return
	}

	if err := s.hasher.Verify(r.Context(), req.Password, identity.PasswordHash); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		case errors.Is(err, auth.ErrMalformedDigest):
			// The stored digest is corrupt. The caller sees an ordinary
			// credential failure; the log carries enough to find the row.
			s.logger.Error("stored digest malformed",
				"identity_id", identity.ID,
				"digest_prefix", digestPrefix(identity.PasswordHash),
				"password_length", len(req.Password),
				"error", err,
			)
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		case errors.Is(err, auth.ErrVerifyExhausted):
			s.logger.Error("credential verification exhausted retries",
				"identity_id", identity.ID,
				"digest_prefix", digestPrefix(identity.PasswordHash),
				"password_length", len(req.Password),
				"error", err,
			)
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		default:
			s.logger.Error("credential verification failed", "error", err)
			writeInternalError(w, "login failed")
		}
		return
	}

	if !identity.IsActive {
		writeError(w, http.StatusForbidden, string(auth.DenyAccountDisabled), "account is disabled")
		return
	}

	ttl := s.secCfg.JWT.AccessTokenTTL
	token, err := auth.IssueAccessToken(identity, s.secCfg.JWT.Secret, ttl)
	if err != nil {
		writeInternalError(w, "failed to generate token")
		return
	}

	s.recordAudit(r, "login", "identity", identity.ID, identity.ID, nil)

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   ttl * 60, // seconds
		Identity:    identity,
	})
}

// completeRegistrationRequest is the request body for
// POST /auth/complete-registration.
type completeRegistrationRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// handleCompleteRegistration consumes an invitation token, sets the
// identity's first password, and activates the account.
func (s *Server) handleCompleteRegistration(w http.ResponseWriter, r *http.Request) {
	var req completeRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "password must be at least 8 characters")
		return
	}

	claims, err := auth.ParseInvitationToken(req.Token, s.secCfg.JWT.Secret)
	if err != nil {
		writeError(w, http.StatusUnauthorized, string(auth.DenyTokenInvalid), "invalid or expired invitation")
		return
	}

	identity, err := s.identities.GetByID(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusUnauthorized, string(auth.DenyIdentityNotFound), "invitation no longer valid")
		return
	}
	if !identity.PendingInvitation() {
		writeError(w, http.StatusConflict, ErrCodeConflict, "registration already completed")
		return
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		writeInternalError(w, "failed to set password")
		return
	}
	if err := s.identities.UpdatePassword(r.Context(), identity.ID, hash); err != nil {
		writeInternalError(w, "failed to set password")
		return
	}
	if err := s.identities.ClearInvitation(r.Context(), identity.ID); err != nil {
		writeInternalError(w, "failed to activate account")
		return
	}

	s.recordAudit(r, "registration_completed", "identity", identity.ID, identity.ID, nil)

	writeJSON(w, http.StatusOK, map[string]any{"status": "registered"})
}

// handleMe returns the authenticated identity.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, identityFrom(r.Context()))
}

// handleMyPermissions returns the caller's effective permission matrix:
// stored rows merged over role defaults, total over all modules.
func (s *Server) handleMyPermissions(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	stored, err := s.identities.Permissions(r.Context(), identity.ID)
	if err != nil {
		writeInternalError(w, "failed to load permissions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"role":        identity.Role,
		"permissions": auth.Effective(identity.Role, stored),
	})
}

// changePasswordRequest is the request body for POST /auth/change-password.
type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// handleChangePassword verifies the current password and stores a new one.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "password must be at least 8 characters")
		return
	}

	if err := s.hasher.Verify(r.Context(), req.CurrentPassword, identity.PasswordHash); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusForbidden, string(auth.DenyInsufficientPermission), "current password is incorrect")
		case errors.Is(err, auth.ErrMalformedDigest), errors.Is(err, auth.ErrVerifyExhausted):
			s.logger.Error("credential verification failed during password change",
				"identity_id", identity.ID,
				"digest_prefix", digestPrefix(identity.PasswordHash),
				"password_length", len(req.CurrentPassword),
				"error", err,
			)
			writeError(w, http.StatusForbidden, string(auth.DenyInsufficientPermission), "current password is incorrect")
		default:
			writeInternalError(w, "password change failed")
		}
		return
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		writeInternalError(w, "password change failed")
		return
	}
	if err := s.identities.UpdatePassword(r.Context(), identity.ID, hash); err != nil {
		writeInternalError(w, "password change failed")
		return
	}

	s.recordAudit(r, "password_changed", "identity", identity.ID, identity.ID, nil)

	writeJSON(w, http.StatusOK, map[string]any{"status": "changed"})
}

// digestPrefix returns the algorithm-and-cost prefix of a stored digest,
// safe to log. Never log the digest itself.
func digestPrefix(digest string) string {
	const prefixLen = 7 // "$2a$10$"
	if len(digest) < prefixLen {
		return digest
	}
	return digest[:prefixLen]
}

// recordAudit appends an entry to the audit trail. Best effort.
func (s *Server) recordAudit(r *http.Request, action, entityType, entityID, actorID string, details map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Create(r.Context(), &audit.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Details:    details,
	})
	if err != nil {
		s.logger.Warn("audit write failed", "action", action, "error", err)
	}
}
