package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/irislab/iris-core/internal/auth"
)

// identityResponse pairs an identity with its effective permission matrix.
type identityResponse struct {
	*auth.Identity
	Permissions auth.PermissionSet `json:"permissions"`
}

// handleListIdentities returns all identities.
func (s *Server) handleListIdentities(w http.ResponseWriter, r *http.Request) {
	identities, err := s.identities.List(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list identities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"identities": identities})
}

// inviteRequest is the request body for POST /identities.
type inviteRequest struct {
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone"`
	Role      auth.Role `json:"role"`
}

// handleInviteIdentity creates a pending identity and returns an invitation
// token. The account stays inactive until registration is completed with
// that token. Only admins may mint other admins.
func (s *Server) handleInviteIdentity(w http.ResponseWriter, r *http.Request) {
	actor := identityFrom(r.Context())

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if !auth.IsValidEmail(req.Email) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "invalid email address")
		return
	}
	if req.FirstName == "" || req.LastName == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "first and last name are required")
		return
	}
	if !auth.IsValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "unknown role")
		return
	}
	if req.Role == auth.RoleAdmin && actor.Role != auth.RoleAdmin {
		writeDenial(w, &auth.DenialError{Reason: auth.DenyInsufficientPermission, Module: auth.ModulePeople, Action: auth.ActionEdit})
		return
	}

	now := time.Now().UTC()
	identity := &auth.Identity{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		// Placeholder digest; the real password is set when the invitation
		// is redeemed. It can never verify: it is not a bcrypt string.
		PasswordHash: "invitation-pending",
		Role:         req.Role,
		IsActive:     false,
		InvitedAt:    &now,
		CreatedBy:    actor.ID,
	}

	if err := s.identities.Create(r.Context(), identity); err != nil {
		if errors.Is(err, auth.ErrEmailExists) {
			writeError(w, http.StatusConflict, ErrCodeConflict, "email already registered")
			return
		}
		writeInternalError(w, "failed to create identity")
		return
	}

	// Write the role-default permission rows so later role edits and module
	// additions have explicit state to diff against.
	defaults := auth.DefaultsForRole(identity.Role)
	for _, module := range auth.Modules {
		if _, err := s.identities.InsertPermissionIfAbsent(r.Context(), identity.ID, module, defaults[module]); err != nil {
			writeInternalError(w, "failed to initialise permissions")
			return
		}
	}

	token, err := auth.IssueInvitationToken(identity, s.secCfg.JWT.Secret, s.secCfg.JWT.InvitationTokenTTL)
	if err != nil {
		writeInternalError(w, "failed to generate invitation")
		return
	}

	s.recordAudit(r, "identity_invited", "identity", identity.ID, actor.ID, map[string]any{
		"email": identity.Email,
		"role":  string(identity.Role),
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"identity":         identity,
		"invitation_token": token,
	})
}

// handleGetIdentity returns one identity with its effective permissions.
func (s *Server) handleGetIdentity(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.loadIdentity(w, r)
	if !ok {
		return
	}

	stored, err := s.identities.Permissions(r.Context(), identity.ID)
	if err != nil {
		writeInternalError(w, "failed to load permissions")
		return
	}

	writeJSON(w, http.StatusOK, identityResponse{
		Identity:    identity,
		Permissions: auth.Effective(identity.Role, stored),
	})
}

// updateIdentityRequest is the request body for PATCH /identities/{id}.
// Nil fields are left unchanged.
type updateIdentityRequest struct {
	Email     *string    `json:"email"`
	FirstName *string    `json:"first_name"`
	LastName  *string    `json:"last_name"`
	Phone     *string    `json:"phone"`
	Role      *auth.Role `json:"role"`
}

// handleUpdateIdentity modifies an identity's profile fields and role.
func (s *Server) handleUpdateIdentity(w http.ResponseWriter, r *http.Request) {
	actor := identityFrom(r.Context())

	identity, ok := s.loadIdentity(w, r)
	if !ok {
		return
	}

	var req updateIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Email != nil {
		if !auth.IsValidEmail(*req.Email) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "invalid email address")
			return
		}
		identity.Email = *req.Email
	}
	if req.FirstName != nil {
		identity.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		identity.LastName = *req.LastName
	}
	if req.Phone != nil {
		identity.Phone = *req.Phone
	}
	if req.Role != nil && *req.Role != identity.Role {
		if !auth.IsValidRole(*req.Role) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "unknown role")
			return
		}
		// Role promotion to or demotion from admin is admin-only.
		if (*req.Role == auth.RoleAdmin || identity.Role == auth.RoleAdmin) && actor.Role != auth.RoleAdmin {
			writeDenial(w, &auth.DenialError{Reason: auth.DenyInsufficientPermission, Module: auth.ModulePeople, Action: auth.ActionEdit})
			return
		}
		identity.Role = *req.Role
	}

	if err := s.identities.Update(r.Context(), identity); err != nil {
		if errors.Is(err, auth.ErrEmailExists) {
			writeError(w, http.StatusConflict, ErrCodeConflict, "email already registered")
			return
		}
		writeInternalError(w, "failed to update identity")
		return
	}

	s.recordAudit(r, "identity_updated", "identity", identity.ID, actor.ID, nil)

	writeJSON(w, http.StatusOK, identity)
}

// handleDeleteIdentity removes an identity entirely. Self-deletion is
// refused: an admin locking themselves out is unrecoverable without DB
// surgery.
func (s *Server) handleDeleteIdentity(w http.ResponseWriter, r *http.Request) {
	actor := identityFrom(r.Context())
	id := chi.URLParam(r, "id")

	if id == actor.ID {
		writeError(w, http.StatusConflict, ErrCodeConflict, "cannot delete your own account")
		return
	}

	if err := s.identities.Delete(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrIdentityNotFound) {
			writeNotFound(w, "identity not found")
			return
		}
		writeInternalError(w, "failed to delete identity")
		return
	}

	s.recordAudit(r, "identity_deleted", "identity", id, actor.ID, nil)

	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// handleActivateIdentity re-enables a deactivated account.
func (s *Server) handleActivateIdentity(w http.ResponseWriter, r *http.Request) {
	s.setActive(w, r, true, "identity_activated")
}

// handleDeactivateIdentity disables an account. The next guarded request
// from any of its outstanding tokens is refused.
func (s *Server) handleDeactivateIdentity(w http.ResponseWriter, r *http.Request) {
	s.setActive(w, r, false, "identity_deactivated")
}

func (s *Server) setActive(w http.ResponseWriter, r *http.Request, active bool, action string) {
	actor := identityFrom(r.Context())
	id := chi.URLParam(r, "id")

	if !active && id == actor.ID {
		writeError(w, http.StatusConflict, ErrCodeConflict, "cannot deactivate your own account")
		return
	}

	if err := s.identities.SetActive(r.Context(), id, active); err != nil {
		if errors.Is(err, auth.ErrIdentityNotFound) {
			writeNotFound(w, "identity not found")
			return
		}
		writeInternalError(w, "failed to change activation state")
		return
	}

	s.recordAudit(r, action, "identity", id, actor.ID, nil)

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "is_active": active})
}

// handleGetPermissions returns an identity's effective permission matrix.
func (s *Server) handleGetPermissions(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.loadIdentity(w, r)
	if !ok {
		return
	}

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

// putPermissionRequest is the request body for
// PUT /identities/{id}/permissions/{module}.
type putPermissionRequest struct {
	CanView   bool `json:"can_view"`
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

// handlePutPermission replaces one module's triple for an identity.
// Updates are module-granular: concurrent writes to different modules never
// clobber each other, and the last writer wins per module.
func (s *Server) handlePutPermission(w http.ResponseWriter, r *http.Request) {
	actor := identityFrom(r.Context())

	identity, ok := s.loadIdentity(w, r)
	if !ok {
		return
	}

	module := auth.Module(chi.URLParam(r, "module"))
	if !auth.IsValidModule(module) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "unknown module")
		return
	}

	var req putPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	triple := auth.Triple{View: req.CanView, Edit: req.CanEdit, Delete: req.CanDelete}
	if err := s.identities.UpsertPermission(r.Context(), identity.ID, module, triple); err != nil {
		writeInternalError(w, "failed to update permission")
		return
	}

	s.recordAudit(r, "permission_updated", "identity", identity.ID, actor.ID, map[string]any{
		"module":     string(module),
		"can_view":   req.CanView,
		"can_edit":   req.CanEdit,
		"can_delete": req.CanDelete,
	})

	writeJSON(w, http.StatusOK, map[string]any{"module": module, "permission": triple})
}

// loadIdentity fetches the identity named in the URL, writing a 404 on
// absence. The bool reports success.
func (s *Server) loadIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, err := s.identities.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, auth.ErrIdentityNotFound) {
			writeNotFound(w, "identity not found")
			return nil, false
		}
		writeInternalError(w, "failed to load identity")
		return nil, false
	}
	return identity, true
}
