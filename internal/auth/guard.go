package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/irislab/iris-core/internal/audit"
)

// DenialReason is a machine-readable code explaining why a request was
// refused. Reasons are stable API values: clients branch on them.
type DenialReason string

// Denial reason codes.
const (
	DenyTokenInvalid           DenialReason = "invalid_or_expired_token"
	DenyIdentityNotFound       DenialReason = "identity_not_found"
	DenyAccountDisabled        DenialReason = "account_disabled"
	DenyInsufficientPermission DenialReason = "insufficient_permission"
	DenyNotOwner               DenialReason = "not_owner"
)

// DenialError is returned when the guard refuses a request. It carries the
// reason code plus the module and action that were checked, when relevant.
type DenialError struct {
	Reason DenialReason
	Module Module
	Action Action
}

func (e *DenialError) Error() string {
	if e.Module != "" {
		return fmt.Sprintf("access denied (%s): %s:%s", e.Reason, e.Module, e.Action)
	}
	return fmt.Sprintf("access denied (%s)", e.Reason)
}

// Unwrap exposes the sentinel behind the denial so callers can branch with
// errors.Is instead of comparing reason codes.
func (e *DenialError) Unwrap() error {
	switch e.Reason {
	case DenyTokenInvalid:
		return ErrTokenInvalid
	case DenyIdentityNotFound:
		return ErrIdentityNotFound
	case DenyAccountDisabled:
		return ErrIdentityInactive
	default:
		return nil
	}
}

// Unauthenticated reports whether the denial means the caller's identity
// could not be established (HTTP 401) as opposed to an established identity
// lacking rights (HTTP 403).
func (e *DenialError) Unauthenticated() bool {
	return e.Reason == DenyTokenInvalid || e.Reason == DenyIdentityNotFound
}

// Deny builds a DenialError for the given reason without module context.
func Deny(reason DenialReason) *DenialError {
	return &DenialError{Reason: reason}
}

// Guard authorises requests. Every check re-reads the identity from
// storage, so deactivation and role changes take effect immediately rather
// than when outstanding tokens expire.
type Guard struct {
	identities IdentityRepository
	audit      audit.Repository
	secret     string
}

// NewGuard creates a request guard. The audit repository may be nil, in
// which case denials are not recorded.
func NewGuard(identities IdentityRepository, auditRepo audit.Repository, secret string) *Guard {
	return &Guard{identities: identities, audit: auditRepo, secret: secret}
}

// Authenticate resolves a bearer token to a live identity. The pipeline is
// strictly ordered: signature and expiry first, then identity existence,
// then activation state. Any error return is a *DenialError.
func (g *Guard) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := ParseAccessToken(token, g.secret)
	if err != nil {
		return nil, Deny(DenyTokenInvalid)
	}

	identity, err := g.identities.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, Deny(DenyIdentityNotFound)
		}
		return nil, fmt.Errorf("loading identity: %w", err)
	}

	if !identity.IsActive {
		g.recordDenial(ctx, identity.ID, DenyAccountDisabled, "", "")
		return nil, Deny(DenyAccountDisabled)
	}

	return identity, nil
}

// Require authenticates the token and checks that the identity may perform
// the action on the module. ADMIN short-circuits the matrix: stored rows
// never narrow an admin. Denials are recorded to the audit trail.
func (g *Guard) Require(ctx context.Context, token string, module Module, action Action) (*Identity, error) {
	identity, err := g.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := g.Permit(ctx, identity, module, action); err != nil {
		return nil, err
	}
	return identity, nil
}

// Permit checks an already-authenticated identity against the permission
// matrix. Split from Require so middleware can authenticate once and check
// per-route.
func (g *Guard) Permit(ctx context.Context, identity *Identity, module Module, action Action) error {
	if identity.Role == RoleAdmin {
		return nil
	}

	stored, err := g.identities.Permissions(ctx, identity.ID)
	if err != nil {
		return fmt.Errorf("loading permissions: %w", err)
	}

	if !Effective(identity.Role, stored).Allows(module, action) {
		g.recordDenial(ctx, identity.ID, DenyInsufficientPermission, module, action)
		return &DenialError{Reason: DenyInsufficientPermission, Module: module, Action: action}
	}
	return nil
}

// recordDenial appends a denial entry to the audit trail. Best effort: a
// failed audit write must not mask the denial itself.
func (g *Guard) recordDenial(ctx context.Context, actorID string, reason DenialReason, module Module, action Action) {
	if g.audit == nil {
		return
	}
	details := map[string]any{"reason": string(reason)}
	if module != "" {
		details["module"] = string(module)
		details["action"] = string(action)
	}
	_ = g.audit.Create(ctx, &audit.AuditLog{ //nolint:errcheck // best effort
		Action:     "denial",
		EntityType: "authorization",
		ActorID:    actorID,
		Details:    details,
	})
}
