package auth

import (
	"errors"
	"testing"

	"github.com/irislab/iris-core/internal/audit"
)

const guardTestSecret = "guard-test-secret"

func testGuard(t *testing.T) (*Guard, *SQLiteIdentityRepository, audit.Repository) {
	t.Helper()
	db := testDB(t)
	repo := NewIdentityRepository(db)
	auditRepo := audit.NewSQLiteRepository(db)
	return NewGuard(repo, auditRepo, guardTestSecret), repo, auditRepo
}

func issueTestToken(t *testing.T, identity *Identity) string {
	t.Helper()
	token, err := IssueAccessToken(identity, guardTestSecret, 60)
	if err != nil {
		t.Fatalf("issuing test token: %v", err)
	}
	return token
}

func denialReason(t *testing.T, err error) DenialReason {
	t.Helper()
	var denial *DenialError
	if !errors.As(err, &denial) {
		t.Fatalf("error = %v, want *DenialError", err)
	}
	return denial.Reason
}

func TestGuard_RequireAllows(t *testing.T) {
	guard, repo, _ := testGuard(t)
	identity := seedTestIdentity(t, repo.db, "tech@example.com", RoleTechnicien)
	token := issueTestToken(t, identity)

	got, err := guard.Require(t.Context(), token, ModuleWorkOrders, ActionEdit)
	if err != nil {
		t.Fatalf("Require() error = %v", err)
	}
	if got.ID != identity.ID {
		t.Errorf("Require() returned identity %q, want %q", got.ID, identity.ID)
	}
}

func TestGuard_GarbageToken(t *testing.T) {
	guard, _, _ := testGuard(t)

	_, err := guard.Require(t.Context(), "not-a-token", ModuleWorkOrders, ActionView)
	if reason := denialReason(t, err); reason != DenyTokenInvalid {
		t.Errorf("reason = %s, want %s", reason, DenyTokenInvalid)
	}
}

func TestGuard_DeletedIdentity(t *testing.T) {
	guard, repo, _ := testGuard(t)
	identity := seedTestIdentity(t, repo.db, "gone@example.com", RoleProd)
	token := issueTestToken(t, identity)

	if err := repo.Delete(t.Context(), identity.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	// The token is still cryptographically valid. The identity is not.
	_, err := guard.Require(t.Context(), token, ModuleWorkOrders, ActionView)
	if reason := denialReason(t, err); reason != DenyIdentityNotFound {
		t.Errorf("reason = %s, want %s", reason, DenyIdentityNotFound)
	}
}

func TestGuard_DeactivationBeatsToken(t *testing.T) {
	guard, repo, _ := testGuard(t)
	identity := seedTestIdentity(t, repo.db, "fired@example.com", RoleTechnicien)
	token := issueTestToken(t, identity)

	// Works before deactivation.
	if _, err := guard.Require(t.Context(), token, ModuleWorkOrders, ActionView); err != nil {
		t.Fatalf("Require() before deactivation: %v", err)
	}

	if err := repo.SetActive(t.Context(), identity.ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	// The same unexpired token is refused on the very next request.
	_, err := guard.Require(t.Context(), token, ModuleWorkOrders, ActionView)
	if reason := denialReason(t, err); reason != DenyAccountDisabled {
		t.Errorf("reason = %s, want %s", reason, DenyAccountDisabled)
	}
}

func TestGuard_InsufficientPermission(t *testing.T) {
	guard, repo, auditRepo := testGuard(t)
	identity := seedTestIdentity(t, repo.db, "viewer@example.com", RoleVisualiseur)
	token := issueTestToken(t, identity)

	_, err := guard.Require(t.Context(), token, ModuleWorkOrders, ActionDelete)
	if reason := denialReason(t, err); reason != DenyInsufficientPermission {
		t.Errorf("reason = %s, want %s", reason, DenyInsufficientPermission)
	}

	// The denial lands in the audit trail.
	result, err := auditRepo.List(t.Context(), audit.Filter{Action: "denial", ActorID: identity.ID})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("audit trail has %d denial entries, want 1", result.Total)
	}
	details := result.Logs[0].Details
	if details["reason"] != string(DenyInsufficientPermission) || details["module"] != string(ModuleWorkOrders) {
		t.Errorf("denial details = %v", details)
	}
}

func TestGuard_AdminBypassesStoredRows(t *testing.T) {
	guard, repo, _ := testGuard(t)
	identity := seedTestIdentity(t, repo.db, "admin@example.com", RoleAdmin)
	token := issueTestToken(t, identity)

	// Even an explicit all-deny row cannot narrow an admin.
	if err := repo.UpsertPermission(t.Context(), identity.ID, ModuleImportExport, Triple{}); err != nil {
		t.Fatalf("UpsertPermission() error = %v", err)
	}

	if _, err := guard.Require(t.Context(), token, ModuleImportExport, ActionDelete); err != nil {
		t.Errorf("Require() for admin error = %v, want nil", err)
	}
}

func TestGuard_StoredOverrideWidens(t *testing.T) {
	guard, repo, _ := testGuard(t)
	identity := seedTestIdentity(t, repo.db, "widened@example.com", RoleVisualiseur)
	token := issueTestToken(t, identity)

	// Role default denies edit; a stored override grants it.
	if err := repo.UpsertPermission(t.Context(), identity.ID, ModuleMeters, Triple{View: true, Edit: true}); err != nil {
		t.Fatalf("UpsertPermission() error = %v", err)
	}

	if _, err := guard.Require(t.Context(), token, ModuleMeters, ActionEdit); err != nil {
		t.Errorf("Require() with widening override error = %v, want nil", err)
	}

	// Other modules keep the read-only default.
	_, err := guard.Require(t.Context(), token, ModuleAssets, ActionEdit)
	if reason := denialReason(t, err); reason != DenyInsufficientPermission {
		t.Errorf("reason = %s, want %s", reason, DenyInsufficientPermission)
	}
}

func TestGuard_InvitationTokenRejected(t *testing.T) {
	guard, repo, _ := testGuard(t)
	identity := seedTestIdentity(t, repo.db, "invitee@example.com", RoleProd)

	invitation, err := IssueInvitationToken(identity, guardTestSecret, 60)
	if err != nil {
		t.Fatalf("IssueInvitationToken() error = %v", err)
	}

	_, err = guard.Require(t.Context(), invitation, ModuleWorkOrders, ActionView)
	if reason := denialReason(t, err); reason != DenyTokenInvalid {
		t.Errorf("reason = %s, want %s", reason, DenyTokenInvalid)
	}
}

func TestDenialError_Unauthenticated(t *testing.T) {
	tests := []struct {
		reason DenialReason
		want   bool
	}{
		{DenyTokenInvalid, true},
		{DenyIdentityNotFound, true},
		{DenyAccountDisabled, false},
		{DenyInsufficientPermission, false},
		{DenyNotOwner, false},
	}
	for _, tt := range tests {
		if got := Deny(tt.reason).Unauthenticated(); got != tt.want {
			t.Errorf("Unauthenticated(%s) = %v, want %v", tt.reason, got, tt.want)
		}
	}
}

func TestDenialError_WrapsSentinels(t *testing.T) {
	tests := []struct {
		reason DenialReason
		want   error
	}{
		{DenyTokenInvalid, ErrTokenInvalid},
		{DenyIdentityNotFound, ErrIdentityNotFound},
		{DenyAccountDisabled, ErrIdentityInactive},
	}
	for _, tt := range tests {
		if !errors.Is(Deny(tt.reason), tt.want) {
			t.Errorf("Deny(%s) should wrap %v", tt.reason, tt.want)
		}
	}

	if errors.Is(Deny(DenyInsufficientPermission), ErrIdentityInactive) {
		t.Error("insufficient permission must not match ErrIdentityInactive")
	}
}

func TestGuard_DisabledDenialMatchesSentinel(t *testing.T) {
	guard, repo, _ := testGuard(t)
	identity := seedTestIdentity(t, repo.db, "inactive@example.com", RoleTechnicien)
	token := issueTestToken(t, identity)

	if err := repo.SetActive(t.Context(), identity.ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	_, err := guard.Authenticate(t.Context(), token)
	if !errors.Is(err, ErrIdentityInactive) {
		t.Errorf("Authenticate() error = %v, want ErrIdentityInactive", err)
	}
}
