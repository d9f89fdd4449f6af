package auth

import (
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestBackfillPermissions(t *testing.T) {
	db := testDB(t)
	repo := NewIdentityRepository(db)

	tech := seedTestIdentity(t, db, "tech@example.com", RoleTechnicien)
	viewer := seedTestIdentity(t, db, "viewer@example.com", RoleVisualiseur)

	inserted, err := BackfillPermissions(t.Context(), repo, testLogger())
	if err != nil {
		t.Fatalf("BackfillPermissions() error = %v", err)
	}
	if want := 2 * len(Modules); inserted != want {
		t.Errorf("inserted %d rows, want %d", inserted, want)
	}

	// Rows reflect each identity's role defaults.
	techSet, err := repo.Permissions(t.Context(), tech.ID)
	if err != nil {
		t.Fatalf("Permissions() error = %v", err)
	}
	if !techSet.Allows(ModuleWorkOrders, ActionEdit) {
		t.Error("technicien backfill should grant work order edit")
	}
	if techSet.Allows(ModulePeople, ActionEdit) {
		t.Error("technicien backfill should not grant people edit")
	}

	viewerSet, _ := repo.Permissions(t.Context(), viewer.ID)
	if viewerSet.Allows(ModuleWorkOrders, ActionEdit) {
		t.Error("visualiseur backfill should be view-only")
	}
}

func TestBackfillPermissions_SecondRunIsNoop(t *testing.T) {
	db := testDB(t)
	repo := NewIdentityRepository(db)

	seedTestIdentity(t, db, "once@example.com", RoleLabo)

	if _, err := BackfillPermissions(t.Context(), repo, testLogger()); err != nil {
		t.Fatalf("first backfill: %v", err)
	}

	inserted, err := BackfillPermissions(t.Context(), repo, testLogger())
	if err != nil {
		t.Fatalf("second backfill: %v", err)
	}
	if inserted != 0 {
		t.Errorf("second run inserted %d rows, want 0", inserted)
	}
}

func TestBackfillPermissions_PreservesOverrides(t *testing.T) {
	db := testDB(t)
	repo := NewIdentityRepository(db)

	identity := seedTestIdentity(t, db, "tuned@example.com", RoleVisualiseur)

	// An admin granted an override before the backfill ran.
	override := Triple{View: true, Edit: true, Delete: true}
	if err := repo.UpsertPermission(t.Context(), identity.ID, ModuleDocumentations, override); err != nil {
		t.Fatalf("UpsertPermission() error = %v", err)
	}

	inserted, err := BackfillPermissions(t.Context(), repo, testLogger())
	if err != nil {
		t.Fatalf("BackfillPermissions() error = %v", err)
	}
	if want := len(Modules) - 1; inserted != want {
		t.Errorf("inserted %d rows, want %d (override row already present)", inserted, want)
	}

	set, _ := repo.Permissions(t.Context(), identity.ID)
	if set[ModuleDocumentations] != override {
		t.Errorf("backfill clobbered the override: %+v", set[ModuleDocumentations])
	}
}

func TestBackfillPermissions_FillsGapsOnly(t *testing.T) {
	db := testDB(t)
	repo := NewIdentityRepository(db)

	identity := seedTestIdentity(t, db, "partial@example.com", RoleQHSE)

	// Simulate an identity created when only some modules existed.
	for _, m := range []Module{ModuleWorkOrders, ModuleAssets} {
		if _, err := repo.InsertPermissionIfAbsent(t.Context(), identity.ID, m, Triple{View: true}); err != nil {
			t.Fatalf("seeding partial rows: %v", err)
		}
	}

	inserted, err := BackfillPermissions(t.Context(), repo, testLogger())
	if err != nil {
		t.Fatalf("BackfillPermissions() error = %v", err)
	}
	if want := len(Modules) - 2; inserted != want {
		t.Errorf("inserted %d rows, want %d", inserted, want)
	}

	set, _ := repo.Permissions(t.Context(), identity.ID)
	if len(set) != len(Modules) {
		t.Errorf("identity has %d permission rows, want %d", len(set), len(Modules))
	}
	// The new QHSE rows carry the role defaults.
	if !set.Allows(ModuleSurveillance, ActionDelete) {
		t.Error("QHSE backfill should grant surveillance delete")
	}
}
