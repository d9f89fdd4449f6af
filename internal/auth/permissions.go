package auth

// Module represents a functional area of the system subject to permission
// control. Module names are stable storage keys: renaming one is a data
// migration, not a constant edit.
type Module string

// Module constants.
const (
	ModuleWorkOrders            Module = "workOrders"
	ModuleAssets                Module = "assets"
	ModuleLocations             Module = "locations"
	ModuleInventory             Module = "inventory"
	ModulePreventiveMaintenance Module = "preventiveMaintenance"
	ModuleInterventionRequests  Module = "interventionRequests"
	ModuleImprovementRequests   Module = "improvementRequests"
	ModuleImprovements          Module = "improvements"
	ModuleMeters                Module = "meters"
	ModuleSurveillance          Module = "surveillance"
	ModulePresquaccident        Module = "presquaccident"
	ModuleDocumentations        Module = "documentations"
	ModuleVendors               Module = "vendors"
	ModuleReports               Module = "reports"
	ModulePeople                Module = "people"
	ModulePlanning              Module = "planning"
	ModulePurchaseHistory       Module = "purchaseHistory"
	ModuleImportExport          Module = "importExport"
)

// Modules is the closed set of permission-controlled modules. Order is the
// canonical display order; storage never depends on it.
var Modules = []Module{
	ModuleWorkOrders,
	ModuleAssets,
	ModuleLocations,
	ModuleInventory,
	ModulePreventiveMaintenance,
	ModuleInterventionRequests,
	ModuleImprovementRequests,
	ModuleImprovements,
	ModuleMeters,
	ModuleSurveillance,
	ModulePresquaccident,
	ModuleDocumentations,
	ModuleVendors,
	ModuleReports,
	ModulePeople,
	ModulePlanning,
	ModulePurchaseHistory,
	ModuleImportExport,
}

// IsValidModule returns true if the module belongs to the closed module set.
func IsValidModule(m Module) bool {
	for _, v := range Modules {
		if m == v {
			return true
		}
	}
	return false
}

// Action is one of the three capabilities a module grant can carry.
type Action string

// Action constants.
const (
	ActionView   Action = "view"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Triple is the per-module capability set: three independent booleans.
// Edit does not imply view; the matrix stores exactly what was granted.
type Triple struct {
	View   bool `json:"can_view"`
	Edit   bool `json:"can_edit"`
	Delete bool `json:"can_delete"`
}

// Allows returns the boolean for the given action. Unknown actions are
// denied.
func (t Triple) Allows(a Action) bool {
	switch a {
	case ActionView:
		return t.View
	case ActionEdit:
		return t.Edit
	case ActionDelete:
		return t.Delete
	default:
		return false
	}
}

// PermissionSet maps every module to its capability triple. A set produced
// by DefaultsForRole or Effective is total: it has an entry for each member
// of Modules.
type PermissionSet map[Module]Triple

// Allows returns whether the set grants the action on the module. Modules
// absent from the set are denied.
func (s PermissionSet) Allows(m Module, a Action) bool {
	return s[m].Allows(a)
}

// Clone returns an independent copy of the set.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for m, t := range s {
		out[m] = t
	}
	return out
}

// Shorthand triples used by the defaults table.
var (
	tripleNone     = Triple{}
	tripleView     = Triple{View: true}
	tripleViewEdit = Triple{View: true, Edit: true}
	tripleFull     = Triple{View: true, Edit: true, Delete: true}
)

// roleDefaults maps each role to its baseline permission matrix.
// This is the single source of truth for the authorisation model: per-user
// stored rows start from here, and modules missing from storage fall back
// here. Only deviations from the role's base triple are listed; everything
// else gets the base.
var roleDefaults = map[Role]struct {
	base      Triple
	overrides map[Module]Triple
}{
	RoleAdmin: {base: tripleFull},
	RoleDirecteur: {
		base: tripleView,
		overrides: map[Module]Triple{
			ModuleReports:  tripleViewEdit,
			ModulePlanning: tripleViewEdit,
		},
	},
	RoleQHSE: {
		base: tripleView,
		overrides: map[Module]Triple{
			ModuleSurveillance:   tripleFull,
			ModulePresquaccident: tripleFull,
			ModuleDocumentations: tripleFull,
			ModuleWorkOrders:     tripleViewEdit,
		},
	},
	RoleRspProd: {
		base: tripleView,
		overrides: map[Module]Triple{
			ModuleWorkOrders:           tripleViewEdit,
			ModuleInterventionRequests: tripleViewEdit,
			ModuleImprovementRequests:  tripleViewEdit,
			ModulePlanning:             tripleViewEdit,
		},
	},
	RoleTechnicien: {
		base: tripleViewEdit,
		overrides: map[Module]Triple{
			ModulePeople:       tripleView,
			ModuleImportExport: tripleView,
		},
	},
	RoleProd: {
		base: tripleView,
		overrides: map[Module]Triple{
			ModuleInterventionRequests: tripleViewEdit,
			ModulePresquaccident:       tripleViewEdit,
		},
	},
	RoleIndus: {
		base: tripleView,
		overrides: map[Module]Triple{
			ModuleAssets:              tripleViewEdit,
			ModuleImprovements:        tripleViewEdit,
			ModuleImprovementRequests: tripleViewEdit,
		},
	},
	RoleLogistique: {
		base: tripleView,
		overrides: map[Module]Triple{
			ModuleInventory:       tripleViewEdit,
			ModulePurchaseHistory: tripleViewEdit,
			ModuleVendors:         tripleViewEdit,
		},
	},
	RoleLabo: {
		base: tripleView,
		overrides: map[Module]Triple{
			ModuleMeters:       tripleViewEdit,
			ModuleSurveillance: tripleViewEdit,
		},
	},
	RoleADV: {
		base: tripleView,
		overrides: map[Module]Triple{
			ModuleVendors:         tripleViewEdit,
			ModulePurchaseHistory: tripleViewEdit,
		},
	},
	RoleVisualiseur: {base: tripleView},
}

// DefaultsForRole returns the baseline permission set for a role. The result
// is total over Modules and freshly allocated on every call. Unknown roles
// get an all-deny set rather than an error: a corrupted role column must
// never widen access.
func DefaultsForRole(role Role) PermissionSet {
	defaults, ok := roleDefaults[role]
	set := make(PermissionSet, len(Modules))
	for _, m := range Modules {
		if !ok {
			set[m] = tripleNone
			continue
		}
		if t, found := defaults.overrides[m]; found {
			set[m] = t
		} else {
			set[m] = defaults.base
		}
	}
	return set
}

// Effective combines stored per-identity module rows with the identity's
// role defaults. Stored rows win for the modules they cover; modules with
// no stored row are synthesised from the defaults. The result is total over
// Modules. Effective is a pure read: it never writes the synthesised rows
// back (BackfillPermissions does that, once, at startup).
func Effective(role Role, stored PermissionSet) PermissionSet {
	set := DefaultsForRole(role)
	for m, t := range stored {
		if IsValidModule(m) {
			set[m] = t
		}
	}
	return set
}
