package auth

// Owned is implemented by records that track who created them.
type Owned interface {
	OwnerID() string
}

// Assignable is implemented by records that can be delegated to an
// identity, such as work orders.
type Assignable interface {
	Owned
	AssigneeID() string
}

// CanEditRecord applies the ownership policy on top of a module-level edit
// grant: admins may edit any record, everyone else only records they
// created. Callers must have already passed the module permission check.
func CanEditRecord(identity *Identity, record Owned) bool {
	if identity.Role == RoleAdmin {
		return true
	}
	return record.OwnerID() == identity.ID
}

// CanTransitionStatus decides whether an identity may change the status of
// an assignable record. The policy is deliberately narrower than a general
// edit:
//   - ADMIN: always.
//   - TECHNICIEN: only records they created.
//   - VISUALISEUR: only records assigned to them, and status is the only
//     field this grant covers.
//   - every other role: never through this channel; they go through the
//     module edit permission and CanEditRecord instead.
func CanTransitionStatus(identity *Identity, record Assignable) bool {
	switch identity.Role {
	case RoleAdmin:
		return true
	case RoleTechnicien:
		return record.OwnerID() == identity.ID
	case RoleVisualiseur:
		return StatusOnlyTransition(identity, record)
	default:
		return false
	}
}

// StatusOnlyTransition reports whether the identity's right to touch the
// record is limited to the status field. True only for an assigned
// visualiseur; any broader grant covers status anyway.
func StatusOnlyTransition(identity *Identity, record Assignable) bool {
	return identity.Role == RoleVisualiseur && record.AssigneeID() == identity.ID
}
