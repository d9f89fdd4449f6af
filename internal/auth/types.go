package auth

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// emailPattern is a deliberately loose format check: one @, no spaces,
// something on both sides. Real validation happens when the invitation
// email is delivered.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// maxEmailLength is the maximum allowed login email length.
const maxEmailLength = 254

// IsValidEmail checks if a login email meets format requirements.
func IsValidEmail(email string) bool {
	return len(email) <= maxEmailLength && emailPattern.MatchString(email)
}

// NormaliseEmail lowercases and trims a login email for storage and lookup.
func NormaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Role represents an organisational category in the system.
// Each identity carries exactly one role; the role drives default permissions.
type Role string

const (
	// RoleAdmin has full system control and bypasses the permission matrix.
	RoleAdmin Role = "ADMIN"

	// RoleDirecteur has global read visibility plus reporting/planning edits.
	RoleDirecteur Role = "DIRECTEUR"

	// RoleQHSE owns safety and quality: incidents, surveillance plans,
	// controlled documentation.
	RoleQHSE Role = "QHSE"

	// RoleRspProd is a production supervisor: work orders, intervention and
	// improvement requests, planning.
	RoleRspProd Role = "RSP_PROD"

	// RoleTechnicien executes maintenance work. Full edit on operational
	// modules but no deletions and no people management.
	RoleTechnicien Role = "TECHNICIEN"

	// RoleProd is a production operator: raises intervention requests and
	// near-miss reports.
	RoleProd Role = "PROD"

	// RoleIndus is an industrialisation engineer: equipment and improvements.
	RoleIndus Role = "INDUS"

	// RoleLogistique manages stock, purchases, and suppliers.
	RoleLogistique Role = "LOGISTIQUE"

	// RoleLabo is laboratory staff: meters and surveillance readings.
	RoleLabo Role = "LABO"

	// RoleADV is sales administration: suppliers and purchase history.
	RoleADV Role = "ADV"

	// RoleVisualiseur is read-only everywhere. An assigned visualiseur may
	// still move the status of a work order delegated to them (see
	// CanTransitionStatus).
	RoleVisualiseur Role = "VISUALISEUR"
)

// Roles is the closed set of valid roles, in privilege order.
var Roles = []Role{
	RoleAdmin, RoleDirecteur, RoleQHSE, RoleRspProd, RoleTechnicien,
	RoleProd, RoleIndus, RoleLogistique, RoleLabo, RoleADV, RoleVisualiseur,
}

// IsValidRole returns true if the role belongs to the closed role set.
func IsValidRole(r Role) bool {
	for _, v := range Roles {
		if r == v {
			return true
		}
	}
	return false
}

// Identity represents a durable principal: a human account with a unique
// login email, a role, and an activation state.
//
// Identities are normally deactivated rather than hard-deleted, preserving
// referential history. Hard deletion is a separate admin-gated operation.
type Identity struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Phone        string     `json:"phone,omitempty"`
	PasswordHash string     `json:"-"` // never serialised
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	InvitedAt    *time.Time `json:"invited_at,omitempty"` // set while invitation is pending
	CreatedBy    string     `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// PendingInvitation reports whether the identity was invited but has not yet
// completed registration. Pending identities cannot log in.
func (i *Identity) PendingInvitation() bool {
	return i.InvitedAt != nil && !i.IsActive
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrIdentityInactive   = errors.New("identity account is inactive")
	ErrEmailExists        = errors.New("email already registered")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrMalformedDigest    = errors.New("malformed credential digest")
	ErrVerifyExhausted    = errors.New("credential verification failed after retries")
	ErrUnknownModule      = errors.New("unknown permission module")
)
