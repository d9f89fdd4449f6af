// Package auth provides authentication and authorisation for Iris Core.
//
// It implements a closed 11-role organisational model with:
//   - bcrypt password hashing with a configurable, deployment-tuned cost factor
//   - Bounded-retry credential verification for constrained environments
//   - Stateless HS256 JWT access and invitation tokens (7-day default TTL)
//   - A per-role, per-module {view, edit, delete} permission matrix with
//     per-identity overrides stored module-by-module
//   - A request guard that re-checks live identity state on every call,
//     so deactivating an account takes effect before its tokens expire
//   - An ownership/assignment policy narrowing module-level grants to
//     "your own records", with a status-only channel for assignees
//
// Role defaults are the single source of truth for the authorisation model:
// every identity starts from DefaultsForRole and admins adjust individual
// module bits from there. Modules introduced after an identity was created
// are synthesised from the role defaults on read and persisted by the
// idempotent backfill migration, never silently denied.
package auth
