// Package database opens and manages the Iris Core SQLite database.
//
// The database is a single file holding identities, their permission rows,
// work orders, and the audit trail. WAL mode keeps reads flowing while the
// single writer commits, and foreign keys are always enforced because
// permission rows cascade from identities.
//
// Schema changes ship as embedded up/down migration pairs and are applied
// at startup by Migrate. Migrations are additive: new columns get defaults,
// existing columns are never dropped or renamed, so an older binary can
// still read a newer file.
//
// Credential digests live in this file, so it is created with owner-only
// permissions.
package database
