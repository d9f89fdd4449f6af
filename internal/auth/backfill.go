package auth

import (
	"context"
	"fmt"
	"log/slog"
)

// BackfillPermissions writes role-default permission rows for every
// identity/module pair that has no stored row yet. Run at startup after
// migrations so identities created before a module existed get explicit
// rows instead of relying on read-time synthesis forever.
//
// The operation is idempotent and safe under concurrency: rows are written
// with insert-if-absent semantics, so an existing row, including one
// written by a concurrent backfill or an admin override racing the startup,
// is never overwritten. A second run inserts nothing.
//
// Returns the number of rows inserted.
func BackfillPermissions(ctx context.Context, repo IdentityRepository, logger *slog.Logger) (int, error) {
	identities, err := repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing identities for backfill: %w", err)
	}

	inserted := 0
	for _, identity := range identities {
		defaults := DefaultsForRole(identity.Role)
		for _, module := range Modules {
			ok, err := repo.InsertPermissionIfAbsent(ctx, identity.ID, module, defaults[module])
			if err != nil {
				return inserted, fmt.Errorf("backfilling %s/%s: %w", identity.ID, module, err)
			}
			if ok {
				inserted++
			}
		}
	}

	if inserted > 0 {
		logger.Info("permission backfill complete",
			"identities", len(identities),
			"rows_inserted", inserted,
		)
	}

	return inserted, nil
}
