// Package export defines the ports for sharing balance snapshots with
// external systems.
package export

import (
	"context"

	"teamkasse/internal/ledger"
)

// SnapshotRow is one player's state at export time.
type SnapshotRow struct {
	PlayerID   string
	PlayerName string
	Breakdown  ledger.Breakdown
}

// SnapshotExporter appends a dated snapshot of all player balances to an
// external sink. The worker calls it after a full recompute.
type SnapshotExporter interface {
	ExportSnapshot(ctx context.Context, rows []SnapshotRow) error
}
