// Package worker hosts the background recalculation of player balances.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"teamkasse/internal/amqp"
	"teamkasse/internal/export"
	"teamkasse/internal/ledger"
	"teamkasse/internal/services"
)

// BalanceWorker recomputes denormalized balances, on demand via AMQP
// messages and periodically as a safety net for lost messages.
type BalanceWorker struct {
	balances *services.BalanceService
	exporter export.SnapshotExporter // nil disables snapshot export
}

func NewBalanceWorker(balances *services.BalanceService, exporter export.SnapshotExporter) *BalanceWorker {
	return &BalanceWorker{
		balances: balances,
		exporter: exporter,
	}
}

// HandleRecalcMessage processes a single recalc request. An empty player
// id means recompute everyone.
func (w *BalanceWorker) HandleRecalcMessage(ctx context.Context, msg *amqp.BalanceRecalcMessage) error {
	slog.InfoContext(ctx, "Processing recalc message",
		"player_id", msg.PlayerID,
		"reason", msg.Reason)

	if msg.PlayerID != "" {
		if err := w.balances.UpdatePlayerBalance(ctx, msg.PlayerID); err != nil {
			return fmt.Errorf("recalc player %s: %w", msg.PlayerID, err)
		}
		return nil
	}
	return w.RecalcAll(ctx)
}

// RecalcAll recomputes every player's balance and exports a snapshot
// when an exporter is configured. Export failures are logged only; the
// balances are already persisted.
func (w *BalanceWorker) RecalcAll(ctx context.Context) error {
	updated, err := w.balances.UpdatePlayersWithCalculatedBalances(ctx)
	if err != nil {
		return fmt.Errorf("recalc all players: %w", err)
	}

	if w.exporter != nil {
		if err := w.exportSnapshot(ctx); err != nil {
			slog.ErrorContext(ctx, "Snapshot export failed", "error", err)
		}
	}

	slog.InfoContext(ctx, "Full recalc completed", "updated", updated)
	return nil
}

func (w *BalanceWorker) exportSnapshot(ctx context.Context) error {
	players, err := w.balances.Store().ListPlayers(ctx)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	breakdowns, err := w.balances.Breakdowns(ctx)
	if err != nil {
		return fmt.Errorf("compute breakdowns: %w", err)
	}

	rows := make([]export.SnapshotRow, 0, len(players))
	for _, p := range players {
		b, ok := breakdowns[p.ID]
		if !ok {
			b = ledger.AggregateFor(p.ID, ledger.Input{}, w.balances.Options())
		}
		rows = append(rows, export.SnapshotRow{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			Breakdown:  b,
		})
	}
	return w.exporter.ExportSnapshot(ctx, rows)
}

// RunPeriodic recomputes all balances on a fixed interval until the
// context is cancelled. It runs one recalc immediately on start so a
// restarted worker converges without waiting a full interval.
func (w *BalanceWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	if err := w.RecalcAll(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup recalc failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.RecalcAll(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic recalc failed", "error", err)
			}
		case <-ctx.Done():
			slog.InfoContext(ctx, "Periodic recalc stopped")
			return
		}
	}
}
