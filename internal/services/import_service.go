package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"teamkasse/internal/core"
	"teamkasse/internal/importer"
	"teamkasse/internal/storage"
)

// ImportService converts punishment CSV exports into stored records and
// triggers a balance recalc afterwards.
type ImportService struct {
	store     storage.Store
	publisher RecalcPublisher
}

func NewImportService(store storage.Store, publisher RecalcPublisher) *ImportService {
	return &ImportService{
		store:     store,
		publisher: publisher,
	}
}

// ImportPunishments parses and persists one export file. Records are
// saved first; the recalc message is best-effort and never fails an
// import that already reached storage.
func (s *ImportService) ImportPunishments(ctx context.Context, r io.Reader) (importer.Result, error) {
	res, err := importer.Parse(ctx, r)
	if err != nil {
		return importer.Result{}, fmt.Errorf("parse import: %w", err)
	}

	if err := s.ensurePlayers(ctx, res.Players); err != nil {
		return res, err
	}

	for _, p := range res.Payments {
		if err := s.store.CreatePayment(ctx, p); err != nil {
			return res, fmt.Errorf("save payment: %w", err)
		}
	}
	for _, f := range res.Fines {
		if err := s.store.CreateFine(ctx, f); err != nil {
			return res, fmt.Errorf("save fine: %w", err)
		}
	}

	slog.InfoContext(ctx, "Punishment import saved",
		"payments", len(res.Payments),
		"fines", len(res.Fines),
		"skipped", res.Skipped)

	if s.publisher != nil {
		if err := s.publisher.PublishBalanceRecalc(ctx, "", "import"); err != nil {
			slog.ErrorContext(ctx, "Failed to publish recalc after import", "error", err)
			// Don't fail the import - records are saved locally
		}
	}

	return res, nil
}

// ensurePlayers creates the players referenced by the import that are
// not stored yet. Existing players are left untouched so their
// denormalized balances survive repeated imports.
func (s *ImportService) ensurePlayers(ctx context.Context, players []core.Player) error {
	existing, err := s.store.ListPlayers(ctx)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, p := range existing {
		known[p.ID] = true
	}

	created := 0
	for _, p := range players {
		if known[p.ID] {
			continue
		}
		if err := s.store.CreatePlayer(ctx, p); err != nil {
			return fmt.Errorf("create player %s: %w", p.ID, err)
		}
		created++
	}
	if created > 0 {
		slog.InfoContext(ctx, "Players created from import", "created", created)
	}
	return nil
}
