// Package services provides the orchestration layer between storage,
// the ledger engine and messaging.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"teamkasse/internal/ledger"
	"teamkasse/internal/storage"
)

// balanceUpdateWorkers bounds concurrent balance write-backs.
const balanceUpdateWorkers = 4

// RecalcPublisher publishes balance recalc requests; *amqp.Client
// satisfies it. A nil publisher disables messaging.
type RecalcPublisher interface {
	PublishBalanceRecalc(ctx context.Context, playerID, reason string) error
}

// BalanceService computes breakdowns from stored collections and
// maintains the denormalized per-player balance.
type BalanceService struct {
	store     storage.Store
	publisher RecalcPublisher
	opts      ledger.Options
}

func NewBalanceService(store storage.Store, publisher RecalcPublisher, opts ledger.Options) *BalanceService {
	return &BalanceService{
		store:     store,
		publisher: publisher,
		opts:      opts,
	}
}

// LoadInput materializes all ledger collections from storage.
func (s *BalanceService) LoadInput(ctx context.Context) (ledger.Input, error) {
	payments, err := s.store.ListPayments(ctx)
	if err != nil {
		return ledger.Input{}, fmt.Errorf("load payments: %w", err)
	}
	fines, err := s.store.ListFines(ctx)
	if err != nil {
		return ledger.Input{}, fmt.Errorf("load fines: %w", err)
	}
	dues, err := s.store.ListDues(ctx)
	if err != nil {
		return ledger.Input{}, fmt.Errorf("load dues: %w", err)
	}
	duePayments, err := s.store.ListDuePayments(ctx)
	if err != nil {
		return ledger.Input{}, fmt.Errorf("load due payments: %w", err)
	}
	consumptions, err := s.store.ListConsumptions(ctx)
	if err != nil {
		return ledger.Input{}, fmt.Errorf("load consumptions: %w", err)
	}
	return ledger.Input{
		Payments:     payments,
		Fines:        fines,
		Dues:         dues,
		DuePayments:  duePayments,
		Consumptions: consumptions,
	}, nil
}

// Breakdown computes the balance breakdown of a single player.
func (s *BalanceService) Breakdown(ctx context.Context, playerID string) (ledger.Breakdown, error) {
	in, err := s.LoadInput(ctx)
	if err != nil {
		return ledger.Breakdown{}, err
	}
	return ledger.AggregateFor(playerID, in, s.opts), nil
}

// Breakdowns computes breakdowns for every player with records.
func (s *BalanceService) Breakdowns(ctx context.Context) (map[string]ledger.Breakdown, error) {
	in, err := s.LoadInput(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.Aggregate(in, s.opts), nil
}

// UpdatePlayersWithCalculatedBalances recomputes every player's balance
// and writes back the ones that changed. Returns the number of players
// updated.
func (s *BalanceService) UpdatePlayersWithCalculatedBalances(ctx context.Context) (int, error) {
	in, err := s.LoadInput(ctx)
	if err != nil {
		return 0, err
	}
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return 0, fmt.Errorf("load players: %w", err)
	}

	breakdowns := ledger.Aggregate(in, s.opts)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(balanceUpdateWorkers)
	updates := make([]bool, len(players))
	for i, p := range players {
		// A player without records gets the zero breakdown.
		balance := ledger.PlayerBalance(p.ID, ledger.Input{}, s.opts)
		if b, ok := breakdowns[p.ID]; ok {
			balance = b.Balance
		}
		if p.Balance.Equal(balance) {
			continue
		}
		i, p, balance := i, p, balance
		g.Go(func() error {
			if err := s.store.UpdatePlayerBalance(gctx, p.ID, balance); err != nil {
				return fmt.Errorf("player %s: %w", p.ID, err)
			}
			updates[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("update balances: %w", err)
	}

	updated := 0
	for _, u := range updates {
		if u {
			updated++
		}
	}
	slog.InfoContext(ctx, "Player balances recalculated",
		"players", len(players),
		"updated", updated)
	return updated, nil
}

// UpdatePlayerBalance recomputes and persists one player's balance.
func (s *BalanceService) UpdatePlayerBalance(ctx context.Context, playerID string) error {
	in, err := s.LoadInput(ctx)
	if err != nil {
		return err
	}
	balance := ledger.PlayerBalance(playerID, in, s.opts)
	if err := s.store.UpdatePlayerBalance(ctx, playerID, balance); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	return nil
}

// NotifyRecalc publishes a recalc request. Publishing failures are
// logged, not propagated: the write that triggered the recalc already
// succeeded and must not be failed retroactively.
func (s *BalanceService) NotifyRecalc(ctx context.Context, playerID, reason string) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Recalc publisher not available, skipping message",
			"player_id", playerID, "reason", reason)
		return
	}
	if err := s.publisher.PublishBalanceRecalc(ctx, playerID, reason); err != nil {
		slog.ErrorContext(ctx, "Failed to publish recalc message",
			"player_id", playerID, "reason", reason, "error", err)
	}
}

// Store exposes the underlying store for handlers that create records.
func (s *BalanceService) Store() storage.Store {
	return s.store
}

// Options returns the credit-counting rule the service was built with.
func (s *BalanceService) Options() ledger.Options {
	return s.opts
}
