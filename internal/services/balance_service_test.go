package services

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"teamkasse/internal/core"
	"teamkasse/internal/ledger"
	"teamkasse/internal/storage"
)

type recordingPublisher struct {
	mu    sync.Mutex
	calls []string
}

func (p *recordingPublisher) PublishBalanceRecalc(_ context.Context, playerID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, playerID+"/"+reason)
	return nil
}

func seedStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()

	players := []core.Player{
		{ID: "u1", Name: "Max"},
		{ID: "u2", Name: "Tom"},
		{ID: "u3", Name: "Ben"},
	}
	for _, p := range players {
		if err := store.CreatePlayer(ctx, p); err != nil {
			t.Fatalf("seed player: %v", err)
		}
	}

	if err := store.CreatePayment(ctx, core.Payment{
		ID: "p1", PlayerID: "u1", Reason: "Guthaben",
		Amount: decimal.NewFromInt(50),
	}); err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	if err := store.CreateFine(ctx, core.Fine{
		ID: "f1", PlayerID: "u1", Reason: "Zu spät",
		Amount: decimal.NewFromInt(10), AmountPaid: decimal.NewFromInt(3),
		Kind: core.FineRegular,
	}); err != nil {
		t.Fatalf("seed fine: %v", err)
	}
	if err := store.CreateFine(ctx, core.Fine{
		ID: "f2", PlayerID: "u2", Reason: "Bier",
		Amount: decimal.NewFromInt(5), Kind: core.FineBeverage,
	}); err != nil {
		t.Fatalf("seed fine: %v", err)
	}
	if err := store.CreateDue(ctx, core.Due{
		ID: "d1", Name: "Season Dues 2024", Amount: decimal.NewFromInt(50), Active: true,
	}); err != nil {
		t.Fatalf("seed due: %v", err)
	}
	if err := store.CreateDuePayment(ctx, core.DuePayment{
		ID: "dp1", DueID: "d1", PlayerID: "u2", AmountDue: decimal.NewFromInt(50),
	}); err != nil {
		t.Fatalf("seed due payment: %v", err)
	}
	return store
}

func playerBalances(t *testing.T, store *storage.MemoryStore) map[string]decimal.Decimal {
	t.Helper()
	players, err := store.ListPlayers(context.Background())
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	out := make(map[string]decimal.Decimal, len(players))
	for _, p := range players {
		out[p.ID] = p.Balance
	}
	return out
}

func TestBreakdown(t *testing.T) {
	svc := NewBalanceService(seedStore(t), nil, ledger.Options{})

	b, err := svc.Breakdown(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Breakdown() error: %v", err)
	}
	if !b.Guthaben.Equal(decimal.NewFromInt(50)) {
		t.Errorf("guthaben = %s, want 50", b.Guthaben)
	}
	if !b.Fines.Equal(decimal.NewFromInt(7)) {
		t.Errorf("fines = %s, want 7", b.Fines)
	}
	if !b.Balance.Equal(decimal.NewFromInt(43)) {
		t.Errorf("balance = %s, want 43", b.Balance)
	}
}

func TestBreakdown_UnknownPlayerIsZero(t *testing.T) {
	svc := NewBalanceService(seedStore(t), nil, ledger.Options{})
	b, err := svc.Breakdown(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Breakdown() error: %v", err)
	}
	if !b.Balance.IsZero() {
		t.Errorf("balance = %s, want 0", b.Balance)
	}
}

func TestUpdatePlayersWithCalculatedBalances(t *testing.T) {
	store := seedStore(t)
	svc := NewBalanceService(store, nil, ledger.Options{})

	updated, err := svc.UpdatePlayersWithCalculatedBalances(context.Background())
	if err != nil {
		t.Fatalf("UpdatePlayersWithCalculatedBalances() error: %v", err)
	}
	// u1: 50-7=43, u2: -(5+50)=-55, u3 stays at 0 (no records, no write)
	if updated != 2 {
		t.Errorf("updated = %d, want 2", updated)
	}

	balances := playerBalances(t, store)
	if !balances["u1"].Equal(decimal.NewFromInt(43)) {
		t.Errorf("u1 balance = %s, want 43", balances["u1"])
	}
	if !balances["u2"].Equal(decimal.NewFromInt(-55)) {
		t.Errorf("u2 balance = %s, want -55", balances["u2"])
	}
	if !balances["u3"].IsZero() {
		t.Errorf("u3 balance = %s, want 0", balances["u3"])
	}

	// Second run is a no-op: everything already matches.
	updated, err = svc.UpdatePlayersWithCalculatedBalances(context.Background())
	if err != nil {
		t.Fatalf("second run error: %v", err)
	}
	if updated != 0 {
		t.Errorf("second run updated = %d, want 0", updated)
	}
}

func TestUpdatePlayerBalance(t *testing.T) {
	store := seedStore(t)
	svc := NewBalanceService(store, nil, ledger.Options{})

	if err := svc.UpdatePlayerBalance(context.Background(), "u2"); err != nil {
		t.Fatalf("UpdatePlayerBalance() error: %v", err)
	}
	balances := playerBalances(t, store)
	if !balances["u2"].Equal(decimal.NewFromInt(-55)) {
		t.Errorf("u2 balance = %s, want -55", balances["u2"])
	}
	// Others untouched
	if !balances["u1"].IsZero() {
		t.Errorf("u1 balance = %s, want untouched 0", balances["u1"])
	}
}

func TestNotifyRecalc(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewBalanceService(storage.NewMemoryStore(), pub, ledger.Options{})

	svc.NotifyRecalc(context.Background(), "u1", "payment-created")
	if len(pub.calls) != 1 || pub.calls[0] != "u1/payment-created" {
		t.Errorf("publisher calls = %v", pub.calls)
	}

	// Nil publisher must not panic.
	none := NewBalanceService(storage.NewMemoryStore(), nil, ledger.Options{})
	none.NotifyRecalc(context.Background(), "u1", "payment-created")
}
