package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"teamkasse/internal/core"
)

// MemoryStore is an in-memory Store used by tests and the "memory"
// data backend. Safe for concurrent use.
type MemoryStore struct {
	mu           sync.RWMutex
	players      map[string]core.Player
	payments     map[string]core.Payment
	fines        map[string]core.Fine
	dues         map[string]core.Due
	duePayments  map[string]core.DuePayment
	consumptions map[string]core.BeverageConsumption
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players:      make(map[string]core.Player),
		payments:     make(map[string]core.Payment),
		fines:        make(map[string]core.Fine),
		dues:         make(map[string]core.Due),
		duePayments:  make(map[string]core.DuePayment),
		consumptions: make(map[string]core.BeverageConsumption),
	}
}

func (s *MemoryStore) CreatePlayer(_ context.Context, p core.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.ID] = p
	return nil
}

func (s *MemoryStore) ListPlayers(_ context.Context) ([]core.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	return out, nil
}

func (s *MemoryStore) UpdatePlayerBalance(_ context.Context, playerID string, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return fmt.Errorf("update player balance %s: %w", playerID, ErrNotFound)
	}
	p.Balance = balance
	s.players[playerID] = p
	return nil
}

func (s *MemoryStore) CreatePayment(_ context.Context, p core.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = p
	return nil
}

func (s *MemoryStore) ListPayments(_ context.Context) ([]core.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p)
	}
	return out, nil
}

func (s *MemoryStore) MarkPaymentPaid(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return fmt.Errorf("payment %s: %w", id, ErrNotFound)
	}
	p.Paid = true
	p.PaidAt = time.Now().UTC()
	s.payments[id] = p
	return nil
}

func (s *MemoryStore) CreateFine(_ context.Context, f core.Fine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fines[f.ID] = f
	return nil
}

func (s *MemoryStore) ListFines(_ context.Context) ([]core.Fine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Fine, 0, len(s.fines))
	for _, f := range s.fines {
		out = append(out, f)
	}
	return out, nil
}

func (s *MemoryStore) MarkFinePaid(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fines[id]
	if !ok {
		return fmt.Errorf("fine %s: %w", id, ErrNotFound)
	}
	f.Paid = true
	s.fines[id] = f
	return nil
}

func (s *MemoryStore) CreateDue(_ context.Context, d core.Due) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dues[d.ID] = d
	return nil
}

func (s *MemoryStore) ListDues(_ context.Context) ([]core.Due, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Due, 0, len(s.dues))
	for _, d := range s.dues {
		out = append(out, d)
	}
	return out, nil
}

func (s *MemoryStore) CreateDuePayment(_ context.Context, dp core.DuePayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duePayments[dp.ID] = dp
	return nil
}

func (s *MemoryStore) ListDuePayments(_ context.Context) ([]core.DuePayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.DuePayment, 0, len(s.duePayments))
	for _, dp := range s.duePayments {
		out = append(out, dp)
	}
	return out, nil
}

func (s *MemoryStore) MarkDuePaymentPaid(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dp, ok := s.duePayments[id]
	if !ok {
		return fmt.Errorf("due payment %s: %w", id, ErrNotFound)
	}
	dp.Paid = true
	s.duePayments[id] = dp
	return nil
}

func (s *MemoryStore) CreateConsumption(_ context.Context, bc core.BeverageConsumption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumptions[bc.ID] = bc
	return nil
}

func (s *MemoryStore) ListConsumptions(_ context.Context) ([]core.BeverageConsumption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.BeverageConsumption, 0, len(s.consumptions))
	for _, bc := range s.consumptions {
		out = append(out, bc)
	}
	return out, nil
}

func (s *MemoryStore) MarkConsumptionPaid(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bc, ok := s.consumptions[id]
	if !ok {
		return fmt.Errorf("consumption %s: %w", id, ErrNotFound)
	}
	bc.Paid = true
	s.consumptions[id] = bc
	return nil
}
