package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"teamkasse/internal/core"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// Ports for the persistence layer. The SQLite repository and the
// in-memory store both satisfy them; services depend on the interfaces
// only.
type (
	PlayerStore interface {
		CreatePlayer(ctx context.Context, p core.Player) error
		ListPlayers(ctx context.Context) ([]core.Player, error)
		// UpdatePlayerBalance writes the denormalized balance computed
		// by the balance service.
		UpdatePlayerBalance(ctx context.Context, playerID string, balance decimal.Decimal) error
	}

	// LedgerReader supplies the fully materialized collections the
	// aggregator folds over.
	LedgerReader interface {
		ListPayments(ctx context.Context) ([]core.Payment, error)
		ListFines(ctx context.Context) ([]core.Fine, error)
		ListDues(ctx context.Context) ([]core.Due, error)
		ListDuePayments(ctx context.Context) ([]core.DuePayment, error)
		ListConsumptions(ctx context.Context) ([]core.BeverageConsumption, error)
	}

	LedgerWriter interface {
		CreatePayment(ctx context.Context, p core.Payment) error
		CreateFine(ctx context.Context, f core.Fine) error
		CreateDue(ctx context.Context, d core.Due) error
		CreateDuePayment(ctx context.Context, dp core.DuePayment) error
		CreateConsumption(ctx context.Context, bc core.BeverageConsumption) error

		MarkPaymentPaid(ctx context.Context, id string) error
		MarkFinePaid(ctx context.Context, id string) error
		MarkDuePaymentPaid(ctx context.Context, id string) error
		MarkConsumptionPaid(ctx context.Context, id string) error
	}

	Store interface {
		PlayerStore
		LedgerReader
		LedgerWriter
	}
)
