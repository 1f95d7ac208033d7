package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// CategoryUnset marks legacy payments without an explicit category;
	// the ledger falls back to reason-text matching for those.
	CategoryUnset      PaymentCategory = ""
	CategoryDeposit    PaymentCategory = "deposit"
	CategorySettlement PaymentCategory = "settlement"
	CategoryTransfer   PaymentCategory = "transfer"
)

const (
	FineRegular  FineKind = "regular"
	FineBeverage FineKind = "beverage"
)

type (
	// PaymentCategory tags a payment record. Values outside the known set
	// may arrive from old imports; they are kept verbatim and excluded
	// from credit totals.
	PaymentCategory string

	// FineKind discriminates regular fines from beverage charges that were
	// recorded in the fines collection.
	FineKind string

	Player struct {
		ID      string
		Name    string
		Balance decimal.Decimal // denormalized, recomputed by the balance service
	}

	// Payment is a one-time credit or transfer event for a player.
	Payment struct {
		ID       string
		PlayerID string
		Reason   string
		Amount   decimal.Decimal
		Date     time.Time
		Paid     bool
		PaidAt   time.Time // zero when unpaid
		Category PaymentCategory
	}

	Fine struct {
		ID         string
		PlayerID   string
		Reason     string
		Amount     decimal.Decimal
		AmountPaid decimal.Decimal // partial-payment running total, zero when absent
		Date       time.Time
		Paid       bool
		Kind       FineKind
	}

	// Due is a recurring obligation definition shared by all players,
	// not itself a per-player transaction.
	Due struct {
		ID        string
		Name      string
		Amount    decimal.Decimal
		CreatedAt time.Time
		Active    bool
		Archived  bool
	}

	// DuePayment is one player's obligation instance against a Due.
	DuePayment struct {
		ID         string
		DueID      string
		PlayerID   string
		AmountDue  decimal.Decimal
		AmountPaid decimal.Decimal
		Paid       bool
		Exempt     bool
		CreatedAt  time.Time
	}

	BeverageConsumption struct {
		ID         string
		PlayerID   string
		BeverageID string
		Amount     decimal.Decimal
		AmountPaid decimal.Decimal
		Date       time.Time
		Paid       bool
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyReason   = errors.New("empty reason")
	ErrEmptyName     = errors.New("empty name")
	ErrMissingPlayer = errors.New("missing player id")
	ErrMissingDue    = errors.New("missing due id")
)

// Known reports whether the category is one of the recognized values.
// CategoryUnset is not a known category, it is the absence of one.
func (c PaymentCategory) Known() bool {
	switch c {
	case CategoryDeposit, CategorySettlement, CategoryTransfer:
		return true
	}
	return false
}

// IsCredit reports whether a categorized payment counts toward open credit.
func (c PaymentCategory) IsCredit() bool {
	return c == CategoryDeposit || c == CategorySettlement
}

func (k FineKind) IsBeverage() bool {
	return k == FineBeverage
}

func (p Payment) Validate() error {
	if strings.TrimSpace(p.PlayerID) == "" {
		return ErrMissingPlayer
	}
	if len(strings.TrimSpace(p.Reason)) == 0 {
		return ErrEmptyReason
	}
	if len(p.Reason) > 200 {
		return errors.New("reason too long (max 200 characters)")
	}
	if p.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (f Fine) Validate() error {
	if strings.TrimSpace(f.PlayerID) == "" {
		return ErrMissingPlayer
	}
	if len(strings.TrimSpace(f.Reason)) == 0 {
		return ErrEmptyReason
	}
	if len(f.Reason) > 200 {
		return errors.New("reason too long (max 200 characters)")
	}
	if f.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if f.AmountPaid.Sign() < 0 {
		return ErrInvalidAmount
	}
	switch f.Kind {
	case FineRegular, FineBeverage:
	default:
		return errors.New("invalid fine kind")
	}
	return nil
}

func (d Due) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	if d.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Chargeable reports whether obligations against this due still count
// toward player liabilities. Archived or deactivated dues gate their
// due-payments regardless of the child's own flags.
func (d Due) Chargeable() bool {
	return d.Active && !d.Archived
}

func (dp DuePayment) Validate() error {
	if strings.TrimSpace(dp.PlayerID) == "" {
		return ErrMissingPlayer
	}
	if strings.TrimSpace(dp.DueID) == "" {
		return ErrMissingDue
	}
	if dp.AmountDue.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if dp.AmountPaid.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (bc BeverageConsumption) Validate() error {
	if strings.TrimSpace(bc.PlayerID) == "" {
		return ErrMissingPlayer
	}
	if bc.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if bc.AmountPaid.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}
