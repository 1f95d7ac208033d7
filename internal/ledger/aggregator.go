package ledger

import (
	"strings"

	"github.com/shopspring/decimal"

	"teamkasse/internal/core"
)

// Breakdown is the computed balance of one player. All amounts are
// open (unpaid) amounts; balance = totalCredits - totalLiabilities.
type Breakdown struct {
	Guthaben         decimal.Decimal `json:"guthaben"`
	GuthabenRest     decimal.Decimal `json:"guthabenRest"`
	Fines            decimal.Decimal `json:"fines"`
	Dues             decimal.Decimal `json:"dues"`
	Beverages        decimal.Decimal `json:"beverages"`
	TotalCredits     decimal.Decimal `json:"totalCredits"`
	TotalLiabilities decimal.Decimal `json:"totalLiabilities"`
	Balance          decimal.Decimal `json:"balance"`
}

// Input carries the fully materialized collections the aggregator folds
// over. Beverage debt may arrive either as beverage-flagged fines, as a
// separate consumption collection, or both; all shapes feed the same
// reducer. Dues is the parent lookup set for DuePayments.
type Input struct {
	Payments     []core.Payment
	Fines        []core.Fine
	DuePayments  []core.DuePayment
	Consumptions []core.BeverageConsumption
	Dues         []core.Due
}

// Options controls the credit-counting rule.
type Options struct {
	// LegacyCreditFallback additionally counts paid, uncategorized
	// payments as credit via reason matching. Historical data was
	// written under that rule; new data is not. Default off: only
	// unpaid payments count as open credit.
	LegacyCreditFallback bool
}

type creditBucket int

const (
	creditNone creditBucket = iota
	creditGuthaben
	creditGuthabenRest
)

type liabilityBucket int

const (
	bucketFines liabilityBucket = iota
	bucketDues
	bucketBeverages
)

// liability is the sum-type view every debt record reduces to:
// regular fines, beverage fines, due payments and consumptions all
// become (player, bucket, remaining) entries.
type liability struct {
	playerID  string
	bucket    liabilityBucket
	remaining decimal.Decimal
}

// Aggregate computes a breakdown for every player id encountered in any
// input collection. Callers must treat a missing key as the zero
// breakdown. Inputs are never mutated.
func Aggregate(in Input, opts Options) map[string]Breakdown {
	dueByID := make(map[string]core.Due, len(in.Dues))
	for _, d := range in.Dues {
		dueByID[d.ID] = d
	}

	acc := make(map[string]*Breakdown)
	touch := func(playerID string) *Breakdown {
		b, ok := acc[playerID]
		if !ok {
			b = &Breakdown{}
			acc[playerID] = b
		}
		return b
	}

	for _, p := range in.Payments {
		b := touch(p.PlayerID)
		amount, bucket := creditContribution(p, opts)
		switch bucket {
		case creditGuthaben:
			b.Guthaben = b.Guthaben.Add(amount)
		case creditGuthabenRest:
			b.GuthabenRest = b.GuthabenRest.Add(amount)
		}
	}

	for _, l := range liabilities(in, dueByID, touch) {
		b := touch(l.playerID)
		switch l.bucket {
		case bucketFines:
			b.Fines = b.Fines.Add(l.remaining)
		case bucketDues:
			b.Dues = b.Dues.Add(l.remaining)
		case bucketBeverages:
			b.Beverages = b.Beverages.Add(l.remaining)
		}
	}

	out := make(map[string]Breakdown, len(acc))
	for id, b := range acc {
		b.TotalCredits = b.Guthaben.Add(b.GuthabenRest)
		b.TotalLiabilities = b.Fines.Add(b.Dues).Add(b.Beverages)
		b.Balance = b.TotalCredits.Sub(b.TotalLiabilities)
		out[id] = *b
	}
	return out
}

// AggregateFor computes the breakdown for a single player. A player
// with no records yields the zero breakdown.
func AggregateFor(playerID string, in Input, opts Options) Breakdown {
	b, ok := Aggregate(in, opts)[playerID]
	if !ok {
		return zeroBreakdown()
	}
	return b
}

// PlayerBalance is the scalar convenience form used when batch-updating
// denormalized player balances.
func PlayerBalance(playerID string, in Input, opts Options) decimal.Decimal {
	return AggregateFor(playerID, in, opts).Balance
}

func zeroBreakdown() Breakdown {
	return Breakdown{
		Guthaben:         decimal.Zero,
		GuthabenRest:     decimal.Zero,
		Fines:            decimal.Zero,
		Dues:             decimal.Zero,
		Beverages:        decimal.Zero,
		TotalCredits:     decimal.Zero,
		TotalLiabilities: decimal.Zero,
		Balance:          decimal.Zero,
	}
}

// creditContribution decides whether and where a payment counts as open
// credit.
//
// When a category is present it is authoritative: deposit and
// settlement add to guthaben, transfer and unrecognized categories are
// skipped, and only unpaid records count. Uncategorized (legacy)
// records fall back to reason matching; unmatched reasons contribute
// nothing rather than being guessed into a bucket. With
// LegacyCreditFallback, paid uncategorized records count too.
func creditContribution(p core.Payment, opts Options) (decimal.Decimal, creditBucket) {
	if p.Amount.Sign() < 0 {
		// Negative amounts are out of contract (storno rows belong to
		// the import layer); never let them inflate a balance.
		return decimal.Zero, creditNone
	}
	if p.Category != core.CategoryUnset {
		if p.Paid || !p.Category.IsCredit() {
			return decimal.Zero, creditNone
		}
		return p.Amount, creditGuthaben
	}

	if p.Paid && !opts.LegacyCreditFallback {
		return decimal.Zero, creditNone
	}

	reason := strings.ToLower(strings.TrimSpace(p.Reason))
	switch {
	case strings.Contains(reason, "guthaben rest"):
		return p.Amount, creditGuthabenRest
	case strings.Contains(reason, "guthaben"), strings.HasPrefix(reason, "einzahlung"):
		return p.Amount, creditGuthaben
	default:
		return decimal.Zero, creditNone
	}
}

// liabilities reduces every debt-shaped record to the common liability
// view. Records excluded by policy (paid, exempt, gated by an archived
// or inactive parent due) still touch their player so the player shows
// up in the result with a zero breakdown.
func liabilities(in Input, dueByID map[string]core.Due, touch func(string) *Breakdown) []liability {
	out := make([]liability, 0, len(in.Fines)+len(in.DuePayments)+len(in.Consumptions))

	for _, f := range in.Fines {
		if f.Paid {
			touch(f.PlayerID)
			continue
		}
		bucket := bucketFines
		if f.Kind.IsBeverage() {
			bucket = bucketBeverages
		}
		out = append(out, liability{
			playerID:  f.PlayerID,
			bucket:    bucket,
			remaining: core.Remaining(f.Amount, f.AmountPaid),
		})
	}

	for _, dp := range in.DuePayments {
		if dp.Exempt {
			touch(dp.PlayerID)
			continue
		}
		// The parent due's lifecycle gates the child. A missing parent
		// does not: only a due known to be archived or inactive excludes
		// its payments.
		if due, ok := dueByID[dp.DueID]; ok && !due.Chargeable() {
			touch(dp.PlayerID)
			continue
		}
		if dp.Paid {
			touch(dp.PlayerID)
			continue
		}
		out = append(out, liability{
			playerID:  dp.PlayerID,
			bucket:    bucketDues,
			remaining: core.Remaining(dp.AmountDue, dp.AmountPaid),
		})
	}

	for _, bc := range in.Consumptions {
		if bc.Paid {
			touch(bc.PlayerID)
			continue
		}
		out = append(out, liability{
			playerID:  bc.PlayerID,
			bucket:    bucketBeverages,
			remaining: core.Remaining(bc.Amount, bc.AmountPaid),
		})
	}

	return out
}
