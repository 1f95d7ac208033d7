// Package importer converts punishment CSV exports into typed domain
// records. The export mixes fines, beverage charges and mis-filed
// credit top-ups in one file with amounts in cents; the importer uses
// the ledger classifier to route each row and normalizes amounts to
// decimal currency units before anything reaches the aggregator.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"teamkasse/internal/core"
	"teamkasse/internal/ledger"
)

// Column layout of a punishment export row.
const (
	colUserID = iota
	colUserName
	colReason
	colSubject
	colAmountCents
	colCurrency
	colCreated
	colPaidAt
	columnCount
)

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

// Result holds the typed records produced from one export file. Players
// lists every player referenced by a converted row exactly once, so the
// import can create the ones that do not exist yet.
type Result struct {
	Players  []core.Player
	Payments []core.Payment
	Fines    []core.Fine
	Skipped  int
}

// ErrEmptyFile is returned when the export contains no data rows.
var ErrEmptyFile = errors.New("empty import file")

// Parse reads a semicolon-separated punishment export and converts each
// row into a Payment or Fine.
//
// Credit rows (per ledger.ClassifyPunishment) become payments that are
// already settled from the importer's point of view. Storno rows
// (negative cents) become absolute-value unpaid settlement payments;
// negative amounts are never passed through. Rows with unparseable
// amounts are skipped and counted, rows with unparseable dates are
// kept with a zero date.
func Parse(ctx context.Context, r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var res Result
	seen := make(map[string]bool)
	rows := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("read csv row: %w", err)
		}
		rows++
		if rows == 1 && isHeader(record) {
			continue
		}
		if len(record) < columnCount {
			slog.WarnContext(ctx, "Skipping short row", "row", rows, "fields", len(record))
			res.Skipped++
			continue
		}
		if err := convertRow(record, seen, &res); err != nil {
			slog.WarnContext(ctx, "Skipping row", "row", rows, "error", err)
			res.Skipped++
		}
	}

	if rows == 0 {
		return Result{}, ErrEmptyFile
	}
	return res, nil
}

func convertRow(record []string, seen map[string]bool, res *Result) error {
	playerID := strings.TrimSpace(record[colUserID])
	if playerID == "" {
		return core.ErrMissingPlayer
	}

	cents, err := strconv.ParseInt(strings.TrimSpace(record[colAmountCents]), 10, 64)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", record[colAmountCents], err)
	}
	if cents == 0 {
		return core.ErrInvalidAmount
	}

	if !seen[playerID] {
		seen[playerID] = true
		res.Players = append(res.Players, core.Player{
			ID:   playerID,
			Name: strings.TrimSpace(record[colUserName]),
		})
	}

	reason := strings.TrimSpace(record[colReason])
	subject := strings.TrimSpace(record[colSubject])
	if reason == "" {
		reason = subject
	}
	created := parseDate(record[colCreated])
	paidAt := parseDate(record[colPaidAt])
	paid := !paidAt.IsZero()

	if cents < 0 {
		// Storno rows reverse an earlier charge. They are recorded as
		// absolute-value settlement payments so the aggregator never
		// sees a negative amount.
		res.Payments = append(res.Payments, core.Payment{
			ID:       uuid.NewString(),
			PlayerID: playerID,
			Reason:   reason,
			Amount:   core.AmountFromCents(-cents),
			Date:     created,
			Paid:     false,
			Category: core.CategorySettlement,
		})
		return nil
	}

	amount := core.AmountFromCents(cents)

	switch ledger.ClassifyPunishment(reason, subject) {
	case ledger.KindPayment:
		// A credit recorded in the punishments source is considered
		// already settled.
		settledAt := paidAt
		if settledAt.IsZero() {
			settledAt = created
		}
		res.Payments = append(res.Payments, core.Payment{
			ID:       uuid.NewString(),
			PlayerID: playerID,
			Reason:   reason,
			Amount:   amount,
			Date:     created,
			Paid:     true,
			PaidAt:   settledAt,
		})
	case ledger.KindDrink:
		res.Fines = append(res.Fines, core.Fine{
			ID:       uuid.NewString(),
			PlayerID: playerID,
			Reason:   reason,
			Amount:   amount,
			Date:     created,
			Paid:     paid,
			Kind:     core.FineBeverage,
		})
	default:
		res.Fines = append(res.Fines, core.Fine{
			ID:       uuid.NewString(),
			PlayerID: playerID,
			Reason:   reason,
			Amount:   amount,
			Date:     created,
			Paid:     paid,
			Kind:     core.FineRegular,
		})
	}
	return nil
}

func isHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "user_id")
}

// parseDate returns the zero time as a null sentinel when the value is
// empty or unparseable; balance math never depends on dates.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
