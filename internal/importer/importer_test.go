package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"teamkasse/internal/core"
)

const header = "user_id;user_name;reason;subject;amount_cents;currency;created;paid_at\n"

func parse(t *testing.T, rows string) Result {
	t.Helper()
	res, err := Parse(context.Background(), strings.NewReader(header+rows))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return res
}

func TestParse_RoutesByClassification(t *testing.T) {
	res := parse(t,
		"u1;Max;Zu spät zum Training;;500;EUR;2024-03-01 18:30:00;\n"+
			"u1;Max;Bier;;150;EUR;2024-03-02 20:00:00;2024-03-05 10:00:00\n"+
			"u2;Tom;Guthaben;;5000;EUR;2024-03-03;\n")

	if len(res.Fines) != 2 {
		t.Fatalf("expected 2 fines, got %d", len(res.Fines))
	}
	if len(res.Payments) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(res.Payments))
	}

	late := res.Fines[0]
	if late.Kind != core.FineRegular || late.Paid {
		t.Errorf("late fine = kind %q paid %v, want regular unpaid", late.Kind, late.Paid)
	}
	if !late.Amount.Equal(decimal.RequireFromString("5")) {
		t.Errorf("late fine amount = %s, want 5", late.Amount)
	}

	beer := res.Fines[1]
	if beer.Kind != core.FineBeverage {
		t.Errorf("beer fine kind = %q, want beverage", beer.Kind)
	}
	if !beer.Paid {
		t.Error("beer fine with paid_at should be paid")
	}

	if len(res.Players) != 2 {
		t.Fatalf("expected 2 distinct players, got %d", len(res.Players))
	}
	if res.Players[0].ID != "u1" || res.Players[0].Name != "Max" {
		t.Errorf("first player = %+v, want u1/Max", res.Players[0])
	}

	credit := res.Payments[0]
	if !credit.Paid {
		t.Error("rerouted credit must be recorded as already settled")
	}
	if credit.PaidAt.IsZero() {
		t.Error("rerouted credit should carry a settled-at timestamp")
	}
	if !credit.Amount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("credit amount = %s, want 50", credit.Amount)
	}
}

func TestParse_StornoBecomesSettlementPayment(t *testing.T) {
	res := parse(t, "u1;Max;Storno Bier;;-150;EUR;2024-03-02;\n")

	if len(res.Fines) != 0 {
		t.Fatalf("storno must not produce a fine, got %d", len(res.Fines))
	}
	if len(res.Payments) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(res.Payments))
	}
	p := res.Payments[0]
	if p.Amount.Sign() <= 0 {
		t.Errorf("storno amount must be positive, got %s", p.Amount)
	}
	if !p.Amount.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("storno amount = %s, want 1.5", p.Amount)
	}
	if p.Paid {
		t.Error("storno settlement starts unpaid")
	}
	if p.Category != core.CategorySettlement {
		t.Errorf("storno category = %q, want settlement", p.Category)
	}
}

func TestParse_CrateOfBeerStaysFine(t *testing.T) {
	res := parse(t, "u1;Max;Kasten Bier;;2000;EUR;2024-03-02;\n")
	if len(res.Fines) != 1 || res.Fines[0].Kind != core.FineRegular {
		t.Fatalf("Kasten Bier must import as a regular fine, got %+v", res)
	}
}

func TestParse_SkipsBadRows(t *testing.T) {
	res := parse(t,
		"u1;Max;Zu spät;;abc;EUR;2024-03-01;\n"+ // bad amount
			"u1;Max;Zu spät;;0;EUR;2024-03-01;\n"+ // zero amount
			";Max;Zu spät;;500;EUR;2024-03-01;\n"+ // missing player
			"u1;Max\n"+ // short row
			"u1;Max;Zu spät;;500;EUR;2024-03-01;\n") // valid
	if res.Skipped != 4 {
		t.Errorf("skipped = %d, want 4", res.Skipped)
	}
	if len(res.Fines) != 1 {
		t.Errorf("fines = %d, want 1", len(res.Fines))
	}
	// Only rows that survive conversion register their player.
	if len(res.Players) != 1 {
		t.Errorf("players = %d, want 1", len(res.Players))
	}
}

func TestParse_UnparseableDateKeepsRow(t *testing.T) {
	res := parse(t, "u1;Max;Zu spät;;500;EUR;next tuesday;\n")
	if len(res.Fines) != 1 {
		t.Fatalf("row with bad date must be kept, got %d fines", len(res.Fines))
	}
	if !res.Fines[0].Date.IsZero() {
		t.Errorf("bad date should map to the zero sentinel, got %v", res.Fines[0].Date)
	}
}

func TestParse_EmptyReasonFallsBackToSubject(t *testing.T) {
	res := parse(t, "u1;Max;;Guthaben Rest;1000;EUR;2024-03-01;\n")
	if len(res.Payments) != 1 {
		t.Fatalf("expected subject-classified credit, got %+v", res)
	}
	if res.Payments[0].Reason != "Guthaben Rest" {
		t.Errorf("reason = %q, want subject text", res.Payments[0].Reason)
	}
}

func TestParse_EmptyFile(t *testing.T) {
	_, err := Parse(context.Background(), strings.NewReader(""))
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("Parse(empty) error = %v, want ErrEmptyFile", err)
	}
}
