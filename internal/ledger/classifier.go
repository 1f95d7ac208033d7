// Package ledger implements the balance computation engine: the
// transaction classifier that disambiguates free-text punishment
// reasons, and the aggregator that folds payments, fines, dues and
// beverage charges into per-player balance breakdowns.
//
// Everything in this package is pure: no I/O, no mutation of inputs,
// safe for concurrent callers.
package ledger

import "strings"

const (
	// KindFine is the fail-safe default for empty or unmatched reasons.
	KindFine    Kind = "fine"
	KindDrink   Kind = "drink"
	KindPayment Kind = "payment"
)

// Canonical beverage categories returned by BeverageCategory.
const (
	CategoryAppler       = "Appler"
	CategoryBeerLemonade = "Beer/Lemonade"
	CategoryBeverages    = "Beverages" // default bucket
)

// Kind is the transaction kind a reason string resolves to.
type Kind string

// drinkKeywords marks a reason as personal beverage consumption.
// Covers the German and English vocabulary seen in punishment exports.
var drinkKeywords = []string{
	"getränk",
	"getraenk",
	"beverage",
	"drink",
	"bier",
	"beer",
	"pils",
	"weizen",
	"radler",
	"alkohol",
	"apfelwein",
	"appler",
	"äppler",
	"aeppler",
	"cidre",
	"cider",
	"wasser",
	"water",
	"cola",
	"sprite",
	"limo",
}

// fineExceptions are phrases that contain a drink keyword but denote a
// punitive bulk purchase for the team, not personal consumption. They
// override the keyword match. Kept as a table so new exceptions can be
// added and tested in isolation.
var fineExceptions = []string{
	"kasten bier",
	"kasten",
	"kiste",
	"runde",
}

// creditMarkers identify credit top-ups mis-filed in a punishments
// source; ClassifyPunishment reroutes those to the payment path.
var creditMarkers = []string{
	"guthaben",
	"einzahlung",
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Classify decides whether a punishment reason represents a monetary
// fine or a beverage charge. Empty and unmatched input classifies as
// FINE, matching is case-insensitive and whitespace-tolerant.
//
// "Kasten Bier" and similar bulk-purchase penalties classify as FINE
// even though they contain a drink keyword.
func Classify(reason string) Kind {
	r := normalize(reason)
	if r == "" {
		return KindFine
	}
	for _, phrase := range fineExceptions {
		if strings.Contains(r, phrase) {
			return KindFine
		}
	}
	for _, kw := range drinkKeywords {
		if strings.Contains(r, kw) {
			return KindDrink
		}
	}
	return KindFine
}

// BeverageCategory maps a drink reason to one of the canonical beverage
// categories. Total: anything unmatched (including empty input) lands
// in the default Beverages bucket.
func BeverageCategory(reason string) string {
	r := normalize(reason)
	for _, kw := range []string{"apfelwein", "appler", "äppler", "aeppler"} {
		if strings.Contains(r, kw) {
			return CategoryAppler
		}
	}
	for _, kw := range []string{"bier", "beer", "pils", "weizen", "radler", "cola", "sprite", "wasser", "water", "limo"} {
		if strings.Contains(r, kw) {
			return CategoryBeerLemonade
		}
	}
	return CategoryBeverages
}

// ClassifyPunishment classifies a raw punishment row during import.
// Reasons denoting a credit top-up ("Guthaben", "Guthaben Rest",
// "Einzahlung ...") return KindPayment and bypass fine/drink
// classification entirely; the importer records those as already-paid
// payments. When the reason is empty the subject column is used
// instead.
func ClassifyPunishment(reason, subject string) Kind {
	text := normalize(reason)
	if text == "" {
		text = normalize(subject)
	}
	for _, marker := range creditMarkers {
		if marker == "einzahlung" {
			if strings.HasPrefix(text, marker) {
				return KindPayment
			}
			continue
		}
		if strings.Contains(text, marker) {
			return KindPayment
		}
	}
	return Classify(text)
}
