package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"teamkasse/internal/core"
	"teamkasse/internal/ledger"
	"teamkasse/internal/storage"
)

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady checks that the store answers before reporting ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := s.balances.Store().ListPlayers(ctx); err != nil {
		slog.ErrorContext(ctx, "Readiness check failed", "error", err)
		respondError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type playerResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Balance string `json:"balance"`
}

func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.balances.Store().ListPlayers(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List players failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list players")
		return
	}
	out := make([]playerResponse, 0, len(players))
	for _, p := range players {
		out = append(out, playerResponse{ID: p.ID, Name: p.Name, Balance: p.Balance.String()})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusUnprocessableEntity, core.ErrEmptyName.Error())
		return
	}

	p := core.Player{ID: uuid.NewString(), Name: strings.TrimSpace(req.Name)}
	if err := s.balances.Store().CreatePlayer(r.Context(), p); err != nil {
		slog.ErrorContext(r.Context(), "Create player failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create player")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": p.ID})
}

type balanceResponse struct {
	PlayerID string `json:"playerId"`
	ledger.Breakdown
}

func (s *Server) handlePlayerBalance(w http.ResponseWriter, r *http.Request) {
	playerID := r.PathValue("id")

	b, ok := s.breakdownCache.Get(playerID)
	if !ok {
		var err error
		b, err = s.balances.Breakdown(r.Context(), playerID)
		if err != nil {
			slog.ErrorContext(r.Context(), "Breakdown failed", "error", err, "player_id", playerID)
			respondError(w, http.StatusInternalServerError, "failed to compute balance")
			return
		}
		s.breakdownCache.Set(playerID, b)
	}
	respondJSON(w, http.StatusOK, balanceResponse{PlayerID: playerID, Breakdown: b})
}

func (s *Server) handleAllBalances(w http.ResponseWriter, r *http.Request) {
	breakdowns, ok := s.balancesCache.Get(allBalancesKey)
	if !ok {
		var err error
		breakdowns, err = s.balances.Breakdowns(r.Context())
		if err != nil {
			slog.ErrorContext(r.Context(), "Breakdowns failed", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to compute balances")
			return
		}
		s.balancesCache.Set(allBalancesKey, breakdowns)
	}
	respondJSON(w, http.StatusOK, breakdowns)
}

// parseRecordDate accepts RFC 3339 or plain dates; empty means now.
func parseRecordDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"playerId"`
		Reason   string `json:"reason"`
		Amount   string `json:"amount"`
		Category string `json:"category"`
		Date     string `json:"date"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, core.ErrInvalidAmount.Error())
		return
	}
	date, err := parseRecordDate(req.Date)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid date")
		return
	}
	category := core.PaymentCategory(strings.ToLower(strings.TrimSpace(req.Category)))
	if category != core.CategoryUnset && !category.Known() {
		respondError(w, http.StatusUnprocessableEntity, "unknown payment category")
		return
	}

	p := core.Payment{
		ID:       uuid.NewString(),
		PlayerID: strings.TrimSpace(req.PlayerID),
		Reason:   strings.TrimSpace(req.Reason),
		Amount:   amount,
		Date:     date,
		Category: category,
	}
	if err := p.Validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.balances.Store().CreatePayment(r.Context(), p); err != nil {
		slog.ErrorContext(r.Context(), "Create payment failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create payment")
		return
	}

	s.invalidateBreakdowns()
	s.balances.NotifyRecalc(r.Context(), p.PlayerID, "payment-created")
	respondJSON(w, http.StatusCreated, map[string]string{"id": p.ID})
}

func (s *Server) handleCreateFine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"playerId"`
		Reason   string `json:"reason"`
		Amount   string `json:"amount"`
		Kind     string `json:"kind"`
		Date     string `json:"date"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, core.ErrInvalidAmount.Error())
		return
	}
	date, err := parseRecordDate(req.Date)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid date")
		return
	}

	kind := core.FineKind(strings.ToLower(strings.TrimSpace(req.Kind)))
	if kind == "" {
		// Route by reason text when the caller does not say.
		kind = core.FineRegular
		if ledger.Classify(req.Reason) == ledger.KindDrink {
			kind = core.FineBeverage
		}
	}

	f := core.Fine{
		ID:       uuid.NewString(),
		PlayerID: strings.TrimSpace(req.PlayerID),
		Reason:   strings.TrimSpace(req.Reason),
		Amount:   amount,
		Date:     date,
		Kind:     kind,
	}
	if err := f.Validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.balances.Store().CreateFine(r.Context(), f); err != nil {
		slog.ErrorContext(r.Context(), "Create fine failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create fine")
		return
	}

	s.invalidateBreakdowns()
	s.balances.NotifyRecalc(r.Context(), f.PlayerID, "fine-created")
	respondJSON(w, http.StatusCreated, map[string]string{"id": f.ID, "kind": string(f.Kind)})
}

func (s *Server) handleCreateDue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Amount string `json:"amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, core.ErrInvalidAmount.Error())
		return
	}
	d := core.Due{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
		Active:    true,
	}
	if err := d.Validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.balances.Store().CreateDue(r.Context(), d); err != nil {
		slog.ErrorContext(r.Context(), "Create due failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create due")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": d.ID})
}

func (s *Server) handleCreateDuePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID  string `json:"playerId"`
		DueID     string `json:"dueId"`
		AmountDue string `json:"amountDue"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := core.ParseAmount(req.AmountDue)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, core.ErrInvalidAmount.Error())
		return
	}
	dp := core.DuePayment{
		ID:        uuid.NewString(),
		DueID:     strings.TrimSpace(req.DueID),
		PlayerID:  strings.TrimSpace(req.PlayerID),
		AmountDue: amount,
		CreatedAt: time.Now().UTC(),
	}
	if err := dp.Validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.balances.Store().CreateDuePayment(r.Context(), dp); err != nil {
		slog.ErrorContext(r.Context(), "Create due payment failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create due payment")
		return
	}

	s.invalidateBreakdowns()
	s.balances.NotifyRecalc(r.Context(), dp.PlayerID, "due-payment-created")
	respondJSON(w, http.StatusCreated, map[string]string{"id": dp.ID})
}

func (s *Server) handleCreateConsumption(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID   string `json:"playerId"`
		BeverageID string `json:"beverageId"`
		Amount     string `json:"amount"`
		Date       string `json:"date"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, core.ErrInvalidAmount.Error())
		return
	}
	date, err := parseRecordDate(req.Date)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid date")
		return
	}
	bc := core.BeverageConsumption{
		ID:         uuid.NewString(),
		PlayerID:   strings.TrimSpace(req.PlayerID),
		BeverageID: strings.TrimSpace(req.BeverageID),
		Amount:     amount,
		Date:       date,
	}
	if err := bc.Validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.balances.Store().CreateConsumption(r.Context(), bc); err != nil {
		slog.ErrorContext(r.Context(), "Create consumption failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create consumption")
		return
	}

	s.invalidateBreakdowns()
	s.balances.NotifyRecalc(r.Context(), bc.PlayerID, "consumption-created")
	respondJSON(w, http.StatusCreated, map[string]string{"id": bc.ID})
}

// markPaid runs one of the MarkPaid mutations and maps ErrNotFound to 404.
func (s *Server) markPaid(w http.ResponseWriter, r *http.Request, reason string, mark func(context.Context, string) error) {
	id := r.PathValue("id")
	if err := mark(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "record not found")
			return
		}
		slog.ErrorContext(r.Context(), "Mark paid failed", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "failed to mark record paid")
		return
	}

	s.invalidateBreakdowns()
	s.balances.NotifyRecalc(r.Context(), "", reason)
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "paid"})
}

func (s *Server) handlePayPayment(w http.ResponseWriter, r *http.Request) {
	s.markPaid(w, r, "payment-paid", s.balances.Store().MarkPaymentPaid)
}

func (s *Server) handlePayFine(w http.ResponseWriter, r *http.Request) {
	s.markPaid(w, r, "fine-paid", s.balances.Store().MarkFinePaid)
}

func (s *Server) handlePayDuePayment(w http.ResponseWriter, r *http.Request) {
	s.markPaid(w, r, "due-payment-paid", s.balances.Store().MarkDuePaymentPaid)
}

func (s *Server) handlePayConsumption(w http.ResponseWriter, r *http.Request) {
	s.markPaid(w, r, "consumption-paid", s.balances.Store().MarkConsumptionPaid)
}
