package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"teamkasse/internal/ledger"
	"teamkasse/internal/services"
	"teamkasse/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	svc := services.NewBalanceService(store, nil, ledger.Options{})
	s := NewServer(":0", svc)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, store
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func createPlayer(t *testing.T, s *Server, name string) string {
	t.Helper()
	rec := doRequest(s, http.MethodPost, "/api/players", `{"name":"`+name+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create player: status %d, body %s", rec.Code, rec.Body)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode create player response: %v", err)
	}
	return resp["id"]
}

func TestHealthAndReady(t *testing.T) {
	s, _ := newTestServer(t)

	if rec := doRequest(s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", rec.Code)
	}
	if rec := doRequest(s, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("/readyz status = %d, want 200", rec.Code)
	}
}

func TestCreatePaymentAndBalance(t *testing.T) {
	s, _ := newTestServer(t)
	playerID := createPlayer(t, s, "Max")

	body := fmt.Sprintf(`{"playerId":%q,"reason":"Guthaben","amount":"50,00"}`, playerID)
	if rec := doRequest(s, http.MethodPost, "/api/payments", body); rec.Code != http.StatusCreated {
		t.Fatalf("create payment: status %d, body %s", rec.Code, rec.Body)
	}

	rec := doRequest(s, http.MethodGet, "/api/players/"+playerID+"/balance", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("balance: status %d, body %s", rec.Code, rec.Body)
	}
	var resp balanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode balance response: %v", err)
	}
	if !resp.Guthaben.Equal(decimal.NewFromInt(50)) {
		t.Errorf("guthaben = %s, want 50", resp.Guthaben)
	}
	if !resp.Balance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("balance = %s, want 50", resp.Balance)
	}
}

func TestCreateFineRoutesBeverages(t *testing.T) {
	s, _ := newTestServer(t)
	playerID := createPlayer(t, s, "Tom")

	tests := []struct {
		name     string
		reason   string
		wantKind string
	}{
		{"drink keyword", "Bier", "beverage"},
		{"plain fine", "Zu spät zum Training", "regular"},
		{"bulk purchase exception", "Kasten Bier", "regular"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := fmt.Sprintf(`{"playerId":%q,"reason":%q,"amount":"5"}`, playerID, tt.reason)
			rec := doRequest(s, http.MethodPost, "/api/fines", body)
			if rec.Code != http.StatusCreated {
				t.Fatalf("status %d, body %s", rec.Code, rec.Body)
			}
			var resp map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp["kind"] != tt.wantKind {
				t.Errorf("kind = %q, want %q", resp["kind"], tt.wantKind)
			}
		})
	}
}

func TestCreatePaymentValidation(t *testing.T) {
	s, _ := newTestServer(t)
	playerID := createPlayer(t, s, "Ben")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", "not json", http.StatusBadRequest},
		{"bad amount", fmt.Sprintf(`{"playerId":%q,"reason":"Guthaben","amount":"abc"}`, playerID), http.StatusUnprocessableEntity},
		{"negative amount", fmt.Sprintf(`{"playerId":%q,"reason":"Guthaben","amount":"-5"}`, playerID), http.StatusUnprocessableEntity},
		{"missing player", `{"playerId":"","reason":"Guthaben","amount":"5"}`, http.StatusUnprocessableEntity},
		{"empty reason", fmt.Sprintf(`{"playerId":%q,"reason":"","amount":"5"}`, playerID), http.StatusUnprocessableEntity},
		{"unknown category", fmt.Sprintf(`{"playerId":%q,"reason":"Guthaben","amount":"5","category":"mystery"}`, playerID), http.StatusUnprocessableEntity},
		{"bad date", fmt.Sprintf(`{"playerId":%q,"reason":"Guthaben","amount":"5","date":"yesterday"}`, playerID), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodPost, "/api/payments", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestBalanceCacheInvalidatedOnWrite(t *testing.T) {
	s, _ := newTestServer(t)
	playerID := createPlayer(t, s, "Max")

	// Prime the cache with a zero breakdown.
	rec := doRequest(s, http.MethodGet, "/api/players/"+playerID+"/balance", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("balance: status %d", rec.Code)
	}

	body := fmt.Sprintf(`{"playerId":%q,"reason":"Zu spät","amount":"10"}`, playerID)
	if rec := doRequest(s, http.MethodPost, "/api/fines", body); rec.Code != http.StatusCreated {
		t.Fatalf("create fine: status %d, body %s", rec.Code, rec.Body)
	}

	rec = doRequest(s, http.MethodGet, "/api/players/"+playerID+"/balance", "")
	var resp balanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode balance response: %v", err)
	}
	if !resp.Balance.Equal(decimal.NewFromInt(-10)) {
		t.Errorf("balance after fine = %s, want -10 (stale cache?)", resp.Balance)
	}
}

func TestMarkFinePaid(t *testing.T) {
	s, _ := newTestServer(t)
	playerID := createPlayer(t, s, "Max")

	body := fmt.Sprintf(`{"playerId":%q,"reason":"Zu spät","amount":"10"}`, playerID)
	rec := doRequest(s, http.MethodPost, "/api/fines", body)
	var created map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	if rec := doRequest(s, http.MethodPost, "/api/fines/"+created["id"]+"/pay", ""); rec.Code != http.StatusOK {
		t.Fatalf("pay fine: status %d, body %s", rec.Code, rec.Body)
	}

	rec = doRequest(s, http.MethodGet, "/api/players/"+playerID+"/balance", "")
	var resp balanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode balance response: %v", err)
	}
	if !resp.Balance.IsZero() {
		t.Errorf("balance after paying fine = %s, want 0", resp.Balance)
	}
}

func TestMarkPaidNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, http.MethodPost, "/api/fines/nope/pay", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 (body %s)", rec.Code, rec.Body)
	}
}

func TestAllBalances(t *testing.T) {
	s, _ := newTestServer(t)
	p1 := createPlayer(t, s, "Max")
	p2 := createPlayer(t, s, "Tom")

	if rec := doRequest(s, http.MethodPost, "/api/payments",
		fmt.Sprintf(`{"playerId":%q,"reason":"Guthaben","amount":"20"}`, p1)); rec.Code != http.StatusCreated {
		t.Fatalf("create payment: status %d", rec.Code)
	}
	if rec := doRequest(s, http.MethodPost, "/api/consumptions",
		fmt.Sprintf(`{"playerId":%q,"amount":"1,50"}`, p2)); rec.Code != http.StatusCreated {
		t.Fatalf("create consumption: status %d", rec.Code)
	}

	rec := doRequest(s, http.MethodGet, "/api/balances", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("balances: status %d", rec.Code)
	}
	var resp map[string]ledger.Breakdown
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode balances response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("balances players = %d, want 2", len(resp))
	}
	if !resp[p1].Balance.Equal(decimal.NewFromInt(20)) {
		t.Errorf("p1 balance = %s, want 20", resp[p1].Balance)
	}
	if !resp[p2].Balance.Equal(decimal.RequireFromString("-1.5")) {
		t.Errorf("p2 balance = %s, want -1.5", resp[p2].Balance)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < rateLimitPerWindow; i++ {
		if !rl.allow("10.1.2.3") {
			t.Fatalf("request %d unexpectedly limited", i+1)
		}
	}
	if rl.allow("10.1.2.3") {
		t.Error("request over the limit was allowed")
	}
	if !rl.allow("10.9.9.9") {
		t.Error("different client should not be limited")
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"direct", "203.0.113.7:1234", "", "203.0.113.7"},
		{"untrusted proxy ignores header", "203.0.113.7:1234", "198.51.100.1", "203.0.113.7"},
		{"trusted proxy honors header", "10.0.0.5:1234", "198.51.100.1", "198.51.100.1"},
		{"trusted proxy bad header", "10.0.0.5:1234", "not-an-ip", "10.0.0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := extractClientIP(req); got != tt.want {
				t.Errorf("extractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
