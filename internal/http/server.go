// Package http exposes the JSON API for players, ledger records and
// balance breakdowns.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"teamkasse/internal/cache"
	"teamkasse/internal/ledger"
	"teamkasse/internal/services"
)

const (
	breakdownCacheSize = 256
	breakdownCacheTTL  = 30 * time.Second
	allBalancesKey     = "__all__"
)

type Server struct {
	http.Server
	balances    *services.BalanceService
	rateLimiter *rateLimiter

	// Breakdown responses are cheap to cache and invalidated on every
	// ledger write, so a short TTL is enough.
	breakdownCache *cache.LRU[ledger.Breakdown]
	balancesCache  *cache.LRU[map[string]ledger.Breakdown]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer wires routes and middleware and returns a ready-to-run server.
func NewServer(addr string, balances *services.BalanceService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		balances:         balances,
		rateLimiter:      newRateLimiter(),
		breakdownCache:   cache.NewLRU[ledger.Breakdown](breakdownCacheSize, breakdownCacheTTL),
		balancesCache:    cache.NewLRU[map[string]ledger.Breakdown](1, breakdownCacheTTL),
		stopCacheCleanup: make(chan struct{}),
	}
	go s.startCacheCleanup()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/players", s.withMiddleware(s.handleListPlayers))
	mux.HandleFunc("POST /api/players", s.withMiddleware(s.handleCreatePlayer))
	mux.HandleFunc("GET /api/players/{id}/balance", s.withMiddleware(s.handlePlayerBalance))
	mux.HandleFunc("GET /api/balances", s.withMiddleware(s.handleAllBalances))

	mux.HandleFunc("POST /api/payments", s.withMiddleware(s.handleCreatePayment))
	mux.HandleFunc("POST /api/payments/{id}/pay", s.withMiddleware(s.handlePayPayment))
	mux.HandleFunc("POST /api/fines", s.withMiddleware(s.handleCreateFine))
	mux.HandleFunc("POST /api/fines/{id}/pay", s.withMiddleware(s.handlePayFine))
	mux.HandleFunc("POST /api/dues", s.withMiddleware(s.handleCreateDue))
	mux.HandleFunc("POST /api/due-payments", s.withMiddleware(s.handleCreateDuePayment))
	mux.HandleFunc("POST /api/due-payments/{id}/pay", s.withMiddleware(s.handlePayDuePayment))
	mux.HandleFunc("POST /api/consumptions", s.withMiddleware(s.handleCreateConsumption))
	mux.HandleFunc("POST /api/consumptions/{id}/pay", s.withMiddleware(s.handlePayConsumption))

	return s
}

// invalidateBreakdowns drops cached breakdowns after any ledger write.
// Every write can shift a player's balance, and a single due flag can
// shift all of them, so the whole cache goes.
func (s *Server) invalidateBreakdowns() {
	s.breakdownCache.Purge()
	s.balancesCache.Delete(allBalancesKey)
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.breakdownCache.CleanExpired()
			s.balancesCache.CleanExpired()
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown stops the cleanup goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
