package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"teamkasse/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists all team-finance collections. Amounts are
// stored as integer cents and converted to decimal currency units at
// this boundary; the ledger core never sees minor units. Dates are
// stored as unix seconds with 0 as the null sentinel.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}

func (r *SQLiteRepository) CreatePlayer(ctx context.Context, p core.Player) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO players (id, name, balance_cents, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, core.CentsFromAmount(p.Balance), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("create player: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListPlayers(ctx context.Context) ([]core.Player, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, balance_cents FROM players ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []core.Player
	for rows.Next() {
		var p core.Player
		var cents int64
		if err := rows.Scan(&p.ID, &p.Name, &cents); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		p.Balance = core.AmountFromCents(cents)
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate players: %w", err)
	}
	return players, nil
}

func (r *SQLiteRepository) UpdatePlayerBalance(ctx context.Context, playerID string, balance decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE players SET balance_cents = ? WHERE id = ?`,
		core.CentsFromAmount(balance), playerID)
	if err != nil {
		return fmt.Errorf("update player balance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update player balance %s: %w", playerID, ErrNotFound)
	}

	slog.InfoContext(ctx, "Player balance updated",
		"player_id", playerID,
		"balance", core.FormatEuros(balance))
	return nil
}

func (r *SQLiteRepository) CreatePayment(ctx context.Context, p core.Payment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (id, player_id, reason, amount_cents, date, paid, paid_at, category)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.PlayerID, p.Reason, core.CentsFromAmount(p.Amount),
		unixOrZero(p.Date), p.Paid, unixOrZero(p.PaidAt), string(p.Category))
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListPayments(ctx context.Context) ([]core.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, player_id, reason, amount_cents, date, paid, paid_at, category FROM payments`)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []core.Payment
	for rows.Next() {
		var p core.Payment
		var cents, date, paidAt int64
		var category string
		if err := rows.Scan(&p.ID, &p.PlayerID, &p.Reason, &cents, &date, &p.Paid, &paidAt, &category); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.Amount = core.AmountFromCents(cents)
		p.Date = timeOrZero(date)
		p.PaidAt = timeOrZero(paidAt)
		p.Category = core.PaymentCategory(category)
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}

func (r *SQLiteRepository) MarkPaymentPaid(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET paid = 1, paid_at = ? WHERE id = ?`,
		time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("mark payment paid: %w", err)
	}
	return requireAffected(res, "payment", id)
}

func (r *SQLiteRepository) CreateFine(ctx context.Context, f core.Fine) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO fines (id, player_id, reason, amount_cents, amount_paid_cents, date, paid, kind)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.PlayerID, f.Reason, core.CentsFromAmount(f.Amount),
		core.CentsFromAmount(f.AmountPaid), unixOrZero(f.Date), f.Paid, string(f.Kind))
	if err != nil {
		return fmt.Errorf("create fine: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListFines(ctx context.Context) ([]core.Fine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, player_id, reason, amount_cents, amount_paid_cents, date, paid, kind FROM fines`)
	if err != nil {
		return nil, fmt.Errorf("list fines: %w", err)
	}
	defer rows.Close()

	var fines []core.Fine
	for rows.Next() {
		var f core.Fine
		var cents, paidCents, date int64
		var kind string
		if err := rows.Scan(&f.ID, &f.PlayerID, &f.Reason, &cents, &paidCents, &date, &f.Paid, &kind); err != nil {
			return nil, fmt.Errorf("scan fine: %w", err)
		}
		f.Amount = core.AmountFromCents(cents)
		f.AmountPaid = core.AmountFromCents(paidCents)
		f.Date = timeOrZero(date)
		f.Kind = core.FineKind(kind)
		fines = append(fines, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fines: %w", err)
	}
	return fines, nil
}

func (r *SQLiteRepository) MarkFinePaid(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE fines SET paid = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark fine paid: %w", err)
	}
	return requireAffected(res, "fine", id)
}

func (r *SQLiteRepository) CreateDue(ctx context.Context, d core.Due) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dues (id, name, amount_cents, created_at, active, archived)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, core.CentsFromAmount(d.Amount), unixOrZero(d.CreatedAt), d.Active, d.Archived)
	if err != nil {
		return fmt.Errorf("create due: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListDues(ctx context.Context) ([]core.Due, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, amount_cents, created_at, active, archived FROM dues`)
	if err != nil {
		return nil, fmt.Errorf("list dues: %w", err)
	}
	defer rows.Close()

	var dues []core.Due
	for rows.Next() {
		var d core.Due
		var cents, created int64
		if err := rows.Scan(&d.ID, &d.Name, &cents, &created, &d.Active, &d.Archived); err != nil {
			return nil, fmt.Errorf("scan due: %w", err)
		}
		d.Amount = core.AmountFromCents(cents)
		d.CreatedAt = timeOrZero(created)
		dues = append(dues, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dues: %w", err)
	}
	return dues, nil
}

func (r *SQLiteRepository) CreateDuePayment(ctx context.Context, dp core.DuePayment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO due_payments (id, due_id, player_id, amount_due_cents, amount_paid_cents, paid, exempt, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		dp.ID, dp.DueID, dp.PlayerID, core.CentsFromAmount(dp.AmountDue),
		core.CentsFromAmount(dp.AmountPaid), dp.Paid, dp.Exempt, unixOrZero(dp.CreatedAt))
	if err != nil {
		return fmt.Errorf("create due payment: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListDuePayments(ctx context.Context) ([]core.DuePayment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, due_id, player_id, amount_due_cents, amount_paid_cents, paid, exempt, created_at FROM due_payments`)
	if err != nil {
		return nil, fmt.Errorf("list due payments: %w", err)
	}
	defer rows.Close()

	var dps []core.DuePayment
	for rows.Next() {
		var dp core.DuePayment
		var dueCents, paidCents, created int64
		if err := rows.Scan(&dp.ID, &dp.DueID, &dp.PlayerID, &dueCents, &paidCents, &dp.Paid, &dp.Exempt, &created); err != nil {
			return nil, fmt.Errorf("scan due payment: %w", err)
		}
		dp.AmountDue = core.AmountFromCents(dueCents)
		dp.AmountPaid = core.AmountFromCents(paidCents)
		dp.CreatedAt = timeOrZero(created)
		dps = append(dps, dp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due payments: %w", err)
	}
	return dps, nil
}

func (r *SQLiteRepository) MarkDuePaymentPaid(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE due_payments SET paid = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark due payment paid: %w", err)
	}
	return requireAffected(res, "due payment", id)
}

func (r *SQLiteRepository) CreateConsumption(ctx context.Context, bc core.BeverageConsumption) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO beverage_consumptions (id, player_id, beverage_id, amount_cents, amount_paid_cents, date, paid)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		bc.ID, bc.PlayerID, bc.BeverageID, core.CentsFromAmount(bc.Amount),
		core.CentsFromAmount(bc.AmountPaid), unixOrZero(bc.Date), bc.Paid)
	if err != nil {
		return fmt.Errorf("create consumption: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListConsumptions(ctx context.Context) ([]core.BeverageConsumption, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, player_id, beverage_id, amount_cents, amount_paid_cents, date, paid FROM beverage_consumptions`)
	if err != nil {
		return nil, fmt.Errorf("list consumptions: %w", err)
	}
	defer rows.Close()

	var bcs []core.BeverageConsumption
	for rows.Next() {
		var bc core.BeverageConsumption
		var cents, paidCents, date int64
		if err := rows.Scan(&bc.ID, &bc.PlayerID, &bc.BeverageID, &cents, &paidCents, &date, &bc.Paid); err != nil {
			return nil, fmt.Errorf("scan consumption: %w", err)
		}
		bc.Amount = core.AmountFromCents(cents)
		bc.AmountPaid = core.AmountFromCents(paidCents)
		bc.Date = timeOrZero(date)
		bcs = append(bcs, bc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consumptions: %w", err)
	}
	return bcs, nil
}

func (r *SQLiteRepository) MarkConsumptionPaid(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE beverage_consumptions SET paid = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark consumption paid: %w", err)
	}
	return requireAffected(res, "consumption", id)
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return nil // driver without rows-affected support; treat as success
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
