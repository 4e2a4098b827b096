// Package ledger keeps the durable trade history: one row per hedge,
// from entry through settlement, in an embedded SQLite database.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MuditaSai/weather/internal/domain"
)

// ErrNotFound is returned when no trade exists under the given id.
var ErrNotFound = errors.New("ledger: trade not found")

// ErrSettled is returned for mutations against a frozen record.
var ErrSettled = errors.New("ledger: trade already settled")

// Ledger wraps the trades database. All methods are safe for the
// single-goroutine engine loop; the connection pool is pinned to one
// connection, which SQLite prefers anyway.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	l := &Ledger{db: db, now: time.Now}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS trades (
  id TEXT PRIMARY KEY,
  series TEXT NOT NULL,
  market_date TEXT NOT NULL,
  outcome TEXT NOT NULL DEFAULT 'open',
  total_cost INTEGER NOT NULL,
  pnl INTEGER,
  payload TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  settled_at TEXT
);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_market_date ON trades(market_date);`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// RecordEntry inserts a freshly opened hedge. Recording the same id
// again updates the open record in place (keeping its original entry
// time and any forecast observations already attached) rather than
// duplicating it; a settled record stays frozen.
func (l *Ledger) RecordEntry(ctx context.Context, t *domain.Trade) error {
	now := l.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Outcome == "" {
		t.Outcome = domain.OutcomeOpen
	}

	existing, err := l.Trade(ctx, t.ID)
	switch {
	case err == nil:
		if existing.Settled() {
			return nil
		}
		t.CreatedAt = existing.CreatedAt
		t.Forecasts = append(existing.Forecasts, t.Forecasts...)
		return l.save(ctx, t)
	case !errors.Is(err, ErrNotFound):
		return err
	}

	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode trade: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `
INSERT INTO trades (id, series, market_date, outcome, total_cost, pnl, payload, created_at, updated_at)
VALUES (?,?,?,?,?,NULL,?,?,?)
`, t.ID, t.Series, t.MarketDate, t.Outcome, t.TotalCost, string(payload),
		t.CreatedAt.Format(time.RFC3339Nano), t.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// Trade loads one record by id.
func (l *Ledger) Trade(ctx context.Context, id string) (*domain.Trade, error) {
	row := l.db.QueryRowContext(ctx, `SELECT payload FROM trades WHERE id=?`, id)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load trade: %w", err)
	}
	var t domain.Trade
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		return nil, fmt.Errorf("decode trade %s: %w", id, err)
	}
	return &t, nil
}

// Trades returns every record, oldest market first.
func (l *Ledger) Trades(ctx context.Context) ([]*domain.Trade, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT payload FROM trades ORDER BY market_date, id`)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()
	var trades []*domain.Trade
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var t domain.Trade
		if err := json.Unmarshal([]byte(payload), &t); err != nil {
			return nil, fmt.Errorf("decode trade: %w", err)
		}
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}

// save writes back a mutated record.
func (l *Ledger) save(ctx context.Context, t *domain.Trade) error {
	t.UpdatedAt = l.now()
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode trade: %w", err)
	}
	var settledAt any
	if t.SettledAt != nil {
		settledAt = t.SettledAt.Format(time.RFC3339Nano)
	}
	var pnl any
	if t.PnL != nil {
		pnl = *t.PnL
	}
	_, err = l.db.ExecContext(ctx, `
UPDATE trades SET outcome=?, total_cost=?, pnl=?, payload=?, updated_at=?, settled_at=?
WHERE id=?
`, t.Outcome, t.TotalCost, pnl, string(payload),
		t.UpdatedAt.Format(time.RFC3339Nano), settledAt, t.ID)
	if err != nil {
		return fmt.Errorf("update trade: %w", err)
	}
	return nil
}

// AppendForecast attaches a forecast observation to an open trade.
// Settled trades are frozen; late observations are dropped silently
// since settlement already happened on the real temperature.
func (l *Ledger) AppendForecast(ctx context.Context, id string, f domain.Forecast) error {
	t, err := l.Trade(ctx, id)
	if err != nil {
		return err
	}
	if t.Settled() {
		return nil
	}
	t.Forecasts = append(t.Forecasts, f)
	return l.save(ctx, t)
}

// UpdateLeg replaces a leg snapshot on an open trade, used when a
// resting order is repriced or its fill state changes.
func (l *Ledger) UpdateLeg(ctx context.Context, id string, leg domain.TradeLeg) error {
	t, err := l.Trade(ctx, id)
	if err != nil {
		return err
	}
	if t.Settled() {
		return fmt.Errorf("%w: %s", ErrSettled, id)
	}
	slot := t.LegByKey(leg.Key)
	if slot == nil {
		return fmt.Errorf("ledger: no leg %s on trade %s", leg.Key, id)
	}
	*slot = leg
	return l.save(ctx, t)
}

// settleLegs closes out both leg snapshots: the winning ticker (if
// any) pays the full dollar, everything else settles worthless.
func (l *Ledger) settleLegs(t *domain.Trade, winningBucket string) {
	now := l.now()
	for _, leg := range []*domain.TradeLeg{&t.Leg1, &t.Leg2} {
		sold := 0
		if winningBucket != "" && leg.Ticker == winningBucket {
			sold = 100
			leg.Status = domain.LegStatusWonSold
		} else {
			leg.Status = domain.LegStatusSold
		}
		price := sold
		pnl := sold - leg.OrderPrice
		leg.SoldPrice = &price
		leg.SoldTime = &now
		leg.PnL = &pnl
	}
}

// RecordWin settles a trade whose winning bucket paid out: the hedge
// collects the full dollar against its combined entry cost.
func (l *Ledger) RecordWin(ctx context.Context, id string, actualTemp float64, winningBucket string) error {
	return l.settle(ctx, id, func(t *domain.Trade) {
		pnl := 100 - t.TotalCost
		t.Outcome = domain.OutcomeWin
		t.ActualTemp = &actualTemp
		t.WinningBucket = winningBucket
		t.PnL = &pnl
		l.settleLegs(t, winningBucket)
		t.Exit = &domain.TradeExit{Type: "win", Timestamp: l.now(), PnL: pnl}
	})
}

// RecordLoss settles a trade where neither bucket contained the
// observed temperature: the full entry cost is lost.
func (l *Ledger) RecordLoss(ctx context.Context, id string, actualTemp float64) error {
	return l.settle(ctx, id, func(t *domain.Trade) {
		pnl := -t.TotalCost
		t.Outcome = domain.OutcomeLoss
		t.ActualTemp = &actualTemp
		t.PnL = &pnl
		l.settleLegs(t, "")
		t.Exit = &domain.TradeExit{Type: "loss", Timestamp: l.now(), PnL: pnl}
	})
}

// RecordDerisk settles a trade that was unwound after a partial fill:
// only the sold leg realizes pnl against its own entry price.
func (l *Ledger) RecordDerisk(ctx context.Context, id, soldLegKey string, soldPrice int) error {
	return l.settle(ctx, id, func(t *domain.Trade) {
		now := l.now()
		entry := 0
		if leg := t.LegByKey(soldLegKey); leg != nil {
			entry = leg.OrderPrice
			leg.Status = domain.LegStatusDeriskSold
			leg.SoldPrice = &soldPrice
			leg.SoldTime = &now
			other := &t.Leg1
			if leg == &t.Leg1 {
				other = &t.Leg2
			}
			if other.Status.Open() {
				other.Status = domain.LegStatusDeriskCancelled
			}
		}
		pnl := soldPrice - entry
		t.Outcome = domain.OutcomeDerisked
		t.PnL = &pnl
		t.Exit = &domain.TradeExit{
			Type: "derisk", Timestamp: now,
			SoldLeg: soldLegKey, SoldPrice: soldPrice, EntryPrice: entry, PnL: pnl,
		}
	})
}

func (l *Ledger) settle(ctx context.Context, id string, apply func(*domain.Trade)) error {
	t, err := l.Trade(ctx, id)
	if err != nil {
		return err
	}
	if t.Settled() {
		return fmt.Errorf("%w: %s", ErrSettled, id)
	}
	apply(t)
	now := l.now()
	t.SettledAt = &now
	return l.save(ctx, t)
}
