package policy

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/MuditaSai/weather/internal/domain"
	"github.com/MuditaSai/weather/internal/tracker"
)

// Venue is the slice of the exchange gateway the executor needs.
type Venue interface {
	PlaceLimitOrder(ctx context.Context, ticker string, side domain.Side, price, count int) (orderID string, err error)
	SellLimitOrder(ctx context.Context, ticker string, side domain.Side, price, count int) (orderID string, err error)
	CancelOrder(ctx context.Context, orderID string) error
}

// LegStore is the slice of the tracker the executor mutates through.
type LegStore interface {
	Update(leg *domain.Leg) error
}

var _ LegStore = (*tracker.Store)(nil)

// Executor turns policy decisions into venue actions and durable leg
// updates. Venue calls and store writes are ordered so that a crash
// between them is recoverable on the next pass.
type Executor struct {
	venue Venue
	store LegStore
	now   func() time.Time
}

// NewExecutor wires an executor to its gateway and store. now may be
// nil, in which case wall-clock time is used.
func NewExecutor(venue Venue, store LegStore, now func() time.Time) *Executor {
	if now == nil {
		now = time.Now
	}
	return &Executor{venue: venue, store: store, now: now}
}

// Reprice cancels the resting order and replaces it at price. The
// cancel must succeed before anything else happens; a failed cancel
// aborts with the leg untouched. A failed placement leaves the leg
// pending with no order id, and the next pass places again.
func (e *Executor) Reprice(ctx context.Context, pending *domain.Leg, price int) error {
	if pending.OrderID != "" {
		if err := e.venue.CancelOrder(ctx, pending.OrderID); err != nil {
			return errors.Wrapf(err, "policy: cancel %s before reprice", pending.OrderID)
		}
		pending.OrderID = ""
		if err := e.store.Update(pending); err != nil {
			return errors.Wrap(err, "policy: persist cancelled leg")
		}
	}

	orderID, err := e.venue.PlaceLimitOrder(ctx, pending.Ticker, pending.Side, price, pending.IntendedCount)
	if err != nil {
		return errors.Wrapf(err, "policy: replace order on %s", pending.Ticker)
	}
	pending.OrderID = orderID
	pending.LimitPrice = price
	pending.RepriceCount++
	// restart the dwell clock, or every pass would chase one more tick
	pending.CreatedAt = e.now()
	if err := e.store.Update(pending); err != nil {
		return errors.Wrap(err, "policy: persist repriced leg")
	}
	return nil
}

// Derisk unwinds an at-risk hedge: cancel the resting leg (best
// effort, the order may already be gone) and sell the filled leg at
// bidPrice. Leg states are only persisted once the sell succeeds, so a
// failed sell leaves the hedge at-risk and retried next pass.
func (e *Executor) Derisk(ctx context.Context, filled, pending *domain.Leg, bidPrice int) error {
	if pending.OrderID != "" {
		// Best effort: the order may already be gone, and a surprise
		// fill will surface in the next reconcile pass.
		_ = e.venue.CancelOrder(ctx, pending.OrderID)
	}

	if _, err := e.venue.SellLimitOrder(ctx, filled.Ticker, filled.Side, bidPrice, filled.Count); err != nil {
		return errors.Wrapf(err, "policy: sell %s to derisk", filled.Ticker)
	}

	now := e.now()
	pending.Status = domain.LegStatusDeriskCancelled
	pending.OrderID = ""
	pending.CancelledAt = &now
	if err := e.store.Update(pending); err != nil {
		return errors.Wrap(err, "policy: persist cancelled leg")
	}

	filled.Status = domain.LegStatusDeriskSold
	filled.SoldPrice = &bidPrice
	filled.SoldAt = &now
	pnl := bidPrice - filled.LimitPrice
	filled.PnL = &pnl
	if err := e.store.Update(filled); err != nil {
		return errors.Wrap(err, "policy: persist sold leg")
	}
	return nil
}
