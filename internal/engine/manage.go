package engine

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/MuditaSai/weather/internal/discovery"
	"github.com/MuditaSai/weather/internal/domain"
	"github.com/MuditaSai/weather/internal/policy"
	"github.com/MuditaSai/weather/internal/ticker"
	"github.com/MuditaSai/weather/pkg/logger"
)

// ManageAtRisk 逐个处置部分成交的对冲：继续等、追价或者退出
func (e *Engine) ManageAtRisk(ctx context.Context) {
	now := e.now()
	hedges, err := e.legs.AtRiskHedges(now)
	if err != nil {
		logger.WithField("err", err.Error()).Warn("读取部分成交对冲失败")
		return
	}
	for _, h := range hedges {
		if err := e.manageHedge(ctx, h); err != nil {
			logger.WithFields(logrus.Fields{"hedge": h.ID(), "err": err.Error()}).Warn("对冲处置失败")
		}
	}
}

func (e *Engine) manageHedge(ctx context.Context, h *domain.Hedge) error {
	filled, pending, ok := h.FilledLeg()
	if !ok {
		return nil
	}
	now := e.now()

	hours, herr := ticker.HoursUntilClose(pending.Ticker, now)
	closeKnown := herr == nil

	market, err := e.venue.GetMarket(ctx, pending.Ticker)
	if err != nil {
		return err
	}
	candidate := discovery.MakerPrice(market.YesBid, market.YesAsk)

	in := policy.Input{
		HoursToClose:   hours,
		CloseKnown:     closeKnown,
		SincePlaced:    now.Sub(pending.CreatedAt),
		FilledPrice:    filled.LimitPrice,
		PendingPrice:   pending.LimitPrice,
		CandidatePrice: candidate,
	}
	decision := policy.Evaluate(in, policy.Config{
		MaxTotalCost:     e.cfg.Strategy.MaxTotalCost,
		RepriceIncrement: e.cfg.Strategy.RepriceIncrement,
	})

	logger.WithFields(logrus.Fields{
		"hedge":  h.ID(),
		"action": string(decision.Action),
		"reason": decision.Reason,
	}).Info("部分成交决策")

	switch decision.Action {
	case policy.ActionReprice:
		if err := e.exec.Reprice(ctx, pending, decision.Price); err != nil {
			return err
		}
		e.syncLedgerLeg(ctx, pending)
	case policy.ActionDerisk:
		return e.deriskHedge(ctx, h, filled, pending)
	}
	return nil
}

// deriskHedge 退出对冲：撤掉未成交腿、按买价卖出已成交腿并记入台账
func (e *Engine) deriskHedge(ctx context.Context, h *domain.Hedge, filled, pending *domain.Leg) error {
	market, err := e.venue.GetMarket(ctx, filled.Ticker)
	if err != nil {
		return err
	}
	bid := market.YesBid
	if bid < 1 {
		// 没有买盘时不卖：1 分抛掉等于锁死全额亏损，等下一轮再看
		logger.WithField("hedge", h.ID()).Warn("已成交腿无买盘，本轮不退出")
		return nil
	}
	if err := e.exec.Derisk(ctx, filled, pending, bid); err != nil {
		return err
	}
	if err := e.book.RecordDerisk(ctx, h.ID(), filled.Key(), bid); err != nil {
		logger.WithField("hedge", h.ID()).Warn("台账退出记录失败: " + err.Error())
	}
	return nil
}

// ForceSell 手动按当前买价卖出某条腿（控制面调用）。
// 没有买盘时拒绝，不做 1 分甩卖
func (e *Engine) ForceSell(ctx context.Context, tkr string, side domain.Side) error {
	leg, err := e.legs.Get(tkr, side)
	if err != nil {
		return err
	}
	if leg.Status.Terminal() {
		return errors.Errorf("engine: leg %s already terminal (%s)", leg.Key(), leg.Status)
	}
	if leg.Count < 1 {
		return errors.Errorf("engine: leg %s has no filled contracts", leg.Key())
	}

	market, err := e.venue.GetMarket(ctx, tkr)
	if err != nil {
		return err
	}
	bid := market.YesBid
	if bid < 1 {
		return errors.Errorf("engine: no bid on %s", tkr)
	}
	if leg.OrderID != "" {
		_ = e.venue.CancelOrder(ctx, leg.OrderID)
	}
	if _, err := e.venue.SellLimitOrder(ctx, tkr, leg.Side, bid, leg.Count); err != nil {
		return err
	}

	now := e.now()
	leg.Status = domain.LegStatusSold
	leg.OrderID = ""
	leg.SoldPrice = &bid
	leg.SoldAt = &now
	pnl := bid - leg.LimitPrice
	leg.PnL = &pnl
	if err := e.legs.Update(leg); err != nil {
		return err
	}
	e.syncLedgerLeg(ctx, leg)
	logger.WithFields(logrus.Fields{"leg": leg.Key(), "price": bid, "pnl": pnl}).Info("手动卖出")
	return nil
}

// ForceDerisk 手动触发某个对冲的退出（控制面调用）
func (e *Engine) ForceDerisk(ctx context.Context, hedgeID string) error {
	hedges, err := e.legs.AtRiskHedges(e.now())
	if err != nil {
		return err
	}
	for _, h := range hedges {
		if h.ID() != hedgeID {
			continue
		}
		filled, pending, ok := h.FilledLeg()
		if !ok {
			continue
		}
		return e.deriskHedge(ctx, h, filled, pending)
	}
	return errNoSuchHedge(hedgeID)
}
