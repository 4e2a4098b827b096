package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/MuditaSai/weather/internal/domain"
	"github.com/MuditaSai/weather/internal/ledger"
	"github.com/MuditaSai/weather/pkg/logger"
)

func errNoSuchHedge(id string) error {
	return errors.Errorf("engine: no at-risk hedge %s", id)
}

// Settle 检查双腿已成交的对冲是否已出结算结果，命中记盈、未中记亏，
// 并把腿置为终态释放该市场
func (e *Engine) Settle(ctx context.Context) {
	hedges, err := e.legs.Hedges(e.now())
	if err != nil {
		logger.WithField("err", err.Error()).Warn("读取对冲失败")
		return
	}
	for _, h := range hedges {
		if h.Status() != domain.HedgeStatusReady {
			continue
		}
		if err := e.settleHedge(ctx, h); err != nil {
			logger.WithFields(logrus.Fields{"hedge": h.ID(), "err": err.Error()}).Warn("结算检查失败")
		}
	}
}

// settleHedge 两腿都查一次结算结果；交易所还没出结果时什么都不做
func (e *Engine) settleHedge(ctx context.Context, h *domain.Hedge) error {
	results := make([]string, 2)
	for i, leg := range h.Legs {
		m, err := e.venue.GetMarket(ctx, leg.Ticker)
		if err != nil {
			return err
		}
		results[i] = m.Result
	}
	if results[0] == "" || results[1] == "" {
		return nil
	}

	var winner *domain.Leg
	if results[0] == "yes" {
		winner = h.Legs[0]
	} else if results[1] == "yes" {
		winner = h.Legs[1]
	}

	now := e.now()
	if winner != nil {
		// 命中桶按 1 美元结算；实际温度记为命中桶中点（交易所不回报观测值）
		mid, _ := domain.BucketMidpoint(winner.Floor, winner.Cap)
		if err := e.book.RecordWin(ctx, h.ID(), mid, winner.Ticker); err != nil && !errors.Is(err, ledger.ErrSettled) {
			logger.WithField("hedge", h.ID()).Warn("台账记盈失败: " + err.Error())
		}
	} else {
		mid, _ := domain.BucketMidpoint(h.Legs[1].Floor, h.Legs[1].Cap)
		if err := e.book.RecordLoss(ctx, h.ID(), mid); err != nil && !errors.Is(err, ledger.ErrSettled) {
			logger.WithField("hedge", h.ID()).Warn("台账记亏失败: " + err.Error())
		}
	}

	winningTicker := ""
	if winner != nil {
		winningTicker = winner.Ticker
	}
	if err := e.closeOut(h, winningTicker, now); err != nil {
		return err
	}

	outcome := "loss"
	if winner != nil {
		outcome = "win"
	}
	logger.WithFields(logrus.Fields{"hedge": h.ID(), "outcome": outcome}).Info("对冲结算")
	return nil
}

// closeOut 把对冲两腿置为终态：命中桶按 100¢ 结算，其余归零
func (e *Engine) closeOut(h *domain.Hedge, winningTicker string, now time.Time) error {
	for _, leg := range h.Legs {
		settled := 0
		if winningTicker != "" && leg.Ticker == winningTicker {
			settled = 100
			leg.Status = domain.LegStatusWonSold
		} else {
			leg.Status = domain.LegStatusSold
		}
		pnl := settled - leg.LimitPrice
		leg.PnL = &pnl
		leg.SoldPrice = &settled
		leg.SoldAt = &now
		if err := e.legs.Update(leg); err != nil {
			return err
		}
	}
	return nil
}

// RecordSettlement 手动补录一笔结算，交易所迟迟不回报结果时从控制面调用。
// outcome 只接受 win / loss，win 必须带命中桶
func (e *Engine) RecordSettlement(ctx context.Context, series, date, outcome, winningBucket string, actualTemp float64) error {
	id := domain.HedgeID(series, date)
	switch outcome {
	case "win":
		if winningBucket == "" {
			return errors.New("engine: win settlement needs a winning bucket")
		}
		if err := e.book.RecordWin(ctx, id, actualTemp, winningBucket); err != nil {
			return err
		}
	case "loss":
		if err := e.book.RecordLoss(ctx, id, actualTemp); err != nil {
			return err
		}
	default:
		return errors.Errorf("engine: bad outcome %q", outcome)
	}

	// 腿簿里还挂着这笔对冲的话一并置为终态
	hedges, err := e.legs.Hedges(e.now())
	if err != nil {
		return err
	}
	for _, h := range hedges {
		if h.ID() != id {
			continue
		}
		if err := e.closeOut(h, winningBucket, e.now()); err != nil {
			return err
		}
		break
	}
	logger.WithFields(logrus.Fields{"hedge": id, "outcome": outcome}).Info("手动补录结算")
	return nil
}
