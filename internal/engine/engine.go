// Package engine 驱动整个对冲生命周期：单 goroutine 轮询，
// 每轮依次执行 对账 -> 部分成交处置 -> 结算 -> 开新仓
package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MuditaSai/weather/internal/domain"
	"github.com/MuditaSai/weather/internal/kalshi"
	"github.com/MuditaSai/weather/internal/ledger"
	"github.com/MuditaSai/weather/internal/policy"
	"github.com/MuditaSai/weather/internal/ticker"
	"github.com/MuditaSai/weather/internal/tracker"
	"github.com/MuditaSai/weather/pkg/config"
	"github.com/MuditaSai/weather/pkg/logger"
	"github.com/MuditaSai/weather/pkg/sigchan"
)

// Venue 交易所网关（engine 所需的全部能力）
type Venue interface {
	GetEventMarkets(ctx context.Context, eventTicker string) ([]kalshi.Market, error)
	GetMarket(ctx context.Context, ticker string) (*kalshi.Market, error)
	PlaceLimitOrder(ctx context.Context, ticker string, side domain.Side, price, count int) (string, error)
	SellLimitOrder(ctx context.Context, ticker string, side domain.Side, price, count int) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetPositions(ctx context.Context) ([]kalshi.Position, error)
}

// ForecastSource 预报源
type ForecastSource interface {
	ForecastFor(ctx context.Context, series, city, tempType, office, gridpoint string, targetDate time.Time) (*domain.Forecast, error)
	// Refresh 丢弃缓存的预报，下次查询必须回源
	Refresh()
}

// Engine 策略引擎。所有状态变更都发生在单个轮询 goroutine 内，
// 存储层自身的事务保证崩溃后可恢复
type Engine struct {
	cfg       *config.Config
	venue     Venue
	forecasts ForecastSource
	legs      *tracker.Store
	book      *ledger.Ledger
	exec      *policy.Executor
	wake      *sigchan.Chan
	now       func() time.Time

	// ScanEnabled 为 false 时只做对账/处置/结算，不开新仓（--monitor 模式）
	ScanEnabled bool
}

func New(cfg *config.Config, venue Venue, forecasts ForecastSource, legs *tracker.Store, book *ledger.Ledger) *Engine {
	e := &Engine{
		cfg:         cfg,
		venue:       venue,
		forecasts:   forecasts,
		legs:        legs,
		book:        book,
		wake:        sigchan.New(1),
		now:         time.Now,
		ScanEnabled: true,
	}
	// 执行器与引擎共用时钟，改价时间戳才与轮询一致
	e.exec = policy.NewExecutor(venue, legs, func() time.Time { return e.now() })
	return e
}

// Nudge 请求尽快执行一轮（非阻塞），供信号处理等外部触发使用
func (e *Engine) Nudge() {
	e.wake.Emit()
}

// RefreshForecasts 清空预报缓存（会话重置时调用）
func (e *Engine) RefreshForecasts() {
	e.forecasts.Refresh()
}

// Run 轮询主循环，ctx 取消后返回。
// 监控模式（ScanEnabled 为 false）下部分对冲全部了结后自行退出
func (e *Engine) Run(ctx context.Context) error {
	logger.WithField("interval", e.cfg.PollDuration().String()).Info("引擎启动")
	e.RunOnce(ctx)
	if e.monitorDone() {
		logger.Info("无部分对冲需要盯守，监控结束")
		return nil
	}
	tick := time.NewTicker(e.cfg.PollDuration())
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("引擎停止")
			return ctx.Err()
		case <-tick.C:
			e.RunOnce(ctx)
		case <-e.wake.C():
			e.RunOnce(ctx)
		}
		if e.monitorDone() {
			logger.Info("无部分对冲需要盯守，监控结束")
			return nil
		}
	}
}

// monitorDone 监控模式下已无部分成交对冲时返回 true
func (e *Engine) monitorDone() bool {
	if e.ScanEnabled {
		return false
	}
	atRisk, err := e.legs.AtRiskHedges(e.now())
	if err != nil {
		return false
	}
	return len(atRisk) == 0
}

// RunOnce 执行一轮完整处理。交易所持仓拉不到时整轮跳过，
// 宁可什么都不做也不在坏数据上动仓位
func (e *Engine) RunOnce(ctx context.Context) {
	if err := e.Reconcile(ctx); err != nil {
		logger.WithField("err", err.Error()).Warn("对账失败，本轮跳过")
		return
	}
	e.ManageAtRisk(ctx)
	e.Settle(ctx)
	if e.ScanEnabled {
		e.Scan(ctx)
	}
}

// Reconcile 用交易所持仓快照校正本地腿状态
func (e *Engine) Reconcile(ctx context.Context) error {
	positions, err := e.venue.GetPositions(ctx)
	if err != nil {
		return err
	}
	holdings := make([]tracker.Holding, 0, len(positions))
	for _, p := range positions {
		holdings = append(holdings, tracker.Holding{Ticker: p.Ticker, Count: p.Position})
	}
	changed, err := e.legs.Reconcile(holdings)
	if err != nil {
		return err
	}
	for _, leg := range changed {
		logger.WithFields(logrus.Fields{
			"leg":    leg.Key(),
			"status": string(leg.Status),
			"count":  leg.Count,
		}).Info("腿状态变更")
		e.syncLedgerLeg(ctx, leg)
	}
	return nil
}

// syncLedgerLeg 把腿的最新状态回写台账快照（台账不存在该记录时忽略）
func (e *Engine) syncLedgerLeg(ctx context.Context, leg *domain.Leg) {
	dateKey, series, ok := e.marketKeyOf(leg)
	if !ok {
		return
	}
	snapshot := tradeLegFrom(leg)
	if err := e.book.UpdateLeg(ctx, domain.HedgeID(series, dateKey), snapshot); err != nil {
		logger.WithField("leg", leg.Key()).Debug("台账快照未更新: " + err.Error())
	}
}

// marketKeyOf 从腿的 ticker 推导结算日与系列名，解析失败时返回 false
func (e *Engine) marketKeyOf(leg *domain.Leg) (dateKey, series string, ok bool) {
	series, err := ticker.Series(leg.Ticker)
	if err != nil {
		return "", "", false
	}
	dateKey, err = ticker.DateKey(leg.Ticker, e.now())
	if err != nil {
		return "", "", false
	}
	return dateKey, series, true
}

func tradeLegFrom(leg *domain.Leg) domain.TradeLeg {
	return domain.TradeLeg{
		Key:          leg.Key(),
		Ticker:       leg.Ticker,
		Title:        leg.Title,
		Floor:        leg.Floor,
		Cap:          leg.Cap,
		Side:         leg.Side,
		OrderPrice:   leg.LimitPrice,
		OrderID:      leg.OrderID,
		OrderTime:    leg.CreatedAt,
		FillTime:     leg.FilledAt,
		Status:       leg.Status,
		Count:        leg.Count,
		RepriceCount: leg.RepriceCount,
		SoldPrice:    leg.SoldPrice,
		SoldTime:     leg.SoldAt,
		PnL:          leg.PnL,
	}
}
