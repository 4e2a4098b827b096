package engine

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MuditaSai/weather/internal/discovery"
	"github.com/MuditaSai/weather/internal/domain"
	"github.com/MuditaSai/weather/internal/kalshi"
	"github.com/MuditaSai/weather/internal/ledger"
	"github.com/MuditaSai/weather/internal/ticker"
	"github.com/MuditaSai/weather/pkg/config"
	"github.com/MuditaSai/weather/pkg/logger"
)

// TargetDate 本轮扫描的目标结算日（今天 + DaysAhead）
func (e *Engine) TargetDate() time.Time {
	now := e.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
		AddDate(0, 0, e.cfg.Strategy.DaysAhead)
}

// Scan 扫描全部配置的市场，找到第一个满足条件的对冲并下单。
// 每轮最多开一笔新仓，下一轮再看其他市场，避免一轮内集中吃风险
func (e *Engine) Scan(ctx context.Context) {
	target := e.TargetDate()
	dateKey := target.Format("2006-01-02")
	for _, m := range e.cfg.Markets {
		placed, err := e.scanMarket(ctx, m, target, dateKey)
		if err != nil {
			logger.WithFields(logrus.Fields{"series": m.Series, "err": err.Error()}).Warn("市场扫描失败")
			continue
		}
		if placed {
			return
		}
	}
}

// scanMarket 处理单个市场：查预报、拉行情、选桶、下两腿
func (e *Engine) scanMarket(ctx context.Context, m config.Market, target time.Time, dateKey string) (bool, error) {
	// 同一市场同一结算日只做一笔（含已退出的，不重复进场）
	live, err := e.legs.HasLiveLeg(m.Series, dateKey, e.now())
	if err != nil {
		return false, err
	}
	if live {
		return false, nil
	}
	tradeID := domain.HedgeID(m.Series, dateKey)
	if t, err := e.book.Trade(ctx, tradeID); err == nil {
		e.observeForecast(ctx, m, t, target)
		return false, nil
	} else if !isNotFound(err) {
		return false, err
	}

	forecast, err := e.forecasts.ForecastFor(ctx, m.Series, m.City, m.Type, m.NWSOffice, m.NWSGridpoint, target)
	if err != nil {
		return false, err
	}

	markets, err := e.venue.GetEventMarkets(ctx, kalshi.EventTicker(m.Series, target))
	if err != nil {
		return false, err
	}
	quotes := quotesFrom(markets)
	pair, ok := discovery.FindOpportunity(quotes, forecast.Temp, discovery.Config{
		MaxBucketPrice: e.cfg.Strategy.MaxBucketPrice,
		MaxTotalCost:   e.cfg.Strategy.MaxTotalCost,
		MinBucketPrice: e.cfg.Strategy.MinBucketPrice,
	})
	if !ok {
		logger.WithFields(logrus.Fields{"series": m.Series, "forecast": forecast.Temp}).Debug("无合适对冲")
		return false, nil
	}

	if err := e.enter(ctx, m, pair, forecast, dateKey); err != nil {
		return false, err
	}
	return true, nil
}

// quotesFrom 把交易所市场列表转成报价；桶边界统一走 ticker 解析，
// 避免交易所字段与代码各解析一套
func quotesFrom(markets []kalshi.Market) []discovery.Quote {
	quotes := make([]discovery.Quote, 0, len(markets))
	for _, m := range markets {
		if m.Status != "active" {
			continue
		}
		floor, cap, err := ticker.Strikes(m.Ticker)
		if err != nil {
			continue
		}
		quotes = append(quotes, discovery.Quote{
			Ticker: m.Ticker,
			Title:  m.Subtitle,
			Floor:  floor,
			Cap:    cap,
			YesBid: m.YesBid,
			YesAsk: m.YesAsk,
		})
	}
	return quotes
}

// enter 按发现结果下两腿限价单并落盘。第二腿失败时撤掉第一腿，
// 避免裸腿过夜；撤单失败则留给下一轮对账处理
func (e *Engine) enter(ctx context.Context, m config.Market, pair *discovery.Pair, forecast *domain.Forecast, dateKey string) error {
	count := e.cfg.Strategy.ContractCount
	now := e.now()

	lowID, err := e.venue.PlaceLimitOrder(ctx, pair.Low.Ticker, domain.SideYes, pair.Low.MakerPrice, count)
	if err != nil {
		return err
	}
	highID, err := e.venue.PlaceLimitOrder(ctx, pair.High.Ticker, domain.SideYes, pair.High.MakerPrice, count)
	if err != nil {
		_ = e.venue.CancelOrder(ctx, lowID)
		return err
	}

	lowLeg := legFromBucket(m.Series, &pair.Low, lowID, count, now)
	highLeg := legFromBucket(m.Series, &pair.High, highID, count, now)
	if err := e.legs.RecordIntent(lowLeg); err != nil {
		return err
	}
	if err := e.legs.RecordIntent(highLeg); err != nil {
		return err
	}

	trade := &domain.Trade{
		ID:              domain.HedgeID(m.Series, dateKey),
		Series:          m.Series,
		City:            m.City,
		TempType:        m.Type,
		MarketDate:      dateKey,
		Leg1:            tradeLegFrom(lowLeg),
		Leg2:            tradeLegFrom(highLeg),
		TotalCost:       pair.TotalCost,
		PotentialProfit: 100 - pair.TotalCost,
		PotentialLoss:   pair.TotalCost,
		Forecasts:       []domain.Forecast{*forecast},
		Outcome:         domain.OutcomeOpen,
		CreatedAt:       now,
	}
	if err := e.book.RecordEntry(ctx, trade); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"series":   m.Series,
		"low":      pair.Low.Ticker,
		"high":     pair.High.Ticker,
		"cost":     pair.TotalCost,
		"forecast": forecast.Temp,
	}).Info("开新对冲")
	return nil
}

// observeForecast 给在途对冲追加一次预报观测，结算后的记录不再追加
func (e *Engine) observeForecast(ctx context.Context, m config.Market, t *domain.Trade, target time.Time) {
	if t.Settled() {
		return
	}
	forecast, err := e.forecasts.ForecastFor(ctx, m.Series, m.City, m.Type, m.NWSOffice, m.NWSGridpoint, target)
	if err != nil {
		logger.WithFields(logrus.Fields{"series": m.Series, "err": err.Error()}).Debug("预报观测失败")
		return
	}
	if err := e.book.AppendForecast(ctx, t.ID, *forecast); err != nil {
		logger.WithField("trade", t.ID).Debug("预报追加失败: " + err.Error())
	}
}

func legFromBucket(series string, b *domain.Bucket, orderID string, count int, now time.Time) *domain.Leg {
	return &domain.Leg{
		Ticker:        b.Ticker,
		Side:          domain.SideYes,
		Series:        series,
		Title:         b.Title,
		Floor:         b.Floor,
		Cap:           b.Cap,
		LimitPrice:    b.MakerPrice,
		IntendedCount: count,
		OrderID:       orderID,
		Status:        domain.LegStatusPending,
		CreatedAt:     now,
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, ledger.ErrNotFound)
}
