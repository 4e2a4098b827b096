package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/MuditaSai/weather/internal/domain"
	"github.com/MuditaSai/weather/internal/kalshi"
	"github.com/MuditaSai/weather/internal/ledger"
	"github.com/MuditaSai/weather/internal/tracker"
	"github.com/MuditaSai/weather/pkg/config"
)

// fakeVenue 内存交易所：行情、订单、持仓都可编排
type fakeVenue struct {
	marketsByEvent map[string][]kalshi.Market
	positions      []kalshi.Position
	positionsErr   error
	placed         []string
	cancelled      []string
	sold           []string
	nextOrder      int
}

func (v *fakeVenue) GetEventMarkets(_ context.Context, eventTicker string) ([]kalshi.Market, error) {
	ms, ok := v.marketsByEvent[eventTicker]
	if !ok {
		return nil, errors.Errorf("no event %s", eventTicker)
	}
	return ms, nil
}

func (v *fakeVenue) GetMarket(_ context.Context, ticker string) (*kalshi.Market, error) {
	for _, ms := range v.marketsByEvent {
		for _, m := range ms {
			if m.Ticker == ticker {
				return &m, nil
			}
		}
	}
	return nil, errors.Errorf("no market %s", ticker)
}

func (v *fakeVenue) PlaceLimitOrder(_ context.Context, ticker string, _ domain.Side, _, _ int) (string, error) {
	v.nextOrder++
	v.placed = append(v.placed, ticker)
	return "ord-" + ticker, nil
}

func (v *fakeVenue) SellLimitOrder(_ context.Context, ticker string, _ domain.Side, _, _ int) (string, error) {
	v.sold = append(v.sold, ticker)
	return "sell-" + ticker, nil
}

func (v *fakeVenue) CancelOrder(_ context.Context, orderID string) error {
	v.cancelled = append(v.cancelled, orderID)
	return nil
}

func (v *fakeVenue) GetPositions(_ context.Context) ([]kalshi.Position, error) {
	if v.positionsErr != nil {
		return nil, v.positionsErr
	}
	return v.positions, nil
}

type fixedForecast struct {
	temp      float64
	err       error
	refreshed int
}

func (f *fixedForecast) Refresh() { f.refreshed++ }

func (f *fixedForecast) ForecastFor(_ context.Context, _, city, tempType, _, _ string, target time.Time) (*domain.Forecast, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Forecast{
		City: city, Type: tempType,
		TargetDate: target.Format("2006-01-02"),
		Temp:       f.temp, Source: "nws", ObservedAt: time.Now(),
	}, nil
}

func floatp(v int) *float64 { f := float64(v); return &f }

// 测试用的市场日：2026-09-01，引擎时钟固定在当天早上
var (
	testNow    = time.Date(2026, 9, 1, 8, 0, 0, 0, time.Local)
	eventCode  = kalshi.EventTicker("KXHIGHNY", testNow)
	lowTicker  = "KXHIGHNY-01SEP01-B49.5"
	highTicker = "KXHIGHNY-01SEP01-T51"
)

func testMarkets() []kalshi.Market {
	return []kalshi.Market{
		{Ticker: "KXHIGHNY-01SEP01-T48", Status: "active", YesBid: 4, YesAsk: 25},
		{Ticker: lowTicker, Status: "active", YesBid: 37, YesAsk: 40, FloorStrike: floatp(49), CapStrike: floatp(50)},
		{Ticker: highTicker, Status: "active", YesBid: 21, YesAsk: 25, FloorStrike: floatp(50)},
	}
}

func newTestEngine(t *testing.T, venue *fakeVenue) *Engine {
	t.Helper()
	cfg := &config.Config{
		Strategy: config.StrategyConfig{
			MaxBucketPrice: 50, MaxTotalCost: 100, MinBucketPrice: 15,
			RepriceIncrement: 1, ContractCount: 1, DaysAhead: 0, PollInterval: 300,
		},
		Markets: []config.Market{{
			Series: "KXHIGHNY", City: "New York", Type: "high",
			NWSOffice: "OKX", NWSGridpoint: "33,35",
		}},
	}
	legs, err := tracker.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open tracker: %v", err)
	}
	t.Cleanup(func() { _ = legs.Close() })
	book, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = book.Close() })

	e := New(cfg, venue, &fixedForecast{temp: 49.7}, legs, book)
	e.now = func() time.Time { return testNow }
	return e
}

func TestRunOncePlacesHedge(t *testing.T) {
	venue := &fakeVenue{marketsByEvent: map[string][]kalshi.Market{eventCode: testMarkets()}}
	e := newTestEngine(t, venue)

	e.RunOnce(context.Background())

	if len(venue.placed) != 2 {
		t.Fatalf("placed = %v, want both legs", venue.placed)
	}
	legs, err := e.legs.OpenLegs()
	if err != nil {
		t.Fatalf("OpenLegs: %v", err)
	}
	if len(legs) != 2 {
		t.Fatalf("open legs = %d, want 2", len(legs))
	}

	trade, err := e.book.Trade(context.Background(), "KXHIGHNY_2026-09-01")
	if err != nil {
		t.Fatalf("Trade: %v", err)
	}
	if trade.TotalCost != 60 || trade.Outcome != domain.OutcomeOpen {
		t.Fatalf("trade = %+v", trade)
	}
	if len(trade.Forecasts) != 1 || trade.Forecasts[0].Temp != 49.7 {
		t.Fatalf("forecasts = %+v", trade.Forecasts)
	}
}

func TestRunOnceIsIdempotentPerMarket(t *testing.T) {
	venue := &fakeVenue{marketsByEvent: map[string][]kalshi.Market{eventCode: testMarkets()}}
	e := newTestEngine(t, venue)

	e.RunOnce(context.Background())
	e.RunOnce(context.Background())

	if len(venue.placed) != 2 {
		t.Fatalf("placed = %v, want exactly one hedge", venue.placed)
	}
}

func TestRunOnceSkipsPassOnVenueFailure(t *testing.T) {
	venue := &fakeVenue{
		marketsByEvent: map[string][]kalshi.Market{eventCode: testMarkets()},
		positionsErr:   errors.New("exchange 503"),
	}
	e := newTestEngine(t, venue)

	e.RunOnce(context.Background())

	if len(venue.placed) != 0 {
		t.Fatalf("placed = %v, want nothing on a failed pass", venue.placed)
	}
}

func TestMonitorModeNeverOpens(t *testing.T) {
	venue := &fakeVenue{marketsByEvent: map[string][]kalshi.Market{eventCode: testMarkets()}}
	e := newTestEngine(t, venue)
	e.ScanEnabled = false

	e.RunOnce(context.Background())

	if len(venue.placed) != 0 {
		t.Fatalf("placed = %v, want none in monitor mode", venue.placed)
	}
}

func TestReconcileMarksFill(t *testing.T) {
	venue := &fakeVenue{marketsByEvent: map[string][]kalshi.Market{eventCode: testMarkets()}}
	e := newTestEngine(t, venue)
	e.RunOnce(context.Background())

	venue.positions = []kalshi.Position{{Ticker: lowTicker, Position: 1}}
	e.RunOnce(context.Background())

	leg, err := e.legs.Get(lowTicker, domain.SideYes)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if leg.Status != domain.LegStatusFilled || leg.FilledAt == nil {
		t.Fatalf("leg = %+v", leg)
	}

	// 台账快照同步
	trade, _ := e.book.Trade(context.Background(), "KXHIGHNY_2026-09-01")
	snap := trade.LegByKey(domain.LegKey(lowTicker, domain.SideYes))
	if snap == nil || snap.Status != domain.LegStatusFilled {
		t.Fatalf("ledger snapshot = %+v", snap)
	}
}

func TestAtRiskDeriskNearClose(t *testing.T) {
	venue := &fakeVenue{marketsByEvent: map[string][]kalshi.Market{eventCode: testMarkets()}}
	e := newTestEngine(t, venue)
	e.RunOnce(context.Background())

	// 低温腿成交，时钟拨到收盘前 1 小时
	venue.positions = []kalshi.Position{{Ticker: lowTicker, Position: 1}}
	e.RunOnce(context.Background())
	e.now = func() time.Time { return time.Date(2026, 9, 1, 22, 59, 0, 0, time.Local) }

	e.RunOnce(context.Background())

	if len(venue.sold) != 1 || venue.sold[0] != lowTicker {
		t.Fatalf("sold = %v, want the filled leg", venue.sold)
	}
	trade, _ := e.book.Trade(context.Background(), "KXHIGHNY_2026-09-01")
	if trade.Outcome != domain.OutcomeDerisked {
		t.Fatalf("outcome = %s", trade.Outcome)
	}
	if trade.PnL == nil || *trade.PnL != 37-38 { // 按买价 37 卖出，入场 38
		t.Fatalf("pnl = %v", trade.PnL)
	}

	filled, err := e.legs.Get(lowTicker, domain.SideYes)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if filled.Status != domain.LegStatusDeriskSold {
		t.Fatalf("filled leg status = %s", filled.Status)
	}
	pending, _ := e.legs.Get(highTicker, domain.SideYes)
	if pending.Status != domain.LegStatusDeriskCancelled {
		t.Fatalf("pending leg status = %s", pending.Status)
	}
}

// 测试内直接改盘口
func setBid(venue *fakeVenue, tkr string, bid int) {
	ms := venue.marketsByEvent[eventCode]
	for i := range ms {
		if ms[i].Ticker == tkr {
			ms[i].YesBid = bid
		}
	}
}

func TestAtRiskRepriceRestartsDwell(t *testing.T) {
	venue := &fakeVenue{marketsByEvent: map[string][]kalshi.Market{eventCode: testMarkets()}}
	e := newTestEngine(t, venue)
	e.RunOnce(context.Background())

	// 低温腿成交，高温腿 22¢ 挂着
	venue.positions = []kalshi.Position{{Ticker: lowTicker, Position: 1}}
	e.RunOnce(context.Background())

	// 买盘上移一档，等待期（2 小时）刚过，追价一次
	setBid(venue, highTicker, 22)
	e.now = func() time.Time { return testNow.Add(2*time.Hour + time.Minute) }
	e.RunOnce(context.Background())

	pending, err := e.legs.Get(highTicker, domain.SideYes)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if pending.RepriceCount != 1 || pending.LimitPrice != 23 {
		t.Fatalf("pending = %+v, want one reprice to 23", pending)
	}

	// 改价后等待期重新起算：5 分钟后买盘再动也不追，
	// 否则每轮都会多追一档
	setBid(venue, highTicker, 23)
	e.now = func() time.Time { return testNow.Add(2*time.Hour + 6*time.Minute) }
	e.RunOnce(context.Background())

	pending, _ = e.legs.Get(highTicker, domain.SideYes)
	if pending.RepriceCount != 1 {
		t.Fatalf("reprice count = %d, want still 1 inside the new dwell", pending.RepriceCount)
	}
	if pending.LimitPrice != 23 {
		t.Fatalf("limit = %d, want 23", pending.LimitPrice)
	}
}

func TestAtRiskHoldsWhenNoBid(t *testing.T) {
	venue := &fakeVenue{marketsByEvent: map[string][]kalshi.Market{eventCode: testMarkets()}}
	e := newTestEngine(t, venue)
	e.RunOnce(context.Background())

	venue.positions = []kalshi.Position{{Ticker: lowTicker, Position: 1}}
	e.RunOnce(context.Background())

	// 收盘前按理该退出，但已成交腿没有买盘：本轮什么都不卖
	setBid(venue, lowTicker, 0)
	e.now = func() time.Time { return time.Date(2026, 9, 1, 22, 59, 0, 0, time.Local) }
	e.RunOnce(context.Background())

	if len(venue.sold) != 0 {
		t.Fatalf("sold = %v, want nothing without a bid", venue.sold)
	}
	leg, _ := e.legs.Get(lowTicker, domain.SideYes)
	if leg.Status != domain.LegStatusFilled {
		t.Fatalf("leg status = %s, want still filled", leg.Status)
	}
	trade, _ := e.book.Trade(context.Background(), "KXHIGHNY_2026-09-01")
	if trade.Outcome != domain.OutcomeOpen {
		t.Fatalf("outcome = %s, want still open", trade.Outcome)
	}

	// 买盘回来后下一轮正常退出
	setBid(venue, lowTicker, 12)
	e.RunOnce(context.Background())
	if len(venue.sold) != 1 {
		t.Fatalf("sold = %v, want the filled leg once a bid exists", venue.sold)
	}
}

func TestForceSell(t *testing.T) {
	venue := &fakeVenue{marketsByEvent: map[string][]kalshi.Market{eventCode: testMarkets()}}
	e := newTestEngine(t, venue)
	e.RunOnce(context.Background())
	venue.positions = []kalshi.Position{{Ticker: lowTicker, Position: 1}}
	e.RunOnce(context.Background())

	// 未成交腿拒卖
	if err := e.ForceSell(context.Background(), highTicker, domain.SideYes); err == nil {
		t.Fatal("selling an unfilled leg must fail")
	}

	if err := e.ForceSell(context.Background(), lowTicker, domain.SideYes); err != nil {
		t.Fatalf("ForceSell: %v", err)
	}
	if len(venue.sold) != 1 || venue.sold[0] != lowTicker {
		t.Fatalf("sold = %v", venue.sold)
	}
	leg, _ := e.legs.Get(lowTicker, domain.SideYes)
	if leg.Status != domain.LegStatusSold || leg.SoldPrice == nil || *leg.SoldPrice != 37 {
		t.Fatalf("leg = %+v", leg)
	}
	if leg.PnL == nil || *leg.PnL != 37-38 {
		t.Fatalf("pnl = %v", leg.PnL)
	}

	// 已终态的腿不允许再卖
	if err := e.ForceSell(context.Background(), lowTicker, domain.SideYes); err == nil {
		t.Fatal("selling a terminal leg must fail")
	}

	// 台账快照同步
	trade, _ := e.book.Trade(context.Background(), "KXHIGHNY_2026-09-01")
	snap := trade.LegByKey(domain.LegKey(lowTicker, domain.SideYes))
	if snap == nil || snap.Status != domain.LegStatusSold {
		t.Fatalf("ledger snapshot = %+v", snap)
	}
}

func TestForceSellRejectsWithoutBid(t *testing.T) {
	venue := &fakeVenue{marketsByEvent: map[string][]kalshi.Market{eventCode: testMarkets()}}
	e := newTestEngine(t, venue)
	e.RunOnce(context.Background())
	venue.positions = []kalshi.Position{{Ticker: lowTicker, Position: 1}}
	e.RunOnce(context.Background())

	setBid(venue, lowTicker, 0)
	if err := e.ForceSell(context.Background(), lowTicker, domain.SideYes); err == nil {
		t.Fatal("selling into an empty book must fail")
	}
	if len(venue.sold) != 0 {
		t.Fatalf("sold = %v", venue.sold)
	}
}

func TestMonitorModeExitsWhenClear(t *testing.T) {
	venue := &fakeVenue{marketsByEvent: map[string][]kalshi.Market{eventCode: testMarkets()}}
	e := newTestEngine(t, venue)
	e.ScanEnabled = false

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("monitor kept running with nothing to watch")
	}
}

func TestMonitorModeKeepsWatchingAtRisk(t *testing.T) {
	venue := &fakeVenue{marketsByEvent: map[string][]kalshi.Market{eventCode: testMarkets()}}
	e := newTestEngine(t, venue)
	e.RunOnce(context.Background())
	venue.positions = []kalshi.Position{{Ticker: lowTicker, Position: 1}}
	e.RunOnce(context.Background())

	e.ScanEnabled = false
	if e.monitorDone() {
		t.Fatal("monitor must keep running while a hedge is partially filled")
	}
}

func TestRecordSettlementManualWin(t *testing.T) {
	venue := &fakeVenue{marketsByEvent: map[string][]kalshi.Market{eventCode: testMarkets()}}
	e := newTestEngine(t, venue)
	e.RunOnce(context.Background())
	venue.positions = []kalshi.Position{
		{Ticker: lowTicker, Position: 1},
		{Ticker: highTicker, Position: 1},
	}
	e.RunOnce(context.Background())

	// 交易所一直不回报结果，手动补录低温桶命中
	err := e.RecordSettlement(context.Background(), "KXHIGHNY", "2026-09-01", "win", lowTicker, 49.0)
	if err != nil {
		t.Fatalf("RecordSettlement: %v", err)
	}

	trade, _ := e.book.Trade(context.Background(), "KXHIGHNY_2026-09-01")
	if trade.Outcome != domain.OutcomeWin || !trade.Settled() {
		t.Fatalf("trade = %+v", trade)
	}
	winner, _ := e.legs.Get(lowTicker, domain.SideYes)
	if winner.Status != domain.LegStatusWonSold {
		t.Fatalf("winner status = %s", winner.Status)
	}
	loser, _ := e.legs.Get(highTicker, domain.SideYes)
	if loser.Status != domain.LegStatusSold {
		t.Fatalf("loser status = %s", loser.Status)
	}

	if err := e.RecordSettlement(context.Background(), "KXHIGHNY", "2026-09-01", "draw", "", 0); err == nil {
		t.Fatal("unknown outcome must be rejected")
	}
	if err := e.RecordSettlement(context.Background(), "KXHIGHNY", "2026-09-01", "win", "", 49.0); err == nil {
		t.Fatal("win without a winning bucket must be rejected")
	}
}

func TestSettleWin(t *testing.T) {
	venue := &fakeVenue{marketsByEvent: map[string][]kalshi.Market{eventCode: testMarkets()}}
	e := newTestEngine(t, venue)
	e.RunOnce(context.Background())

	// 两腿都成交，随后低温桶命中
	venue.positions = []kalshi.Position{
		{Ticker: lowTicker, Position: 1},
		{Ticker: highTicker, Position: 1},
	}
	e.RunOnce(context.Background())

	ms := venue.marketsByEvent[eventCode]
	for i := range ms {
		switch ms[i].Ticker {
		case lowTicker:
			ms[i].Result = "yes"
		case highTicker:
			ms[i].Result = "no"
		}
	}
	e.RunOnce(context.Background())

	trade, _ := e.book.Trade(context.Background(), "KXHIGHNY_2026-09-01")
	if trade.Outcome != domain.OutcomeWin || !trade.Settled() {
		t.Fatalf("trade = %+v", trade)
	}
	if trade.PnL == nil || *trade.PnL != 40 {
		t.Fatalf("pnl = %v, want 40", trade.PnL)
	}

	winner, _ := e.legs.Get(lowTicker, domain.SideYes)
	if winner.Status != domain.LegStatusWonSold {
		t.Fatalf("winner status = %s", winner.Status)
	}
	loser, _ := e.legs.Get(highTicker, domain.SideYes)
	if loser.Status != domain.LegStatusSold {
		t.Fatalf("loser status = %s", loser.Status)
	}
}
