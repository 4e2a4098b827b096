package domain

import "time"

// Outcome 对冲的最终结果
type Outcome string

const (
	OutcomeOpen     Outcome = "open"     // 未结算
	OutcomeWin      Outcome = "win"      // 一腿命中，按 100¢ 结算
	OutcomeLoss     Outcome = "loss"     // 两腿都未命中
	OutcomeDerisked Outcome = "derisked" // 部分成交后主动退出
)

// TradeLeg 台账中一条腿的快照
type TradeLeg struct {
	Key          string     `json:"key"`
	Ticker       string     `json:"ticker"`
	Title        string     `json:"title,omitempty"`
	Floor        *int       `json:"floor,omitempty"`
	Cap          *int       `json:"cap,omitempty"`
	Side         Side       `json:"side"`
	OrderPrice   int        `json:"order_price"` // 限价单：成交价 = 挂单价
	OrderID      string     `json:"order_id,omitempty"`
	OrderTime    time.Time  `json:"order_timestamp"`
	FillTime     *time.Time `json:"fill_timestamp,omitempty"`
	Status       LegStatus  `json:"status"`
	Count        int        `json:"count"`
	RepriceCount int        `json:"reprice_count"`
	SoldPrice    *int       `json:"sold_price,omitempty"`
	SoldTime     *time.Time `json:"sold_timestamp,omitempty"`
	PnL          *int       `json:"pnl,omitempty"`
}

// TradeExit 对冲的退出记录
type TradeExit struct {
	Type       string    `json:"type"` // win / loss / derisk
	Timestamp  time.Time `json:"timestamp"`
	SoldLeg    string    `json:"sold_leg,omitempty"`
	SoldPrice  int       `json:"sold_price,omitempty"`
	EntryPrice int       `json:"entry_price,omitempty"`
	PnL        int       `json:"pnl"`
}

// Trade 台账中一条对冲的完整生命周期记录
// settled_at 写入后记录冻结，只允许结算前追加预报观测
type Trade struct {
	ID         string `json:"id"` // series_YYYY-MM-DD
	Series     string `json:"series"`
	City       string `json:"city"`
	TempType   string `json:"temp_type"`   // HIGH / LOW
	MarketDate string `json:"market_date"` // YYYY-MM-DD

	Leg1 TradeLeg `json:"leg1"`
	Leg2 TradeLeg `json:"leg2"`

	TotalCost       int `json:"total_cost"`
	PotentialProfit int `json:"potential_profit"` // 100 - total_cost
	PotentialLoss   int `json:"potential_loss"`   // total_cost

	Forecasts []Forecast `json:"forecasts"`

	Outcome       Outcome    `json:"outcome"`
	ActualTemp    *float64   `json:"actual_temp,omitempty"`
	WinningBucket string     `json:"winning_bucket,omitempty"`
	PnL           *int       `json:"pnl,omitempty"`
	Exit          *TradeExit `json:"exit,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
}

// Settled 是否已结算
func (t *Trade) Settled() bool {
	return t.SettledAt != nil
}

// LegByKey 按腿键查找台账中的腿快照
func (t *Trade) LegByKey(key string) *TradeLeg {
	if t.Leg1.Key == key {
		return &t.Leg1
	}
	if t.Leg2.Key == key {
		return &t.Leg2
	}
	return nil
}
