package domain

import (
	"fmt"
	"time"
)

// Side 合约方向
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// LegStatus 腿的生命周期状态
type LegStatus string

const (
	// LegStatusPending 订单已挂出，尚无成交
	LegStatusPending LegStatus = "pending"
	// LegStatusPartial 部分成交（已成交数量 < 目标数量）
	LegStatusPartial LegStatus = "partial"
	// LegStatusFilled 完全成交
	LegStatusFilled LegStatus = "filled"

	// 以下为终态：腿一旦进入终态即冻结，只保留审计记录

	// LegStatusDeriskSold 去风险时卖出（已成交腿）
	LegStatusDeriskSold LegStatus = "derisk_sold"
	// LegStatusDeriskCancelled 去风险时撤单（未成交腿）
	LegStatusDeriskCancelled LegStatus = "derisk_cancelled"
	// LegStatusWonSold 结算获胜后卖出
	LegStatusWonSold LegStatus = "won_sold"
	// LegStatusSold 手动卖出
	LegStatusSold LegStatus = "sold"
)

// Terminal 是否为终态
func (s LegStatus) Terminal() bool {
	switch s {
	case LegStatusDeriskSold, LegStatusDeriskCancelled, LegStatusWonSold, LegStatusSold:
		return true
	}
	return false
}

// Open 是否仍在等待成交（pending 或 partial）
func (s LegStatus) Open() bool {
	return s == LegStatusPending || s == LegStatusPartial
}

// Leg 对冲的一条腿：一个温度桶上的限价单及其成交跟踪
type Leg struct {
	Ticker string `json:"ticker"`
	Side   Side   `json:"side"`
	Series string `json:"series"`
	Title  string `json:"title,omitempty"`

	// 桶的温度区间（开区间端点为 nil，表示 "X or below" / "X or above"）
	Floor *int `json:"floor,omitempty"`
	Cap   *int `json:"cap,omitempty"`

	LimitPrice    int       `json:"limit_price"`    // 限价（分）
	IntendedCount int       `json:"intended_count"` // 目标合约数
	Count         int       `json:"count"`          // 交易所报告的已成交数
	OrderID       string    `json:"order_id,omitempty"`
	Status        LegStatus `json:"status"`
	RepriceCount  int       `json:"reprice_count"`

	CreatedAt   time.Time  `json:"created_at"`
	FilledAt    *time.Time `json:"filled_at,omitempty"`
	SoldPrice   *int       `json:"sold_price,omitempty"`
	SoldAt      *time.Time `json:"sold_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	PnL         *int       `json:"pnl,omitempty"` // 每腿已实现盈亏（分），卖出时写入
}

// LegKey 生成腿的唯一键
func LegKey(ticker string, side Side) string {
	return fmt.Sprintf("%s_%s", ticker, side)
}

// Key 腿的唯一键（ticker + side）
func (l *Leg) Key() string {
	return LegKey(l.Ticker, l.Side)
}

// EntryCost 腿的入场成本（分）
func (l *Leg) EntryCost() int {
	return l.LimitPrice
}
