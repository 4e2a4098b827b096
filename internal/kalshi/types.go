package kalshi

import "fmt"

// Market 交易所返回的单个市场（温度桶）
type Market struct {
	Ticker      string   `json:"ticker"`
	EventTicker string   `json:"event_ticker"`
	Title       string   `json:"title"`
	Subtitle    string   `json:"subtitle"`
	Status      string   `json:"status"`
	YesBid      int      `json:"yes_bid"`
	YesAsk      int      `json:"yes_ask"`
	FloorStrike *float64 `json:"floor_strike,omitempty"`
	CapStrike   *float64 `json:"cap_strike,omitempty"`
	Result      string   `json:"result,omitempty"`
}

type eventResponse struct {
	Markets []Market `json:"markets"`
}

type marketResponse struct {
	Market Market `json:"market"`
}

// Order 下单回执
type Order struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type orderResponse struct {
	Order Order `json:"order"`
}

type orderRequest struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Side          string `json:"side"`
	Action        string `json:"action"`
	Type          string `json:"type"`
	Count         int    `json:"count"`
	YesPrice      *int   `json:"yes_price,omitempty"`
	NoPrice       *int   `json:"no_price,omitempty"`
}

// Position 持仓快照中的一行（按市场净持仓）
type Position struct {
	Ticker   string `json:"ticker"`
	Position int    `json:"position"`
}

type positionsResponse struct {
	MarketPositions []Position `json:"market_positions"`
	Cursor          string     `json:"cursor"`
}

type balanceResponse struct {
	Balance int `json:"balance"`
}

// StatusError 交易所返回非 2xx 时的错误，保留状态码用于区分
// 业务拒单（4xx，可按策略处理）和基础设施故障（5xx，整轮跳过）
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("kalshi: http %d: %s", e.Code, e.Body)
}

// Rejection 是否为业务层拒单
func (e *StatusError) Rejection() bool {
	return e.Code >= 400 && e.Code < 500
}
