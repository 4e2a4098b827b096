package domain

import "fmt"

// HedgeStatus 对冲整体状态（由两条腿的状态推导，不单独存储）
type HedgeStatus string

const (
	// HedgeStatusPending 两腿都未成交
	HedgeStatusPending HedgeStatus = "pending"
	// HedgeStatusAtRisk 正好一腿成交、另一腿仍在等待（部分对冲，策略重点处理的状态）
	HedgeStatusAtRisk HedgeStatus = "at_risk"
	// HedgeStatusReady 两腿都已成交，等待结算
	HedgeStatusReady HedgeStatus = "ready"
	// HedgeStatusClosed 至少一条腿进入终态
	HedgeStatusClosed HedgeStatus = "closed"
)

// Hedge 一组对冲：同一系列、同一结算日的两条腿
type Hedge struct {
	Series     string `json:"series"`      // 系列代码（城市+温度类型）
	MarketDate string `json:"market_date"` // 结算日，格式 YYYY-MM-DD
	Legs       [2]*Leg
}

// HedgeID 生成对冲/台账记录的唯一标识
func HedgeID(series, marketDate string) string {
	return fmt.Sprintf("%s_%s", series, marketDate)
}

// ID 对冲的唯一标识（series + 结算日）
func (h *Hedge) ID() string {
	return HedgeID(h.Series, h.MarketDate)
}

// TotalCost 两腿的入场成本之和（分）
func (h *Hedge) TotalCost() int {
	return h.Legs[0].EntryCost() + h.Legs[1].EntryCost()
}

// Status 推导对冲整体状态
func (h *Hedge) Status() HedgeStatus {
	l1, l2 := h.Legs[0], h.Legs[1]
	if l1.Status.Terminal() || l2.Status.Terminal() {
		return HedgeStatusClosed
	}
	if l1.Status == LegStatusFilled && l2.Status == LegStatusFilled {
		return HedgeStatusReady
	}
	if (l1.Status == LegStatusFilled && l2.Status.Open()) ||
		(l2.Status == LegStatusFilled && l1.Status.Open()) {
		return HedgeStatusAtRisk
	}
	return HedgeStatusPending
}

// FilledLeg 返回已成交的腿和未成交的腿（仅在 at_risk 状态下有意义）
func (h *Hedge) FilledLeg() (filled, pending *Leg, ok bool) {
	l1, l2 := h.Legs[0], h.Legs[1]
	if l1.Status == LegStatusFilled && l2.Status.Open() {
		return l1, l2, true
	}
	if l2.Status == LegStatusFilled && l1.Status.Open() {
		return l2, l1, true
	}
	return nil, nil, false
}
