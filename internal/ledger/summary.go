package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/MuditaSai/weather/internal/domain"
)

// DaySummary aggregates every trade settling on one market date.
// Money fields are cents.
type DaySummary struct {
	MarketDate    string `json:"market_date"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
	Derisked      int    `json:"derisked"`
	Open          int    `json:"open"`
	WonProfit     int    `json:"won_profit"`
	LostLoss      int    `json:"lost_loss"`
	DeriskPnL     int    `json:"derisk_pnl"`
	Net           int    `json:"net"`
	TotalInvested int    `json:"total_invested"`
}

// Summary is the full performance rollup: one row per market date plus
// overall totals.
type Summary struct {
	Days []DaySummary `json:"days"`

	Wins          int `json:"wins"`
	Losses        int `json:"losses"`
	Derisked      int `json:"derisked"`
	Open          int `json:"open"`
	WonProfit     int `json:"won_profit"`
	LostLoss      int `json:"lost_loss"`
	DeriskPnL     int `json:"derisk_pnl"`
	Net           int `json:"net"`
	TotalInvested int `json:"total_invested"`
}

// Summarize folds the trade list into per-day and overall totals. It
// never mutates its input and holds no state, so the same trades
// always produce the same summary.
func Summarize(trades []*domain.Trade) Summary {
	var s Summary
	byDay := make(map[string]*DaySummary)
	order := make([]string, 0)

	for _, t := range trades {
		day, ok := byDay[t.MarketDate]
		if !ok {
			day = &DaySummary{MarketDate: t.MarketDate}
			byDay[t.MarketDate] = day
			order = append(order, t.MarketDate)
		}
		day.TotalInvested += t.TotalCost
		switch t.Outcome {
		case domain.OutcomeWin:
			day.Wins++
			if t.PnL != nil {
				day.WonProfit += *t.PnL
			}
		case domain.OutcomeLoss:
			day.Losses++
			if t.PnL != nil {
				day.LostLoss += -*t.PnL
			}
		case domain.OutcomeDerisked:
			day.Derisked++
			if t.PnL != nil {
				day.DeriskPnL += *t.PnL
			}
		default:
			day.Open++
		}
	}

	for _, date := range order {
		day := byDay[date]
		day.Net = day.WonProfit - day.LostLoss + day.DeriskPnL
		s.Days = append(s.Days, *day)
		s.Wins += day.Wins
		s.Losses += day.Losses
		s.Derisked += day.Derisked
		s.Open += day.Open
		s.WonProfit += day.WonProfit
		s.LostLoss += day.LostLoss
		s.DeriskPnL += day.DeriskPnL
		s.TotalInvested += day.TotalInvested
	}
	s.Net = s.WonProfit - s.LostLoss + s.DeriskPnL
	return s
}

// Dollars renders a cent amount as a dollar string, e.g. -15 -> "-0.15".
func Dollars(cents int) string {
	return decimal.New(int64(cents), -2).StringFixed(2)
}
