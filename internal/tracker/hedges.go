package tracker

import (
	"sort"
	"time"

	"github.com/MuditaSai/weather/internal/domain"
	"github.com/MuditaSai/weather/internal/ticker"
)

// Hedges groups the stored legs into per-market hedges, keyed by
// series and settlement date. Legs whose tickers cannot be parsed are
// skipped. Within a hedge the lower-temperature leg comes first.
func (s *Store) Hedges(now time.Time) ([]*domain.Hedge, error) {
	legs, err := s.List()
	if err != nil {
		return nil, err
	}
	byMarket := make(map[string]*domain.Hedge)
	for _, leg := range legs {
		dateKey, err := ticker.DateKey(leg.Ticker, now)
		if err != nil {
			continue
		}
		series, err := ticker.Series(leg.Ticker)
		if err != nil {
			continue
		}
		id := domain.HedgeID(series, dateKey)
		h, ok := byMarket[id]
		if !ok {
			h = &domain.Hedge{Series: series, MarketDate: dateKey}
			byMarket[id] = h
		}
		switch {
		case h.Legs[0] == nil:
			h.Legs[0] = leg
		case h.Legs[1] == nil:
			h.Legs[1] = leg
		}
	}
	hedges := make([]*domain.Hedge, 0, len(byMarket))
	for _, h := range byMarket {
		if h.Legs[0] == nil || h.Legs[1] == nil {
			continue // lone leg, nothing to pair
		}
		orderLegs(h)
		hedges = append(hedges, h)
	}
	sort.Slice(hedges, func(i, j int) bool {
		if hedges[i].Series != hedges[j].Series {
			return hedges[i].Series < hedges[j].Series
		}
		return hedges[i].MarketDate < hedges[j].MarketDate
	})
	return hedges, nil
}

// AtRiskHedges returns hedges with exactly one filled leg and the
// other still resting, the state the partial-fill policy acts on.
func (s *Store) AtRiskHedges(now time.Time) ([]*domain.Hedge, error) {
	hedges, err := s.Hedges(now)
	if err != nil {
		return nil, err
	}
	atRisk := hedges[:0]
	for _, h := range hedges {
		if h.Status() == domain.HedgeStatusAtRisk {
			atRisk = append(atRisk, h)
		}
	}
	return atRisk, nil
}

// HasLiveLeg reports whether the series already has a non-terminal leg
// on the given settlement date. The engine uses this to keep at most
// one hedge per market.
func (s *Store) HasLiveLeg(series, dateKey string, now time.Time) (bool, error) {
	legs, err := s.OpenLegs()
	if err != nil {
		return false, err
	}
	for _, leg := range legs {
		legSeries, err := ticker.Series(leg.Ticker)
		if err != nil || legSeries != series {
			continue
		}
		dk, err := ticker.DateKey(leg.Ticker, now)
		if err != nil {
			continue
		}
		if dk == dateKey {
			return true, nil
		}
	}
	return false, nil
}

func orderLegs(h *domain.Hedge) {
	a, b := h.Legs[0], h.Legs[1]
	am, aok := domain.BucketMidpoint(a.Floor, a.Cap)
	bm, bok := domain.BucketMidpoint(b.Floor, b.Cap)
	if aok && bok && bm < am {
		h.Legs[0], h.Legs[1] = b, a
	}
}
