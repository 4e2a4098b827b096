// Package discovery selects a bracketing pair of temperature buckets
// around a forecast. It is pure: one snapshot of quotes and one
// forecast in, at most one pair out, no side effects.
package discovery

import (
	"sort"

	"github.com/MuditaSai/weather/internal/domain"
)

// Quote is a single bucket's live top-of-book as reported by the venue.
type Quote struct {
	Ticker string
	Title  string
	Floor  *int
	Cap    *int
	YesBid int
	YesAsk int
}

// Config holds the price ceilings for hedge entry.
type Config struct {
	MaxBucketPrice int // per-leg ceiling, cents
	MaxTotalCost   int // combined ceiling, cents
	MinBucketPrice int // buckets cheaper than this are skipped
}

// Pair is a discovered hedge opportunity: two adjacent buckets that
// bracket (or nearest-bracket) the forecast.
type Pair struct {
	Low       domain.Bucket // lower-temperature bucket
	High      domain.Bucket // higher-temperature bucket
	TotalCost int           // sum of maker prices, cents
	Score     float64       // centering score, higher = better
}

// unboundedDistance stands in for the distance to a missing bound.
const unboundedDistance = 999

// MakerPrice computes the price for a liquidity-adding order: one tick
// above the current bid, never crossing the ask, clamped to [1,99].
func MakerPrice(bid, ask int) int {
	price := ask
	if bid > 0 {
		price = bid + 1
		if price > ask {
			price = ask
		}
	}
	if price < 1 {
		price = 1
	}
	if price > 99 {
		price = 99
	}
	return price
}

// BuildBuckets converts raw quotes into priced, midpoint-sorted
// buckets. Quotes with no ask, no usable bounds, or a maker price below
// the minimum floor are discarded.
func BuildBuckets(quotes []Quote, minBucketPrice int) []domain.Bucket {
	buckets := make([]domain.Bucket, 0, len(quotes))
	for _, q := range quotes {
		if q.YesAsk <= 0 {
			continue
		}
		maker := MakerPrice(q.YesBid, q.YesAsk)
		if maker < minBucketPrice {
			continue
		}
		mid, ok := domain.BucketMidpoint(q.Floor, q.Cap)
		if !ok {
			continue
		}
		buckets = append(buckets, domain.Bucket{
			Ticker:     q.Ticker,
			Title:      q.Title,
			Floor:      q.Floor,
			Cap:        q.Cap,
			YesBid:     q.YesBid,
			YesAsk:     q.YesAsk,
			MakerPrice: maker,
			Midpoint:   mid,
		})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Midpoint < buckets[j].Midpoint
	})
	return buckets
}

// forecastBucketIndex locates the bucket containing the forecast, or
// the one with the numerically closest midpoint when the forecast sits
// outside every bucket range. Returns -1 only for an empty slice.
func forecastBucketIndex(buckets []domain.Bucket, forecast float64) int {
	for i := range buckets {
		if buckets[i].Contains(forecast) {
			return i
		}
	}
	best := -1
	bestDist := 0.0
	for i := range buckets {
		d := buckets[i].Midpoint - forecast
		if d < 0 {
			d = -d
		}
		if best == -1 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// scorePair measures how centered the forecast sits inside the pair's
// combined coverage: the distance to the nearer open edge, with
// unbounded sides counting as very far away.
func scorePair(low, high *domain.Bucket, forecast float64) float64 {
	distLow := float64(unboundedDistance)
	if low.Floor != nil {
		distLow = forecast - float64(*low.Floor)
	}
	distHigh := float64(unboundedDistance)
	if high.Cap != nil {
		distHigh = float64(*high.Cap) - forecast
	}
	if distLow < distHigh {
		return distLow
	}
	return distHigh
}

// FindOpportunity runs the full selection: price and sort the quotes,
// locate the forecast bucket, build the two bracketing candidate
// pairs, validate them against the ceilings, and return the best
// centered one (ties broken by lower total cost).
func FindOpportunity(quotes []Quote, forecast float64, cfg Config) (*Pair, bool) {
	buckets := BuildBuckets(quotes, cfg.MinBucketPrice)
	idx := forecastBucketIndex(buckets, forecast)
	if idx < 0 {
		return nil, false
	}

	type candidate struct{ lo, hi int }
	var candidates []candidate
	if idx > 0 {
		candidates = append(candidates, candidate{idx - 1, idx})
	}
	if idx+1 < len(buckets) {
		candidates = append(candidates, candidate{idx, idx + 1})
	}

	var best *Pair
	for _, c := range candidates {
		low, high := &buckets[c.lo], &buckets[c.hi]
		if low.MakerPrice > cfg.MaxBucketPrice || high.MakerPrice > cfg.MaxBucketPrice {
			continue
		}
		total := low.MakerPrice + high.MakerPrice
		if total > cfg.MaxTotalCost {
			continue
		}
		p := &Pair{
			Low:       *low,
			High:      *high,
			TotalCost: total,
			Score:     scorePair(low, high, forecast),
		}
		if best == nil ||
			p.Score > best.Score ||
			(p.Score == best.Score && p.TotalCost < best.TotalCost) {
			best = p
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}
