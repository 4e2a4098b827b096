package tracker

import (
	"encoding/json"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/MuditaSai/weather/internal/domain"
)

// ErrNegativeCount signals a venue snapshot reporting a short position
// on a ticker we only ever buy. State is left untouched when it fires.
var ErrNegativeCount = errors.New("tracker: negative position count")

// Holding is one line of the venue's position snapshot.
type Holding struct {
	Ticker string
	Count  int
}

// Reconcile folds a venue position snapshot into the leg book and
// returns the legs whose status changed. Positions are matched by
// ticker alone: the venue reports net contracts per market, so a yes
// and a no leg on the same ticker cannot be told apart. We never place
// both, which keeps the match unambiguous in practice.
//
// Transitions: zero contracts keeps (or returns) a leg to pending, a
// partial count marks it partial and stamps the fill time on first
// sighting, a full count marks it filled and restamps the fill time.
// Terminal legs are never touched, and running the same snapshot twice
// is a no-op.
func (s *Store) Reconcile(holdings []Holding) ([]*domain.Leg, error) {
	counts := make(map[string]int, len(holdings))
	for _, h := range holdings {
		if h.Count < 0 {
			return nil, errors.Wrapf(ErrNegativeCount, "%s: %d", h.Ticker, h.Count)
		}
		counts[h.Ticker] = h.Count
	}

	var changed []*domain.Leg
	err := s.db.Update(func(txn *badger.Txn) error {
		changed = changed[:0]
		opts := badger.DefaultIteratorOptions
		opts.Prefix = legPrefix
		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var leg domain.Leg
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &leg)
			}); err != nil {
				it.Close()
				return errors.Wrap(err, "tracker: decode leg")
			}
			if leg.Status.Terminal() {
				continue
			}
			if !s.applyCount(&leg, counts[leg.Ticker]) {
				continue
			}
			l := leg
			changed = append(changed, &l)
		}
		it.Close()
		for _, leg := range changed {
			buf, err := json.Marshal(leg)
			if err != nil {
				return errors.Wrap(err, "tracker: encode leg")
			}
			if err := txn.Set(legKeyBytes(leg.Ticker, leg.Side), buf); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

// applyCount maps an observed contract count onto a leg and reports
// whether anything changed.
func (s *Store) applyCount(leg *domain.Leg, count int) bool {
	var status domain.LegStatus
	switch {
	case count <= 0:
		status = domain.LegStatusPending
	case count < leg.IntendedCount:
		status = domain.LegStatusPartial
	default:
		status = domain.LegStatusFilled
	}
	if status == leg.Status && count == leg.Count {
		return false
	}
	switch {
	case status == domain.LegStatusFilled && leg.Status != domain.LegStatusFilled:
		// restamp on the transition into filled, so the timestamp
		// reflects the full fill rather than the first partial
		now := s.now()
		leg.FilledAt = &now
	case status == domain.LegStatusPartial && leg.FilledAt == nil:
		now := s.now()
		leg.FilledAt = &now
	}
	leg.Status = status
	leg.Count = count
	return true
}
