// Package tracker persists hedge legs and reconciles their lifecycle
// state against venue position snapshots.
package tracker

import (
	"encoding/json"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/MuditaSai/weather/internal/domain"
)

var (
	// ErrDuplicateLeg is returned when an intent is recorded for a
	// ticker/side that already has a live (non-terminal) leg.
	ErrDuplicateLeg = errors.New("tracker: leg already exists")
	// ErrNotFound is returned when no leg exists under the given key.
	ErrNotFound = errors.New("tracker: leg not found")
)

var legPrefix = []byte("leg:")

// Store is the durable leg book, backed by an embedded Badger database.
// Every mutation runs inside a single transaction so a crash mid-pass
// never leaves a half-written leg behind.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens (or creates) the leg store at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "tracker: open %s", dir)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func legKeyBytes(ticker string, side domain.Side) []byte {
	return append(append([]byte{}, legPrefix...), []byte(domain.LegKey(ticker, side))...)
}

// RecordIntent stores a freshly placed leg. An existing leg under the
// same ticker/side that is still open rejects the write; a terminal
// leftover from a previous day is overwritten.
func (s *Store) RecordIntent(leg *domain.Leg) error {
	key := legKeyBytes(leg.Ticker, leg.Side)
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == nil {
			var existing domain.Leg
			if verr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &existing)
			}); verr != nil {
				return errors.Wrap(verr, "tracker: decode existing leg")
			}
			if existing.Status.Open() {
				return errors.Wrapf(ErrDuplicateLeg, "%s", leg.Key())
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return errors.Wrap(err, "tracker: read leg")
		}
		buf, err := json.Marshal(leg)
		if err != nil {
			return errors.Wrap(err, "tracker: encode leg")
		}
		return txn.Set(key, buf)
	})
}

// Get returns the leg stored under ticker/side.
func (s *Store) Get(ticker string, side domain.Side) (*domain.Leg, error) {
	var leg domain.Leg
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(legKeyBytes(ticker, side))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return errors.Wrapf(ErrNotFound, "%s", domain.LegKey(ticker, side))
			}
			return errors.Wrap(err, "tracker: read leg")
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &leg)
		})
	})
	if err != nil {
		return nil, err
	}
	return &leg, nil
}

// Update replaces an existing leg. The leg must already be present.
func (s *Store) Update(leg *domain.Leg) error {
	key := legKeyBytes(leg.Ticker, leg.Side)
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return errors.Wrapf(ErrNotFound, "%s", leg.Key())
			}
			return errors.Wrap(err, "tracker: read leg")
		}
		buf, err := json.Marshal(leg)
		if err != nil {
			return errors.Wrap(err, "tracker: encode leg")
		}
		return txn.Set(key, buf)
	})
}

// Delete removes the leg under ticker/side, if any.
func (s *Store) Delete(ticker string, side domain.Side) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(legKeyBytes(ticker, side))
	})
}

// List returns every stored leg, terminal ones included.
func (s *Store) List() ([]*domain.Leg, error) {
	var legs []*domain.Leg
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = legPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var leg domain.Leg
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &leg)
			}); err != nil {
				return errors.Wrap(err, "tracker: decode leg")
			}
			l := leg
			legs = append(legs, &l)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return legs, nil
}

// OpenLegs returns only the legs still in a live status.
func (s *Store) OpenLegs() ([]*domain.Leg, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	open := all[:0]
	for _, l := range all {
		if l.Status.Open() {
			open = append(open, l)
		}
	}
	return open, nil
}

// Reset drops every stored leg. Used by the manual reset operation.
func (s *Store) Reset() error {
	return s.db.DropPrefix(legPrefix)
}
