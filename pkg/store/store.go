package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/Midan14/baccarat-bot/internal/domain"
	"github.com/Midan14/baccarat-bot/internal/events"
)

const (
	keyBankrollState = "bankroll/state"
	journalPrefix    = "journal/"
)

// Store is a small KV wrapper (Badger) holding the bankroll snapshot and an
// append-only settlement journal. The journal key embeds a nanosecond
// timestamp so iteration order is chronological.
type Store struct {
	db *badger.DB
}

type OpenOptions struct {
	Path     string
	ReadOnly bool
}

func Open(opts OpenOptions) (*Store, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("store: path is required")
	}
	bopts := badger.DefaultOptions(opts.Path).
		WithLogger(nil).
		WithReadOnly(opts.ReadOnly)
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveBankroll persists the bankroll snapshot.
func (s *Store) SaveBankroll(state domain.BankrollState) error {
	if s == nil || s.db == nil {
		return errors.New("store: not opened")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyBankrollState), raw)
	})
}

// LoadBankroll returns the last persisted bankroll snapshot, if any.
func (s *Store) LoadBankroll() (domain.BankrollState, bool, error) {
	var state domain.BankrollState
	if s == nil || s.db == nil {
		return state, false, errors.New("store: not opened")
	}
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyBankrollState))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})
	if err != nil {
		return domain.BankrollState{}, false, err
	}
	return state, found, nil
}

// AppendSettlement appends a settlement record to the journal.
func (s *Store) AppendSettlement(e events.BankrollChangedEvent) error {
	if s == nil || s.db == nil {
		return errors.New("store: not opened")
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	key := fmt.Sprintf("%s%020d", journalPrefix, ts.UnixNano())
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
}

// Settlements iterates the journal in chronological order. A limit <= 0
// returns everything.
func (s *Store) Settlements(limit int) ([]events.BankrollChangedEvent, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: not opened")
	}
	var out []events.BankrollChangedEvent
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(journalPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var e events.BankrollChangedEvent
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
