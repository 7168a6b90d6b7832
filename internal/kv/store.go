// Package kv provides a small badger-backed key-value store used for
// single-object repositories: one JSON document per fixed key, such as the
// categories cache entry or last-known user info.
package kv

import (
	"encoding/json"
	"errors"

	badger "github.com/dgraph-io/badger/v4"
)

// Store wraps a badger database with JSON encode/decode per key.
// It is safe for concurrent use.
type Store struct {
	db *badger.DB
}

// Open creates or opens a store rooted at dir. An empty dir opens an
// in-memory store, used in tests.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Get unmarshals the value stored under key into out. It reports false,
// with no error, when the key is absent.
func (s *Store) Get(key string, out any) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Put marshals v and stores it under key, replacing any previous value.
func (s *Store) Put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
