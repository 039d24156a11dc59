/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package badger implements the state store on an embedded badger database. The entries of a key share the key
// prefix, a commit is applied in a single read-write transaction.
package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
	"go.uber.org/zap"

	"github.com/numaproj/reducefn/pkg/apis"
	"github.com/numaproj/reducefn/pkg/shared/logging"
	"github.com/numaproj/reducefn/pkg/state"
)

type badgerStore struct {
	db   *badger.DB
	name string
}

var (
	_ state.Store          = (*badgerStore)(nil)
	_ state.BatchCommitter = (*badgerStore)(nil)
)

// NewBadgerStore opens the database in cfg.Dir, an empty dir keeps the data in memory.
func NewBadgerStore(ctx context.Context, cfg *apis.BadgerStoreConfig) (state.Store, error) {
	dir := ""
	if cfg != nil {
		dir = cfg.Dir
	}
	opts := badger.DefaultOptions(dir).
		WithInMemory(dir == "").
		WithLogger(&logger{log: logging.FromContext(ctx).Named("badger")})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger in %q, %w", dir, err)
	}
	name := "badger"
	if dir != "" {
		name = "badger:" + dir
	}
	return &badgerStore{db: db, name: name}, nil
}

func entryKey(key, stateID string) []byte {
	return []byte(key + "\x00" + stateID)
}

func (bs *badgerStore) Read(_ context.Context, key string, stateID string) ([]byte, error) {
	var value []byte
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(key, stateID))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s of key %q, %w", stateID, key, state.ErrNotFound)
	}
	return value, err
}

func (bs *badgerStore) Write(ctx context.Context, key string, stateID string, value []byte) error {
	return bs.Commit(ctx, key, []state.Mutation{{StateID: stateID, Value: value}})
}

func (bs *badgerStore) Clear(ctx context.Context, key string, stateID string) error {
	return bs.Commit(ctx, key, []state.Mutation{{StateID: stateID, Delete: true}})
}

func (bs *badgerStore) Commit(ctx context.Context, key string, mutations []state.Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := bs.db.Update(func(txn *badger.Txn) error {
		for _, m := range mutations {
			var err error
			if m.Delete {
				err = txn.Delete(entryKey(key, m.StateID))
			} else {
				err = txn.Set(entryKey(key, m.StateID), m.Value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

func (bs *badgerStore) Name() string {
	return bs.name
}

func (bs *badgerStore) Close() error {
	return bs.db.Close()
}

// logger routes the badger logs to zap.
type logger struct {
	log *zap.SugaredLogger
}

func (l *logger) Errorf(format string, args ...interface{})   { l.log.Errorf(format, args...) }
func (l *logger) Warningf(format string, args ...interface{}) { l.log.Warnf(format, args...) }
func (l *logger) Infof(format string, args ...interface{})    { l.log.Debugf(format, args...) }
func (l *logger) Debugf(format string, args ...interface{})   { l.log.Debugf(format, args...) }
