// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestOpenInMemory_JSONRoundTrip(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.Update(ctx, func(txn *badger.Txn) error {
		return PutJSON(txn, "record/a", record{Name: "a", Count: 1})
	}))

	var got record
	require.NoError(t, db.View(ctx, func(txn *badger.Txn) error {
		return GetJSON(txn, "record/a", &got)
	}))
	assert.Equal(t, record{Name: "a", Count: 1}, got)
	assert.True(t, db.InMemory())
	assert.Empty(t, db.Path())
}

func TestGetJSON_NotFound(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	err = db.View(context.Background(), func(txn *badger.Txn) error {
		var r record
		return GetJSON(txn, "missing", &r)
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScanPrefix(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.Update(ctx, func(txn *badger.Txn) error {
		for _, k := range []string{"record/b", "record/a", "other/z"} {
			if err := PutJSON(txn, k, record{Name: k}); err != nil {
				return err
			}
		}
		return nil
	}))

	var keys []string
	require.NoError(t, db.View(ctx, func(txn *badger.Txn) error {
		return ScanPrefix(txn, "record/", func(key string, _ []byte) error {
			keys = append(keys, key)
			return nil
		})
	}))
	assert.Equal(t, []string{"record/a", "record/b"}, keys)
}

func TestOpen_Persistent(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Path = dir
	cfg.GCInterval = 10 * time.Millisecond

	db, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Update(context.Background(), func(txn *badger.Txn) error {
		return PutJSON(txn, "k", record{Name: "persisted"})
	}))
	assert.Equal(t, dir, db.Path())
	require.NoError(t, db.Close())
	require.NoError(t, db.Close(), "close is idempotent")

	db, err = Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	var got record
	require.NoError(t, db.View(context.Background(), func(txn *badger.Txn) error {
		return GetJSON(txn, "k", &got)
	}))
	assert.Equal(t, "persisted", got.Name)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestUpdate_CancelledContext(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = db.Update(ctx, func(*badger.Txn) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	err = db.View(ctx, func(*badger.Txn) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
