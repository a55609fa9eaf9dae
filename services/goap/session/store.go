// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	bstore "github.com/bjpl/meal-assistant-sub008/services/goap/storage/badger"
)

// Store persists sessions in BadgerDB under "session/<id>".
//
// Thread Safety: Safe for concurrent use. Concurrent saves of the same
// session are resolved by revision: exactly one wins.
type Store struct {
	db     *bstore.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a session store on db.
//
// Inputs:
//
//	db - The open database. Must not be nil.
//	logger - Logger for store events. If nil, uses slog.Default().
func NewStore(db *bstore.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("session store: db must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Create assigns an ID and revision 1 to s and stores it.
func (st *Store) Create(ctx context.Context, s Session) (Session, error) {
	s.ID = uuid.New()
	s.Revision = 1
	s.CreatedAt = st.now()
	s.UpdatedAt = s.CreatedAt
	if s.TrueConditions == nil {
		s.TrueConditions = []string{}
	}

	err := st.db.Update(ctx, func(txn *badger.Txn) error {
		return bstore.PutJSON(txn, key(s.ID), s)
	})
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}

	st.logger.Info("session created",
		slog.String("session_id", s.ID.String()),
		slog.String("goal", s.Goal),
	)
	return s, nil
}

// Get loads a session.
//
// Outputs:
//
//	Session - The stored session.
//	error - ErrNotFound if no session has this ID.
func (st *Store) Get(ctx context.Context, id uuid.UUID) (Session, error) {
	var s Session
	err := st.db.View(ctx, func(txn *badger.Txn) error {
		return bstore.GetJSON(txn, key(id), &s)
	})
	if errors.Is(err, bstore.ErrNotFound) {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// Save stores s if it is still at the stored revision.
//
// Description:
//
//	The stored copy must have the same Revision as s. On success the
//	returned session carries Revision+1 and a fresh UpdatedAt.
//
// Outputs:
//
//	Session - The saved session.
//	error - ErrNotFound, or ErrRevisionConflict when another writer saved
//	        first.
func (st *Store) Save(ctx context.Context, s Session) (Session, error) {
	err := st.db.Update(ctx, func(txn *badger.Txn) error {
		var stored Session
		if err := bstore.GetJSON(txn, key(s.ID), &stored); err != nil {
			return err
		}
		if stored.Revision != s.Revision {
			return fmt.Errorf("%w: have %d, stored %d", ErrRevisionConflict, s.Revision, stored.Revision)
		}
		s.Revision++
		s.CreatedAt = stored.CreatedAt
		s.UpdatedAt = st.now()
		return bstore.PutJSON(txn, key(s.ID), s)
	})

	switch {
	case err == nil:
		return s, nil
	case errors.Is(err, bstore.ErrNotFound):
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, s.ID)
	case errors.Is(err, badger.ErrConflict):
		return Session{}, fmt.Errorf("%w: concurrent transaction", ErrRevisionConflict)
	case errors.Is(err, ErrRevisionConflict):
		st.logger.Warn("session save rejected",
			slog.String("session_id", s.ID.String()),
			slog.Int64("revision", s.Revision),
		)
		return Session{}, err
	default:
		return Session{}, fmt.Errorf("save session: %w", err)
	}
}

// Delete removes a session.
func (st *Store) Delete(ctx context.Context, id uuid.UUID) error {
	err := st.db.Update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key(id))); err != nil {
			return err
		}
		return txn.Delete([]byte(key(id)))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// List returns all sessions, most recently updated first.
func (st *Store) List(ctx context.Context) ([]Session, error) {
	sessions := []Session{}
	err := st.db.View(ctx, func(txn *badger.Txn) error {
		return bstore.ScanPrefix(txn, keyPrefix, func(k string, val []byte) error {
			var s Session
			if err := json.Unmarshal(val, &s); err != nil {
				return fmt.Errorf("decode %s: %w", k, err)
			}
			sessions = append(sessions, s)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}
