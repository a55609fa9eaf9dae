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
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjpl/meal-assistant-sub008/services/goap/catalog"
	bstore "github.com/bjpl/meal-assistant-sub008/services/goap/storage/badger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := bstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	st, err := NewStore(db, nil)
	require.NoError(t, err)

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	st.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return st
}

func TestStore_CreateGet(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	created, err := st.Create(ctx, Session{Goal: "mvp"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, int64(1), created.Revision)
	assert.Equal(t, []string{}, created.TrueConditions)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, err := st.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "mvp", got.Goal)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
}

func TestStore_GetMissing(t *testing.T) {
	st := newTestStore(t)
	_, err := st.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveRevisions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	s, err := st.Create(ctx, Session{Goal: "mvp"})
	require.NoError(t, err)

	stale := s
	s.TrueConditions = []string{"repo_initialized"}
	saved, err := st.Save(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Revision)
	assert.True(t, saved.UpdatedAt.After(saved.CreatedAt))

	stale.LastFailedAction = "configure_ci"
	_, err = st.Save(ctx, stale)
	assert.ErrorIs(t, err, ErrRevisionConflict)

	got, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"repo_initialized"}, got.TrueConditions)
	assert.Empty(t, got.LastFailedAction)
}

func TestStore_SaveMissing(t *testing.T) {
	st := newTestStore(t)
	_, err := st.Save(context.Background(), Session{ID: uuid.New(), Revision: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteAndList(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first, err := st.Create(ctx, Session{Goal: "foundation"})
	require.NoError(t, err)
	second, err := st.Create(ctx, Session{Goal: "mvp"})
	require.NoError(t, err)

	list, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "most recently updated first")

	require.NoError(t, st.Delete(ctx, first.ID))
	assert.ErrorIs(t, st.Delete(ctx, first.ID), ErrNotFound)

	list, err = st.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)
}

func TestSession_StateAndGoal(t *testing.T) {
	b, err := catalog.Default()
	require.NoError(t, err)

	s := Session{Goal: "foundation", TrueConditions: []string{"repo_initialized"}}
	state, err := s.State(b.Schema)
	require.NoError(t, err)
	assert.Equal(t, []string{"repo_initialized"}, state.True())

	goal, err := s.GoalPredicate(b)
	require.NoError(t, err)
	want, err := b.Goal("foundation")
	require.NoError(t, err)
	assert.Equal(t, want.Keys(), goal.Keys())

	s.GoalConditions = map[string]bool{"ci_configured": true}
	goal, err = s.GoalPredicate(b)
	require.NoError(t, err)
	assert.Equal(t, []string{"ci_configured"}, goal.Keys())

	s.TrueConditions = []string{"no_such_flag"}
	_, err = s.State(b.Schema)
	assert.ErrorIs(t, err, ErrInvalidSession)

	s.SetState(b.Schema.Empty())
	assert.Empty(t, s.TrueConditions)
}

func TestNewStore_NilDB(t *testing.T) {
	_, err := NewStore(nil, nil)
	assert.Error(t, err)
}
