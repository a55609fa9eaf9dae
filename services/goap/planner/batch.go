// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package planner

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bjpl/meal-assistant-sub008/services/goap/catalog"
	"github.com/bjpl/meal-assistant-sub008/services/goap/worldstate"
)

// PlanAll runs one independent search per named goal.
//
// Description:
//
//	Searches run concurrently, at most limit at a time (GOMAXPROCS when
//	limit <= 0). Each result is identical to what FindPlan returns for the
//	same goal on its own. A cancelled ctx makes the remaining searches
//	report FailureCancelled.
//
// Outputs:
//
//	map[string]PlanningResult - One result per goal name.
func PlanAll(ctx context.Context, cat *catalog.Catalog, start worldstate.State, goals map[string]worldstate.Predicate, cfg Config, limit int) map[string]PlanningResult {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make(map[string]PlanningResult, len(goals))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for name, goal := range goals {
		g.Go(func() error {
			r := FindPlan(gctx, cat, start, goal, cfg)
			mu.Lock()
			results[name] = r
			mu.Unlock()
			return nil
		})
	}
	// Searches report failures as results; the group never sees an error.
	_ = g.Wait()

	return results
}
