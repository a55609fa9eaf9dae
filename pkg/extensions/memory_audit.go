// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"
)

// DefaultAuditCapacity is the number of events MemoryAuditLogger keeps.
const DefaultAuditCapacity = 1024

// MemoryAuditLogger keeps the most recent events in a ring buffer and
// mirrors each one to a structured log line.
//
// Thread Safety: Safe for concurrent use.
type MemoryAuditLogger struct {
	mu     sync.Mutex
	events []AuditEvent
	next   int
	full   bool
	logger *slog.Logger
	now    func() time.Time
}

// NewMemoryAuditLogger creates a logger holding up to capacity events.
// A non-positive capacity uses DefaultAuditCapacity; a nil logger uses
// slog.Default().
func NewMemoryAuditLogger(capacity int, logger *slog.Logger) *MemoryAuditLogger {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryAuditLogger{
		events: make([]AuditEvent, capacity),
		logger: logger.With(slog.String("component", "audit")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Log stores event, evicting the oldest event when full.
func (l *MemoryAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}
	event.Metadata = maps.Clone(event.Metadata)

	l.mu.Lock()
	l.events[l.next] = event
	l.next = (l.next + 1) % len(l.events)
	if l.next == 0 {
		l.full = true
	}
	l.mu.Unlock()

	l.logger.LogAttrs(ctx, slog.LevelInfo, "audit event",
		slog.String("event_type", event.EventType),
		slog.String("resource_type", event.ResourceType),
		slog.String("resource_id", event.ResourceID),
		slog.String("outcome", event.Outcome),
		slog.String("request_id", event.RequestID),
	)
	return nil
}

// Query returns matching events, newest first.
func (l *MemoryAuditLogger) Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.next
	if l.full {
		n = len(l.events)
	}
	out := []AuditEvent{}
	skipped := 0
	for i := 1; i <= n; i++ {
		ev := l.events[(l.next-i+len(l.events))%len(l.events)]
		if !filter.Matches(ev) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// Len returns the number of stored events.
func (l *MemoryAuditLogger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full {
		return len(l.events)
	}
	return l.next
}

// Flush is a no-op; events are never buffered outside memory.
func (l *MemoryAuditLogger) Flush(context.Context) error {
	return nil
}

var _ AuditLogger = (*MemoryAuditLogger)(nil)
