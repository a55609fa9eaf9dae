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
	"slices"
	"time"
)

// Outcomes used by the GOAP service.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuditEvent records one state-changing operation.
//
// # Event Types
//
// Events are named "category.action":
//   - Sessions: "session.create", "session.update", "session.replan", "session.delete"
//   - Catalog: "catalog.reload"
//
// Example:
//
//	event := AuditEvent{
//	    EventType:    "session.replan",
//	    Action:       "replan",
//	    ResourceType: "session",
//	    ResourceID:   sess.ID.String(),
//	    Outcome:      extensions.OutcomeSuccess,
//	    Metadata: map[string]any{
//	        "failed_action": "deploy_staging",
//	        "revision":      sess.Revision,
//	    },
//	}
type AuditEvent struct {
	// EventType categorizes the event. Format: "category.action".
	EventType string `json:"event_type"`

	// Timestamp is when the event occurred (UTC).
	// If zero, implementations set it to time.Now().UTC().
	Timestamp time.Time `json:"timestamp"`

	// RequestID ties the event to the HTTP request that caused it.
	RequestID string `json:"request_id,omitempty"`

	// Action describes the operation: "create", "update", "replan", "delete".
	Action string `json:"action"`

	// ResourceType is the category of resource involved, e.g. "session".
	ResourceType string `json:"resource_type"`

	// ResourceID is the specific resource instance (optional).
	ResourceID string `json:"resource_id,omitempty"`

	// Outcome is OutcomeSuccess or OutcomeFailure.
	Outcome string `json:"outcome"`

	// Metadata holds event-specific details such as "revision", "goal",
	// "failed_action" or "error".
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AuditFilter selects audit events.
//
// All fields are optional; only non-zero values filter. Fields combine
// with AND logic.
type AuditFilter struct {
	// EventTypes limits results to specific event types.
	EventTypes []string

	// ResourceType limits results to one resource category.
	ResourceType string

	// ResourceID limits results to one resource.
	ResourceID string

	// Outcome limits results to one outcome.
	Outcome string

	// StartTime is the earliest timestamp to include (inclusive).
	StartTime time.Time

	// EndTime is the latest timestamp to include (exclusive).
	EndTime time.Time

	// Limit is the maximum number of events to return. Zero means no limit.
	Limit int

	// Offset is the number of matching events to skip.
	Offset int
}

// Matches reports whether event passes the filter. Limit and Offset are
// not considered.
func (f AuditFilter) Matches(event AuditEvent) bool {
	if len(f.EventTypes) > 0 && !slices.Contains(f.EventTypes, event.EventType) {
		return false
	}
	if f.ResourceType != "" && event.ResourceType != f.ResourceType {
		return false
	}
	if f.ResourceID != "" && event.ResourceID != f.ResourceID {
		return false
	}
	if f.Outcome != "" && event.Outcome != f.Outcome {
		return false
	}
	if !f.StartTime.IsZero() && event.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && !event.Timestamp.Before(f.EndTime) {
		return false
	}
	return true
}

// AuditLogger records state-changing operations.
//
// Implementations must be safe for concurrent use. Log should return
// quickly; it runs on the request path.
type AuditLogger interface {
	// Log records an event, setting Timestamp if zero.
	Log(ctx context.Context, event AuditEvent) error

	// Query returns matching events, newest first.
	Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)

	// Flush persists buffered events. Call before shutdown.
	Flush(ctx context.Context) error
}

// NopAuditLogger discards all events.
//
// Thread-safe: This implementation has no mutable state.
type NopAuditLogger struct{}

// Log discards the event.
func (l *NopAuditLogger) Log(context.Context, AuditEvent) error {
	return nil
}

// Query returns an empty slice.
func (l *NopAuditLogger) Query(context.Context, AuditFilter) ([]AuditEvent, error) {
	return []AuditEvent{}, nil
}

// Flush is a no-op.
func (l *NopAuditLogger) Flush(context.Context) error {
	return nil
}

var _ AuditLogger = (*NopAuditLogger)(nil)
