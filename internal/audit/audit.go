// Copyright 2026 The Rentwise Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Event types
const (
	TypeLeaseCreated          = "lease_created"
	TypeLeaseTerminated       = "lease_terminated"
	TypeTenantForceUnassigned = "tenant_force_unassigned"
	TypeAssignmentsSynced     = "assignments_synced"
)

// Event represents an auditable change to leases or occupancy
type Event struct {
	Type      string
	OwnerID   string
	ActorID   string
	Resource  string
	Metadata  map[string]any
	Timestamp time.Time
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event)
}

// SlogLogger implements Logger using slog
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger creates a new audit logger. A nil logger uses slog.Default.
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{logger: l}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("audit_type", event.Type),
		slog.String("owner_id", event.OwnerID),
		slog.String("resource", event.Resource),
		slog.Time("timestamp", event.Timestamp),
	}
	if event.ActorID != "" {
		attrs = append(attrs, slog.String("actor_id", event.ActorID))
	}

	// Flatten metadata
	if len(event.Metadata) > 0 {
		group := []any{}
		for k, v := range event.Metadata {
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", group...))
	}

	l.logger.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// isSecret checks if a key likely contains a secret
func isSecret(key string) bool {
	k := strings.ToLower(key)
	for _, s := range []string{"password", "secret", "token", "key", "authorization", "hash", "credential"} {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}
