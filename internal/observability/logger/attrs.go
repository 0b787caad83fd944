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

package logger

import (
	"log/slog"
	"time"
)

// Common attribute keys for consistent logging across the application

// Ownership attributes
func OwnerID(id string) slog.Attr {
	return slog.String("owner_id", id)
}

func TenantID(id string) slog.Attr {
	return slog.String("tenant_id", id)
}

func PropertyID(id string) slog.Attr {
	return slog.String("property_id", id)
}

func UnitID(id string) slog.Attr {
	return slog.String("unit_id", id)
}

func LeaseID(id string) slog.Attr {
	return slog.String("lease_id", id)
}

// Error attributes
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func ErrorType(errType string) slog.Attr {
	return slog.String("error_type", errType)
}

// Database attributes
func RowsAffected(rows int64) slog.Attr {
	return slog.Int64("rows_affected", rows)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Int64("duration_ms", d.Milliseconds())
}

// Component attributes
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Operation(op string) slog.Attr {
	return slog.String("operation", op)
}

// String creates a generic string attribute
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Int creates a generic int attribute
func Int(key string, value int) slog.Attr {
	return slog.Int(key, value)
}
