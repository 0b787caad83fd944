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

package occupancy

import (
	"errors"
	"fmt"
)

// NotFoundError is returned when a tenant, property or unit does not exist
// or is not owned by the caller.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ValidationError is returned when the request violates the unit rule or
// carries unusable lease terms.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError is returned when the assignment would create a duplicate
// lease or target an occupied property or unit.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

// TransactionError wraps a store-level failure that aborted the transaction.
// Nothing was written; the caller may retry with fresh reads.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction aborted during %s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may retry the operation
func (e *TransactionError) Retryable() bool {
	return true
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a ConflictError
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsTransaction reports whether err is a TransactionError
func IsTransaction(err error) bool {
	var target *TransactionError
	return errors.As(err, &target)
}

// isDomainError reports whether err is one of the deterministic errors that
// are surfaced to the caller as-is.
func isDomainError(err error) bool {
	return IsNotFound(err) || IsValidation(err) || IsConflict(err)
}
