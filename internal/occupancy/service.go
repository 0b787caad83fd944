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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rentwise/rentwise/internal/audit"
	"github.com/rentwise/rentwise/internal/id"
	"github.com/rentwise/rentwise/internal/observability/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationScope names the tracer and meter of the service
const InstrumentationScope = "github.com/rentwise/rentwise/internal/occupancy"

// Service keeps tenant leases and property occupancy pointers consistent
type Service struct {
	store       Store
	emitter     Emitter
	auditLogger audit.Logger
	dispatcher  Dispatcher
	auditor     *Auditor
	logger      *slog.Logger
	tracer      trace.Tracer
	inst        *instruments
	defaults    LeaseDefaults
	txTimeout   time.Duration
	now         func() time.Time
	newID       func() string
	owners      ownerLocks
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithDispatcher sets where post-commit notifications and audits run
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// WithTracer sets the tracer used for operation spans
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithMeter sets the meter used for operation metrics
func WithMeter(m metric.Meter) Option {
	return func(s *Service) { s.inst = newInstruments(m) }
}

// WithLeaseDefaults sets the defaults applied to omitted lease terms
func WithLeaseDefaults(d LeaseDefaults) Option {
	return func(s *Service) { s.defaults = d }
}

// WithTxTimeout bounds every transaction. Zero disables the bound.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Service) { s.txTimeout = d }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new occupancy service
func NewService(store Store, emitter Emitter, auditLogger audit.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		emitter:     emitter,
		auditLogger: auditLogger,
		logger:      slog.Default(),
		tracer:      otel.Tracer(InstrumentationScope),
		defaults:    DefaultLeaseDefaults(),
		now:         time.Now,
		newID:       id.NewUUIDv7,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.inst == nil {
		s.inst = newInstruments(otel.Meter(InstrumentationScope))
	}
	if s.dispatcher == nil {
		s.dispatcher = goDispatcher{logger: s.logger}
	}
	s.logger = s.logger.With(logger.Component("occupancy"))
	s.auditor = NewAuditor(store, s.logger, s.inst)
	return s
}

// Auditor returns the post-operation auditor used by the service
func (s *Service) Auditor() *Auditor {
	return s.auditor
}

// inTx runs fn in a transaction. Deterministic domain errors are returned
// unchanged; anything else aborts as a TransactionError. The transaction is
// never retried here.
func (s *Service) inTx(ctx context.Context, op string, fn func(ctx context.Context, sess Session) error) error {
	if s.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() { s.inst.recordTx(ctx, op, time.Since(start)) }()

	sess, err := s.store.Begin(ctx)
	if err != nil {
		return &TransactionError{Op: op, Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}

	if err := fn(ctx, sess); err != nil {
		if rbErr := sess.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			s.logger.WarnContext(ctx, "rollback failed", logger.Operation(op), logger.Error(rbErr))
			if !isDomainError(err) {
				err = errors.Join(err, rbErr)
			}
		}
		if isDomainError(err) {
			return err
		}
		return &TransactionError{Op: op, Err: err}
	}

	if err := sess.Commit(ctx); err != nil {
		if rbErr := sess.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		return &TransactionError{Op: op, Err: fmt.Errorf("failed to commit: %w", err)}
	}
	return nil
}

// afterCommit notifies the emitter and, when a target is given, schedules an
// audit of it. Neither is awaited and neither can fail the operation.
func (s *Service) afterCommit(ctx context.Context, ownerID string, kind EventKind, target *auditTarget) {
	detached := context.WithoutCancel(ctx)

	if s.emitter != nil {
		ok := s.dispatcher.Dispatch("notify:"+string(kind), func(context.Context) error {
			if err := s.emitter.Notify(detached, ownerID, kind); err != nil {
				s.logger.WarnContext(detached, "event notification failed",
					logger.OwnerID(ownerID),
					logger.String("event", string(kind)),
					logger.Error(err),
				)
			}
			return nil
		})
		if !ok {
			s.logger.WarnContext(ctx, "event notification dropped", logger.OwnerID(ownerID), logger.String("event", string(kind)))
		}
	}

	if target != nil {
		t := *target
		ok := s.dispatcher.Dispatch("audit:"+string(kind), func(context.Context) error {
			if _, err := s.auditor.Check(detached, t.ownerID, t.tenantID, t.propertyID, t.unitID); err != nil {
				s.logger.WarnContext(detached, "post-operation audit failed",
					logger.OwnerID(t.ownerID),
					logger.TenantID(t.tenantID),
					logger.PropertyID(t.propertyID),
					logger.Error(err),
				)
			}
			return nil
		})
		if !ok {
			s.logger.WarnContext(ctx, "post-operation audit dropped", logger.TenantID(t.tenantID), logger.PropertyID(t.propertyID))
		}
	}
}

// finish records the outcome of a public operation on its span and metrics
func (s *Service) finish(ctx context.Context, span trace.Span, op string, err error) {
	s.inst.recordOperation(ctx, op, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, resultLabel(err))
	}
	span.End()
}

type auditTarget struct {
	ownerID    string
	tenantID   string
	propertyID string
	unitID     string
}

// loadTenant maps a store miss to a NotFoundError
func loadTenant(ctx context.Context, r Reader, ownerID, tenantID string) (*Tenant, error) {
	t, err := r.FindTenant(ctx, ownerID, tenantID)
	if errors.Is(err, ErrTenantNotFound) {
		return nil, &NotFoundError{Resource: "tenant", ID: tenantID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	return t, nil
}

// loadProperty maps a store miss to a NotFoundError
func loadProperty(ctx context.Context, r Reader, ownerID, propertyID string) (*Property, error) {
	p, err := r.FindProperty(ctx, ownerID, propertyID)
	if errors.Is(err, ErrPropertyNotFound) {
		return nil, &NotFoundError{Resource: "property", ID: propertyID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load property: %w", err)
	}
	return p, nil
}

// preflight wraps store failures of the outer, non-transactional check
func preflight(op string, err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	return &TransactionError{Op: op, Err: err}
}

func requireIDs(fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if fields[i+1] == "" {
			return &ValidationError{Field: fields[i], Reason: "is required"}
		}
	}
	return nil
}

// ownerLocks serializes maintenance jobs per owner
type ownerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (o *ownerLocks) lock(ownerID string) func() {
	o.mu.Lock()
	if o.locks == nil {
		o.locks = make(map[string]*sync.Mutex)
	}
	l, ok := o.locks[ownerID]
	if !ok {
		l = &sync.Mutex{}
		o.locks[ownerID] = l
	}
	o.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// goDispatcher runs each task on its own goroutine
type goDispatcher struct {
	logger *slog.Logger
}

func (d goDispatcher) Dispatch(name string, fn func(ctx context.Context) error) bool {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("detached task panicked", logger.String("task", name), logger.String("panic", fmt.Sprint(r)))
			}
		}()
		if err := fn(context.Background()); err != nil {
			d.logger.Error("detached task failed", logger.String("task", name), logger.Error(err))
		}
	}()
	return true
}
