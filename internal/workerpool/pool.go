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

// Package workerpool runs detached post-commit work (event notifications and
// audits) on a bounded set of goroutines.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rentwise/rentwise/internal/observability/logger"
)

var (
	// ErrStopped is returned when submitting to a stopped pool
	ErrStopped = errors.New("worker pool is stopped")
	// ErrQueueFull is returned when the queue has no free slot
	ErrQueueFull = errors.New("worker pool queue is full")
)

// Task represents a unit of work to be executed
type Task struct {
	ID string
	Fn func(context.Context) error
}

// Config holds worker pool configuration
type Config struct {
	Name       string
	MaxWorkers int
	QueueSize  int
	Logger     *slog.Logger
}

// Pool manages a bounded pool of goroutines for executing tasks.
// Stop drains tasks already queued before returning.
type Pool struct {
	name       string
	maxWorkers int
	queueSize  int
	taskQueue  chan Task
	logger     *slog.Logger
	wg         sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	activeWorkers  atomic.Int32
	totalTasks     atomic.Uint64
	completedTasks atomic.Uint64
	failedTasks    atomic.Uint64
	rejectedTasks  atomic.Uint64
}

// New creates a pool and starts its workers
func New(cfg Config) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	p := &Pool{
		name:       cfg.Name,
		maxWorkers: cfg.MaxWorkers,
		queueSize:  cfg.QueueSize,
		taskQueue:  make(chan Task, cfg.QueueSize),
		logger:     cfg.Logger.With(logger.Component("workerpool"), logger.String("pool", cfg.Name)),
	}

	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Debug("worker pool started",
		logger.Int("max_workers", p.maxWorkers),
		logger.Int("queue_size", p.queueSize))
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for task := range p.taskQueue {
		p.execute(id, task)
	}
}

func (p *Pool) execute(workerID int, task Task) {
	p.activeWorkers.Add(1)
	defer p.activeWorkers.Add(-1)

	start := time.Now()
	err := p.safeExecute(task)
	duration := time.Since(start)

	if err != nil {
		p.failedTasks.Add(1)
		p.logger.Error("task failed",
			logger.Int("worker_id", workerID),
			logger.String("task_id", task.ID),
			logger.Duration(duration),
			logger.Error(err))
		return
	}
	p.completedTasks.Add(1)
	p.logger.Debug("task completed",
		logger.Int("worker_id", workerID),
		logger.String("task_id", task.ID),
		logger.Duration(duration))
}

func (p *Pool) safeExecute(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task.Fn(context.Background())
}

// Submit enqueues a task without blocking
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.rejectedTasks.Add(1)
		return fmt.Errorf("%s: %w", p.name, ErrStopped)
	}
	select {
	case p.taskQueue <- task:
		p.totalTasks.Add(1)
		return nil
	default:
		p.rejectedTasks.Add(1)
		return fmt.Errorf("%s: %w", p.name, ErrQueueFull)
	}
}

// Dispatch enqueues fn under the given name and reports whether it was accepted
func (p *Pool) Dispatch(name string, fn func(ctx context.Context) error) bool {
	return p.Submit(Task{ID: name, Fn: fn}) == nil
}

// Stop refuses new tasks and waits for queued ones to finish
func (p *Pool) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.taskQueue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Debug("worker pool stopped", logger.Int("completed", int(p.completedTasks.Load())))
		return nil
	case <-time.After(timeout):
		p.logger.Warn("worker pool stop timeout", logger.Int("queued", len(p.taskQueue)))
		return fmt.Errorf("worker pool %q stop timeout after %v", p.name, timeout)
	}
}

// Stats returns current worker pool statistics
func (p *Pool) Stats() Stats {
	return Stats{
		Name:           p.name,
		MaxWorkers:     p.maxWorkers,
		ActiveWorkers:  int(p.activeWorkers.Load()),
		QueueSize:      p.queueSize,
		QueuedTasks:    len(p.taskQueue),
		TotalTasks:     p.totalTasks.Load(),
		CompletedTasks: p.completedTasks.Load(),
		FailedTasks:    p.failedTasks.Load(),
		RejectedTasks:  p.rejectedTasks.Load(),
	}
}

// Stats represents worker pool statistics
type Stats struct {
	Name           string
	MaxWorkers     int
	ActiveWorkers  int
	QueueSize      int
	QueuedTasks    int
	TotalTasks     uint64
	CompletedTasks uint64
	FailedTasks    uint64
	RejectedTasks  uint64
}
