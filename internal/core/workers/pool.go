// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package workers provides bounded goroutine pools whose tasks report their
// result through a Future. Clustering and formatting run on the CPU pool;
// geocoding, object staging and muxing run on the IO pool.
package workers

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// Pool runs at most Size tasks at a time.
type Pool struct {
	name    string
	size    int64
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	running atomic.Int64
}

func NewPool(name string, size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{name: name, size: int64(size), sem: semaphore.NewWeighted(int64(size))}
}

func (p *Pool) Name() string { return p.name }
func (p *Pool) Size() int    { return int(p.size) }

// Running is the number of tasks currently executing.
func (p *Pool) Running() int { return int(p.running.Load()) }

// Close stops accepting tasks and waits for the accepted ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}

// Future is the pending result of a task. It resolves exactly once.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(v T, err error) {
	f.value, f.err = v, err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await blocks until the task resolves or ctx ends. A ctx error does not
// cancel the task.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Resolved returns a future already holding v and err.
func Resolved[T any](v T, err error) *Future[T] {
	f := newFuture[T]()
	f.resolve(v, err)
	return f
}

// Submit schedules fn on the pool. Tasks waiting for a slot give up when ctx
// ends; running tasks receive ctx and decide themselves. A panicking task
// resolves its future with an error.
func Submit[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) *Future[T] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		var zero T
		return Resolved(zero, ErrPoolClosed)
	}
	f := newFuture[T]()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(ctx, 1); err != nil {
			var zero T
			f.resolve(zero, err)
			return
		}
		p.running.Add(1)
		v, err := call(ctx, fn)
		p.running.Add(-1)
		p.sem.Release(1)
		f.resolve(v, err)
	}()
	return f
}

func call[T any](ctx context.Context, fn func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// AwaitAll waits for every future in order. It returns the values of all
// futures and the joined errors of the failed ones.
func AwaitAll[T any](ctx context.Context, futures []*Future[T]) ([]T, error) {
	values := make([]T, len(futures))
	var errs []error
	for i, f := range futures {
		v, err := f.Await(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		values[i] = v
	}
	return values, errors.Join(errs...)
}

// Pools separates CPU bound work from IO bound work.
type Pools struct {
	CPU *Pool
	IO  *Pool
}

// NewPools sizes the pools; zero sizes default to the CPU count and four
// times the CPU count.
func NewPools(cpu, io int) *Pools {
	if io <= 0 {
		io = 4 * runtime.NumCPU()
	}
	return &Pools{CPU: NewPool("cpu", cpu), IO: NewPool("io", io)}
}

func (p *Pools) Close() {
	p.CPU.Close()
	p.IO.Close()
}
