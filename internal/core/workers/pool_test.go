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

package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSubmitResolves(t *testing.T) {
	p := NewPool("test", 2)
	defer p.Close()

	f := Submit(context.Background(), p, func(context.Context) (int, error) { return 42, nil })
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	<-f.Done()
	v, err = f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v, "a resolved future keeps its value")
}

func TestSubmitBoundsConcurrency(t *testing.T) {
	p := NewPool("test", 3)
	defer p.Close()

	var current, peak atomic.Int64
	var futures []*Future[struct{}]
	for i := 0; i < 20; i++ {
		futures = append(futures, Submit(context.Background(), p, func(context.Context) (struct{}, error) {
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
			return struct{}{}, nil
		}))
	}
	_, err := AwaitAll(context.Background(), futures)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(3))
	assert.Positive(t, peak.Load())
	assert.Equal(t, 0, p.Running())
}

func TestSubmitRecoversPanics(t *testing.T) {
	p := NewPool("test", 1)
	defer p.Close()

	_, err := Submit(context.Background(), p, func(context.Context) (string, error) {
		panic("boom")
	}).Await(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestSubmitCancelledWhileQueued(t *testing.T) {
	p := NewPool("test", 1)
	defer p.Close()

	release := make(chan struct{})
	blocker := Submit(context.Background(), p, func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	require.Eventually(t, func() bool { return p.Running() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	queued := Submit(ctx, p, func(context.Context) (int, error) {
		ran.Store(true)
		return 2, nil
	})
	cancel()

	_, err := queued.Await(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	close(release)
	v, err := blocker.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.False(t, ran.Load())
}

func TestAwaitHonoursContext(t *testing.T) {
	p := NewPool("test", 1)
	defer p.Close()

	release := make(chan struct{})
	f := Submit(context.Background(), p, func(context.Context) (int, error) {
		<-release
		return 7, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v, "the task is not cancelled by an abandoned wait")
}

func TestAwaitAllJoinsErrors(t *testing.T) {
	p := NewPool("test", 4)
	defer p.Close()

	errOdd := errors.New("odd")
	var futures []*Future[int]
	for i := 0; i < 4; i++ {
		futures = append(futures, Submit(context.Background(), p, func(context.Context) (int, error) {
			if i%2 == 1 {
				return 0, errOdd
			}
			return i * 10, nil
		}))
	}
	values, err := AwaitAll(context.Background(), futures)
	assert.ErrorIs(t, err, errOdd)
	assert.Equal(t, []int{0, 0, 20, 0}, values)
}

func TestClosedPoolRejects(t *testing.T) {
	p := NewPool("test", 1)
	var finished atomic.Bool
	f := Submit(context.Background(), p, func(context.Context) (int, error) {
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
		return 1, nil
	})
	p.Close()
	assert.True(t, finished.Load(), "close waits for accepted tasks")
	_, err := f.Await(context.Background())
	require.NoError(t, err)

	_, err = Submit(context.Background(), p, func(context.Context) (int, error) { return 0, nil }).Await(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestNewPoolsDefaults(t *testing.T) {
	pools := NewPools(0, 0)
	defer pools.Close()
	assert.Equal(t, "cpu", pools.CPU.Name())
	assert.Positive(t, pools.CPU.Size())
	assert.Equal(t, 4*pools.CPU.Size(), pools.IO.Size())
}
