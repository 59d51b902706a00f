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

package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/cor"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/reconcile"
)

const (
	DefaultSweepInterval  = time.Minute
	DefaultSweepBatchSize = 10
	DefaultFailureBackoff = 30 * time.Minute
)

// UnprocessedSweeper periodically renders videos for clusters that have none.
// A cluster whose video failed is skipped for FailureBackoff.
type UnprocessedSweeper struct {
	repo           reconcile.Repository
	video          cor.Command
	interval       time.Duration
	batchSize      int
	failures       *cache.Cache
	failureBackoff time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewUnprocessedSweeper(repo reconcile.Repository, video cor.Command, interval time.Duration, batchSize int) *UnprocessedSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	return &UnprocessedSweeper{
		repo:           repo,
		video:          video,
		interval:       interval,
		batchSize:      batchSize,
		failures:       cache.New(DefaultFailureBackoff, 2*DefaultFailureBackoff),
		failureBackoff: DefaultFailureBackoff,
	}
}

// StartTimer sweeps every interval until Stop or until ctx ends.
func (s *UnprocessedSweeper) StartTimer(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep(ctx)
			case <-ctx.Done():
				return
			}
		}
	}(s.done)
}

// Stop ends the timer and waits for a running sweep to finish.
func (s *UnprocessedSweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Sweep renders one batch and returns the number of videos produced.
func (s *UnprocessedSweeper) Sweep(ctx context.Context) int {
	tracer := otel.Tracer("unprocessed-sweep")
	traceCtx, span := tracer.Start(ctx, "unprocessed-clusters")
	defer span.End()

	clusters, err := s.candidates(traceCtx)
	if err != nil {
		span.SetStatus(codes.Error, "failed to list unprocessed clusters")
		slog.ErrorContext(traceCtx, "failed to list unprocessed clusters", "error", err)
		return 0
	}

	rendered := 0
	for _, c := range clusters {
		if traceCtx.Err() != nil {
			break
		}
		if s.render(traceCtx, c) {
			rendered++
		}
	}
	span.SetAttributes(attribute.Int("candidates", len(clusters)), attribute.Int("rendered", rendered))
	span.SetStatus(codes.Ok, "swept")
	return rendered
}

// candidates returns up to batchSize unprocessed clusters that are not backing
// off. Every backed-off cluster takes at most one row of the listing, so
// widening the limit by the backoff count leaves room for a full batch.
func (s *UnprocessedSweeper) candidates(ctx context.Context) ([]*model.Cluster, error) {
	listed, err := s.repo.ListUnprocessed(ctx, s.batchSize+s.failures.ItemCount())
	if err != nil {
		return nil, err
	}
	out := make([]*model.Cluster, 0, s.batchSize)
	for _, c := range listed {
		if _, failed := s.failures.Get(c.ClusterID); failed {
			continue
		}
		out = append(out, c)
		if len(out) == s.batchSize {
			break
		}
	}
	return out, nil
}

func (s *UnprocessedSweeper) render(ctx context.Context, c *model.Cluster) bool {
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(ctx)
	chainCtx.Add(cor.CtxIn, &model.VideoRequest{UserID: c.UserID, ClusterID: c.ClusterID})
	defer chainCtx.Close()

	s.video.Execute(chainCtx)
	if err := chainCtx.Err(); err != nil {
		s.failures.Set(c.ClusterID, err.Error(), s.failureBackoff)
		slog.WarnContext(ctx, "memory video failed", "user", c.UserID, "cluster", c.ClusterID, "error", err)
		return false
	}
	return true
}
