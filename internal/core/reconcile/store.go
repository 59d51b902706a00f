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

package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/clustering"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
)

// Store applies reconciliations to a Repository. All writes for one user are
// serialised, so two concurrent commits cannot both read the same snapshot and
// overwrite each other. The lock is held by this process only; deployments
// with several instances also route a user's messages to one instance with
// Pub/Sub ordering keys.
type Store struct {
	repo  Repository
	opts  clustering.Options
	locks *KeyedMutex
	now   func() time.Time
	namer LocationNamer
}

// LocationNamer names the place at a coordinate.
type LocationNamer func(ctx context.Context, lat, lon float64) string

func NewStore(repo Repository, opts clustering.Options) *Store {
	return &Store{repo: repo, opts: opts.WithDefaults(), locks: NewKeyedMutex(), now: time.Now}
}

// WithClock replaces the clock used for UpdatedAt.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// WithLocationNamer relabels merged clusters whose centroid moved away from
// their labeled place. Without one those clusters keep their old label.
func (s *Store) WithLocationNamer(namer LocationNamer) *Store {
	s.namer = namer
	return s
}

// Repository exposes the underlying repository for read paths.
func (s *Store) Repository() Repository {
	return s.repo
}

// Commit reconciles the new clusters of a user against the persisted ones and
// writes back what changed.
func (s *Store) Commit(ctx context.Context, userID string, newClusters []*model.Cluster) (*Result, error) {
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.repo.ReadAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read clusters of %s: %w", userID, err)
	}
	now := s.now()
	res := Reconcile(newClusters, existing, s.opts, now)
	s.relabel(ctx, res, now)
	for _, c := range res.Changed {
		c.UserID = userID
	}
	if len(res.Changed) > 0 {
		if err := s.repo.Upsert(ctx, userID, res.Changed); err != nil {
			return nil, fmt.Errorf("failed to write clusters of %s: %w", userID, err)
		}
	}
	slog.InfoContext(ctx, "reconciled clusters",
		"user_id", userID,
		"existing", len(existing),
		"merged", res.Merged,
		"inserted", res.Inserted,
		"relabeled", len(res.Relabel),
		"written", len(res.Changed))
	return res, nil
}

// relabel names the place of every cluster in res.Relabel again. A cluster
// whose label changes is added to res.Changed.
func (s *Store) relabel(ctx context.Context, res *Result, now time.Time) {
	if s.namer == nil {
		return
	}
	pending := make(map[*model.Cluster]bool, len(res.Changed))
	for _, c := range res.Changed {
		pending[c] = true
	}
	for _, c := range res.Relabel {
		if !setString(&c.LocationName, s.namer(ctx, c.CentroidLatitude, c.CentroidLongitude)) {
			continue
		}
		c.UpdatedAt = now
		if !pending[c] {
			res.Changed = append(res.Changed, c)
			pending[c] = true
		}
	}
}

// MarkProcessed attaches the video of a cluster.
func (s *Store) MarkProcessed(ctx context.Context, userID, clusterID, videoURL string) (*model.Cluster, error) {
	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := s.repo.Get(ctx, userID, clusterID)
	if err != nil {
		return nil, err
	}
	c.IsProcessed = true
	c.VideoURL = model.StringPtr(videoURL)
	c.UpdatedAt = s.now()
	if err := s.repo.Upsert(ctx, userID, []*model.Cluster{c}); err != nil {
		return nil, fmt.Errorf("failed to mark cluster %s processed: %w", clusterID, err)
	}
	return c, nil
}

func (s *Store) List(ctx context.Context, userID string) ([]*model.Cluster, error) {
	return s.repo.ReadAll(ctx, userID)
}

func (s *Store) Get(ctx context.Context, userID, clusterID string) (*model.Cluster, error) {
	return s.repo.Get(ctx, userID, clusterID)
}
