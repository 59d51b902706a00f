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
	"sort"
	"sync"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
)

// MemoryRepository keeps clusters in process memory. It backs local runs
// without a database and the pipeline tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]map[string]*model.Cluster

	// upserts counts Upsert calls.
	upserts int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]map[string]*model.Cluster)}
}

func (r *MemoryRepository) ReadAll(_ context.Context, userID string) ([]*model.Cluster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Cluster, 0, len(r.users[userID]))
	for _, c := range r.users[userID] {
		out = append(out, c.Copy())
	}
	sortByStart(out)
	return out, nil
}

func (r *MemoryRepository) Get(_ context.Context, userID, clusterID string) (*model.Cluster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.users[userID][clusterID]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Copy(), nil
}

func (r *MemoryRepository) Upsert(_ context.Context, userID string, clusters []*model.Cluster) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	byID, ok := r.users[userID]
	if !ok {
		byID = make(map[string]*model.Cluster)
		r.users[userID] = byID
	}
	for _, c := range clusters {
		stored := c.Copy()
		stored.UserID = userID
		byID[c.ClusterID] = stored
	}
	return nil
}

func (r *MemoryRepository) ListUnprocessed(_ context.Context, limit int) ([]*model.Cluster, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Cluster
	for _, byID := range r.users {
		for _, c := range byID {
			if !c.IsProcessed {
				out = append(out, c.Copy())
			}
		}
	}
	sortByStart(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpsertCount returns how many times Upsert was called.
func (r *MemoryRepository) UpsertCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.upserts
}

func sortByStart(clusters []*model.Cluster) {
	sort.SliceStable(clusters, func(i, j int) bool {
		if !clusters[i].StartTime.Equal(clusters[j].StartTime) {
			return clusters[i].StartTime.Before(clusters[j].StartTime)
		}
		return clusters[i].ClusterID < clusters[j].ClusterID
	})
}
