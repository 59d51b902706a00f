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
	"errors"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
)

// ErrNotFound is returned when a cluster does not exist for the user.
var ErrNotFound = errors.New("cluster not found")

// Repository is the durable cluster collection keyed by (user, cluster id).
// Implementations must return clusters with Members populated so
// reconciliation can recompute centroids.
type Repository interface {
	// ReadAll returns every cluster of the user ordered by start time.
	ReadAll(ctx context.Context, userID string) ([]*model.Cluster, error)
	// Get returns one cluster or ErrNotFound.
	Get(ctx context.Context, userID, clusterID string) (*model.Cluster, error)
	// Upsert inserts or replaces the given clusters.
	Upsert(ctx context.Context, userID string, clusters []*model.Cluster) error
	// ListUnprocessed returns up to limit clusters of any user without a video,
	// oldest first.
	ListUnprocessed(ctx context.Context, limit int) ([]*model.Cluster, error)
}
