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
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/clustering"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) *GormRepository {
	t.Helper()
	repo, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestGormRepositoryUpsertAndRead(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()

	c := cluster("c1",
		photo("b", day.Add(9*time.Hour), 10, 10),
		photo("a", day.Add(9*time.Hour+time.Minute), 10.0002, 10),
	)
	c.LocationName = model.StringPtr("Harbour")
	require.NoError(t, repo.Upsert(ctx, "user-1", []*model.Cluster{c}))

	got, err := repo.Get(ctx, "user-1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, []string{"b", "a"}, got.MemberPhotoURIs, "insertion order is kept")
	require.Len(t, got.Members, 2)
	assert.True(t, got.Members[1].CapturedAt.Equal(day.Add(9*time.Hour+time.Minute)))
	assert.Equal(t, "Harbour", *got.LocationName)
	assert.Nil(t, got.VideoURL)
	assert.True(t, got.UpdatedAt.Equal(day))
	assert.InDelta(t, c.CentroidLatitude, got.CentroidLatitude, 1e-12)

	// Replace: members shrink and grow, flags change.
	c.Members = append(c.Members, photo("c", day.Add(10*time.Hour), 10, 10))
	c.Recompute()
	c.IsProcessed = true
	c.VideoURL = model.StringPtr("https://storage.mtls.cloud.google.com/videos/c1.mp4")
	c.UpdatedAt = runTime
	require.NoError(t, repo.Upsert(ctx, "user-1", []*model.Cluster{c}))

	all, err := repo.ReadAll(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []string{"b", "a", "c"}, all[0].MemberPhotoURIs)
	assert.True(t, all[0].IsProcessed)
	assert.True(t, all[0].UpdatedAt.Equal(runTime), "UpdatedAt is not rewritten by gorm")
}

func TestGormRepositoryNotFound(t *testing.T) {
	repo := setupSQLite(t)
	_, err := repo.Get(context.Background(), "user-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormRepositoryListUnprocessed(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()

	done := cluster("done", photo("d", day.Add(time.Hour), 1, 1))
	done.IsProcessed = true
	older := cluster("older", photo("o", day.Add(2*time.Hour), 1, 1))
	newer := cluster("newer", photo("n", day.Add(30*time.Hour), 1, 1))
	require.NoError(t, repo.Upsert(ctx, "alice", []*model.Cluster{done, newer}))
	require.NoError(t, repo.Upsert(ctx, "bob", []*model.Cluster{older}))

	pending, err := repo.ListUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "older", pending[0].ClusterID)
	assert.Equal(t, "bob", pending[0].UserID)
	assert.Equal(t, "newer", pending[1].ClusterID)

	limited, err := repo.ListUnprocessed(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGormRepositoryBacksStore(t *testing.T) {
	store := NewStore(setupSQLite(t), clustering.DefaultOptions())
	ctx := context.Background()
	photos := []*model.PhotoRecord{
		photo("a", day.Add(9*time.Hour), 37.4419, -122.1430),
		photo("b", day.Add(9*time.Hour+5*time.Minute), 37.4419, -122.1430),
		photo("c", day.Add(15*time.Hour), 37.4419, -122.1430),
	}
	first, err := store.Commit(ctx, "user-1", clusterPhotos(photos))
	require.NoError(t, err)
	require.Len(t, first.Clusters, 2)

	second, err := store.Commit(ctx, "user-1", clusterPhotos(photos))
	require.NoError(t, err)
	assert.Equal(t, membership(first.Clusters), membership(second.Clusters))
	assert.Empty(t, second.Changed)
}
