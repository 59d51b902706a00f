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

package clustering

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/geotime"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func photo(uri string, at time.Time, lat, lon float64) *model.PhotoRecord {
	return &model.PhotoRecord{URI: uri, CapturedAt: at, Latitude: lat, Longitude: lon}
}

func fixedEngine() *Engine {
	n := 0
	return NewEngine(DefaultOptions(),
		WithClock(func() time.Time { return day }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("c%d", n) }),
	)
}

func run(photos ...*model.PhotoRecord) []*model.Cluster {
	return fixedEngine().Cluster("user-1", geotime.Build(photos))
}

func TestClusterEmpty(t *testing.T) {
	assert.Empty(t, run())
}

func TestClusterSingleton(t *testing.T) {
	clusters := run(photo("p1", day.Add(9*time.Hour), 37.4419, -122.1430))
	require.Len(t, clusters, 1)
	c := clusters[0]
	assert.Equal(t, "c1", c.ClusterID)
	assert.Equal(t, "user-1", c.UserID)
	assert.Equal(t, 1, c.PhotoCount())
	assert.Equal(t, 37.4419, c.CentroidLatitude)
	assert.Equal(t, c.StartTime, c.EndTime)
	assert.Equal(t, day, c.CreatedAt)
	assert.Equal(t, day, c.UpdatedAt)
	assert.Nil(t, c.LocationName)
}

func TestRadiusBoundary(t *testing.T) {
	at := day.Add(10 * time.Hour)
	lat, lon := 37.4419, -122.1430

	merged := run(photo("a", at, lat, lon), photo("b", at, geotime.OffsetNorth(lat, 100), lon))
	assert.Len(t, merged, 1, "exactly 100m apart must merge")

	split := run(photo("a", at, lat, lon), photo("b", at, geotime.OffsetNorth(lat, 100.01), lon))
	assert.Len(t, split, 2, "100.01m apart must split")
}

func TestGapBoundary(t *testing.T) {
	at := day.Add(8 * time.Hour)
	lat, lon := 48.8584, 2.2945

	merged := run(photo("a", at, lat, lon), photo("b", at.Add(3*time.Hour), lat, lon))
	assert.Len(t, merged, 1, "exactly 3h apart must merge")

	split := run(photo("a", at, lat, lon), photo("b", at.Add(3*time.Hour+time.Second), lat, lon))
	assert.Len(t, split, 2, "3h1s apart must split")
}

func TestGapIsMeasuredFromLastMember(t *testing.T) {
	at := day.Add(8 * time.Hour)
	var photos []*model.PhotoRecord
	for i := 0; i < 4; i++ {
		photos = append(photos, photo(fmt.Sprintf("p%d", i), at.Add(time.Duration(i)*2*time.Hour), 0, 0))
	}
	clusters := run(photos...)
	require.Len(t, clusters, 1)
	assert.Equal(t, 6*time.Hour, clusters[0].EndTime.Sub(clusters[0].StartTime))
}

func TestTwoOutingsSameDay(t *testing.T) {
	var photos []*model.PhotoRecord
	for i := 0; i < 10; i++ {
		photos = append(photos, photo(fmt.Sprintf("morning-%d", i), day.Add(9*time.Hour+time.Duration(i)*5*time.Minute), 37.4419, -122.1430))
	}
	for i := 0; i < 8; i++ {
		photos = append(photos, photo(fmt.Sprintf("afternoon-%d", i), day.Add(14*time.Hour+time.Duration(i)*7*time.Minute), 37.4425, -122.1425))
	}
	clusters := run(photos...)
	require.Len(t, clusters, 2)
	assert.Equal(t, 10, clusters[0].PhotoCount())
	assert.Equal(t, 8, clusters[1].PhotoCount())
	assert.InDelta(t, 37.4419, clusters[0].CentroidLatitude, 1e-9)
	assert.InDelta(t, -122.1425, clusters[1].CentroidLongitude, 1e-9)
}

func TestNoLocationGroupsByTime(t *testing.T) {
	clusters := run(
		photo("a", day.Add(13*time.Hour), 0, 0),
		photo("b", day.Add(13*time.Hour+30*time.Minute), 0, 0),
		photo("c", day.Add(14*time.Hour), 0, 0),
	)
	require.Len(t, clusters, 1)
	assert.Equal(t, 3, clusters[0].PhotoCount())
	assert.False(t, clusters[0].HasLocation())
}

func TestMixedLocationSkipsRule(t *testing.T) {
	at := day.Add(9 * time.Hour)
	clusters := run(
		photo("untagged", at, 0, 0),
		photo("paris", at.Add(time.Minute), 48.8584, 2.2945),
		photo("untagged-2", at.Add(2*time.Minute), 0, 0),
		photo("rome", at.Add(3*time.Minute), 41.8902, 12.4922),
	)
	require.Len(t, clusters, 2)
	assert.Equal(t, []string{"untagged", "paris", "untagged-2"}, clusters[0].MemberPhotoURIs)
	assert.Equal(t, 48.8584, clusters[0].CentroidLatitude, "only located members count")
	assert.Equal(t, []string{"rome"}, clusters[1].MemberPhotoURIs)
}

func TestCentroidDrift(t *testing.T) {
	// The last photo is 160m from the seed but within 100m of the centroid,
	// which has moved north with the three photos taken at 90m.
	at := day.Add(9 * time.Hour)
	lat, lon := 37.0, -122.0
	offsets := []float64{0, 90, 90, 90, 160}
	var photos []*model.PhotoRecord
	for i, m := range offsets {
		photos = append(photos, photo(fmt.Sprintf("p%d", i), at.Add(time.Duration(i)*time.Minute), geotime.OffsetNorth(lat, m), lon))
	}
	clusters := run(photos...)
	require.Len(t, clusters, 1)
	assert.Equal(t, 5, clusters[0].PhotoCount())
}

func TestIdenticalTimestampsKeepInputOrder(t *testing.T) {
	at := day.Add(9 * time.Hour)
	clusters := run(photo("z", at, 0, 0), photo("a", at, 0, 0), photo("m", at, 0, 0))
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"z", "a", "m"}, clusters[0].MemberPhotoURIs)
}

func TestWithDefaults(t *testing.T) {
	e := NewEngine(Options{})
	assert.Equal(t, DefaultOptions(), e.Options())
	assert.NotEmpty(t, e.Cluster("u", geotime.Build([]*model.PhotoRecord{photo("a", day, 0, 0)}))[0].ClusterID)
}

// Every input photo lands in exactly one cluster and members are chronological.
func TestRandomLibrariesPartitionChronologically(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		n := rng.Intn(200)
		photos := make([]*model.PhotoRecord, 0, n)
		for i := 0; i < n; i++ {
			var lat, lon float64
			if rng.Intn(4) > 0 {
				lat = 37.44 + rng.Float64()*0.01
				lon = -122.14 + rng.Float64()*0.01
			}
			at := day.Add(time.Duration(rng.Int63n(int64(72 * time.Hour))))
			photos = append(photos, photo(fmt.Sprintf("r%d-p%d", round, i), at, lat, lon))
		}

		clusters := run(photos...)
		seen := make(map[string]int)
		for _, c := range clusters {
			require.Equal(t, len(c.Members), c.PhotoCount())
			for i, m := range c.Members {
				seen[m.URI]++
				if i > 0 {
					assert.False(t, m.CapturedAt.Before(c.Members[i-1].CapturedAt))
				}
			}
			assert.Equal(t, c.Members[0].CapturedAt, c.StartTime)
			assert.Equal(t, c.Members[len(c.Members)-1].CapturedAt, c.EndTime)
		}
		require.Len(t, seen, n)
		for uri, count := range seen {
			assert.Equal(t, 1, count, uri)
		}
	}
}
