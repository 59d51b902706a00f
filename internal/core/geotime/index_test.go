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

package geotime

import (
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEmpty(t *testing.T) {
	idx := Build(nil)
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.Entries())
	assert.Empty(t, idx.Photos())
}

func TestBuildSortsStable(t *testing.T) {
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	photos := []*model.PhotoRecord{
		{URI: "c", CapturedAt: base.Add(time.Hour)},
		{URI: "a", CapturedAt: base, Latitude: 1, Longitude: 1},
		{URI: "burst-2", CapturedAt: base.Add(30 * time.Minute)},
		nil,
		{URI: "burst-1", CapturedAt: base.Add(30 * time.Minute)},
	}
	idx := Build(photos)
	require.Equal(t, 4, idx.Len())

	var uris []string
	for _, p := range idx.Photos() {
		uris = append(uris, p.URI)
	}
	// Ties keep input order, not identifier order.
	assert.Equal(t, []string{"a", "burst-2", "burst-1", "c"}, uris)
	assert.True(t, idx.Entries()[0].HasLocation)
	assert.False(t, idx.Entries()[1].HasLocation)
}

func TestBuildDoesNotReorderInput(t *testing.T) {
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	photos := []*model.PhotoRecord{
		{URI: "late", CapturedAt: base.Add(time.Hour)},
		{URI: "early", CapturedAt: base},
	}
	Build(photos)
	assert.Equal(t, "late", photos[0].URI)
}

func TestHasLocationOneAxis(t *testing.T) {
	idx := Build([]*model.PhotoRecord{
		{URI: "equator", Latitude: 0, Longitude: 12.5},
		{URI: "meridian", Latitude: 51.4, Longitude: 0},
	})
	for _, e := range idx.Entries() {
		assert.True(t, e.HasLocation, e.Photo.URI)
	}
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 0.0, Distance(37.4419, -122.1430, 37.4419, -122.1430))

	// The two sample locations are roughly 80m apart.
	d := Distance(37.4419, -122.1430, 37.4425, -122.1425)
	assert.InDelta(t, 80.0, d, 1.0)

	// San Francisco to Los Angeles.
	assert.InDelta(t, 559_000, Distance(37.7749, -122.4194, 34.0522, -118.2437), 2_000)
}

func TestOffsetNorthIsInverse(t *testing.T) {
	lat := OffsetNorth(37.4419, 100)
	assert.InDelta(t, 100.0, Distance(37.4419, -122.1430, lat, -122.1430), 1e-6)
}
