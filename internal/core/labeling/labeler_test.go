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

package labeling

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func fastLabeler() *Labeler {
	return NewLabeler(Options{MinInterval: -1, Backoff: -1})
}

func locatedCluster(lat, lon float64, start time.Time) *model.Cluster {
	c := &model.Cluster{ClusterID: "c1", Members: []*model.PhotoRecord{
		{URI: "p1", CapturedAt: start, Latitude: lat, Longitude: lon},
	}}
	c.Recompute()
	return c
}

func TestFormatPlacePriority(t *testing.T) {
	tests := []struct {
		name  string
		place *model.Place
		want  string
	}{
		{"nil", nil, ""},
		{"empty", &model.Place{}, ""},
		{"poi", &model.Place{PointOfInterest: "Stanford University", SubLocality: "Palo Alto Hills", City: "Palo Alto", Country: "USA"}, "Stanford University"},
		{"sub-locality", &model.Place{SubLocality: "Mission District", City: "San Francisco"}, "Mission District"},
		{"city", &model.Place{City: "Lisbon", AdminRegion: "Lisboa", Country: "Portugal"}, "Lisbon"},
		{"region", &model.Place{AdminRegion: "Tuscany", Country: "Italy"}, "Tuscany"},
		{"country", &model.Place{Country: "Iceland"}, "Iceland"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPlace(tt.place))
		})
	}
}

func TestFormatCoordinates(t *testing.T) {
	assert.Equal(t, "12.34°N, 56.78°W", FormatCoordinates(12.3401, -56.7812))
	assert.Equal(t, "33.87°S, 151.21°E", FormatCoordinates(-33.8688, 151.2093))
}

func TestLabelUnknownLocation(t *testing.T) {
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	c := &model.Cluster{ClusterID: "c1", Members: []*model.PhotoRecord{
		{URI: "a", CapturedAt: start},
		{URI: "b", CapturedAt: start.Add(30 * time.Minute)},
		{URI: "c", CapturedAt: start.Add(time.Hour)},
	}}
	c.Recompute()

	calls := 0
	geocoder := GeocoderFunc(func(context.Context, float64, float64) (*model.Place, error) {
		calls++
		return &model.Place{City: "Nowhere"}, nil
	})
	labeled := fastLabeler().Label(context.Background(), c, geocoder)

	require.NotNil(t, labeled.LocationName)
	assert.Equal(t, model.UnknownLocation, *labeled.LocationName)
	require.NotNil(t, labeled.TimeDescription)
	assert.Equal(t, "Morning", *labeled.TimeDescription)
	assert.Zero(t, calls)
	assert.Nil(t, c.LocationName, "input must not be modified")
}

func TestLabelUsesGeocoder(t *testing.T) {
	c := locatedCluster(37.4419, -122.1430, time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC))
	geocoder := GeocoderFunc(func(_ context.Context, lat, lon float64) (*model.Place, error) {
		assert.Equal(t, 37.4419, lat)
		assert.Equal(t, -122.1430, lon)
		return &model.Place{SubLocality: "University South", City: "Palo Alto"}, nil
	})
	labeled := fastLabeler().Label(context.Background(), c, geocoder)
	assert.Equal(t, "University South", *labeled.LocationName)
	assert.Equal(t, "Evening", *labeled.TimeDescription)
}

func TestLabelGeocoderAlwaysFails(t *testing.T) {
	var calls int32
	geocoder := GeocoderFunc(func(context.Context, float64, float64) (*model.Place, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("connection reset by peer")
	})
	c := locatedCluster(12.3401, -56.7812, time.Date(2024, 6, 1, 23, 0, 0, 0, time.UTC))
	labeled := fastLabeler().Label(context.Background(), c, geocoder)

	require.NotNil(t, labeled.LocationName)
	assert.Equal(t, "12.34°N, 56.78°W", *labeled.LocationName)
	assert.Equal(t, "Night", *labeled.TimeDescription)
	assert.Equal(t, int32(DefaultMaxAttempts), atomic.LoadInt32(&calls))
}

func TestLabelPermanentErrorNotRetried(t *testing.T) {
	for _, permanent := range []error{ErrNoResult, ErrRejected} {
		calls := 0
		geocoder := GeocoderFunc(func(context.Context, float64, float64) (*model.Place, error) {
			calls++
			return nil, permanent
		})
		labeled := fastLabeler().Label(context.Background(), locatedCluster(1.5, 2.5, time.Now()), geocoder)
		assert.Equal(t, "1.50°N, 2.50°E", *labeled.LocationName)
		assert.Equal(t, 1, calls, permanent.Error())
	}
}

func TestLabelRecoversAfterTransientFailure(t *testing.T) {
	calls := 0
	geocoder := GeocoderFunc(func(context.Context, float64, float64) (*model.Place, error) {
		calls++
		if calls < 2 {
			return nil, errors.New("503")
		}
		return &model.Place{Country: "Portugal"}, nil
	})
	labeled := fastLabeler().Label(context.Background(), locatedCluster(38.7, -9.1, time.Now()), geocoder)
	assert.Equal(t, "Portugal", *labeled.LocationName)
	assert.Equal(t, 2, calls)
}

func TestLabelEmptyPlaceFallsBack(t *testing.T) {
	geocoder := GeocoderFunc(func(context.Context, float64, float64) (*model.Place, error) {
		return &model.Place{}, nil
	})
	labeled := fastLabeler().Label(context.Background(), locatedCluster(-1, -1, time.Now()), geocoder)
	assert.Equal(t, "1.00°S, 1.00°W", *labeled.LocationName)
}

func TestLabelNilGeocoder(t *testing.T) {
	labeled := fastLabeler().Label(context.Background(), locatedCluster(10, 20, time.Now()), nil)
	assert.Equal(t, "10.00°N, 20.00°E", *labeled.LocationName)
}

func TestLabelCachesResults(t *testing.T) {
	calls := 0
	geocoder := GeocoderFunc(func(context.Context, float64, float64) (*model.Place, error) {
		calls++
		return &model.Place{City: "Kyoto"}, nil
	})
	l := fastLabeler()
	clusters := l.LabelAll(context.Background(), []*model.Cluster{
		locatedCluster(35.01160, 135.7681, time.Now()),
		locatedCluster(35.01162, 135.7681, time.Now()),
	}, geocoder)
	require.Len(t, clusters, 2)
	assert.Equal(t, "Kyoto", *clusters[1].LocationName)
	assert.Equal(t, 1, calls)
}

func TestGeocoderCallsAreSerial(t *testing.T) {
	var inFlight, maxInFlight int32
	geocoder := GeocoderFunc(func(context.Context, float64, float64) (*model.Place, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return &model.Place{City: "Somewhere"}, nil
	})

	l := fastLabeler()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Label(context.Background(), locatedCluster(float64(i+1), 10, time.Now()), geocoder)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}

func TestMinIntervalSpacesCalls(t *testing.T) {
	var stamps []time.Time
	geocoder := GeocoderFunc(func(context.Context, float64, float64) (*model.Place, error) {
		stamps = append(stamps, time.Now())
		return nil, errors.New("unavailable")
	})
	l := NewLabeler(Options{MinInterval: 20 * time.Millisecond, Backoff: -1})
	l.Label(context.Background(), locatedCluster(5, 5, time.Now()), geocoder)
	require.Len(t, stamps, DefaultMaxAttempts)
	for i := 1; i < len(stamps); i++ {
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), 15*time.Millisecond)
	}
}

func TestCancelledContextFallsBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	geocoder := GeocoderFunc(func(ctx context.Context, _, _ float64) (*model.Place, error) {
		return nil, ctx.Err()
	})
	labeled := NewLabeler(Options{Backoff: -1}).Label(ctx, locatedCluster(5, 5, time.Now()), geocoder)
	assert.Equal(t, "5.00°N, 5.00°E", *labeled.LocationName)
}
