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
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNominatim = "https://nominatim.test"

func setupHTTPMock(t *testing.T) *http.Client {
	t.Helper()
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestNominatimResolve(t *testing.T) {
	client := setupHTTPMock(t)
	httpmock.RegisterResponder(http.MethodGet, testNominatim+"/reverse",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "photo-moments-test", req.Header.Get("User-Agent"))
			assert.Equal(t, "37.441900", req.URL.Query().Get("lat"))
			assert.Equal(t, "-122.143000", req.URL.Query().Get("lon"))
			assert.Equal(t, "en", req.URL.Query().Get("accept-language"))
			return httpmock.NewStringResponse(http.StatusOK, `{
				"name": "",
				"address": {
					"amenity": "Lucie Stern Community Center",
					"neighbourhood": "Community Center",
					"city": "Palo Alto",
					"state": "California",
					"country": "United States"
				}
			}`), nil
		})

	g := NewNominatimGeocoder(testNominatim, "photo-moments-test", "en", client)
	place, err := g.Resolve(context.Background(), 37.4419, -122.1430)
	require.NoError(t, err)
	assert.Equal(t, "Lucie Stern Community Center", place.PointOfInterest)
	assert.Equal(t, "Community Center", place.SubLocality)
	assert.Equal(t, "Palo Alto", place.City)
	assert.Equal(t, "California", place.AdminRegion)
	assert.Equal(t, "United States", place.Country)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestNominatimTownFallback(t *testing.T) {
	client := setupHTTPMock(t)
	httpmock.RegisterResponder(http.MethodGet, testNominatim+"/reverse",
		httpmock.NewStringResponder(http.StatusOK, `{"address": {"town": "Hallstatt", "state": "Upper Austria", "country": "Austria"}}`))

	place, err := NewNominatimGeocoder(testNominatim, "", "", client).Resolve(context.Background(), 47.56, 13.64)
	require.NoError(t, err)
	assert.Equal(t, "Hallstatt", FormatPlace(place))
}

func TestNominatimErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		permanent error
	}{
		{"unable to geocode", http.StatusOK, `{"error": "Unable to geocode"}`, ErrNoResult},
		{"empty address", http.StatusOK, `{"address": {}}`, ErrNoResult},
		{"not found", http.StatusNotFound, ``, ErrNoResult},
		{"forbidden", http.StatusForbidden, `blocked`, ErrRejected},
		{"rate limited", http.StatusTooManyRequests, ``, nil},
		{"server error", http.StatusBadGateway, ``, nil},
		{"invalid json", http.StatusOK, `{invalid`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := setupHTTPMock(t)
			httpmock.RegisterResponder(http.MethodGet, testNominatim+"/reverse",
				httpmock.NewStringResponder(tt.status, tt.body))

			place, err := NewNominatimGeocoder(testNominatim, "", "", client).Resolve(context.Background(), 1, 1)
			require.Error(t, err)
			assert.Nil(t, place)
			if tt.permanent != nil {
				assert.ErrorIs(t, err, tt.permanent)
			} else {
				assert.NotErrorIs(t, err, ErrNoResult)
				assert.NotErrorIs(t, err, ErrRejected)
			}
		})
	}
}

func TestLabelerWithNominatimRetriesServerErrors(t *testing.T) {
	client := setupHTTPMock(t)
	httpmock.RegisterResponder(http.MethodGet, testNominatim+"/reverse",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, ``))

	c := locatedCluster(-22.9519, -43.2105, testStart)
	labeled := fastLabeler().Label(context.Background(), c, NewNominatimGeocoder(testNominatim, "", "", client))
	assert.Equal(t, "22.95°S, 43.21°W", *labeled.LocationName)
	assert.Equal(t, DefaultMaxAttempts, httpmock.GetTotalCallCount())
}
