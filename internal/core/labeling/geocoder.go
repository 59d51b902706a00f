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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
)

var (
	// ErrNoResult means the service has no place for the coordinates. It is
	// not retried.
	ErrNoResult = errors.New("no geocoding result")
	// ErrRejected means the service refused the request (4xx other than 429).
	// It is not retried.
	ErrRejected = errors.New("geocoding request rejected")
)

// Geocoder resolves a coordinate into place name components.
type Geocoder interface {
	Resolve(ctx context.Context, lat, lon float64) (*model.Place, error)
}

// GeocoderFunc adapts a function to the Geocoder interface.
type GeocoderFunc func(ctx context.Context, lat, lon float64) (*model.Place, error)

func (f GeocoderFunc) Resolve(ctx context.Context, lat, lon float64) (*model.Place, error) {
	return f(ctx, lat, lon)
}

const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"
	DefaultUserAgent    = "gcp-go-photo-moments/1.0"
	defaultHTTPTimeout  = 10 * time.Second
)

// NominatimGeocoder calls the reverse endpoint of a Nominatim server.
type NominatimGeocoder struct {
	baseURL   string
	userAgent string
	language  string
	client    *http.Client
}

// NewNominatimGeocoder creates a geocoder. Empty values fall back to the public
// server and the default user agent; a nil client gets a 10 second timeout.
func NewNominatimGeocoder(baseURL, userAgent, language string, client *http.Client) *NominatimGeocoder {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &NominatimGeocoder{baseURL: baseURL, userAgent: userAgent, language: language, client: client}
}

type nominatimAddress struct {
	Tourism       string `json:"tourism"`
	Amenity       string `json:"amenity"`
	Leisure       string `json:"leisure"`
	Historic      string `json:"historic"`
	Neighbourhood string `json:"neighbourhood"`
	Suburb        string `json:"suburb"`
	Quarter       string `json:"quarter"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	Municipality  string `json:"municipality"`
	State         string `json:"state"`
	Region        string `json:"region"`
	County        string `json:"county"`
	Country       string `json:"country"`
}

type nominatimResponse struct {
	Name    string           `json:"name"`
	Error   string           `json:"error"`
	Address nominatimAddress `json:"address"`
}

// Resolve performs one reverse lookup. Retrying is left to the caller.
func (g *NominatimGeocoder) Resolve(ctx context.Context, lat, lon float64) (*model.Place, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")
	if g.language != "" {
		q.Set("accept-language", g.language)
	}
	endpoint := g.baseURL + "/reverse?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocoding request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read geocoding response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNoResult
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("geocoding service returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	var parsed nominatimResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse geocoding response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrNoResult, parsed.Error)
	}

	a := parsed.Address
	place := &model.Place{
		PointOfInterest: firstNonEmpty(parsed.Name, a.Tourism, a.Amenity, a.Leisure, a.Historic),
		SubLocality:     firstNonEmpty(a.Neighbourhood, a.Suburb, a.Quarter),
		City:            firstNonEmpty(a.City, a.Town, a.Village, a.Municipality),
		AdminRegion:     firstNonEmpty(a.State, a.Region, a.County),
		Country:         a.Country,
	}
	if place.IsEmpty() {
		return nil, ErrNoResult
	}
	return place, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
