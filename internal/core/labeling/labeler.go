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

// Package labeling names clusters: a location name resolved through a
// reverse geocoding service and a time of day description.
//
// Labeling never fails. Clusters without location are named "Unknown
// Location", and when the geocoder keeps failing the centroid is rendered as
// a coordinate string instead.
package labeling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/cor"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
)

const (
	DefaultMinInterval = time.Second
	DefaultMaxAttempts = 3
	DefaultBackoff     = 500 * time.Millisecond
	DefaultCacheTTL    = 24 * time.Hour
)

// Options configure the geocoding discipline.
type Options struct {
	MinInterval time.Duration // Minimum delay between two geocoder calls.
	MaxAttempts int           // Attempts per coordinate, first call included.
	Backoff     time.Duration // Grows linearly with the attempt number.
	CacheTTL    time.Duration
}

func (o Options) withDefaults() Options {
	if o.MinInterval < 0 {
		o.MinInterval = 0
	} else if o.MinInterval == 0 {
		o.MinInterval = DefaultMinInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Backoff < 0 {
		o.Backoff = 0
	} else if o.Backoff == 0 {
		o.Backoff = DefaultBackoff
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	return o
}

// Labeler serialises geocoder calls across all goroutines using it.
type Labeler struct {
	opts    Options
	mu      sync.Mutex
	limiter *rate.Limiter
	cache   *cache.Cache

	retryCounter    metric.Int64Counter
	fallbackCounter metric.Int64Counter
}

// NewLabeler creates a labeler. A negative MinInterval or Backoff disables the
// corresponding delay, which tests rely on.
func NewLabeler(opts Options) *Labeler {
	opts = opts.withDefaults()
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	meter := otel.Meter(cor.MeterName)
	retries, _ := meter.Int64Counter("labeling.geocode.retry")
	fallbacks, _ := meter.Int64Counter("labeling.geocode.fallback")
	return &Labeler{
		opts:            opts,
		limiter:         rate.NewLimiter(limit, 1),
		cache:           cache.New(opts.CacheTTL, opts.CacheTTL*2),
		retryCounter:    retries,
		fallbackCounter: fallbacks,
	}
}

// Label returns a copy of the cluster with LocationName and TimeDescription set.
// The input cluster is not modified.
func (l *Labeler) Label(ctx context.Context, c *model.Cluster, geocoder Geocoder) *model.Cluster {
	out := c.Copy()
	out.TimeDescription = model.StringPtr(FormatTimeOfDay(out))
	if !out.HasLocation() {
		out.LocationName = model.StringPtr(model.UnknownLocation)
		return out
	}
	out.LocationName = model.StringPtr(l.LocationName(ctx, out.CentroidLatitude, out.CentroidLongitude, geocoder))
	return out
}

// LabelAll labels clusters one after the other, in order.
func (l *Labeler) LabelAll(ctx context.Context, clusters []*model.Cluster, geocoder Geocoder) []*model.Cluster {
	out := make([]*model.Cluster, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, l.Label(ctx, c, geocoder))
	}
	return out
}

// LocationName resolves a coordinate into a display name, falling back to the
// formatted coordinates.
func (l *Labeler) LocationName(ctx context.Context, lat, lon float64, geocoder Geocoder) string {
	key := cacheKey(lat, lon)
	if cached, ok := l.cache.Get(key); ok {
		if name, ok := cached.(string); ok {
			return name
		}
	}

	name, err := l.resolve(ctx, lat, lon, geocoder)
	if err != nil {
		l.fallbackCounter.Add(ctx, 1)
		slog.WarnContext(ctx, "geocoding failed, using coordinates", "latitude", lat, "longitude", lon, "error", err)
		return FormatCoordinates(lat, lon)
	}
	l.cache.Set(key, name, cache.DefaultExpiration)
	return name
}

// Namer binds LocationName to a geocoder.
func (l *Labeler) Namer(geocoder Geocoder) func(ctx context.Context, lat, lon float64) string {
	return func(ctx context.Context, lat, lon float64) string {
		return l.LocationName(ctx, lat, lon, geocoder)
	}
}

func (l *Labeler) resolve(ctx context.Context, lat, lon float64, geocoder Geocoder) (string, error) {
	if geocoder == nil {
		return "", errors.New("no geocoder configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= l.opts.MaxAttempts; attempt++ {
		if err := l.limiter.Wait(ctx); err != nil {
			return "", err
		}
		place, err := geocoder.Resolve(ctx, lat, lon)
		if err == nil {
			if name := FormatPlace(place); name != "" {
				return name, nil
			}
			return "", ErrNoResult
		}
		lastErr = err
		if errors.Is(err, ErrNoResult) || errors.Is(err, ErrRejected) || ctx.Err() != nil {
			break
		}
		if attempt == l.opts.MaxAttempts {
			break
		}
		l.retryCounter.Add(ctx, 1)
		slog.DebugContext(ctx, "retrying geocode", "attempt", attempt, "error", err)
		if err := sleep(ctx, time.Duration(attempt)*l.opts.Backoff); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("geocoding %.5f,%.5f: %w", lat, lon, lastErr)
}

// cacheKey rounds to about ten metres so a centroid nudged by a merge still hits.
func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
