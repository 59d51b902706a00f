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

// Package clustering groups a time-sorted photo index into moments: runs of
// photos close to each other in both place and time.
//
// The grouping is a single greedy pass. Each photo is compared with the
// cluster currently being accumulated; if it was taken within MaxGap of the
// cluster's last photo and, when both carry a location, lies within Radius of
// the cluster's centroid, it joins the cluster. Otherwise the cluster is closed
// and the photo seeds the next one. Because the comparison is made against
// the moving centroid, a cluster may drift over a long walk as long as each
// step stays within the radius.
package clustering

import (
	"time"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/geotime"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
)

const (
	DefaultRadiusMeters = 100.0
	DefaultMaxGap       = 3 * time.Hour

	// distanceTolerance absorbs floating point noise at the inclusive radius boundary.
	distanceTolerance = 1e-6
)

// Options are the grouping thresholds. Both are inclusive.
type Options struct {
	RadiusMeters float64
	MaxGap       time.Duration
}

// DefaultOptions returns a 100 metre radius and a 3 hour gap.
func DefaultOptions() Options {
	return Options{RadiusMeters: DefaultRadiusMeters, MaxGap: DefaultMaxGap}
}

// WithDefaults fills unset thresholds.
func (o Options) WithDefaults() Options {
	if o.RadiusMeters <= 0 {
		o.RadiusMeters = DefaultRadiusMeters
	}
	if o.MaxGap <= 0 {
		o.MaxGap = DefaultMaxGap
	}
	return o
}

// WithinRadius reports whether two points are within the radius.
func (o Options) WithinRadius(lat1, lon1, lat2, lon2 float64) bool {
	return geotime.Distance(lat1, lon1, lat2, lon2) <= o.RadiusMeters+distanceTolerance
}

// Engine runs the grouping pass. The zero value is not usable; use NewEngine.
type Engine struct {
	opts  Options
	now   func() time.Time
	newID func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock sets the clock used for CreatedAt and UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator sets the cluster identifier generator.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

func NewEngine(opts Options, options ...Option) *Engine {
	e := &Engine{opts: opts.WithDefaults(), now: time.Now, newID: model.NewClusterID}
	for _, o := range options {
		o(e)
	}
	return e
}

// Options returns the thresholds in effect.
func (e *Engine) Options() Options {
	return e.opts
}

// Cluster groups the indexed photos of one user. It never fails; an empty
// index produces no clusters. Singletons are emitted as-is.
func (e *Engine) Cluster(userID string, idx *geotime.Index) []*model.Cluster {
	var (
		out []*model.Cluster
		acc *accumulator
	)
	now := e.now()
	for _, entry := range idx.Entries() {
		if acc != nil && e.accepts(acc, entry) {
			acc.add(entry)
			continue
		}
		if acc != nil {
			out = append(out, acc.emit(e.newID(), userID, now))
		}
		acc = newAccumulator(entry)
	}
	if acc != nil {
		out = append(out, acc.emit(e.newID(), userID, now))
	}
	return out
}

func (e *Engine) accepts(acc *accumulator, entry geotime.Entry) bool {
	if entry.Photo.CapturedAt.Sub(acc.end) > e.opts.MaxGap {
		return false
	}
	if !entry.HasLocation || acc.located == 0 {
		return true
	}
	lat, lon := acc.centroid()
	return e.opts.WithinRadius(entry.Photo.Latitude, entry.Photo.Longitude, lat, lon)
}

// accumulator is the cluster under construction.
type accumulator struct {
	members        []*model.PhotoRecord
	start, end     time.Time
	sumLat, sumLon float64
	located        int
}

func newAccumulator(seed geotime.Entry) *accumulator {
	acc := &accumulator{start: seed.Photo.CapturedAt, end: seed.Photo.CapturedAt}
	acc.add(seed)
	return acc
}

func (a *accumulator) add(entry geotime.Entry) {
	a.members = append(a.members, entry.Photo)
	if entry.Photo.CapturedAt.After(a.end) {
		a.end = entry.Photo.CapturedAt
	}
	if entry.HasLocation {
		a.sumLat += entry.Photo.Latitude
		a.sumLon += entry.Photo.Longitude
		a.located++
	}
}

func (a *accumulator) centroid() (float64, float64) {
	if a.located == 0 {
		return 0, 0
	}
	return a.sumLat / float64(a.located), a.sumLon / float64(a.located)
}

func (a *accumulator) emit(id, userID string, now time.Time) *model.Cluster {
	c := &model.Cluster{
		ClusterID: id,
		UserID:    userID,
		Members:   a.members,
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.Recompute()
	return c
}
