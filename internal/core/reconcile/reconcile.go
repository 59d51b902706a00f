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

// Package reconcile merges freshly computed clusters into the clusters already
// persisted for a user, so re-running clustering over a growing library keeps
// cluster identities and never duplicates a moment.
package reconcile

import (
	"math"
	"sort"
	"time"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/clustering"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/geotime"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
)

// Result is the outcome of a reconciliation.
type Result struct {
	// Clusters is the complete set: existing clusters (merged where matched) in
	// their original order, followed by inserted clusters.
	Clusters []*model.Cluster
	// Changed lists the merged clusters whose content changed and the inserted
	// ones. Only these need to be written back.
	Changed []*model.Cluster
	// Relabel lists the merged clusters whose centroid moved away from the
	// place their location label names. Their current label is kept.
	Relabel []*model.Cluster
	// Merged and Inserted count the new clusters by outcome.
	Merged   int
	Inserted int
}

// Reconcile matches every new cluster against the existing ones.
//
// A match lies within the clustering radius of the new centroid (skipped when
// either side has no location) and has a time window overlapping the new one
// or within the clustering gap of it. Among several matches the nearest
// centroid wins, then the earliest start, then the smallest ClusterID. A
// matched cluster absorbs the new members; it keeps its ClusterID, CreatedAt,
// IsProcessed and VideoURL, and its labels describe its own merged bounds.
// Unmatched clusters are inserted.
//
// A photo already owned by an existing cluster is never added to another one,
// so every photo stays in exactly one cluster across runs. Neither input is
// modified.
func Reconcile(newClusters, existing []*model.Cluster, opts clustering.Options, now time.Time) *Result {
	opts = opts.WithDefaults()
	res := &Result{}

	owner := make(map[string]*model.Cluster)
	ids := make(map[string]bool)
	working := make([]*model.Cluster, 0, len(existing))
	for _, ex := range existing {
		c := ex.Copy()
		working = append(working, c)
		ids[c.ClusterID] = true
		for _, uri := range c.MemberPhotoURIs {
			owner[uri] = c
		}
	}
	changed := make(map[*model.Cluster]bool)
	relabel := make(map[*model.Cluster]bool)

	for _, nc := range newClusters {
		if nc == nil || len(nc.Members) == 0 {
			continue
		}
		match := bestMatch(nc, working, opts)

		fresh := make([]*model.PhotoRecord, 0, len(nc.Members))
		seen := make(map[string]bool, len(nc.Members))
		for _, m := range nc.Members {
			if seen[m.URI] {
				continue
			}
			seen[m.URI] = true
			if o, ok := owner[m.URI]; ok && o != match {
				continue
			}
			fresh = append(fresh, m)
		}

		if match != nil {
			res.Merged++
			updated, stale := merge(match, nc, fresh)
			if updated {
				match.UpdatedAt = now
				changed[match] = true
			}
			if stale {
				relabel[match] = true
			}
			for _, m := range fresh {
				owner[m.URI] = match
			}
			continue
		}

		if len(fresh) == 0 {
			continue
		}
		inserted := nc.Copy()
		inserted.Members = fresh
		inserted.Recompute()
		if inserted.ClusterID == "" || ids[inserted.ClusterID] {
			inserted.ClusterID = model.NewClusterID()
		}
		if inserted.CreatedAt.IsZero() {
			inserted.CreatedAt = now
		}
		if inserted.UpdatedAt.IsZero() {
			inserted.UpdatedAt = now
		}
		ids[inserted.ClusterID] = true
		for _, m := range fresh {
			owner[m.URI] = inserted
		}
		res.Inserted++
		res.Clusters = append(res.Clusters, inserted)
		res.Changed = append(res.Changed, inserted)
	}

	merged := make([]*model.Cluster, 0, len(working))
	for _, c := range working {
		if changed[c] {
			merged = append(merged, c)
		}
		if relabel[c] {
			res.Relabel = append(res.Relabel, c)
		}
	}
	res.Clusters = append(working, res.Clusters...)
	res.Changed = append(merged, res.Changed...)
	return res
}

// Matches reports whether an existing cluster is a merge candidate for a new one.
func Matches(nc, ex *model.Cluster, opts clustering.Options) bool {
	if nc.HasLocation() && ex.HasLocation() &&
		!opts.WithinRadius(nc.CentroidLatitude, nc.CentroidLongitude, ex.CentroidLatitude, ex.CentroidLongitude) {
		return false
	}
	return !nc.StartTime.After(ex.EndTime.Add(opts.MaxGap)) && !ex.StartTime.After(nc.EndTime.Add(opts.MaxGap))
}

func bestMatch(nc *model.Cluster, candidates []*model.Cluster, opts clustering.Options) *model.Cluster {
	var (
		best     *model.Cluster
		bestDist float64
	)
	for _, ex := range candidates {
		if !Matches(nc, ex, opts) {
			continue
		}
		d := centroidDistance(nc, ex)
		if best == nil || better(ex, d, best, bestDist) {
			best, bestDist = ex, d
		}
	}
	return best
}

// centroidDistance is +Inf when either side has no location so measured
// candidates rank first.
func centroidDistance(a, b *model.Cluster) float64 {
	if !a.HasLocation() || !b.HasLocation() {
		return math.Inf(1)
	}
	return geotime.Distance(a.CentroidLatitude, a.CentroidLongitude, b.CentroidLatitude, b.CentroidLongitude)
}

func better(c *model.Cluster, d float64, best *model.Cluster, bestDist float64) bool {
	if d != bestDist {
		return d < bestDist
	}
	if !c.StartTime.Equal(best.StartTime) {
		return c.StartTime.Before(best.StartTime)
	}
	return c.ClusterID < best.ClusterID
}

// labelDriftMeters is how far a centroid may move before the location label
// computed for it stops naming the place.
const labelDriftMeters = 10.0

// merge folds the fresh members of nc into ex and refreshes the labels of ex.
// It reports whether ex changed and whether its location label is stale.
//
// The time label follows the merged start: it is derived again only when the
// start moved, and the new start is then the capture time of an added photo.
// The location label is kept while the centroid stays put, taken from nc when
// the merged centroid is where nc was labeled, and reported stale otherwise.
func merge(ex, nc *model.Cluster, fresh []*model.PhotoRecord) (changed, stale bool) {
	wasLocated := ex.HasLocation()
	oldLat, oldLon, oldStart := ex.CentroidLatitude, ex.CentroidLongitude, ex.StartTime

	added := make([]*model.PhotoRecord, 0, len(fresh))
	for _, m := range fresh {
		if !ex.Contains(m.URI) {
			added = append(added, m)
		}
	}
	if len(added) > 0 {
		members := append(append([]*model.PhotoRecord(nil), ex.Members...), added...)
		sort.SliceStable(members, func(i, j int) bool {
			return members[i].CapturedAt.Before(members[j].CapturedAt)
		})
		ex.Members = members
		ex.Recompute()
		changed = true
	}

	if ex.TimeDescription != nil || nc.TimeDescription != nil {
		if ex.TimeDescription == nil || !ex.StartTime.Equal(oldStart) {
			if setString(&ex.TimeDescription, string(model.TimeOfDayOf(ex.StartTime))) {
				changed = true
			}
		}
	}

	if ex.LocationName == nil && nc.LocationName == nil {
		return changed, false
	}
	switch {
	case !ex.HasLocation():
		if setString(&ex.LocationName, model.UnknownLocation) {
			changed = true
		}
	case ex.LocationName != nil && wasLocated && near(ex, oldLat, oldLon):
	case nc.LocationName != nil && nc.HasLocation() && near(ex, nc.CentroidLatitude, nc.CentroidLongitude):
		if setString(&ex.LocationName, *nc.LocationName) {
			changed = true
		}
	default:
		stale = true
	}
	return changed, stale
}

func near(c *model.Cluster, lat, lon float64) bool {
	return geotime.Distance(c.CentroidLatitude, c.CentroidLongitude, lat, lon) <= labelDriftMeters
}

// setString points *dst at v and reports whether the value changed.
func setString(dst **string, v string) bool {
	if *dst != nil && **dst == v {
		return false
	}
	*dst = model.StringPtr(v)
	return true
}
