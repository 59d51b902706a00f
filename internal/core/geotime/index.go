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

// Package geotime normalizes raw photo records into a chronologically sorted
// index and provides the great-circle distance used by clustering and
// reconciliation.
package geotime

import (
	"sort"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
)

// Entry is one photo of the index with its precomputed location flag.
type Entry struct {
	Photo       *model.PhotoRecord
	HasLocation bool
}

// Index is an immutable, time-sorted view over a photo collection.
type Index struct {
	entries []Entry
}

// Build sorts the photos ascending by capture time. The sort is stable, so
// photos with identical timestamps keep their input order (capture bursts stay
// in sequence). Nil records are skipped. Build never fails; an empty input
// yields an empty index.
func Build(photos []*model.PhotoRecord) *Index {
	entries := make([]Entry, 0, len(photos))
	for _, p := range photos {
		if p == nil {
			continue
		}
		entries = append(entries, Entry{Photo: p, HasLocation: p.HasLocation()})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Photo.CapturedAt.Before(entries[j].Photo.CapturedAt)
	})
	return &Index{entries: entries}
}

// Len returns the number of indexed photos.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.entries)
}

// Entries returns the sorted entries. The slice must not be modified.
func (i *Index) Entries() []Entry {
	if i == nil {
		return nil
	}
	return i.entries
}

// Photos returns the sorted photo records.
func (i *Index) Photos() []*model.PhotoRecord {
	out := make([]*model.PhotoRecord, 0, i.Len())
	for _, e := range i.Entries() {
		out = append(out, e.Photo)
	}
	return out
}
