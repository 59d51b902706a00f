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

// Package model defines the data structures shared by the clustering, labeling,
// reconciliation and assembly pipelines. This file holds the photo record as it
// is delivered by the photo metadata feed, together with the time-of-day
// bucketing used both for photos and for clusters.
package model

import (
	"encoding/json"
	"time"
)

// TimeOfDay is the coarse bucket of the day a photo (or a cluster) falls into.
type TimeOfDay string

const (
	Morning   TimeOfDay = "Morning"
	Afternoon TimeOfDay = "Afternoon"
	Evening   TimeOfDay = "Evening"
	Night     TimeOfDay = "Night"
)

// TimeOfDayOf buckets an instant by the hour of its wall clock in the instant's
// own location: Morning [05,12), Afternoon [12,17), Evening [17,21), Night otherwise.
func TimeOfDayOf(t time.Time) TimeOfDay {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return Morning
	case h >= 12 && h < 17:
		return Afternoon
	case h >= 17 && h < 21:
		return Evening
	default:
		return Night
	}
}

// PhotoRecord is a single entry of the user's photo library. Latitude and
// Longitude both equal to 0.0 mean the photo carries no location.
// Records are treated as immutable once extracted.
type PhotoRecord struct {
	URI        string    `json:"uri"`         // Opaque, stable and unique identifier of the photo.
	CapturedAt time.Time `json:"captured_at"` // Capture instant.
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
}

// HasLocation reports whether the record carries GPS coordinates.
func (p *PhotoRecord) HasLocation() bool {
	return p.Latitude != 0.0 || p.Longitude != 0.0
}

// TimeOfDay returns the derived bucket of the capture instant.
func (p *PhotoRecord) TimeOfDay() TimeOfDay {
	return TimeOfDayOf(p.CapturedAt)
}

// MarshalJSON adds the derived time of day bucket to the wire form.
func (p PhotoRecord) MarshalJSON() ([]byte, error) {
	type plain PhotoRecord
	return json.Marshal(struct {
		plain
		TimeOfDay TimeOfDay `json:"time_of_day"`
	}{plain(p), p.TimeOfDay()})
}

// PhotoBatch is the message delivered by the photo metadata feed, either on the
// photo batch Pub/Sub topic or through the HTTP ingest endpoint.
type PhotoBatch struct {
	UserID string         `json:"user_id"`
	Photos []*PhotoRecord `json:"photos"`
}
