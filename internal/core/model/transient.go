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

// Package model defines the data structures for the application.
// This file, `transient.go`, contains the objects that only live in memory
// while a workflow runs: reverse geocoding results, narration scripts and
// video requests. None of them are persisted in this form.
package model

// Place holds the name components returned by a reverse geocoding lookup.
// Any component may be empty.
type Place struct {
	PointOfInterest string `json:"point_of_interest,omitempty"` // A named point of interest (park, museum, venue).
	SubLocality     string `json:"sub_locality,omitempty"`      // Neighbourhood or sub-locality.
	City            string `json:"city,omitempty"`
	AdminRegion     string `json:"admin_region,omitempty"` // State, province or other first level administrative area.
	Country         string `json:"country,omitempty"`
}

// IsEmpty reports whether the lookup produced no usable component.
func (p *Place) IsEmpty() bool {
	return p == nil || (p.PointOfInterest == "" && p.SubLocality == "" && p.City == "" && p.AdminRegion == "" && p.Country == "")
}

// NarrationScript is the opaque result of the narration text collaborator.
type NarrationScript struct {
	Title    string   `json:"title"`
	Script   string   `json:"script"`
	Keywords []string `json:"keywords"`
}

// VideoRequest asks for a memory video of one cluster. It is the message body
// of the video request topic and of the HTTP render endpoint.
type VideoRequest struct {
	UserID    string   `json:"user_id"`
	ClusterID string   `json:"cluster_id"`
	PhotoURIs []string `json:"photo_uris,omitempty"` // Representative photos chosen by the caller; all members when empty.

	// NarrationAudio is an optional gs://bucket/object reference to pre-synthesized narration.
	NarrationAudio string `json:"narration_audio,omitempty"`
}
