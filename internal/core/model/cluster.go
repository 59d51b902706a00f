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

// Package model defines the data structures shared by the pipelines. This file
// holds the persistent Cluster entity ("moment").
package model

import (
	"time"

	"github.com/google/uuid"
)

// UnknownLocation is the location name of clusters without any geotagged member.
const UnknownLocation = "Unknown Location"

// Cluster is a group of photos judged to share one place-and-time occasion.
//
// The member list is kept in chronological insertion order. Centroid and time
// bounds always describe the current member set; use Recompute after touching
// Members directly.
type Cluster struct {
	ClusterID         string    `json:"cluster_id"`
	UserID            string    `json:"user_id"`
	MemberPhotoURIs   []string  `json:"member_photo_uris"`
	CentroidLatitude  float64   `json:"centroid_latitude"`
	CentroidLongitude float64   `json:"centroid_longitude"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	LocationName      *string   `json:"location_name,omitempty"`
	TimeDescription   *string   `json:"time_description,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	IsProcessed       bool      `json:"is_processed"`
	VideoURL          *string   `json:"video_url,omitempty"`

	// Members are the records backing MemberPhotoURIs, in the same order.
	Members []*PhotoRecord `json:"-"`
}

// NewClusterID generates an identifier for a newly created cluster.
func NewClusterID() string {
	return uuid.NewString()
}

// PhotoCount is the number of member photos.
func (c *Cluster) PhotoCount() int {
	return len(c.MemberPhotoURIs)
}

// HasLocation reports whether at least one member carries a location, which is
// equivalent to the centroid being set.
func (c *Cluster) HasLocation() bool {
	return c.CentroidLatitude != 0.0 || c.CentroidLongitude != 0.0
}

// Contains reports whether the photo URI is a member of the cluster.
func (c *Cluster) Contains(uri string) bool {
	for _, u := range c.MemberPhotoURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// Recompute rebuilds the URI list, time bounds and centroid from Members.
// The centroid is the flat mean over location-bearing members.
func (c *Cluster) Recompute() {
	if len(c.Members) == 0 {
		return
	}
	uris := make([]string, 0, len(c.Members))
	var sumLat, sumLon float64
	located := 0
	c.StartTime = c.Members[0].CapturedAt
	c.EndTime = c.Members[0].CapturedAt
	for _, m := range c.Members {
		uris = append(uris, m.URI)
		if m.CapturedAt.Before(c.StartTime) {
			c.StartTime = m.CapturedAt
		}
		if m.CapturedAt.After(c.EndTime) {
			c.EndTime = m.CapturedAt
		}
		if m.HasLocation() {
			sumLat += m.Latitude
			sumLon += m.Longitude
			located++
		}
	}
	c.MemberPhotoURIs = uris
	if located > 0 {
		c.CentroidLatitude = sumLat / float64(located)
		c.CentroidLongitude = sumLon / float64(located)
	} else {
		c.CentroidLatitude, c.CentroidLongitude = 0, 0
	}
}

// Copy returns a deep copy of the cluster. Member records are shared since
// they are immutable.
func (c *Cluster) Copy() *Cluster {
	out := *c
	out.MemberPhotoURIs = append([]string(nil), c.MemberPhotoURIs...)
	out.Members = append([]*PhotoRecord(nil), c.Members...)
	out.LocationName = copyString(c.LocationName)
	out.TimeDescription = copyString(c.TimeDescription)
	out.VideoURL = copyString(c.VideoURL)
	return &out
}

// StringPtr is a small helper for the nullable string fields.
func StringPtr(s string) *string {
	return &s
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
