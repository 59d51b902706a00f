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
	"fmt"
	"math"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
)

// FormatPlace picks the most specific component of a place: point of interest,
// then neighbourhood, then city, then administrative region, then country.
// It returns "" when the place is empty.
func FormatPlace(p *model.Place) string {
	if p.IsEmpty() {
		return ""
	}
	return firstNonEmpty(p.PointOfInterest, p.SubLocality, p.City, p.AdminRegion, p.Country)
}

// FormatCoordinates renders a centroid as "12.34°N, 56.78°W".
func FormatCoordinates(lat, lon float64) string {
	ns, ew := "N", "E"
	if lat < 0 {
		ns = "S"
	}
	if lon < 0 {
		ew = "W"
	}
	return fmt.Sprintf("%.2f°%s, %.2f°%s", math.Abs(lat), ns, math.Abs(lon), ew)
}

// FormatTimeOfDay describes a cluster by the bucket of its start time.
func FormatTimeOfDay(c *model.Cluster) string {
	return string(model.TimeOfDayOf(c.StartTime))
}
