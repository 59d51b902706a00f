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

// This file defines the statistics endpoint of a user, a small summary of
// their moments for dashboards.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/services"
)

// Stats summarises the clusters of one user.
type Stats struct {
	Clusters  int `json:"clusters"`
	Processed int `json:"processed"` // Clusters with a rendered video.
	Photos    int `json:"photos"`
	Located   int `json:"located"` // Clusters with a centroid.
}

// Dashboard mounts GET /stats under the user group.
func Dashboard(r *gin.RouterGroup, clusters *services.ClusterService) {
	stats := r.Group("/stats")
	{
		stats.GET("", func(c *gin.Context) {
			all, err := clusters.List(c, c.Param("user"))
			if err != nil {
				abort(c, err)
				return
			}
			out := Stats{Clusters: len(all)}
			for _, cl := range all {
				out.Photos += cl.PhotoCount()
				if cl.IsProcessed {
					out.Processed++
				}
				if cl.HasLocation() {
					out.Located++
				}
			}
			c.JSON(http.StatusOK, out)
		})
	}
}
