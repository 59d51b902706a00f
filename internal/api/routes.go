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

// Package api holds the HTTP handlers of the photo moments server. Routes are
// scoped by user: /users/:user/clusters, /users/:user/photos and
// /users/:user/stats.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/commands"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/cor"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/reconcile"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/services"
)

// DefaultStreamExpiry is the lifetime of a signed video URL.
const DefaultStreamExpiry = 15 * time.Minute

// Publisher queues work for the Pub/Sub listeners.
type Publisher interface {
	PublishPhotoBatch(ctx context.Context, batch *model.PhotoBatch) (string, error)
	PublishVideoRequest(ctx context.Context, req *model.VideoRequest) (string, error)
}

// Handlers serve the API. Without a Publisher, photo batches and video
// requests run inline on the Ingest and Video workflows.
type Handlers struct {
	Clusters     *services.ClusterService
	Publisher    Publisher
	Ingest       cor.Command
	Video        cor.Command
	StreamExpiry time.Duration
}

// Register mounts every route under r.
func (h *Handlers) Register(r *gin.RouterGroup) {
	user := r.Group("/users/:user")
	{
		user.GET("/clusters", h.listClusters)
		user.GET("/clusters/:id", h.getCluster)
		user.GET("/clusters/:id/stream", h.streamCluster)
		user.POST("/clusters/:id/video", h.requestVideo)
		user.POST("/photos", h.ingestPhotos)
	}
	Dashboard(user, h.Clusters)
}

// run executes a workflow inline on the request context.
func run(c *gin.Context, cmd cor.Command, in interface{}) (cor.Context, error) {
	chainCtx := cor.NewBaseContext()
	chainCtx.SetContext(c.Request.Context())
	chainCtx.Add(cor.CtxIn, in)
	if !cmd.IsExecutable(chainCtx) {
		chainCtx.Close()
		return nil, errors.New("workflow is not executable")
	}
	cmd.Execute(chainCtx)
	if err := chainCtx.Err(); err != nil {
		chainCtx.Close()
		return nil, err
	}
	return chainCtx, nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, reconcile.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, commands.ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNoVideo):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{"error": err.Error()})
}
