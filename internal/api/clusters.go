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

package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/commands"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/reconcile"
)

func (h *Handlers) listClusters(c *gin.Context) {
	out, err := h.Clusters.List(c, c.Param("user"))
	if err != nil {
		slog.ErrorContext(c, "failed to list clusters", "user", c.Param("user"), "error", err)
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) getCluster(c *gin.Context) {
	out, err := h.Clusters.Get(c, c.Param("user"), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) streamCluster(c *gin.Context) {
	expiry := h.StreamExpiry
	if expiry <= 0 {
		expiry = DefaultStreamExpiry
	}
	u, err := h.Clusters.StreamURL(c, c.Param("user"), c.Param("id"), expiry)
	if err != nil {
		if statusOf(err) == http.StatusInternalServerError {
			slog.ErrorContext(c, "error generating signed URL", "cluster", c.Param("id"), "error", err)
		}
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": u})
}

func (h *Handlers) ingestPhotos(c *gin.Context) {
	batch := &model.PhotoBatch{}
	if err := c.ShouldBindJSON(batch); err != nil {
		abort(c, fmt.Errorf("%w: %v", commands.ErrInvalidMessage, err))
		return
	}
	user := c.Param("user")
	if batch.UserID == "" {
		batch.UserID = user
	}
	if batch.UserID != user {
		abort(c, fmt.Errorf("%w: batch belongs to %q", commands.ErrInvalidMessage, batch.UserID))
		return
	}

	if h.Publisher != nil {
		id, err := h.Publisher.PublishPhotoBatch(c, batch)
		if err != nil {
			slog.ErrorContext(c, "failed to queue photo batch", "user", user, "error", err)
			abort(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message_id": id, "photos": len(batch.Photos)})
		return
	}

	chainCtx, err := run(c, h.Ingest, batch)
	if err != nil {
		abort(c, err)
		return
	}
	defer chainCtx.Close()
	res, _ := chainCtx.Get(commands.ParamCommitResult).(*reconcile.Result)
	if res == nil {
		c.JSON(http.StatusOK, gin.H{"clusters": []*model.Cluster{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"clusters": res.Clusters,
		"inserted": res.Inserted,
		"merged":   res.Merged,
	})
}

func (h *Handlers) requestVideo(c *gin.Context) {
	req := &model.VideoRequest{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(req); err != nil {
			abort(c, fmt.Errorf("%w: %v", commands.ErrInvalidMessage, err))
			return
		}
	}
	req.UserID = c.Param("user")
	req.ClusterID = c.Param("id")

	if _, err := h.Clusters.Get(c, req.UserID, req.ClusterID); err != nil {
		abort(c, err)
		return
	}

	if h.Publisher != nil {
		id, err := h.Publisher.PublishVideoRequest(c, req)
		if err != nil {
			slog.ErrorContext(c, "failed to queue video request", "cluster", req.ClusterID, "error", err)
			abort(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message_id": id})
		return
	}

	chainCtx, err := run(c, h.Video, req)
	if err != nil {
		abort(c, err)
		return
	}
	defer chainCtx.Close()
	c.JSON(http.StatusOK, chainCtx.Get(commands.ParamCluster))
}
