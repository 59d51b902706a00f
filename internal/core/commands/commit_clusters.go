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

package commands

import (
	"errors"
	"log/slog"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/cor"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/reconcile"
)

// CommitClusters reconciles the labeled clusters of one user with the stored
// ones. The *reconcile.Result is written under ParamCommitResult and CtxOut.
type CommitClusters struct {
	cor.BaseCommand
	store *reconcile.Store
}

func NewCommitClusters(name string, store *reconcile.Store) *CommitClusters {
	return &CommitClusters{BaseCommand: *cor.NewBaseCommand(name), store: store}
}

func (c *CommitClusters) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && userID(context) != ""
}

func (c *CommitClusters) Execute(context cor.Context) {
	clusters := context.Get(c.GetInputParam()).([]*model.Cluster)
	user := userID(context)

	result, err := c.store.Commit(context.GetContext(), user, clusters)
	if err != nil {
		c.Fail(context, err)
		return
	}

	c.Succeed(context)
	slog.InfoContext(context.GetContext(), "committed clusters", "user", user,
		"inserted", result.Inserted, "merged", result.Merged, "total", len(result.Clusters))
	context.Add(ParamCommitResult, result)
	context.Add(c.GetOutputParam(), result)
}

// LoadCluster fetches the cluster named by the *model.VideoRequest.
type LoadCluster struct {
	cor.BaseCommand
	store *reconcile.Store
}

func NewLoadCluster(name string, store *reconcile.Store) *LoadCluster {
	return &LoadCluster{BaseCommand: *cor.NewBaseCommand(name), store: store}
}

func (c *LoadCluster) Execute(context cor.Context) {
	req := context.Get(c.GetInputParam()).(*model.VideoRequest)

	cluster, err := c.store.Get(context.GetContext(), req.UserID, req.ClusterID)
	if err != nil {
		if errors.Is(err, reconcile.ErrNotFound) {
			slog.WarnContext(context.GetContext(), "video requested for unknown cluster", "user", req.UserID, "cluster", req.ClusterID)
		}
		c.Fail(context, err)
		return
	}

	c.Succeed(context)
	context.Add(ParamCluster, cluster)
	context.Add(c.GetOutputParam(), cluster)
}

// MarkProcessed records the uploaded video URL on the cluster.
type MarkProcessed struct {
	cor.BaseCommand
	store *reconcile.Store
}

func NewMarkProcessed(name string, store *reconcile.Store) *MarkProcessed {
	out := &MarkProcessed{BaseCommand: *cor.NewBaseCommand(name), store: store}
	out.InputParamName = ParamVideoURL
	out.OutputParamName = ParamCluster
	return out
}

func (c *MarkProcessed) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && context.Get(ParamCluster) != nil
}

func (c *MarkProcessed) Execute(context cor.Context) {
	url := context.Get(c.GetInputParam()).(string)
	cluster := context.Get(ParamCluster).(*model.Cluster)

	user := userID(context)
	if user == "" {
		user = cluster.UserID
	}

	updated, err := c.store.MarkProcessed(context.GetContext(), user, cluster.ClusterID, url)
	if err != nil {
		c.Fail(context, err)
		return
	}

	c.Succeed(context)
	context.Add(c.GetOutputParam(), updated)
	context.Add(cor.CtxOut, updated)
}
