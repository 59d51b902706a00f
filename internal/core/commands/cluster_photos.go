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
	goctx "context"
	"log/slog"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/clustering"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/cor"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/geotime"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/workers"
)

// BuildIndex sorts the photos of a *model.PhotoBatch into a geotime.Index.
type BuildIndex struct {
	cor.BaseCommand
}

func NewBuildIndex(name string) *BuildIndex {
	return &BuildIndex{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *BuildIndex) Execute(context cor.Context) {
	batch := context.Get(c.GetInputParam()).(*model.PhotoBatch)
	idx := geotime.Build(batch.Photos)
	c.Succeed(context)
	context.Add(c.GetOutputParam(), idx)
}

// ClusterPhotos folds a geotime.Index into clusters on the CPU pool.
type ClusterPhotos struct {
	cor.BaseCommand
	engine *clustering.Engine
	pool   *workers.Pool
}

func NewClusterPhotos(name string, engine *clustering.Engine, pool *workers.Pool) *ClusterPhotos {
	return &ClusterPhotos{BaseCommand: *cor.NewBaseCommand(name), engine: engine, pool: pool}
}

func (c *ClusterPhotos) Execute(context cor.Context) {
	idx := context.Get(c.GetInputParam()).(*geotime.Index)
	user := userID(context)

	clusters, err := workers.Submit(context.GetContext(), c.pool, func(goctx.Context) ([]*model.Cluster, error) {
		return c.engine.Cluster(user, idx), nil
	}).Await(context.GetContext())
	if err != nil {
		c.Fail(context, err)
		return
	}

	c.Succeed(context)
	slog.InfoContext(context.GetContext(), "clustered photos", "user", user, "photos", idx.Len(), "clusters", len(clusters))
	context.Add(ParamClusters, clusters)
	context.Add(c.GetOutputParam(), clusters)
}
