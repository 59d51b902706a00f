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

// Package workflow wires commands into the chains run by the server: the
// cluster ingest chain fed by the photo metadata feed, the memory video chain
// fed by video requests, and the background sweep that requests videos for
// clusters that have none yet.
//
// Logic Flow (cluster ingest):
//  1. Parse the photo batch message.
//  2. Build the time sorted index.
//  3. Fold the index into clusters on the CPU pool.
//  4. Label each cluster on the IO pool.
//  5. Reconcile with the stored clusters of the user and persist the changes.
package workflow

import (
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/clustering"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/commands"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/cor"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/labeling"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/reconcile"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/workers"
)

type ClusterIngestWorkflow struct {
	cor.BaseCommand
	engine   *clustering.Engine
	labeler  *labeling.Labeler
	geocoder labeling.Geocoder
	store    *reconcile.Store
	pools    *workers.Pools
	chain    cor.Chain // The underlying chain of commands to be executed.
}

func NewClusterIngestWorkflow(
	engine *clustering.Engine,
	labeler *labeling.Labeler,
	geocoder labeling.Geocoder,
	store *reconcile.Store,
	pools *workers.Pools) *ClusterIngestWorkflow {

	out := &ClusterIngestWorkflow{
		BaseCommand: *cor.NewBaseCommand("cluster-ingest-workflow"),
		engine:      engine,
		labeler:     labeler,
		geocoder:    geocoder,
		store:       store,
		pools:       pools,
	}
	out.initializeChain()
	return out
}

func (w *ClusterIngestWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewPhotoBatchReader("photo-batch-reader"))
	out.AddCommand(commands.NewBuildIndex("build-geotime-index"))
	out.AddCommand(commands.NewClusterPhotos("cluster-photos", w.engine, w.pools.CPU))
	out.AddCommand(commands.NewLabelClusters("label-clusters", w.labeler, w.geocoder, w.pools.IO))
	out.AddCommand(commands.NewCommitClusters("commit-clusters", w.store))
	w.chain = out
}

func (w *ClusterIngestWorkflow) IsExecutable(context cor.Context) bool {
	return w.chain.IsExecutable(context)
}

func (w *ClusterIngestWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}
