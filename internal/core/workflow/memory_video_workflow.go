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

package workflow

import (
	"github.com/jaycherian/gcp-go-photo-moments/internal/cloud"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/assembly"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/commands"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/cor"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/narration"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/reconcile"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/workers"
)

// MemoryVideoWorkflow renders the memory video of one cluster:
//  1. Parse the video request and load the cluster.
//  2. Download the narration audio, when the request names one.
//  3. Stage the photos as local stills.
//  4. Ask for a narration script (optional).
//  5. Assemble the video, upload it and mark the cluster processed.
type MemoryVideoWorkflow struct {
	cor.BaseCommand
	objects     cloud.ObjectStore
	store       *reconcile.Store
	assembler   *assembly.Assembler
	writer      *narration.ScriptWriter
	pools       *workers.Pools
	videoBucket string
	chain       cor.Chain
}

// NewMemoryVideoWorkflow creates the workflow; writer may be nil.
func NewMemoryVideoWorkflow(
	objects cloud.ObjectStore,
	store *reconcile.Store,
	assembler *assembly.Assembler,
	writer *narration.ScriptWriter,
	pools *workers.Pools,
	videoBucket string) *MemoryVideoWorkflow {

	out := &MemoryVideoWorkflow{
		BaseCommand: *cor.NewBaseCommand("memory-video-workflow"),
		objects:     objects,
		store:       store,
		assembler:   assembler,
		writer:      writer,
		pools:       pools,
		videoBucket: videoBucket,
	}
	out.initializeChain()
	return out
}

func (w *MemoryVideoWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewVideoRequestReader("video-request-reader"))
	out.AddCommand(commands.NewLoadCluster("load-cluster", w.store))

	narrationAudio := commands.NewGCSToTempFile("download-narration-audio", w.objects, "narration-")
	narrationAudio.InputParamName = commands.ParamNarrationObject
	narrationAudio.OutputParamName = commands.ParamNarrationAudio
	out.AddCommand(narrationAudio)

	out.AddCommand(commands.NewStageAssets("stage-assets", w.objects, w.pools.IO.Size()))
	out.AddCommand(commands.NewNarrationScript("narration-script", w.writer))
	out.AddCommand(commands.NewAssembleVideo("assemble-video", w.assembler, w.pools.IO))
	out.AddCommand(commands.NewGCSFileUpload("upload-video", w.objects, w.videoBucket))
	out.AddCommand(commands.NewMarkProcessed("mark-processed", w.store))
	w.chain = out
}

func (w *MemoryVideoWorkflow) IsExecutable(context cor.Context) bool {
	return w.chain.IsExecutable(context)
}

func (w *MemoryVideoWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}
