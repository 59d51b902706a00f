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

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/assembly"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/cor"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/workers"
)

// AssembleVideo renders the staged stills and muxes the narration audio on
// the IO pool. The artifact file is registered as a temp file, so it only
// lives until the upload step has run.
type AssembleVideo struct {
	cor.BaseCommand
	assembler *assembly.Assembler
	pool      *workers.Pool
}

func NewAssembleVideo(name string, assembler *assembly.Assembler, pool *workers.Pool) *AssembleVideo {
	out := &AssembleVideo{BaseCommand: *cor.NewBaseCommand(name), assembler: assembler, pool: pool}
	out.InputParamName = ParamAssets
	out.OutputParamName = ParamArtifact
	return out
}

func (c *AssembleVideo) Execute(context cor.Context) {
	assets := context.Get(c.GetInputParam()).(*StagedAssets)

	var audio *assembly.AudioSource
	if assets.Narration != "" {
		audio = &assembly.AudioSource{Path: assets.Narration}
	}
	job := assembly.NewJob()
	artifact, err := workers.Submit(context.GetContext(), c.pool, func(ctx goctx.Context) (*assembly.Artifact, error) {
		return c.assembler.AssembleJob(ctx, job, assembly.StillsSource(assets.Stills, 0), audio)
	}).Await(goctx.WithoutCancel(context.GetContext()))
	if err != nil {
		c.Fail(context, err)
		return
	}

	context.AddTempFile(artifact.Path)
	c.Succeed(context)
	slog.InfoContext(context.GetContext(), "assembled video", "job", job.ID, "duration", artifact.Duration, "per_image", artifact.PerImage, "bytes", artifact.Size)
	context.Add(c.GetOutputParam(), artifact)
}
