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
	"log/slog"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/cor"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/narration"
)

// NarrationScript asks the narration model for a title and script. It is
// optional: without a writer the step is skipped, and a failed generation is
// logged and counted without failing the video.
type NarrationScript struct {
	cor.BaseCommand
	writer *narration.ScriptWriter
}

func NewNarrationScript(name string, writer *narration.ScriptWriter) *NarrationScript {
	out := &NarrationScript{BaseCommand: *cor.NewBaseCommand(name), writer: writer}
	out.InputParamName = ParamCluster
	out.OutputParamName = ParamNarration
	return out
}

func (c *NarrationScript) IsExecutable(context cor.Context) bool {
	return c.writer != nil && c.BaseCommand.IsExecutable(context)
}

func (c *NarrationScript) Execute(context cor.Context) {
	cluster := context.Get(c.GetInputParam()).(*model.Cluster)
	req, _ := context.Get(ParamVideoRequest).(*model.VideoRequest)

	script, err := c.writer.Write(context.GetContext(), cluster, SelectPhotos(cluster, req))
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		slog.WarnContext(context.GetContext(), "narration script unavailable", "cluster", cluster.ClusterID, "error", err)
		return
	}
	c.Succeed(context)
	context.Add(c.GetOutputParam(), script)
}
