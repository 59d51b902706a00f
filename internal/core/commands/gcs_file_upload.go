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
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jaycherian/gcp-go-photo-moments/internal/cloud"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/assembly"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/cor"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
)

// GCSFileUpload uploads the assembled video to <bucket>/<user>/<cluster>.mp4
// and writes the object's URL under its output parameter.
type GCSFileUpload struct {
	cor.BaseCommand
	store  cloud.ObjectStore
	bucket string // The name of the destination GCS bucket.
}

func NewGCSFileUpload(name string, store cloud.ObjectStore, bucket string) *GCSFileUpload {
	out := &GCSFileUpload{BaseCommand: *cor.NewBaseCommand(name), store: store, bucket: bucket}
	out.InputParamName = ParamArtifact
	out.OutputParamName = ParamVideoURL
	return out
}

func (c *GCSFileUpload) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && context.Get(ParamCluster) != nil
}

func (c *GCSFileUpload) Execute(context cor.Context) {
	artifact := context.Get(c.GetInputParam()).(*assembly.Artifact)
	cluster := context.Get(ParamCluster).(*model.Cluster)

	file, err := os.Open(artifact.Path)
	if err != nil {
		c.Fail(context, fmt.Errorf("failed to open file %s: %w", artifact.Path, err))
		return
	}
	defer file.Close()

	obj := &cloud.GCSObject{
		Bucket:   c.bucket,
		Name:     fmt.Sprintf("%s/%s.mp4", cluster.UserID, cluster.ClusterID),
		MIMEType: "video/mp4",
	}
	writer := c.store.NewWriter(context.GetContext(), obj)
	written, err := io.Copy(writer, file)
	if err != nil {
		_ = writer.Close()
		c.Fail(context, fmt.Errorf("failed to copy to %s, %d bytes written: %w", obj.URI(), written, err))
		return
	}
	if err := writer.Close(); err != nil {
		c.Fail(context, fmt.Errorf("failed to commit %s: %w", obj.URI(), err))
		return
	}

	c.Succeed(context)
	slog.InfoContext(context.GetContext(), "uploaded video", "uri", obj.URI(), "bytes", written)
	context.Add(c.GetOutputParam(), obj.URL())
}
