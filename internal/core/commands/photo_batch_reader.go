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
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/cor"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
)

// PhotoBatchReader turns a photo metadata feed message into a PhotoBatch.
// Records without URI and repeated URIs are dropped. An empty batch is valid
// and yields no clusters.
type PhotoBatchReader struct {
	cor.BaseCommand
}

func NewPhotoBatchReader(name string) *PhotoBatchReader {
	return &PhotoBatchReader{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *PhotoBatchReader) Execute(context cor.Context) {
	batch, ok := context.Get(c.GetInputParam()).(*model.PhotoBatch)
	if !ok {
		data, err := payload(context.Get(c.GetInputParam()))
		if err != nil {
			c.Fail(context, err)
			return
		}
		batch = &model.PhotoBatch{}
		if err := json.Unmarshal(data, batch); err != nil {
			c.Fail(context, fmt.Errorf("%w: failed to unmarshal photo batch: %v", ErrInvalidMessage, err))
			return
		}
	}
	if batch.UserID == "" {
		c.Fail(context, fmt.Errorf("%w: photo batch without user_id", ErrInvalidMessage))
		return
	}

	seen := make(map[string]bool, len(batch.Photos))
	photos := make([]*model.PhotoRecord, 0, len(batch.Photos))
	for _, p := range batch.Photos {
		if p == nil || p.URI == "" || seen[p.URI] {
			continue
		}
		seen[p.URI] = true
		photos = append(photos, p)
	}
	if dropped := len(batch.Photos) - len(photos); dropped > 0 {
		slog.WarnContext(context.GetContext(), "dropped photo records", "user", batch.UserID, "dropped", dropped)
	}
	out := &model.PhotoBatch{UserID: batch.UserID, Photos: photos}

	c.Succeed(context)
	context.Add(ParamUserID, out.UserID)
	context.Add(ParamPhotoBatch, out)
	context.Add(c.GetOutputParam(), out)
}

// VideoRequestReader turns a video request message into a VideoRequest. When
// the request names narration audio, its object is published under
// ParamNarrationObject for the download step.
type VideoRequestReader struct {
	cor.BaseCommand
}

func NewVideoRequestReader(name string) *VideoRequestReader {
	return &VideoRequestReader{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *VideoRequestReader) Execute(context cor.Context) {
	req, ok := context.Get(c.GetInputParam()).(*model.VideoRequest)
	if !ok {
		data, err := payload(context.Get(c.GetInputParam()))
		if err != nil {
			c.Fail(context, err)
			return
		}
		req = &model.VideoRequest{}
		if err := json.Unmarshal(data, req); err != nil {
			c.Fail(context, fmt.Errorf("%w: failed to unmarshal video request: %v", ErrInvalidMessage, err))
			return
		}
	}
	if req.UserID == "" || req.ClusterID == "" {
		c.Fail(context, fmt.Errorf("%w: video request needs user_id and cluster_id", ErrInvalidMessage))
		return
	}
	if req.NarrationAudio != "" {
		obj, err := parseObject(req.NarrationAudio)
		if err != nil {
			c.Fail(context, fmt.Errorf("%w: %v", ErrInvalidMessage, err))
			return
		}
		context.Add(ParamNarrationObject, obj)
	}

	c.Succeed(context)
	context.Add(ParamUserID, req.UserID)
	context.Add(ParamVideoRequest, req)
	context.Add(c.GetOutputParam(), req)
}
