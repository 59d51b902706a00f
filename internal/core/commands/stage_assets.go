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
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jaycherian/gcp-go-photo-moments/internal/cloud"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/cor"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
)

// DefaultStagingConcurrency bounds parallel photo downloads.
const DefaultStagingConcurrency = 8

// StagedAssets are the local files an assembly job reads.
type StagedAssets struct {
	Stills    []string // In cluster order.
	Narration string   // Empty without narration audio.
}

// StageAssets downloads the photos of the cluster to temp files. The request
// may restrict the photos to a subset of the members; URIs outside the
// cluster are ignored. gs:// photos are downloaded, file:// and plain paths
// are used in place.
type StageAssets struct {
	cor.BaseCommand
	store       cloud.ObjectStore
	concurrency int
}

func NewStageAssets(name string, store cloud.ObjectStore, concurrency int) *StageAssets {
	if concurrency <= 0 {
		concurrency = DefaultStagingConcurrency
	}
	out := &StageAssets{BaseCommand: *cor.NewBaseCommand(name), store: store, concurrency: concurrency}
	out.InputParamName = ParamCluster
	out.OutputParamName = ParamAssets
	return out
}

func (c *StageAssets) Execute(context cor.Context) {
	cluster := context.Get(c.GetInputParam()).(*model.Cluster)
	req, _ := context.Get(ParamVideoRequest).(*model.VideoRequest)

	uris := SelectPhotos(cluster, req)
	if len(uris) == 0 {
		c.Fail(context, fmt.Errorf("cluster %s has no photos to stage", cluster.ClusterID))
		return
	}

	stills := make([]string, len(uris))
	g, ctx := errgroup.WithContext(context.GetContext())
	g.SetLimit(c.concurrency)
	for i, uri := range uris {
		g.Go(func() error {
			local, err := c.stage(ctx, context, uri)
			stills[i] = local
			return err
		})
	}
	if err := g.Wait(); err != nil {
		c.Fail(context, err)
		return
	}

	assets := &StagedAssets{Stills: stills}
	if audio, ok := context.Get(ParamNarrationAudio).(string); ok {
		assets.Narration = audio
	}
	c.Succeed(context)
	slog.InfoContext(context.GetContext(), "staged assets", "cluster", cluster.ClusterID, "stills", len(stills), "narration", assets.Narration != "")
	context.Add(c.GetOutputParam(), assets)
}

func (c *StageAssets) stage(ctx goctx.Context, context cor.Context, uri string) (string, error) {
	if strings.HasPrefix(uri, cloud.GCSScheme) {
		obj, err := parseObject(uri)
		if err != nil {
			return "", err
		}
		local, _, err := DownloadToTemp(ctx, c.store, obj, "still-")
		if local != "" {
			context.AddTempFile(local)
		}
		return local, err
	}
	local := uri
	if u, err := url.Parse(uri); err == nil && u.Scheme == "file" {
		local = u.Path
	}
	if _, err := os.Stat(local); err != nil {
		return "", fmt.Errorf("unsupported or missing photo %q: %w", uri, err)
	}
	return local, nil
}

// SelectPhotos returns the requested members in cluster order, or all
// members when the request names none.
func SelectPhotos(cluster *model.Cluster, req *model.VideoRequest) []string {
	if req == nil || len(req.PhotoURIs) == 0 {
		return append([]string(nil), cluster.MemberPhotoURIs...)
	}
	wanted := make(map[string]bool, len(req.PhotoURIs))
	for _, u := range req.PhotoURIs {
		wanted[u] = true
	}
	var out []string
	for _, u := range cluster.MemberPhotoURIs {
		if wanted[u] {
			out = append(out, u)
		}
	}
	return out
}
