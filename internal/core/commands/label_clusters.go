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

	"go.opentelemetry.io/otel/attribute"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/cor"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/labeling"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/workers"
)

// LabelClusters names every cluster on the IO pool, one span per cluster.
// Geocoder calls stay serialised by the labeler; labeling itself never
// fails, so only cancellation ends the command with an error.
type LabelClusters struct {
	cor.BaseCommand
	labeler  *labeling.Labeler
	geocoder labeling.Geocoder
	pool     *workers.Pool
}

func NewLabelClusters(name string, labeler *labeling.Labeler, geocoder labeling.Geocoder, pool *workers.Pool) *LabelClusters {
	return &LabelClusters{
		BaseCommand: *cor.NewBaseCommand(name),
		labeler:     labeler,
		geocoder:    geocoder,
		pool:        pool,
	}
}

func (c *LabelClusters) Execute(context cor.Context) {
	clusters := context.Get(c.GetInputParam()).([]*model.Cluster)

	futures := make([]*workers.Future[*model.Cluster], 0, len(clusters))
	for i, cluster := range clusters {
		futures = append(futures, workers.Submit(context.GetContext(), c.pool, func(ctx goctx.Context) (*model.Cluster, error) {
			spanCtx, span := c.Tracer.Start(ctx, fmt.Sprintf("%s_label_%d", c.GetName(), i))
			defer span.End()
			labeled := c.labeler.Label(spanCtx, cluster, c.geocoder)
			span.SetAttributes(
				attribute.String("cluster_id", labeled.ClusterID),
				attribute.String("location", *labeled.LocationName),
				attribute.Int("photos", labeled.PhotoCount()),
			)
			return labeled, nil
		}))
	}
	labeled, err := workers.AwaitAll(context.GetContext(), futures)
	if err != nil {
		c.Fail(context, err)
		return
	}

	c.Succeed(context)
	context.Add(ParamClusters, labeled)
	context.Add(c.GetOutputParam(), labeled)
}
