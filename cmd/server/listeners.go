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

package main

import (
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-photo-moments/internal/cloud"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/cor"
)

// SetupListeners attaches the workflows to their subscriptions and starts them.
// A subscription missing from the config is skipped.
func SetupListeners(ctx context.Context, cloudClients *cloud.ServiceClients, ingest, video cor.Command) {
	for topic, command := range map[string]cor.Command{
		cloud.PhotoBatchTopic:   ingest,
		cloud.VideoRequestTopic: video,
	} {
		listener, ok := cloudClients.PubSubListeners[topic]
		if !ok {
			slog.WarnContext(ctx, "no subscription configured", "topic", topic)
			continue
		}
		listener.SetCommand(command)
		listener.Listen(ctx)
	}
}
