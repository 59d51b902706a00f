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

package services

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/jaycherian/gcp-go-photo-moments/internal/cloud"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
)

// RequestPublisher hands work to the listeners over Pub/Sub. Messages are
// ordered by user so batches of one user reconcile in submission order.
type RequestPublisher struct {
	photos *pubsub.Topic
	videos *pubsub.Topic
}

// NewRequestPublisher resolves the topics named in the subscriptions config.
// A subscription without a topic leaves that kind of request unpublishable.
func NewRequestPublisher(client *pubsub.Client, subscriptions map[string]cloud.TopicSubscription) *RequestPublisher {
	topic := func(key string) *pubsub.Topic {
		sub, ok := subscriptions[key]
		if !ok || sub.Topic == "" {
			return nil
		}
		t := client.Topic(sub.Topic)
		t.EnableMessageOrdering = true
		return t
	}
	return &RequestPublisher{
		photos: topic(cloud.PhotoBatchTopic),
		videos: topic(cloud.VideoRequestTopic),
	}
}

// Ready reports whether both request kinds have a topic.
func (p *RequestPublisher) Ready() bool {
	return p.photos != nil && p.videos != nil
}

// PublishPhotoBatch returns the server assigned message id.
func (p *RequestPublisher) PublishPhotoBatch(ctx context.Context, batch *model.PhotoBatch) (string, error) {
	return publish(ctx, p.photos, cloud.PhotoBatchTopic, batch.UserID, batch)
}

func (p *RequestPublisher) PublishVideoRequest(ctx context.Context, req *model.VideoRequest) (string, error) {
	return publish(ctx, p.videos, cloud.VideoRequestTopic, req.UserID, req)
}

// Stop flushes pending messages.
func (p *RequestPublisher) Stop() {
	for _, t := range []*pubsub.Topic{p.photos, p.videos} {
		if t != nil {
			t.Stop()
		}
	}
}

func publish(ctx context.Context, topic *pubsub.Topic, name, orderingKey string, body interface{}) (string, error) {
	if topic == nil {
		return "", fmt.Errorf("no topic configured for %s", name)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	res := topic.Publish(ctx, &pubsub.Message{Data: data, OrderingKey: orderingKey})
	id, err := res.Get(ctx)
	if err != nil {
		topic.ResumePublish(orderingKey)
		return "", fmt.Errorf("publish to %s: %w", topic.ID(), err)
	}
	return id, nil
}
