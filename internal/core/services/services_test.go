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

package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"cloud.google.com/go/storage"
	"github.com/zeebo/assert"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jaycherian/gcp-go-photo-moments/internal/cloud"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/clustering"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/geotime"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/reconcile"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/services"
	"github.com/jaycherian/gcp-go-photo-moments/internal/testutil"
)

type signCall struct {
	bucket, object string
	opts           *storage.SignedURLOptions
}

func newClusterService(t *testing.T) (*services.ClusterService, *[]signCall, []*model.Cluster) {
	t.Helper()
	ctx := context.Background()

	var batch model.PhotoBatch
	assert.NoError(t, json.Unmarshal([]byte(testutil.GetTestPhotoBatchText()), &batch))
	opts := clustering.DefaultOptions()
	clusters := clustering.NewEngine(opts).Cluster(batch.UserID, geotime.Build(batch.Photos))

	store := reconcile.NewStore(reconcile.NewMemoryRepository(), opts)
	res, err := store.Commit(ctx, batch.UserID, clusters)
	assert.NoError(t, err)

	calls := &[]signCall{}
	svc := &services.ClusterService{
		Store: store,
		Signer: func(bucket, object string, opts *storage.SignedURLOptions) (string, error) {
			*calls = append(*calls, signCall{bucket, object, opts})
			return "https://signed.example/" + bucket + "/" + object, nil
		},
	}
	return svc, calls, res.Clusters
}

func TestClusterServiceList(t *testing.T) {
	svc, _, committed := newClusterService(t)

	clusters, err := svc.List(context.Background(), testutil.TestUserID)
	assert.NoError(t, err)
	assert.Equal(t, len(clusters), 3)
	assert.Equal(t, len(committed), 3)

	empty, err := svc.List(context.Background(), "someone-else")
	assert.NoError(t, err)
	assert.Equal(t, len(empty), 0)
}

func TestClusterServiceGet(t *testing.T) {
	svc, _, committed := newClusterService(t)

	c, err := svc.Get(context.Background(), testutil.TestUserID, committed[0].ClusterID)
	assert.NoError(t, err)
	assert.Equal(t, c.ClusterID, committed[0].ClusterID)

	_, err = svc.Get(context.Background(), testutil.TestUserID, "missing")
	assert.That(t, errors.Is(err, reconcile.ErrNotFound))

	_, err = svc.Get(context.Background(), "someone-else", committed[0].ClusterID)
	assert.That(t, errors.Is(err, reconcile.ErrNotFound))
}

func TestClusterServiceStreamURL(t *testing.T) {
	svc, calls, committed := newClusterService(t)
	ctx := context.Background()
	id := committed[0].ClusterID

	_, err := svc.StreamURL(ctx, testutil.TestUserID, id, time.Minute)
	assert.That(t, errors.Is(err, services.ErrNoVideo))
	assert.Equal(t, len(*calls), 0)

	obj := &cloud.GCSObject{Bucket: "videos", Name: testutil.TestUserID + "/" + id + ".mp4"}
	_, err = svc.Store.MarkProcessed(ctx, testutil.TestUserID, id, obj.URL())
	assert.NoError(t, err)

	before := time.Now()
	u, err := svc.StreamURL(ctx, testutil.TestUserID, id, 15*time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, u, "https://signed.example/videos/"+obj.Name)

	assert.Equal(t, len(*calls), 1)
	call := (*calls)[0]
	assert.Equal(t, call.bucket, "videos")
	assert.Equal(t, call.object, obj.Name)
	assert.Equal(t, call.opts.Method, "GET")
	assert.Equal(t, call.opts.Scheme, storage.SigningSchemeV4)
	assert.That(t, !call.opts.Expires.Before(before.Add(15*time.Minute)))
	assert.Nil(t, call.opts.SignBytes)
}

func TestGenerateSignedURLRejectsForeignURLs(t *testing.T) {
	svc, calls, _ := newClusterService(t)

	_, err := svc.GenerateSignedURL(context.Background(), "https://example.com/videos/a.mp4", time.Minute)
	assert.Error(t, err)
	assert.Equal(t, len(*calls), 0)

	u, err := svc.GenerateSignedURL(context.Background(), "gs://videos/a.mp4", time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, u, "https://signed.example/videos/a.mp4")
}

func TestGenerateSignedURLSignerError(t *testing.T) {
	svc := &services.ClusterService{
		Signer: func(string, string, *storage.SignedURLOptions) (string, error) {
			return "", errors.New("no key")
		},
	}
	_, err := svc.GenerateSignedURL(context.Background(), "gs://videos/a.mp4", time.Minute)
	assert.Error(t, err)
	assert.That(t, strings.Contains(err.Error(), "no key"))
}

func newPubSub(t *testing.T) (*pstest.Server, *pubsub.Client) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	assert.NoError(t, err)
	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	assert.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	for _, id := range []string{"photo-batch", "video-request"} {
		_, err := client.CreateTopic(ctx, id)
		assert.NoError(t, err)
	}
	return srv, client
}

func TestRequestPublisher(t *testing.T) {
	srv, client := newPubSub(t)
	publisher := services.NewRequestPublisher(client, map[string]cloud.TopicSubscription{
		cloud.PhotoBatchTopic:   {Name: "photo-batch-sub", Topic: "photo-batch"},
		cloud.VideoRequestTopic: {Name: "video-request-sub", Topic: "video-request"},
	})
	defer publisher.Stop()
	assert.That(t, publisher.Ready())

	ctx := context.Background()
	_, err := publisher.PublishVideoRequest(ctx, &model.VideoRequest{UserID: testutil.TestUserID, ClusterID: "c-1"})
	assert.NoError(t, err)
	_, err = publisher.PublishPhotoBatch(ctx, &model.PhotoBatch{UserID: testutil.TestUserID})
	assert.NoError(t, err)

	msgs := srv.Messages()
	assert.Equal(t, len(msgs), 2)

	found := 0
	for _, m := range msgs {
		var req model.VideoRequest
		assert.NoError(t, json.Unmarshal(m.Data, &req))
		assert.Equal(t, req.UserID, testutil.TestUserID)
		if req.ClusterID == "c-1" {
			found++
		}
	}
	assert.Equal(t, found, 1)
}

func TestRequestPublisherWithoutTopic(t *testing.T) {
	_, client := newPubSub(t)
	publisher := services.NewRequestPublisher(client, map[string]cloud.TopicSubscription{
		cloud.PhotoBatchTopic: {Name: "photo-batch-sub"},
	})
	defer publisher.Stop()
	assert.That(t, !publisher.Ready())

	_, err := publisher.PublishPhotoBatch(context.Background(), &model.PhotoBatch{UserID: testutil.TestUserID})
	assert.Error(t, err)
	_, err = publisher.PublishVideoRequest(context.Background(), &model.VideoRequest{UserID: testutil.TestUserID})
	assert.Error(t, err)
}
