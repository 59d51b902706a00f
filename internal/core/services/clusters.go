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

// Package services contains the read side used by the HTTP API. This file,
// `clusters.go`, defines the ClusterService, which lists a user's moments and
// turns the stored video location into a secure, time-limited URL.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"

	"github.com/jaycherian/gcp-go-photo-moments/internal/cloud"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/reconcile"
)

// ErrNoVideo is returned for clusters whose video has not been rendered yet.
var ErrNoVideo = errors.New("cluster has no video yet")

// URLSigner signs one object. The default uses the storage client.
type URLSigner func(bucket, object string, opts *storage.SignedURLOptions) (string, error)

// ClusterService is a thin layer over the cluster store for the API handlers.
type ClusterService struct {
	Store         *reconcile.Store                  // Reconciled clusters.
	StorageClient *storage.Client                   // Client for Google Cloud Storage, used for signing.
	IAMClient     *credentials.IamCredentialsClient // Signs blobs when the runtime has no private key.
	SignerEmail   string                            // The service account email used to sign URLs.
	Signer        URLSigner                         // Optional override of the storage client signer.
}

// List returns the user's clusters oldest first.
func (s *ClusterService) List(ctx context.Context, userID string) ([]*model.Cluster, error) {
	return s.Store.List(ctx, userID)
}

// Get returns one cluster, or an error wrapping reconcile.ErrNotFound.
func (s *ClusterService) Get(ctx context.Context, userID, clusterID string) (*model.Cluster, error) {
	c, err := s.Store.Get(ctx, userID, clusterID)
	if err != nil {
		return nil, fmt.Errorf("get cluster %s of %s: %w", clusterID, userID, err)
	}
	return c, nil
}

// StreamURL signs the video of a processed cluster.
func (s *ClusterService) StreamURL(ctx context.Context, userID, clusterID string, expires time.Duration) (string, error) {
	c, err := s.Get(ctx, userID, clusterID)
	if err != nil {
		return "", err
	}
	if !c.IsProcessed || c.VideoURL == nil {
		return "", ErrNoVideo
	}
	return s.GenerateSignedURL(ctx, *c.VideoURL, expires)
}

// GenerateSignedURL creates a V4 GET URL for a gs:// uri or an authenticated
// storage URL. With an IAM client and a signer email the signature comes from
// the IAM Credentials API, so no local key is needed.
func (s *ClusterService) GenerateSignedURL(ctx context.Context, objectURL string, expires time.Duration) (string, error) {
	obj, err := cloud.ParseObjectURL(objectURL)
	if err != nil {
		return "", err
	}

	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expires),
	}
	if s.IAMClient != nil && s.SignerEmail != "" {
		opts.GoogleAccessID = s.SignerEmail
		opts.SignBytes = func(b []byte) ([]byte, error) {
			resp, err := s.IAMClient.SignBlob(ctx, &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.SignerEmail),
				Payload: b,
			})
			if err != nil {
				return nil, fmt.Errorf("IAMClient.SignBlob: %w", err)
			}
			return resp.SignedBlob, nil
		}
	}

	sign := s.Signer
	if sign == nil {
		if s.StorageClient == nil {
			return "", errors.New("no storage client configured for signing")
		}
		sign = func(bucket, object string, opts *storage.SignedURLOptions) (string, error) {
			return s.StorageClient.Bucket(bucket).SignedURL(object, opts)
		}
	}
	u, err := sign(obj.Bucket, obj.Name, opts)
	if err != nil {
		return "", fmt.Errorf("Bucket(%q).Object(%q).SignedURL: %w", obj.Bucket, obj.Name, err)
	}
	return u, nil
}
