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

// This file abstracts object reads and writes so the staging and upload
// commands can run against Cloud Storage or an in-memory store.
package cloud

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
)

// ObjectStore reads and writes whole objects.
type ObjectStore interface {
	NewReader(ctx context.Context, obj *GCSObject) (io.ReadCloser, error)
	// NewWriter returns a writer whose Close commits the object.
	NewWriter(ctx context.Context, obj *GCSObject) io.WriteCloser
}

type GCSObjectStore struct {
	client *storage.Client
}

func NewGCSObjectStore(client *storage.Client) *GCSObjectStore {
	return &GCSObjectStore{client: client}
}

func (s *GCSObjectStore) NewReader(ctx context.Context, obj *GCSObject) (io.ReadCloser, error) {
	return s.client.Bucket(obj.Bucket).Object(obj.Name).NewReader(ctx)
}

func (s *GCSObjectStore) NewWriter(ctx context.Context, obj *GCSObject) io.WriteCloser {
	w := s.client.Bucket(obj.Bucket).Object(obj.Name).NewWriter(ctx)
	if obj.MIMEType != "" {
		w.ContentType = obj.MIMEType
	}
	return w
}
