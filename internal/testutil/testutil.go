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

// Package testutil holds the fixtures and in-memory fakes shared by the
// workflow, service and server tests.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/jaycherian/gcp-go-photo-moments/internal/cloud"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
)

// TestUserID owns every fixture photo.
const TestUserID = "user-1"

// GetTestPhotoBatchText is a photo batch message with two moments: three
// photos in Golden Gate Park one morning and two at the Ferry Building the
// same evening, plus one photo without location.
func GetTestPhotoBatchText() string {
	return `{
  "user_id": "user-1",
  "photos": [
    {"uri": "gs://photos/user-1/IMG_0003.jpg", "captured_at": "2024-05-04T09:50:00Z", "latitude": 37.76940, "longitude": -122.48620},
    {"uri": "gs://photos/user-1/IMG_0001.jpg", "captured_at": "2024-05-04T09:30:00Z", "latitude": 37.76930, "longitude": -122.48620},
    {"uri": "gs://photos/user-1/IMG_0002.jpg", "captured_at": "2024-05-04T09:40:00Z", "latitude": 37.76935, "longitude": -122.48625},
    {"uri": "gs://photos/user-1/IMG_0010.jpg", "captured_at": "2024-05-04T18:05:00Z", "latitude": 37.79550, "longitude": -122.39370},
    {"uri": "gs://photos/user-1/IMG_0011.jpg", "captured_at": "2024-05-04T18:20:00Z", "latitude": 37.79552, "longitude": -122.39372},
    {"uri": "gs://photos/user-1/IMG_0020.jpg", "captured_at": "2024-05-06T12:00:00Z", "latitude": 0, "longitude": 0}
  ]
}`
}

// PhotoSeries returns count photos one interval apart at a fixed point.
func PhotoSeries(prefix string, start time.Time, interval time.Duration, count int, lat, lon float64) []*model.PhotoRecord {
	out := make([]*model.PhotoRecord, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, &model.PhotoRecord{
			URI:        fmt.Sprintf("%s-%03d.jpg", prefix, i),
			CapturedAt: start.Add(time.Duration(i) * interval),
			Latitude:   lat,
			Longitude:  lon,
		})
	}
	return out
}

// MemoryObjectStore is an ObjectStore kept in a map. Objects become visible
// when their writer is closed.
type MemoryObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{objects: map[string][]byte{}, types: map[string]string{}}
}

// Put stores an object directly.
func (s *MemoryObjectStore) Put(uri string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[uri] = append([]byte(nil), data...)
}

// Object returns the content of an object and whether it exists.
func (s *MemoryObjectStore) Object(uri string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[uri]
	return data, ok
}

func (s *MemoryObjectStore) ContentType(uri string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.types[uri]
}

// URIs lists the stored objects, sorted.
func (s *MemoryObjectStore) URIs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.objects))
	for k := range s.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *MemoryObjectStore) NewReader(ctx context.Context, obj *cloud.GCSObject) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := s.Object(obj.URI())
	if !ok {
		return nil, fmt.Errorf("%s: %w", obj.URI(), os.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryObjectStore) NewWriter(_ context.Context, obj *cloud.GCSObject) io.WriteCloser {
	return &memoryWriter{store: s, obj: *obj}
}

type memoryWriter struct {
	store *MemoryObjectStore
	obj   cloud.GCSObject
	buf   bytes.Buffer
}

func (w *memoryWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memoryWriter) Close() error {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	w.store.objects[w.obj.URI()] = w.buf.Bytes()
	w.store.types[w.obj.URI()] = w.obj.MIMEType
	return nil
}
