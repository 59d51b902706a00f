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

// This file holds the small value types used to address Cloud Storage objects.
package cloud

import (
	"fmt"
	"strings"
)

const (
	GCSScheme     = "gs://"
	PublicURLBase = "https://storage.mtls.cloud.google.com/"
)

// GCSObject identifies one object in a bucket.
type GCSObject struct {
	Bucket   string // The name of the GCS bucket.
	Name     string // The name of the object.
	MIMEType string // The MIME type of the object (e.g., "image/jpeg").
}

// ParseGCSURI splits gs://bucket/name into an object reference.
func ParseGCSURI(uri string) (*GCSObject, error) {
	rest, ok := strings.CutPrefix(uri, GCSScheme)
	if !ok {
		return nil, fmt.Errorf("not a gs:// uri: %q", uri)
	}
	bucket, name, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || name == "" {
		return nil, fmt.Errorf("gs:// uri needs a bucket and an object name: %q", uri)
	}
	return &GCSObject{Bucket: bucket, Name: name}, nil
}

// ParseObjectURL accepts either a gs:// uri or an authenticated browser URL.
func ParseObjectURL(url string) (*GCSObject, error) {
	if rest, ok := strings.CutPrefix(url, PublicURLBase); ok {
		return ParseGCSURI(GCSScheme + rest)
	}
	return ParseGCSURI(url)
}

func (o *GCSObject) URI() string {
	return GCSScheme + o.Bucket + "/" + o.Name
}

// URL is the authenticated browser URL of the object.
func (o *GCSObject) URL() string {
	return PublicURLBase + o.Bucket + "/" + o.Name
}
