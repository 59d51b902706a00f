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
	"io"
	"log/slog"
	"mime"
	"os"
	"path"
	"strings"

	"github.com/jaycherian/gcp-go-photo-moments/internal/cloud"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/cor"
)

// GCSToTempFile downloads the *cloud.GCSObject found under its input
// parameter into a temporary file. The path is written to the output
// parameter and registered on the context for removal.
type GCSToTempFile struct {
	cor.BaseCommand
	store          cloud.ObjectStore
	tempFilePrefix string // A prefix to use when naming the temporary file (e.g., "narration-").
}

func NewGCSToTempFile(name string, store cloud.ObjectStore, tempFilePrefix string) *GCSToTempFile {
	return &GCSToTempFile{
		BaseCommand:    *cor.NewBaseCommand(name),
		store:          store,
		tempFilePrefix: tempFilePrefix,
	}
}

func (c *GCSToTempFile) Execute(context cor.Context) {
	obj := context.Get(c.GetInputParam()).(*cloud.GCSObject)

	path, written, err := DownloadToTemp(context.GetContext(), c.store, obj, c.tempFilePrefix)
	if path != "" {
		context.AddTempFile(path)
	}
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context)
	slog.InfoContext(context.GetContext(), "downloaded object", "uri", obj.URI(), "file", path, "bytes", written)
	context.Add(c.GetOutputParam(), path)
}

// DownloadToTemp copies an object into a new temp file named with the
// object's extension. The returned path is set whenever the file was created,
// even on error, so the caller can remove it.
func DownloadToTemp(ctx goctx.Context, store cloud.ObjectStore, obj *cloud.GCSObject, prefix string) (string, int64, error) {
	reader, err := store.NewReader(ctx, obj)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create reader for %s: %w", obj.URI(), err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			slog.WarnContext(ctx, "failed to close object reader", "uri", obj.URI(), "error", err)
		}
	}()

	tempFile, err := os.CreateTemp("", prefix+"*"+path.Ext(obj.Name))
	if err != nil {
		return "", 0, fmt.Errorf("could not create temp file: %w", err)
	}
	written, err := io.Copy(tempFile, reader)
	closeErr := tempFile.Close()
	if err != nil {
		return tempFile.Name(), written, fmt.Errorf("failed to copy %s to local file, %d bytes written: %w", obj.URI(), written, err)
	}
	if closeErr != nil {
		return tempFile.Name(), written, closeErr
	}
	return tempFile.Name(), written, nil
}

// parseObject parses a gs:// URI and guesses the content type from its
// extension.
func parseObject(uri string) (*cloud.GCSObject, error) {
	obj, err := cloud.ParseGCSURI(uri)
	if err != nil {
		return nil, err
	}
	obj.MIMEType = mime.TypeByExtension(strings.ToLower(path.Ext(obj.Name)))
	return obj, nil
}
