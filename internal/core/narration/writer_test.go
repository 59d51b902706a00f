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

package narration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-photo-moments/internal/cloud"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
)

type recordingGenerator struct {
	reply    string
	contents []*genai.Content
}

func (g *recordingGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	g.contents = contents
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(g.reply, genai.RoleModel)}},
	}, nil
}

func newWriter(t *testing.T, g *recordingGenerator, prompt string) *ScriptWriter {
	t.Helper()
	m := cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{}, "test-model", g, 100)
	m.RetryDelay = 0
	w, err := NewScriptWriter(m, prompt)
	require.NoError(t, err)
	return w
}

func testCluster() *model.Cluster {
	start := time.Date(2024, 5, 4, 9, 30, 0, 0, time.UTC)
	return &model.Cluster{
		ClusterID:       "c-1",
		MemberPhotoURIs: []string{"gs://photos/a.jpg", "local://b.jpg", "gs://photos/c.png"},
		StartTime:       start,
		EndTime:         start.Add(45 * time.Minute),
		LocationName:    model.StringPtr("Golden Gate Park, San Francisco"),
		TimeDescription: model.StringPtr("Morning"),
	}
}

func TestPrompt(t *testing.T) {
	w := newWriter(t, &recordingGenerator{}, "")
	prompt, err := w.Prompt(testCluster())
	require.NoError(t, err)
	assert.Contains(t, prompt, "Golden Gate Park, San Francisco")
	assert.Contains(t, prompt, "in the morning")
	assert.Contains(t, prompt, "Sat 4 May 2024 09:30 and 10:15 (3 photos)")
	assert.Contains(t, prompt, `"title":"A Morning at the Harbour"`)

	unlabeled := testCluster()
	unlabeled.LocationName = nil
	prompt, err = w.Prompt(unlabeled)
	require.NoError(t, err)
	assert.Contains(t, prompt, model.UnknownLocation)
}

func TestWrite(t *testing.T) {
	g := &recordingGenerator{reply: "```json\n{\"title\":\"Park Morning\",\"script\":\"We walked.\",\"keywords\":[\"park\"]}\n```"}
	w := newWriter(t, g, "Narrate {{ .LOCATION }}")
	c := testCluster()

	script, err := w.Write(context.Background(), c, c.MemberPhotoURIs)
	require.NoError(t, err)
	assert.Equal(t, &model.NarrationScript{Title: "Park Morning", Script: "We walked.", Keywords: []string{"park"}}, script)

	require.Len(t, g.contents, 1)
	parts := g.contents[0].Parts
	require.Len(t, parts, 3, "prompt plus the two gs:// photos")
	assert.Equal(t, "Narrate Golden Gate Park, San Francisco", parts[0].Text)
	assert.Equal(t, "gs://photos/a.jpg", parts[1].FileData.FileURI)
	assert.Equal(t, "image/jpeg", parts[1].FileData.MIMEType)
	assert.Equal(t, "image/png", parts[2].FileData.MIMEType)
}

func TestWriteRejectsBadReplies(t *testing.T) {
	w := newWriter(t, &recordingGenerator{reply: "not json"}, "")
	_, err := w.Write(context.Background(), testCluster(), nil)
	assert.Error(t, err)

	w = newWriter(t, &recordingGenerator{reply: `{"title":"x","script":"  "}`}, "")
	_, err = w.Write(context.Background(), testCluster(), nil)
	assert.ErrorIs(t, err, ErrEmptyScript)
}

func TestBadTemplate(t *testing.T) {
	_, err := NewScriptWriter(nil, "{{ .LOCATION ")
	assert.Error(t, err)
}

func TestAttachable(t *testing.T) {
	var uris []string
	for i := 0; i < 20; i++ {
		uris = append(uris, fmt.Sprintf("gs://photos/%02d.jpg", i))
	}
	got := Attachable(uris)
	require.Len(t, got, MaxPhotos)
	assert.Equal(t, "gs://photos/00.jpg", got[0])
	assert.Equal(t, "gs://photos/17.jpg", got[MaxPhotos-1])

	assert.Empty(t, Attachable([]string{"file:///a.jpg"}))
}
