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

// Package narration asks a generative model for the title and script spoken
// over a memory video. The prompt is a text/template fed with the cluster
// labels, a few-shot example and up to MaxPhotos representative photos.
package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"text/template"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-photo-moments/internal/cloud"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/cor"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
)

// MaxPhotos caps the photos attached to one request.
const MaxPhotos = 8

// DefaultPrompt is used when the configuration has no narration template.
const DefaultPrompt = `You write the voice-over for a short memory video.
The photos were taken at {{ .LOCATION }} in the {{ .TIME_OF_DAY }}, between {{ .START }} and {{ .END }} ({{ .PHOTO_COUNT }} photos).
Write a warm title and a narration of at most {{ .MAX_WORDS }} words in the first person plural.
Answer with JSON only, shaped like this example:
{{ .EXAMPLE_JSON }}`

var ErrEmptyScript = errors.New("narration model returned an empty script")

type ScriptWriter struct {
	model    *cloud.QuotaAwareGenerativeAIModel
	template *template.Template
	maxWords int

	inputTokenCounter  metric.Int64Counter
	outputTokenCounter metric.Int64Counter
	retryCounter       metric.Int64Counter
}

// NewScriptWriter parses prompt, falling back to DefaultPrompt when empty.
func NewScriptWriter(generativeAIModel *cloud.QuotaAwareGenerativeAIModel, prompt string) (*ScriptWriter, error) {
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultPrompt
	}
	tmpl, err := template.New("narration-template").Parse(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse narration template: %w", err)
	}
	meter := otel.Meter(cor.MeterName)
	w := &ScriptWriter{model: generativeAIModel, template: tmpl, maxWords: 60}
	w.inputTokenCounter, _ = meter.Int64Counter("narration.gemini.token.input")
	w.outputTokenCounter, _ = meter.Int64Counter("narration.gemini.token.output")
	w.retryCounter, _ = meter.Int64Counter("narration.gemini.token.retry")
	return w, nil
}

// Prompt renders the text part of the request.
func (w *ScriptWriter) Prompt(c *model.Cluster) (string, error) {
	example, _ := json.Marshal(model.GetExampleNarration())
	params := map[string]interface{}{
		"LOCATION":     deref(c.LocationName, model.UnknownLocation),
		"TIME_OF_DAY":  strings.ToLower(deref(c.TimeDescription, string(model.TimeOfDayOf(c.StartTime)))),
		"START":        c.StartTime.Format("Mon 2 Jan 2006 15:04"),
		"END":          c.EndTime.Format("15:04"),
		"PHOTO_COUNT":  c.PhotoCount(),
		"MAX_WORDS":    w.maxWords,
		"EXAMPLE_JSON": string(example),
	}
	var buffer bytes.Buffer
	if err := w.template.Execute(&buffer, params); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buffer.String(), nil
}

// Write generates the narration of a labeled cluster. Only gs:// photo URIs
// are attached to the request.
func (w *ScriptWriter) Write(ctx context.Context, c *model.Cluster, photoURIs []string) (*model.NarrationScript, error) {
	prompt, err := w.Prompt(c)
	if err != nil {
		return nil, err
	}
	parts := []*genai.Part{cloud.NewTextPart(prompt)}
	for _, uri := range Attachable(photoURIs) {
		parts = append(parts, cloud.NewFileData(uri, imageMIMEType(uri)))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	out, err := cloud.GenerateMultiModalResponse(ctx, w.inputTokenCounter, w.outputTokenCounter, w.retryCounter, w.model, contents)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	script := &model.NarrationScript{}
	if err := json.Unmarshal([]byte(out), script); err != nil {
		return nil, fmt.Errorf("failed to unmarshal narration JSON: %w", err)
	}
	if strings.TrimSpace(script.Script) == "" {
		return nil, ErrEmptyScript
	}
	return script, nil
}

// Attachable keeps the gs:// URIs, at most MaxPhotos of them, spread evenly
// over the input.
func Attachable(uris []string) []string {
	var gs []string
	for _, u := range uris {
		if strings.HasPrefix(u, cloud.GCSScheme) {
			gs = append(gs, u)
		}
	}
	if len(gs) <= MaxPhotos {
		return gs
	}
	out := make([]string, 0, MaxPhotos)
	for i := 0; i < MaxPhotos; i++ {
		out = append(out, gs[i*len(gs)/MaxPhotos])
	}
	return out
}

func imageMIMEType(uri string) string {
	if t := mime.TypeByExtension(strings.ToLower(path.Ext(uri))); strings.HasPrefix(t, "image/") {
		return t
	}
	return "image/jpeg"
}

func deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
