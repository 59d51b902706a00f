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

// Package cloud defines the application configuration, loaded from TOML files,
// together with the Google Cloud client container, the Pub/Sub listener and
// the rate limited generative model wrapper.
//
// This file centralizes the configuration structs.
//
// Structs:
//   - Clustering: radius and gap of the moment clustering.
//   - Labeling: reverse geocoding endpoint and call discipline.
//   - Assembly: ffmpeg binaries, frame size and still display times.
//   - Storage: buckets for photos, narration audio and rendered videos.
//   - BigQueryDataSource: dataset and table holding the clusters.
//   - SQLite: local cluster store used instead of BigQuery.
//   - PromptTemplates: text templates for the narration model.
//   - VertexAiLLMModel: configuration of a Gemini model.
//   - TopicSubscription: a single Pub/Sub subscription.
//   - Config: the top-level struct aggregating all of the above.
package cloud

import (
	"time"

	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/assembly"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/clustering"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/labeling"
)

// Logical names of the subscriptions and models referenced by the workflows.
const (
	PhotoBatchTopic   = "PhotoBatchTopic"
	VideoRequestTopic = "VideoRequestTopic"
	NarrationModel    = "creative-flash"
)

// DefaultSafetySettings are non-restrictive; narration only describes the
// user's own photos.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

type Clustering struct {
	RadiusMeters  float64 `toml:"radius_meters"`   // Maximum distance from the running centroid.
	MaxGapSeconds int     `toml:"max_gap_seconds"` // Maximum silence between two consecutive photos of a moment.
}

type Labeling struct {
	GeocoderURL       string `toml:"geocoder_url"` // Base URL of a Nominatim compatible reverse geocoder.
	UserAgent         string `toml:"user_agent"`
	Language          string `toml:"language"`
	MinIntervalMillis int    `toml:"min_interval_millis"` // Minimum delay between two geocoder calls.
	MaxAttempts       int    `toml:"max_attempts"`
	BackoffMillis     int    `toml:"backoff_millis"`
	CacheTTLSeconds   int    `toml:"cache_ttl_seconds"`
}

type Assembly struct {
	FFmpegPath          string  `toml:"ffmpeg_path"`
	FFprobePath         string  `toml:"ffprobe_path"`
	OutputDir           string  `toml:"output_dir"` // Work directory for rendered stills and outputs.
	Width               int     `toml:"width"`
	Height              int     `toml:"height"`
	DefaultImageSeconds float64 `toml:"default_image_seconds"` // Display time of a still without narration.
	MinImageSeconds     float64 `toml:"min_image_seconds"`
	MaxImageSeconds     float64 `toml:"max_image_seconds"`
}

type Storage struct {
	PhotoBucket     string `toml:"photo_bucket"`     // Original photos, read when staging stills.
	NarrationBucket string `toml:"narration_bucket"` // Synthesized narration audio.
	VideoBucket     string `toml:"video_bucket"`     // Rendered memory videos.
}

type BigQueryDataSource struct {
	DatasetName  string `toml:"dataset"`
	ClusterTable string `toml:"cluster_table"`
}

// SQLite selects the local gorm store. An empty path keeps BigQuery.
type SQLite struct {
	Path string `toml:"path"`
}

type PromptTemplates struct {
	NarrationPrompt string `toml:"narration"` // Template for the narration script, see narration.ScriptWriter.
}

type VertexAiLLMModel struct {
	Model              string  `toml:"model"`               // The name of the Vertex AI LLM.
	SystemInstructions string  `toml:"system_instructions"` // The system instructions for the LLM.
	Temperature        float32 `toml:"temperature"`
	TopP               float32 `toml:"top_p"`
	TopK               float32 `toml:"top_k"`
	MaxTokens          int32   `toml:"max_tokens"`
	OutputFormat       string  `toml:"output_format"` // The response MIME type, e.g. application/json.
	RateLimit          int     `toml:"rate_limit"`    // Requests per second.
}

type TopicSubscription struct {
	Name             string `toml:"name"`               // The name of the Pub/Sub subscription.
	Topic            string `toml:"topic"`              // The topic requests are published to; empty for receive only.
	DeadLetterTopic  string `toml:"dead_letter_topic"`  // The name of the dead-letter topic for the subscription.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // The timeout for the subscription in seconds.
}

type Config struct {
	// Application holds general application settings.
	Application struct {
		Name                      string `toml:"name"`
		GoogleProjectId           string `toml:"google_project_id"`
		GoogleLocation            string `toml:"location"`
		ThreadPoolSize            int    `toml:"thread_pool_size"`             // Size of the CPU worker pool.
		IOPoolSize                int    `toml:"io_pool_size"`                 // Size of the IO worker pool.
		SignerServiceAccountEmail string `toml:"signer_service_account_email"` // The service account email used for signing GCS URLs.
		SweepIntervalSeconds      int    `toml:"sweep_interval_seconds"`       // Period of the unprocessed cluster sweep; zero disables it.
		SweepBatchSize            int    `toml:"sweep_batch_size"`
		Port                      int    `toml:"port"`      // HTTP listen port, 8080 when unset.
		LogLevel                  string `toml:"log_level"` // debug, info, warn or error.
		LogFile                   string `toml:"log_file"`  // Optional file receiving a copy of the logs.
		Telemetry                 bool   `toml:"telemetry"` // Export traces and metrics to Google Cloud.
	} `toml:"application"`
	Clustering         Clustering                   `toml:"clustering"`
	Labeling           Labeling                     `toml:"labeling"`
	Assembly           Assembly                     `toml:"assembly"`
	Storage            Storage                      `toml:"storage"`
	BigQueryDataSource BigQueryDataSource           `toml:"big_query_data_source"`
	SQLite             SQLite                       `toml:"sqlite"`
	PromptTemplates    PromptTemplates              `toml:"prompt_templates"`
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"` // Keyed by a logical name (e.g., "PhotoBatchTopic").
	AgentModels        map[string]VertexAiLLMModel  `toml:"agent_models"`        // Keyed by a logical name (e.g., "creative-flash").
}

func NewConfig() *Config {
	return &Config{
		TopicSubscriptions: make(map[string]TopicSubscription),
		AgentModels:        make(map[string]VertexAiLLMModel),
	}
}

// ClusteringOptions converts the clustering section, defaults applied.
func (c *Config) ClusteringOptions() clustering.Options {
	return clustering.Options{
		RadiusMeters: c.Clustering.RadiusMeters,
		MaxGap:       time.Duration(c.Clustering.MaxGapSeconds) * time.Second,
	}.WithDefaults()
}

func (c *Config) LabelingOptions() labeling.Options {
	return labeling.Options{
		MinInterval: time.Duration(c.Labeling.MinIntervalMillis) * time.Millisecond,
		MaxAttempts: c.Labeling.MaxAttempts,
		Backoff:     time.Duration(c.Labeling.BackoffMillis) * time.Millisecond,
		CacheTTL:    time.Duration(c.Labeling.CacheTTLSeconds) * time.Second,
	}
}

func (c *Config) DurationPolicy() assembly.DurationPolicy {
	return assembly.DurationPolicy{
		Default: seconds(c.Assembly.DefaultImageSeconds),
		Min:     seconds(c.Assembly.MinImageSeconds),
		Max:     seconds(c.Assembly.MaxImageSeconds),
	}.WithDefaults()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
