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

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jaycherian/gcp-go-photo-moments/internal/api"
	"github.com/jaycherian/gcp-go-photo-moments/internal/cloud"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/assembly"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/clustering"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/labeling"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/narration"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/reconcile"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/services"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/workers"
	"github.com/jaycherian/gcp-go-photo-moments/internal/core/workflow"
)

// StateManager holds the shared components of the server.
type StateManager struct {
	config    *cloud.Config
	cloud     *cloud.ServiceClients
	pools     *workers.Pools
	store     *reconcile.Store
	closeRepo func() error
	publisher *services.RequestPublisher
	sweeper   *workflow.UnprocessedSweeper
	handlers  *api.Handlers
}

var state = &StateManager{}

func SetupOS() (err error) {
	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		if err = os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(cloud.EnvConfigRuntime) == "" {
		err = os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return err
}

func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup os: %v\n", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			log.Fatalf("failed to load configuration: %v\n", err)
		}
		state.config = config
	}
	return state.config
}

// InitState builds the clients, the cluster store, both workflows, the
// listeners and the sweeper.
func InitState(ctx context.Context) error {
	config := GetConfig()

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return err
	}
	state.cloud = cloudClients
	state.pools = workers.NewPools(config.Application.ThreadPoolSize, config.Application.IOPoolSize)

	repo, closeRepo, err := openRepository(ctx, config, cloudClients)
	if err != nil {
		return err
	}
	state.closeRepo = closeRepo
	state.store = reconcile.NewStore(repo, config.ClusteringOptions())

	geocoder := labeling.NewNominatimGeocoder(config.Labeling.GeocoderURL, config.Labeling.UserAgent, config.Labeling.Language, nil)
	labeler := labeling.NewLabeler(config.LabelingOptions())
	state.store.WithLocationNamer(labeler.Namer(geocoder))
	ingest := workflow.NewClusterIngestWorkflow(
		clustering.NewEngine(config.ClusteringOptions()),
		labeler,
		geocoder,
		state.store,
		state.pools)

	assembler, err := newAssembler(config)
	if err != nil {
		return err
	}
	video := workflow.NewMemoryVideoWorkflow(
		cloud.NewGCSObjectStore(cloudClients.StorageClient),
		state.store,
		assembler,
		newScriptWriter(ctx, config, cloudClients),
		state.pools,
		config.Storage.VideoBucket)

	state.handlers = &api.Handlers{
		Clusters: &services.ClusterService{
			Store:         state.store,
			StorageClient: cloudClients.StorageClient,
			IAMClient:     cloudClients.IAMClient,
			SignerEmail:   config.Application.SignerServiceAccountEmail,
		},
		Ingest: ingest,
		Video:  video,
	}
	state.publisher = services.NewRequestPublisher(cloudClients.PubsubClient, config.TopicSubscriptions)
	if state.publisher.Ready() {
		state.handlers.Publisher = state.publisher
	} else {
		slog.Warn("request topics not configured, photo batches and videos run inline")
	}

	SetupListeners(ctx, cloudClients, ingest, video)

	if config.Application.SweepIntervalSeconds > 0 {
		state.sweeper = workflow.NewUnprocessedSweeper(repo, video,
			time.Duration(config.Application.SweepIntervalSeconds)*time.Second,
			config.Application.SweepBatchSize)
		state.sweeper.StartTimer(ctx)
	}
	return nil
}

// openRepository picks the local sqlite store when a path is configured and
// the BigQuery table otherwise.
func openRepository(ctx context.Context, config *cloud.Config, cloudClients *cloud.ServiceClients) (reconcile.Repository, func() error, error) {
	if config.SQLite.Path != "" {
		repo, err := reconcile.OpenSQLite(config.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store %s: %w", config.SQLite.Path, err)
		}
		slog.Info("using sqlite cluster store", "path", config.SQLite.Path)
		return repo, repo.Close, nil
	}

	ds := config.BigQueryDataSource
	if ds.DatasetName == "" || ds.ClusterTable == "" {
		return nil, nil, errors.New("no cluster store configured: set sqlite.path or big_query_data_source")
	}
	repo := reconcile.NewBigQueryRepository(cloudClients.BiqQueryClient, ds.DatasetName, ds.ClusterTable)
	if err := repo.EnsureTable(ctx); err != nil {
		return nil, nil, err
	}
	slog.Info("using bigquery cluster store", "table", repo.GetFQN())
	return repo, func() error { return nil }, nil
}

func newAssembler(config *cloud.Config) (*assembly.Assembler, error) {
	ac := config.Assembly
	workDir := ac.OutputDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create assembly directory %s: %w", workDir, err)
	}

	renderer := assembly.NewFFmpegStillsRenderer(ac.FFmpegPath)
	if ac.Width > 0 && ac.Height > 0 {
		renderer.Width, renderer.Height = ac.Width, ac.Height
	}
	return assembly.NewAssembler(
		assembly.NewFFprobeDemuxer(ac.FFprobePath),
		assembly.NewFFmpegMuxer(ac.FFmpegPath),
		renderer,
		assembly.WithDurationPolicy(config.DurationPolicy()),
		assembly.WithWorkDir(workDir),
	), nil
}

// newScriptWriter returns nil, which disables narration, when the model is
// not configured or the prompt does not parse.
func newScriptWriter(ctx context.Context, config *cloud.Config, cloudClients *cloud.ServiceClients) *narration.ScriptWriter {
	model, ok := cloudClients.AgentModels[cloud.NarrationModel]
	if !ok {
		slog.WarnContext(ctx, "narration model not configured", "model", cloud.NarrationModel)
		return nil
	}
	writer, err := narration.NewScriptWriter(model, config.PromptTemplates.NarrationPrompt)
	if err != nil {
		slog.ErrorContext(ctx, "narration disabled", "error", err)
		return nil
	}
	return writer
}

// Close stops background work, then releases the clients.
func (s *StateManager) Close() {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.publisher != nil {
		s.publisher.Stop()
	}
	if s.pools != nil {
		s.pools.Close()
	}
	if s.closeRepo != nil {
		if err := s.closeRepo(); err != nil {
			slog.Warn("failed to close cluster store", "error", err)
		}
	}
	if s.cloud != nil {
		s.cloud.Close()
	}
}
