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

package assembly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/cor"
)

// Assembler runs assembly jobs. It holds no per job state and may be shared.
type Assembler struct {
	demuxer  Demuxer
	muxer    Muxer
	renderer StillsRenderer
	policy   DurationPolicy
	workDir  string

	durationHistogram metric.Float64Histogram
}

type Option func(*Assembler)

func WithDurationPolicy(p DurationPolicy) Option {
	return func(a *Assembler) { a.policy = p.WithDefaults() }
}

// WithWorkDir sets the directory for rendered stills and final outputs.
func WithWorkDir(dir string) Option {
	return func(a *Assembler) { a.workDir = dir }
}

func NewAssembler(demuxer Demuxer, muxer Muxer, renderer StillsRenderer, opts ...Option) *Assembler {
	histogram, _ := otel.Meter(cor.MeterName).Float64Histogram("assembly.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Wall time of assembly jobs"))
	a := &Assembler{
		demuxer:           demuxer,
		muxer:             muxer,
		renderer:          renderer,
		policy:            DefaultDurationPolicy(),
		workDir:           os.TempDir(),
		durationHistogram: histogram,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Assemble runs a new job. See AssembleJob.
func (a *Assembler) Assemble(ctx context.Context, video VideoSource, audio *AudioSource) (*Artifact, error) {
	return a.AssembleJob(ctx, NewJob(), video, audio)
}

// AssembleJob drives job from Idle to Finalized. The output file is named after
// the job in the work directory. On failure the job is Failed, the returned
// error is a *JobError and no output file is left behind. Cancelling ctx is
// honoured until both tracks are extracted; from then on the job runs to a
// terminal state.
func (a *Assembler) AssembleJob(ctx context.Context, job *Job, video VideoSource, audio *AudioSource) (artifact *Artifact, err error) {
	start := time.Now()
	var containers []io.Closer
	var scratch []string
	defer func() {
		for i := len(containers) - 1; i >= 0; i-- {
			_ = containers[i].Close()
		}
		for _, f := range scratch {
			_ = os.Remove(f)
		}
		outcome := Finalized
		if err != nil {
			outcome = Failed
		}
		a.durationHistogram.Record(context.WithoutCancel(ctx), time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("outcome", string(outcome))))
	}()

	fail := func(err error) (*Artifact, error) {
		stage := job.State()
		job.fail(err)
		slog.WarnContext(ctx, "assembly job failed", "job", job.ID, "stage", stage, "error", err)
		return nil, &JobError{Job: job, Stage: stage, Err: err}
	}

	if err := job.advance(ExtractingTracks); err != nil {
		return fail(err)
	}
	slog.InfoContext(ctx, "assembly extracting tracks", "job", job.ID, "stills", len(video.Stills), "audio", audio != nil)

	var (
		audioIn    Container
		audioTrack Track
		narration  time.Duration
	)
	if audio != nil {
		audioIn, err = a.demuxer.Open(ctx, audio.Path)
		if err != nil {
			return fail(fmt.Errorf("open audio source: %w", err))
		}
		containers = append(containers, audioIn)
		t, ok := FirstTrack(audioIn, KindAudio)
		if !ok {
			return fail(ErrNoAudioTrack)
		}
		audioTrack = t
		narration = audio.Duration
		if narration <= 0 {
			narration = trackDuration(audioIn, t)
		}
	}

	videoPath := video.Path
	perImage := time.Duration(0)
	switch {
	case video.IsStills():
		perImage = video.PerImage
		if perImage <= 0 {
			perImage = PerImageDuration(narration, len(video.Stills), a.policy)
		}
		rendered := filepath.Join(a.workDir, job.ID+"-stills.mp4")
		scratch = append(scratch, rendered)
		if err := a.renderer.Render(ctx, video.Stills, perImage, rendered); err != nil {
			return fail(fmt.Errorf("render stills: %w", err))
		}
		videoPath = rendered
	case videoPath == "":
		return fail(ErrNoVideoContent)
	}

	videoIn, err := a.demuxer.Open(ctx, videoPath)
	if err != nil {
		return fail(fmt.Errorf("open video source: %w", err))
	}
	containers = append(containers, videoIn)
	videoTrack, ok := FirstTrack(videoIn, KindVideo)
	if !ok {
		return fail(ErrNoVideoTrack)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	if err := job.advance(Muxing); err != nil {
		return fail(err)
	}
	muxCtx := context.WithoutCancel(ctx)
	output := filepath.Join(a.workDir, job.ID+".mp4")
	partial := output + ".partial"
	scratch = append(scratch, partial)
	in := MuxInput{Video: videoIn, VideoTrack: videoTrack}
	if audioIn != nil {
		in.Audio = audioIn
		in.AudioTrack = audioTrack
	}
	if err := a.muxer.Mux(muxCtx, in, partial); err != nil {
		return fail(fmt.Errorf("mux: %w", err))
	}
	info, err := os.Stat(partial)
	if err != nil {
		return fail(fmt.Errorf("stat output: %w", err))
	}
	if info.Size() == 0 {
		return fail(ErrEmptyOutput)
	}
	if err := os.Rename(partial, output); err != nil {
		return fail(fmt.Errorf("finalize output: %w", err))
	}

	duration := trackDuration(videoIn, videoTrack)
	if video.IsStills() {
		duration = perImage * time.Duration(len(video.Stills))
	}
	if err := job.advance(Finalized); err != nil {
		_ = os.Remove(output)
		return fail(err)
	}
	slog.InfoContext(muxCtx, "assembly finalized", "job", job.ID, "output", output, "bytes", info.Size(), "duration", duration)
	return &Artifact{Path: output, Size: info.Size(), Duration: duration, PerImage: perImage, Job: job}, nil
}

func trackDuration(c Container, t Track) time.Duration {
	if t.Duration > 0 {
		return t.Duration
	}
	return c.Duration()
}

// IsJobError reports whether err came from a failed job and returns it.
func IsJobError(err error) (*JobError, bool) {
	var je *JobError
	ok := errors.As(err, &je)
	return je, ok
}
