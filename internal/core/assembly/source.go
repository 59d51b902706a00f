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

// Package assembly combines a silent video (or a set of stills) with an
// optional narration track into a single MP4 memory video. Tracks are copied
// without re-encoding; stills are rendered to a silent video first.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNoVideoTrack   = errors.New("video source has no video track")
	ErrNoAudioTrack   = errors.New("audio source has no audio track")
	ErrEmptyOutput    = errors.New("assembled output is empty")
	ErrNotContainer   = errors.New("file is not a media container")
	ErrNoVideoContent = errors.New("video source has neither stills nor a video file")
)

// JobError is returned by Assemble when a job ends in Failed.
type JobError struct {
	Job   *Job
	Stage State // Stage the job was in when it failed.
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("assembly job %s failed during %s: %v", e.Job.ID, e.Stage, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// Track kinds as reported by the demuxer.
const (
	KindVideo = "video"
	KindAudio = "audio"
)

// Track is one elementary stream of a container.
type Track struct {
	Index    int
	Kind     string // video, audio, subtitle, data
	Codec    string
	Duration time.Duration
}

// MIMEClass is the MIME top level type of the track kind, e.g. "video/*".
func (t Track) MIMEClass() string {
	return t.Kind + "/*"
}

// Container is an opened media file. It stays open until Close.
type Container interface {
	Path() string
	Tracks() []Track
	Duration() time.Duration
	Close() error
}

// Demuxer opens containers and lists their tracks.
type Demuxer interface {
	Open(ctx context.Context, path string) (Container, error)
}

// MuxInput selects the tracks copied into the output. Audio is nil for a
// video-only mux.
type MuxInput struct {
	Video      Container
	VideoTrack Track
	Audio      Container
	AudioTrack Track
}

// Muxer copies the selected tracks into a new MP4 container at output.
type Muxer interface {
	Mux(ctx context.Context, in MuxInput, output string) error
}

// StillsRenderer turns a sequence of stills into a silent video.
type StillsRenderer interface {
	Render(ctx context.Context, stills []string, perImage time.Duration, output string) error
}

// FirstTrack returns the first track of the given kind.
func FirstTrack(c Container, kind string) (Track, bool) {
	for _, t := range c.Tracks() {
		if strings.EqualFold(t.Kind, kind) {
			return t, true
		}
	}
	return Track{}, false
}

// VideoSource is either a list of stills or a prerendered silent video.
type VideoSource struct {
	Stills []string
	// PerImage is the display time of each still. When zero it is derived
	// from the narration length and the duration policy.
	PerImage time.Duration
	Path     string
}

func StillsSource(stills []string, perImage time.Duration) VideoSource {
	return VideoSource{Stills: stills, PerImage: perImage}
}

func VideoFileSource(path string) VideoSource {
	return VideoSource{Path: path}
}

func (v VideoSource) IsStills() bool {
	return len(v.Stills) > 0
}

// AudioSource is the narration track. A zero Duration is probed from the file.
type AudioSource struct {
	Path     string
	Duration time.Duration
}

// Artifact is the finalized output of a job.
type Artifact struct {
	Path     string
	Size     int64
	Duration time.Duration
	PerImage time.Duration // Zero for prerendered video sources.
	Job      *Job
}
