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
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const probeJSON = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "duration": "12.000000"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "duration": "11.981000"},
    {"index": 2, "codec_name": "bin_data", "codec_type": "data", "duration": "N/A"}
  ],
  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "12.010000"}
}`

func TestParseProbe(t *testing.T) {
	c, err := parseProbe([]byte(probeJSON))
	require.NoError(t, err)

	assert.Equal(t, "mov,mp4,m4a,3gp,3g2,mj2", c.format)
	assert.Equal(t, 12010*time.Millisecond, c.Duration())
	require.Len(t, c.Tracks(), 3)
	assert.Equal(t, Track{Index: 1, Kind: KindAudio, Codec: "aac", Duration: 11981 * time.Millisecond}, c.Tracks()[1])
	assert.Zero(t, c.Tracks()[2].Duration)

	v, ok := FirstTrack(c, KindVideo)
	require.True(t, ok)
	assert.Equal(t, "video/*", v.MIMEClass())
	assert.NoError(t, c.Close(), "closing without an open file is a no-op")

	_, err = parseProbe([]byte("not json"))
	assert.Error(t, err)
}

func TestWriteConcatList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeConcatList(&buf, []string{"/tmp/a.jpg", "/tmp/it's.jpg"}, 3*time.Second))
	assert.Equal(t, "file '/tmp/a.jpg'\nduration 3.000\n"+
		"file '/tmp/it'\\''s.jpg'\nduration 3.000\n"+
		"file '/tmp/it'\\''s.jpg'\n", buf.String())
}

func TestMuxArgs(t *testing.T) {
	video := &probedContainer{path: "in.mp4"}
	audio := &probedContainer{path: "voice.m4a"}

	args := muxArgs(MuxInput{Video: video, VideoTrack: Track{Index: 2}, Audio: audio, AudioTrack: Track{Index: 0}}, "out.mp4")
	assert.Equal(t, []string{
		"-y", "-v", "error", "-i", "in.mp4", "-i", "voice.m4a",
		"-map", "0:2", "-map", "1:0",
		"-c", "copy", "-movflags", "+faststart", "-f", "mp4", "out.mp4",
	}, args)

	args = muxArgs(MuxInput{Video: video, VideoTrack: Track{Index: 0}}, "out.mp4")
	assert.Equal(t, []string{
		"-y", "-v", "error", "-i", "in.mp4",
		"-map", "0:0",
		"-c", "copy", "-movflags", "+faststart", "-f", "mp4", "out.mp4",
	}, args)
}

func TestDemuxerRejectsImages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}
	require.NoError(t, os.WriteFile(path, png, 0o644))

	_, err := NewFFprobeDemuxer("").Open(context.Background(), path)
	assert.ErrorIs(t, err, ErrNotContainer)

	empty := filepath.Join(t.TempDir(), "empty.mp4")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = NewFFprobeDemuxer("").Open(context.Background(), empty)
	assert.ErrorIs(t, err, ErrNotContainer)
}

func requireFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{DefaultFFmpegPath, DefaultFFprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available: %v", bin, err)
		}
	}
}

func ffmpeg(t *testing.T, args ...string) {
	t.Helper()
	out, err := exec.Command(DefaultFFmpegPath, append([]string{"-y", "-v", "error"}, args...)...).CombinedOutput()
	require.NoError(t, err, string(out))
}

func TestFFmpegAssembly(t *testing.T) {
	requireFFmpeg(t)
	dir := t.TempDir()

	var stills []string
	for _, color := range []string{"red", "green"} {
		p := filepath.Join(dir, color+".png")
		ffmpeg(t, "-f", "lavfi", "-i", "color=c="+color+":s=320x240", "-frames:v", "1", p)
		stills = append(stills, p)
	}
	narration := filepath.Join(dir, "narration.m4a")
	ffmpeg(t, "-f", "lavfi", "-i", "sine=frequency=440:duration=8", "-c:a", "aac", narration)

	renderer := NewFFmpegStillsRenderer("")
	renderer.Width, renderer.Height = 320, 240
	asm := NewAssembler(NewFFprobeDemuxer(""), NewFFmpegMuxer(""), renderer, WithWorkDir(dir))

	art, err := asm.Assemble(context.Background(), StillsSource(stills, 0), &AudioSource{Path: narration})
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, art.PerImage)
	assert.Positive(t, art.Size)

	c, err := NewFFprobeDemuxer("").Open(context.Background(), art.Path)
	require.NoError(t, err)
	defer c.Close()
	_, hasVideo := FirstTrack(c, KindVideo)
	_, hasAudio := FirstTrack(c, KindAudio)
	assert.True(t, hasVideo)
	assert.True(t, hasAudio)
	assert.InDelta(t, 8, c.Duration().Seconds(), 0.5)
}

func TestFFmpegAssemblyAudioOnlyVideoSource(t *testing.T) {
	requireFFmpeg(t)
	dir := t.TempDir()
	audioOnly := filepath.Join(dir, "audio-only.m4a")
	ffmpeg(t, "-f", "lavfi", "-i", "sine=frequency=220:duration=2", "-c:a", "aac", audioOnly)

	asm := NewAssembler(NewFFprobeDemuxer(""), NewFFmpegMuxer(""), NewFFmpegStillsRenderer(""), WithWorkDir(dir))
	_, err := asm.Assemble(context.Background(), VideoFileSource(audioOnly), &AudioSource{Path: audioOnly})
	assert.ErrorIs(t, err, ErrNoVideoTrack)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the input remains")
}
