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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/h2non/filetype"
)

const (
	DefaultFFmpegPath  = "ffmpeg"
	DefaultFFprobePath = "ffprobe"
	DefaultWidth       = 1280
	DefaultHeight      = 720
	DefaultFrameRate   = 30

	// Bytes read to sniff the container type.
	sniffLength = 261
)

// FFprobeDemuxer sniffs the container type with filetype and lists the
// streams with ffprobe.
type FFprobeDemuxer struct {
	ffprobePath string
}

func NewFFprobeDemuxer(ffprobePath string) *FFprobeDemuxer {
	if ffprobePath == "" {
		ffprobePath = DefaultFFprobePath
	}
	return &FFprobeDemuxer{ffprobePath: ffprobePath}
}

func (d *FFprobeDemuxer) Open(ctx context.Context, path string) (Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	head := make([]byte, sniffLength)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		_ = f.Close()
		return nil, err
	}
	kind, _ := filetype.Match(head[:n])
	if n == 0 || filetype.IsImage(head[:n]) || filetype.IsDocument(head[:n]) || filetype.IsArchive(head[:n]) {
		_ = f.Close()
		return nil, fmt.Errorf("%s (%s): %w", path, kind.MIME.Value, ErrNotContainer)
	}

	cmd := exec.CommandContext(ctx, d.ffprobePath, "-v", "error", "-show_streams", "-show_format", "-of", "json", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	c, err := parseProbe(out)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	c.path = path
	c.mime = kind.MIME.Value
	c.file = f
	return c, nil
}

type probeOutput struct {
	Streams []struct {
		Index     int    `json:"index"`
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

type probedContainer struct {
	path     string
	mime     string
	format   string
	tracks   []Track
	duration time.Duration
	file     *os.File
}

func parseProbe(data []byte) (*probedContainer, error) {
	var p probeOutput
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	c := &probedContainer{format: p.Format.FormatName, duration: parseSeconds(p.Format.Duration)}
	for _, s := range p.Streams {
		c.tracks = append(c.tracks, Track{
			Index:    s.Index,
			Kind:     s.CodecType,
			Codec:    s.CodecName,
			Duration: parseSeconds(s.Duration),
		})
	}
	return c, nil
}

// parseSeconds reads ffprobe's decimal seconds. Missing values ("N/A") are zero.
func parseSeconds(s string) time.Duration {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}

func (c *probedContainer) Path() string            { return c.path }
func (c *probedContainer) Tracks() []Track         { return c.tracks }
func (c *probedContainer) Duration() time.Duration { return c.duration }

func (c *probedContainer) Close() error {
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}

// FFmpegMuxer stream copies the selected tracks into an MP4 container.
type FFmpegMuxer struct {
	ffmpegPath string
}

func NewFFmpegMuxer(ffmpegPath string) *FFmpegMuxer {
	if ffmpegPath == "" {
		ffmpegPath = DefaultFFmpegPath
	}
	return &FFmpegMuxer{ffmpegPath: ffmpegPath}
}

func (m *FFmpegMuxer) Mux(ctx context.Context, in MuxInput, output string) error {
	return run(ctx, m.ffmpegPath, muxArgs(in, output))
}

func muxArgs(in MuxInput, output string) []string {
	args := []string{"-y", "-v", "error", "-i", in.Video.Path()}
	if in.Audio != nil {
		args = append(args, "-i", in.Audio.Path())
	}
	args = append(args, "-map", fmt.Sprintf("0:%d", in.VideoTrack.Index))
	if in.Audio != nil {
		args = append(args, "-map", fmt.Sprintf("1:%d", in.AudioTrack.Index))
	}
	return append(args, "-c", "copy", "-movflags", "+faststart", "-f", "mp4", output)
}

// FFmpegStillsRenderer renders stills through the ffmpeg concat demuxer,
// letterboxed to a fixed frame size.
type FFmpegStillsRenderer struct {
	ffmpegPath string
	Width      int
	Height     int
	FrameRate  int
}

func NewFFmpegStillsRenderer(ffmpegPath string) *FFmpegStillsRenderer {
	if ffmpegPath == "" {
		ffmpegPath = DefaultFFmpegPath
	}
	return &FFmpegStillsRenderer{ffmpegPath: ffmpegPath, Width: DefaultWidth, Height: DefaultHeight, FrameRate: DefaultFrameRate}
}

func (r *FFmpegStillsRenderer) Render(ctx context.Context, stills []string, perImage time.Duration, output string) error {
	if len(stills) == 0 {
		return ErrNoVideoContent
	}
	list, err := os.CreateTemp("", "stills-*.txt")
	if err != nil {
		return err
	}
	defer os.Remove(list.Name())
	if err := writeConcatList(list, stills, perImage); err != nil {
		_ = list.Close()
		return err
	}
	if err := list.Close(); err != nil {
		return err
	}
	filter := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d",
		r.Width, r.Height, r.Width, r.Height, r.FrameRate)
	return run(ctx, r.ffmpegPath, []string{
		"-y", "-v", "error",
		"-f", "concat", "-safe", "0", "-i", list.Name(),
		"-vf", filter,
		"-c:v", "libx264", "-pix_fmt", "yuv420p", "-an",
		"-f", "mp4", output,
	})
}

// writeConcatList writes an ffmpeg concat script. The last still is listed
// twice since the demuxer ignores the duration of the final entry.
func writeConcatList(w io.Writer, stills []string, perImage time.Duration) error {
	bw := bufio.NewWriter(w)
	for _, s := range stills {
		fmt.Fprintf(bw, "file '%s'\nduration %.3f\n", quoteConcatPath(s), perImage.Seconds())
	}
	fmt.Fprintf(bw, "file '%s'\n", quoteConcatPath(stills[len(stills)-1]))
	return bw.Flush()
}

func quoteConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}

func run(ctx context.Context, path string, args []string) error {
	cmd := exec.CommandContext(ctx, path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
