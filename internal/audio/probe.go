// Package audio probes audio files with ffprobe.
package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNoAudioStream means the file has no decodable audio stream.
	ErrNoAudioStream = errors.New("no audio stream found")
	// ErrNoDuration means ffprobe reported no usable duration.
	ErrNoDuration = errors.New("duration unavailable")
)

// DefaultProbeTimeout bounds a single ffprobe call.
const DefaultProbeTimeout = 30 * time.Second

// Metadata contains audio file metadata
type Metadata struct {
	Duration   float64 // seconds
	SampleRate int
	Channels   int
	SampleFmt  string
	ChLayout   string
	BitDepth   int
	Codec      string
	SizeBytes  int64
}

// audioExtensions lists the container formats accepted as input clips and
// ambience assets.
var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".aac":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
}

// IsAudioFile reports whether path has a recognised audio extension.
func IsAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// Prober runs ffprobe to read file metadata.
type Prober struct {
	Binary  string
	Timeout time.Duration
}

// NewProber returns a Prober for the given ffprobe binary. An empty binary
// means "ffprobe" from PATH.
func NewProber(binary string, timeout time.Duration) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{Binary: binary, Timeout: timeout}
}

// probeOutput mirrors the parts of ffprobe's JSON output we read.
type probeOutput struct {
	Streams []struct {
		CodecType        string `json:"codec_type"`
		CodecName        string `json:"codec_name"`
		SampleRate       string `json:"sample_rate"`
		Channels         int    `json:"channels"`
		ChannelLayout    string `json:"channel_layout"`
		SampleFmt        string `json:"sample_fmt"`
		BitsPerSample    int    `json:"bits_per_sample"`
		BitsPerRawSample string `json:"bits_per_raw_sample"`
		Duration         string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
}

// Probe returns metadata for the first audio stream of filename.
func (p *Prober) Probe(ctx context.Context, filename string) (*Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Binary,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filename,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffprobe %s: %w", filepath.Base(filename), ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("ffprobe %s: %s", filepath.Base(filename), msg)
	}

	return parseProbeOutput(out)
}

// parseProbeOutput converts ffprobe JSON into Metadata.
func parseProbeOutput(data []byte) (*Metadata, error) {
	var po probeOutput
	if err := json.Unmarshal(data, &po); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	idx := -1
	for i, s := range po.Streams {
		if s.CodecType == "audio" {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrNoAudioStream
	}
	s := po.Streams[idx]

	meta := &Metadata{
		Channels:  s.Channels,
		SampleFmt: s.SampleFmt,
		ChLayout:  s.ChannelLayout,
		BitDepth:  s.BitsPerSample,
		Codec:     s.CodecName,
	}
	meta.SampleRate, _ = strconv.Atoi(s.SampleRate)
	if meta.BitDepth == 0 {
		meta.BitDepth, _ = strconv.Atoi(s.BitsPerRawSample)
	}
	meta.SizeBytes, _ = strconv.ParseInt(po.Format.Size, 10, 64)

	// Container duration first; some formats only report it per stream.
	for _, d := range []string{po.Format.Duration, s.Duration} {
		if v, err := strconv.ParseFloat(d, 64); err == nil && v > 0 {
			meta.Duration = v
			break
		}
	}
	if meta.Duration <= 0 {
		return meta, ErrNoDuration
	}
	return meta, nil
}
