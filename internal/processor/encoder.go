package processor

import (
	"path/filepath"
	"strconv"
	"strings"
)

// OutputPolicy is the fixed encode policy applied to every rendered clip.
type OutputPolicy struct {
	Codec      string // FFmpeg encoder name, e.g. "aac"
	Bitrate    string // e.g. "192k"
	SampleRate int    // Hz
	Channels   int
	Extension  string // output file extension including the dot
}

// DefaultOutputPolicy returns AAC 192k, 48kHz stereo in an .m4a container.
func DefaultOutputPolicy() OutputPolicy {
	return OutputPolicy{
		Codec:      "aac",
		Bitrate:    "192k",
		SampleRate: 48000,
		Channels:   2,
		Extension:  ".m4a",
	}
}

// Args returns the engine arguments for the encode stage.
func (o OutputPolicy) Args() []string {
	args := []string{"-c:a", o.Codec}
	if o.Bitrate != "" {
		args = append(args, "-b:a", o.Bitrate)
	}
	return append(args,
		"-ar", strconv.Itoa(o.SampleRate),
		"-ac", strconv.Itoa(o.Channels),
	)
}

// OutputName replaces the extension of name with the policy extension.
func (o OutputPolicy) OutputName(name string) string {
	ext := o.Extension
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}

// channelLayout maps the channel count to an FFmpeg layout name.
func (o OutputPolicy) channelLayout() string {
	if o.Channels == 1 {
		return "mono"
	}
	return "stereo"
}
