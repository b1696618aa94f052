package humanize

import (
	"github.com/linuxmatters/livetake/internal/ambience"
)

// ClipTask is one unit of work: a source clip, where its humanized version
// goes, and the profile that drives the randomization. Immutable once created.
type ClipTask struct {
	SourcePath string `json:"source_path"`
	TargetPath string `json:"target_path"`
	// RelPath is the source path relative to the batch root. It is stable
	// across runs and seeds per-task randomness.
	RelPath string          `json:"rel_path"`
	Profile ScenarioProfile `json:"-"`
}

// ErrorKind classifies a per-file failure or warning.
type ErrorKind string

// Error kinds recorded in RenderResult.
const (
	ErrMissingInput     ErrorKind = "missing_input"
	ErrProbeFailed      ErrorKind = "probe_failed"
	ErrEngine           ErrorKind = "engine_error"
	ErrTimeout          ErrorKind = "timeout"
	ErrUndersizedOutput ErrorKind = "undersized_output"
	ErrCanceled         ErrorKind = "canceled"
)

// Retryable reports whether the orchestrator may try the task again.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrEngine, ErrTimeout, ErrUndersizedOutput:
		return true
	}
	return false
}

// RenderResult is the immutable outcome of processing one ClipTask.
type RenderResult struct {
	Task            ClipTask  `json:"task"`
	Success         bool      `json:"success"`
	OutputSizeBytes int64     `json:"output_size_bytes"`
	ErrorKind       ErrorKind `json:"error_kind,omitempty"`
	DurationMS      int64     `json:"duration_ms"`

	// Diagnostic holds the tail of the engine's error stream, or a short
	// description for failures that never reached the engine.
	Diagnostic string `json:"diagnostic,omitempty"`
	// Warnings lists non-fatal conditions, such as a failed duration probe.
	Warnings []ErrorKind `json:"warnings,omitempty"`
	Attempts int         `json:"attempts"`
	Skipped  bool        `json:"skipped,omitempty"`
	Seed     uint64      `json:"seed"`

	Params *ParameterSet `json:"params,omitempty"`
}

// HasWarning reports whether kind was recorded as a warning.
func (r RenderResult) HasWarning(kind ErrorKind) bool {
	for _, w := range r.Warnings {
		if w == kind {
			return true
		}
	}
	return false
}

// Compressor holds dynamic range compression settings.
type Compressor struct {
	ThresholdDB float64 `json:"threshold_db"`
	Ratio       float64 `json:"ratio"`
	AttackMS    float64 `json:"attack_ms"`
	ReleaseMS   float64 `json:"release_ms"`
	MakeupDB    float64 `json:"makeup_db"`
}

// EQBand is one peaking equalizer band. Width is in Hz.
type EQBand struct {
	Frequency float64 `json:"frequency"`
	GainDB    float64 `json:"gain_db"`
	Width     float64 `json:"width"`
}

// Background is the optional ambience bed mixed under the voice.
type Background struct {
	Asset       ambience.Asset `json:"asset"`
	Volume      float64        `json:"volume"`
	StartOffset float64        `json:"start_offset"`
	Looped      bool           `json:"looped"`
	FadeIn      float64        `json:"fade_in"`
	// Coverage is how many seconds of background the mix needs.
	Coverage float64 `json:"coverage"`
}

// Event is a short one-shot ambience sound placed inside the clip.
type Event struct {
	Asset       ambience.Asset `json:"asset"`
	Volume      float64        `json:"volume"`
	TriggerTime float64        `json:"trigger_time"`
	Duration    float64        `json:"duration"`
}

// NoiseFloor is the synthetic room tone layer: band-limited pink noise plus a
// faint mains hum.
type NoiseFloor struct {
	Amplitude    float64 `json:"amplitude"`
	HumFrequency int     `json:"hum_frequency,omitempty"`
	HumAmplitude float64 `json:"hum_amplitude,omitempty"`
}

// ParameterSet is the concrete transformation recipe for one clip. It is
// produced fresh per task and never mutated afterwards.
type ParameterSet struct {
	Profile string `json:"profile"`
	Seed    uint64 `json:"seed"`
	// MainDuration is the probed source duration in seconds, 0 when unknown.
	MainDuration float64 `json:"main_duration"`

	TempoRatio        float64     `json:"tempo_ratio"`
	PitchRatio        float64     `json:"pitch_ratio"`
	Compressor        Compressor  `json:"compressor"`
	EQBands           []EQBand    `json:"eq_bands"`
	HighpassFrequency float64     `json:"highpass_frequency"`
	Background        *Background `json:"background,omitempty"`
	Events            []Event     `json:"events,omitempty"`
	NoiseFloor        *NoiseFloor `json:"noise_floor,omitempty"`
}

// HasLayers reports whether any ambience layer will be mixed in.
func (p ParameterSet) HasLayers() bool {
	return p.Background != nil || len(p.Events) > 0 || p.NoiseFloor != nil
}

// OutputDuration is the expected rendered duration after the tempo change.
func (p ParameterSet) OutputDuration() float64 {
	if p.MainDuration <= 0 || p.TempoRatio <= 0 {
		return 0
	}
	return p.MainDuration / p.TempoRatio
}
