// Package humanize holds the data model of the humanization pipeline and the
// parameter randomizer that turns a scenario profile into a concrete,
// per-clip transformation recipe.
package humanize

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// ErrInvalidProfile is returned when a scenario profile fails validation.
var ErrInvalidProfile = errors.New("invalid scenario profile")

// Range is a closed numeric interval [Min, Max].
type Range struct {
	Min float64 `toml:"min" yaml:"min" json:"min"`
	Max float64 `toml:"max" yaml:"max" json:"max"`
}

// Contains reports whether v lies inside the range, bounds included.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Width returns Max - Min.
func (r Range) Width() float64 {
	return r.Max - r.Min
}

// sample draws uniformly from the range. The result is clamped so floating
// point rounding can never leave the interval.
func (r Range) sample(rng *rand.Rand) float64 {
	if r.Max <= r.Min {
		return r.Min
	}
	v := r.Min + rng.Float64()*(r.Max-r.Min)
	return math.Min(math.Max(v, r.Min), r.Max)
}

func (r Range) String() string {
	return fmt.Sprintf("%.3f-%.3f", r.Min, r.Max)
}

// SemitonesToRatio converts a pitch shift in semitones to a frequency ratio.
func SemitonesToRatio(semitones float64) float64 {
	return math.Pow(2, semitones/12)
}

// RatioToSemitones converts a frequency ratio to semitones.
func RatioToSemitones(ratio float64) float64 {
	return 12 * math.Log2(ratio)
}

// ScenarioProfile is a named bundle of randomization ranges representing one
// kind of live-stream context. Profiles are data: every recognised field is
// listed here and checked by Validate at load time.
type ScenarioProfile struct {
	Name        string `toml:"name" yaml:"name" json:"name"`
	Description string `toml:"description" yaml:"description" json:"description,omitempty"`

	// Tempo is a playback speed ratio (1.0 = unchanged).
	Tempo Range `toml:"tempo" yaml:"tempo" json:"tempo"`
	// Pitch is a frequency ratio, not semitones.
	Pitch Range `toml:"pitch" yaml:"pitch" json:"pitch"`

	BackgroundProbability float64 `toml:"background_probability" yaml:"background_probability" json:"background_probability"`
	EventProbability      float64 `toml:"event_probability" yaml:"event_probability" json:"event_probability"`
	MaxEvents             int     `toml:"max_events" yaml:"max_events" json:"max_events"`

	// CompressionRatio is the nominal compressor ratio; each clip draws from
	// CompressionRatio ± CompressionRatioVariance.
	CompressionRatio float64 `toml:"compression_ratio" yaml:"compression_ratio" json:"compression_ratio"`

	// NoiseAmplitude bounds the pink noise floor. A zero range disables it.
	NoiseAmplitude Range `toml:"noise_amplitude" yaml:"noise_amplitude" json:"noise_amplitude"`
}

// Profile bounds enforced by Validate.
const (
	MinTempoRatio    = 0.25
	MaxTempoRatio    = 4.0
	MinPitchRatio    = 0.5
	MaxPitchRatio    = 2.0
	MinCompression   = 1.0
	MaxCompression   = 20.0
	MaxEventsCeiling = 8
	MaxNoiseLevel    = 0.1
)

// CompressionRange returns the band the compressor ratio is drawn from.
func (p ScenarioProfile) CompressionRange() Range {
	lo := math.Max(MinCompression, p.CompressionRatio-CompressionRatioVariance)
	return Range{Min: lo, Max: p.CompressionRatio + CompressionRatioVariance}
}

// Validate checks every field against its documented range.
func (p ScenarioProfile) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(p.Name) == "" {
		add("name is empty")
	}
	checkRange := func(field string, r Range, lo, hi float64) {
		switch {
		case math.IsNaN(r.Min) || math.IsNaN(r.Max):
			add("%s is not a number", field)
		case r.Min > r.Max:
			add("%s min %.3f exceeds max %.3f", field, r.Min, r.Max)
		case r.Min < lo || r.Max > hi:
			add("%s %s outside [%.3f, %.3f]", field, r, lo, hi)
		}
	}
	checkRange("tempo", p.Tempo, MinTempoRatio, MaxTempoRatio)
	checkRange("pitch", p.Pitch, MinPitchRatio, MaxPitchRatio)
	checkRange("noise_amplitude", p.NoiseAmplitude, 0, MaxNoiseLevel)

	if p.BackgroundProbability < 0 || p.BackgroundProbability > 1 {
		add("background_probability %.3f outside [0, 1]", p.BackgroundProbability)
	}
	if p.EventProbability < 0 || p.EventProbability > 1 {
		add("event_probability %.3f outside [0, 1]", p.EventProbability)
	}
	if p.MaxEvents < 0 || p.MaxEvents > MaxEventsCeiling {
		add("max_events %d outside [0, %d]", p.MaxEvents, MaxEventsCeiling)
	}
	if p.CompressionRatio < MinCompression || p.CompressionRatio > MaxCompression {
		add("compression_ratio %.2f outside [%.0f, %.0f]", p.CompressionRatio, MinCompression, MaxCompression)
	}

	if len(problems) > 0 {
		name := p.Name
		if name == "" {
			name = "<unnamed>"
		}
		return fmt.Errorf("%w %q: %s", ErrInvalidProfile, name, strings.Join(problems, "; "))
	}
	return nil
}

// pitchRange builds a ratio range from a semitone range.
func pitchRange(loSemitones, hiSemitones float64) Range {
	return Range{Min: SemitonesToRatio(loSemitones), Max: SemitonesToRatio(hiSemitones)}
}

// defaultNoise is the pink noise amplitude band shared by the built-in profiles.
var defaultNoise = Range{Min: 0.005, Max: 0.012}

// DefaultProfiles returns the five built-in scenario profiles.
func DefaultProfiles() []ScenarioProfile {
	return []ScenarioProfile{
		{
			Name:                  "gaming",
			Description:           "Fast, bright delivery over busy game audio",
			Tempo:                 Range{Min: 1.05, Max: 1.15},
			Pitch:                 pitchRange(0.1, 0.3),
			BackgroundProbability: 0.9,
			EventProbability:      0.4,
			MaxEvents:             2,
			CompressionRatio:      2.8,
			NoiseAmplitude:        defaultNoise,
		},
		{
			Name:                  "chatting",
			Description:           "Relaxed conversational pace",
			Tempo:                 Range{Min: 0.95, Max: 1.05},
			Pitch:                 pitchRange(-0.1, 0.1),
			BackgroundProbability: 0.7,
			EventProbability:      0.2,
			MaxEvents:             2,
			CompressionRatio:      2.2,
			NoiseAmplitude:        defaultNoise,
		},
		{
			Name:                  "teaching",
			Description:           "Slower, lower, deliberate explanation",
			Tempo:                 Range{Min: 0.90, Max: 1.00},
			Pitch:                 pitchRange(-0.2, 0.0),
			BackgroundProbability: 0.5,
			EventProbability:      0.15,
			MaxEvents:             2,
			CompressionRatio:      2.0,
			NoiseAmplitude:        defaultNoise,
		},
		{
			Name:                  "entertainment",
			Description:           "Lively variety-show energy",
			Tempo:                 Range{Min: 1.00, Max: 1.10},
			Pitch:                 pitchRange(0.0, 0.2),
			BackgroundProbability: 0.8,
			EventProbability:      0.3,
			MaxEvents:             2,
			CompressionRatio:      2.5,
			NoiseAmplitude:        defaultNoise,
		},
		{
			Name:                  "news",
			Description:           "Even, steady announcer style",
			Tempo:                 Range{Min: 0.95, Max: 1.05},
			Pitch:                 pitchRange(-0.1, 0.1),
			BackgroundProbability: 0.3,
			EventProbability:      0.1,
			MaxEvents:             2,
			CompressionRatio:      2.3,
			NoiseAmplitude:        defaultNoise,
		},
	}
}

// FindProfile returns the profile with the given name (case-insensitive).
func FindProfile(profiles []ScenarioProfile, name string) (ScenarioProfile, bool) {
	for _, p := range profiles {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return ScenarioProfile{}, false
}

// ProfileNames lists profile names in order.
func ProfileNames(profiles []ScenarioProfile) []string {
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}
	return names
}
