package humanize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProfilesValid(t *testing.T) {
	profiles := DefaultProfiles()
	require.Len(t, profiles, 5)
	for _, p := range profiles {
		assert.NoError(t, p.Validate(), p.Name)
	}
	assert.Equal(t, []string{"gaming", "chatting", "teaching", "entertainment", "news"}, ProfileNames(profiles))
}

func TestProfileValidate(t *testing.T) {
	valid, ok := FindProfile(DefaultProfiles(), "chatting")
	require.True(t, ok)

	tests := []struct {
		name   string
		mutate func(p *ScenarioProfile)
		want   string
	}{
		{"empty name", func(p *ScenarioProfile) { p.Name = " " }, "name is empty"},
		{"tempo inverted", func(p *ScenarioProfile) { p.Tempo = Range{Min: 1.1, Max: 0.9} }, "tempo min"},
		{"tempo out of bounds", func(p *ScenarioProfile) { p.Tempo = Range{Min: 0.1, Max: 1} }, "tempo"},
		{"pitch nan", func(p *ScenarioProfile) { p.Pitch = Range{Min: math.NaN(), Max: 1} }, "pitch is not a number"},
		{"background probability", func(p *ScenarioProfile) { p.BackgroundProbability = 1.5 }, "background_probability"},
		{"event probability", func(p *ScenarioProfile) { p.EventProbability = -0.1 }, "event_probability"},
		{"too many events", func(p *ScenarioProfile) { p.MaxEvents = MaxEventsCeiling + 1 }, "max_events"},
		{"compression ratio", func(p *ScenarioProfile) { p.CompressionRatio = 0.5 }, "compression_ratio"},
		{"noise too loud", func(p *ScenarioProfile) { p.NoiseAmplitude = Range{Min: 0, Max: 0.5} }, "noise_amplitude"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidProfile)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFindProfileCaseInsensitive(t *testing.T) {
	p, ok := FindProfile(DefaultProfiles(), "NEWS")
	require.True(t, ok)
	assert.Equal(t, "news", p.Name)

	_, ok = FindProfile(DefaultProfiles(), "podcast")
	assert.False(t, ok)
}

func TestSemitoneConversion(t *testing.T) {
	assert.InDelta(t, 2.0, SemitonesToRatio(12), 1e-12)
	assert.InDelta(t, 1.0, SemitonesToRatio(0), 1e-12)
	assert.InDelta(t, 1.011619, SemitonesToRatio(0.2), 1e-6)
	for _, st := range []float64{-0.2, -0.1, 0, 0.1, 0.3} {
		assert.InDelta(t, st, RatioToSemitones(SemitonesToRatio(st)), 1e-9)
	}
}

func TestCompressionRange(t *testing.T) {
	p := ScenarioProfile{CompressionRatio: 2.8}
	r := p.CompressionRange()
	assert.InDelta(t, 2.5, r.Min, 1e-9)
	assert.InDelta(t, 3.1, r.Max, 1e-9)

	p.CompressionRatio = 1.1
	assert.Equal(t, MinCompression, p.CompressionRange().Min)
}
