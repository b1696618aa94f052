package processor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxmatters/livetake/internal/ambience"
	"github.com/linuxmatters/livetake/internal/humanize"
)

func testTask() humanize.ClipTask {
	return humanize.ClipTask{SourcePath: "/in/a.wav", TargetPath: "/out/a.m4a", RelPath: "a.wav"}
}

func voiceOnly() humanize.ParameterSet {
	return humanize.ParameterSet{
		Profile:      "chatting",
		MainDuration: 6,
		TempoRatio:   1.05,
		PitchRatio:   humanize.SemitonesToRatio(0.1),
		Compressor:   humanize.Compressor{ThresholdDB: -20, Ratio: 2.2, AttackMS: 15, ReleaseMS: 150, MakeupDB: 2},
		EQBands: []humanize.EQBand{
			{Frequency: 250, GainDB: 1.3, Width: 100},
			{Frequency: 3000, GainDB: 1.6, Width: 600},
		},
		HighpassFrequency: 60,
	}
}

func layered() humanize.ParameterSet {
	p := voiceOnly()
	p.Background = &humanize.Background{
		Asset:    ambience.Asset{Name: "background/cafe", Path: "/amb/cafe.wav", Category: ambience.Background, Duration: 60},
		Volume:   0.12,
		FadeIn:   1.5,
		Coverage: 6,
	}
	p.Events = []humanize.Event{
		{Asset: ambience.Asset{Name: "event/door", Path: "/amb/door.wav", Category: ambience.Event, Duration: 2}, Volume: 0.15, TriggerTime: 2.5, Duration: 1.2},
	}
	p.NoiseFloor = &humanize.NoiseFloor{Amplitude: 0.008, HumFrequency: 50, HumAmplitude: 0.001}
	return p
}

func TestBuildStageOrder(t *testing.T) {
	spec, err := Build(testTask(), layered(), DefaultBuildOptions())
	require.NoError(t, err)

	assert.Equal(t, StageOrder, spec.StageIDs())
	assert.Equal(t, []string{"/in/a.wav", "/amb/cafe.wav", "/amb/door.wav"}, spec.Inputs)

	voice := strings.SplitN(spec.FilterGraph, ";", 2)[0]
	assert.True(t, strings.HasPrefix(voice, "[0:a]aresample=48000,rubberband=tempo=1.0500:"))
	assert.Less(t, strings.Index(voice, "acompressor"), strings.Index(voice, "equalizer"))
	assert.Less(t, strings.Index(voice, "equalizer"), strings.Index(voice, "highpass"))
	assert.True(t, strings.HasSuffix(voice, "[voice]"))
}

func TestBuildMixWeights(t *testing.T) {
	spec, err := Build(testTask(), layered(), DefaultBuildOptions())
	require.NoError(t, err)

	g := spec.FilterGraph
	assert.Contains(t, g, "[voice][bg][ev0][noise][hum]amix=inputs=5:duration=first:dropout_transition=0:normalize=0:weights=1 0.1200 0.1500 1.0000 1.0000[mixed]")
	assert.Contains(t, g, "[mixed]loudnorm=I=-16.0:TP=-1.5:LRA=11.0,aresample=48000[out]")
	assert.Contains(t, g, "[1:a]atrim=start=0.000,asetpts=PTS-STARTPTS,afade=t=in:st=0:d=1.500")
	assert.Contains(t, g, "adelay=delays=2500:all=1[ev0]")
	assert.Contains(t, g, "anoisesrc=color=pink:amplitude=0.0080")
	assert.Contains(t, g, "sine=frequency=50")
}

func TestBuildBackgroundFadeOut(t *testing.T) {
	p := layered()
	p.MainDuration = 30
	p.TempoRatio = 1.091
	p.Background.Coverage = 30

	spec, err := Build(testTask(), p, DefaultBuildOptions())
	require.NoError(t, err)
	// 30s at 1.091x ends at 27.498s.
	assert.Contains(t, spec.FilterGraph, "afade=t=out:st=26.498:d=1.000")

	p.MainDuration = 0
	p.Background.Coverage = 10
	spec, err = Build(testTask(), p, DefaultBuildOptions())
	require.NoError(t, err)
	assert.Contains(t, spec.FilterGraph, "afade=t=out:st=9.000:d=1.000")
}

func TestBuildVoiceOnly(t *testing.T) {
	spec, err := Build(testTask(), voiceOnly(), DefaultBuildOptions())
	require.NoError(t, err)

	assert.False(t, spec.HasStage(StageMix))
	assert.False(t, spec.HasStage(StageBackground))
	assert.Len(t, spec.Inputs, 1)
	assert.NotContains(t, spec.FilterGraph, "amix")
	assert.Contains(t, spec.FilterGraph, "[voice]loudnorm=")
}

func TestBuildLoopedBackground(t *testing.T) {
	p := layered()
	p.Background.Asset.Duration = 3
	p.Background.Looped = true
	spec, err := Build(testTask(), p, DefaultBuildOptions())
	require.NoError(t, err)
	assert.Contains(t, spec.FilterGraph, "[1:a]aloop=loop=-1:size=2147483647,asetpts=N/SR/TB")
}

func TestBuildAtempoFallback(t *testing.T) {
	opts := DefaultBuildOptions()
	opts.Features.Rubberband = false

	spec, err := Build(testTask(), voiceOnly(), opts)
	require.NoError(t, err)
	assert.NotContains(t, spec.FilterGraph, "rubberband")
	assert.Contains(t, spec.FilterGraph, "asetrate=48278,aresample=48000,atempo=")

	p := voiceOnly()
	p.PitchRatio = 1
	spec, err = Build(testTask(), p, opts)
	require.NoError(t, err)
	assert.Contains(t, spec.FilterGraph, "atempo=1.0500")
	assert.NotContains(t, spec.FilterGraph, "asetrate")
}

func TestBuildUnityTempoPitchSkipsStage(t *testing.T) {
	p := voiceOnly()
	p.TempoRatio, p.PitchRatio = 1, 1
	spec, err := Build(testTask(), p, DefaultBuildOptions())
	require.NoError(t, err)
	assert.False(t, spec.HasStage(StageTempoPitch))
}

func TestAtempoChain(t *testing.T) {
	tests := []struct {
		factor float64
		want   []string
	}{
		{1.0, nil},
		{1.5, []string{"atempo=1.5000"}},
		{3.0, []string{"atempo=2.0", "atempo=1.5000"}},
		{0.3, []string{"atempo=0.5", "atempo=0.6000"}},
		{4.0, []string{"atempo=2.0", "atempo=2.0000"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, atempoChain(tt.factor), "factor %v", tt.factor)
	}
}

func TestBuildInvalid(t *testing.T) {
	_, err := Build(humanize.ClipTask{SourcePath: "/in/a.wav"}, voiceOnly(), DefaultBuildOptions())
	assert.ErrorIs(t, err, ErrInvalidTask)

	p := voiceOnly()
	p.TempoRatio = 0
	_, err = Build(testTask(), p, DefaultBuildOptions())
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestEncodeStage(t *testing.T) {
	spec, err := Build(testTask(), voiceOnly(), DefaultBuildOptions())
	require.NoError(t, err)

	args := spec.Args("/out/.a.partial.m4a")
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-map [out] -c:a aac -b:a 192k -ar 48000 -ac 2 /out/.a.partial.m4a")
	assert.Equal(t, "/out/.a.partial.m4a", args[len(args)-1])
}

func TestCommandLineQuoting(t *testing.T) {
	task := humanize.ClipTask{SourcePath: "/in/it's here.wav", TargetPath: "/out/a.m4a"}
	spec, err := Build(task, voiceOnly(), DefaultBuildOptions())
	require.NoError(t, err)

	cmd := spec.CommandLine("ffmpeg")
	assert.True(t, strings.HasPrefix(cmd, "ffmpeg -hide_banner -nostdin -y"))
	assert.Contains(t, cmd, `-i '/in/it'\''s here.wav'`)
}

func TestDbConversion(t *testing.T) {
	assert.InDelta(t, 0.1, DbToLinear(-20), 1e-12)
	assert.InDelta(t, -20.0, LinearToDb(0.1), 1e-9)
	assert.Equal(t, -120.0, LinearToDb(0))
}

func TestOutputName(t *testing.T) {
	policy := DefaultOutputPolicy()
	assert.Equal(t, "clip.m4a", policy.OutputName("clip.wav"))
	assert.Equal(t, "dir/take.2.m4a", policy.OutputName("dir/take.2.mp3"))

	policy.Extension = "ogg"
	assert.Equal(t, "clip.ogg", policy.OutputName("clip.wav"))
}

func TestParseFilterList(t *testing.T) {
	out := []byte(`Filters:
  T.. = Timeline support
 ... acompressor       A->A       Audio compressor.
 ... rubberband        A->A       Apply time-stretching and pitch-shifting.
`)
	assert.True(t, parseFilterList(out).Rubberband)
	assert.False(t, parseFilterList([]byte(" ... atempo  A->A  Adjust audio tempo.\n")).Rubberband)
}
