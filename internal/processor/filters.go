// Package processor turns a ParameterSet into an FFmpeg filter graph and runs
// the ffmpeg binary against it.
package processor

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/linuxmatters/livetake/internal/humanize"
)

// StageID identifies a stage in the humanization pipeline
type StageID string

// Stage identifiers, in the order they appear in StageOrder
const (
	// Voice chain: applied to the dry main clip before any mixing
	StageResample   StageID = "resample"    // Resample to the working rate
	StageTempoPitch StageID = "tempo_pitch" // Formant-preserving tempo and pitch shift
	StageCompressor StageID = "compressor"  // Dynamic range compression
	StageEQ         StageID = "eq"          // Peaking EQ bands
	StageHighpass   StageID = "highpass"    // Rumble removal

	// Ambience layers
	StageBackground StageID = "background"  // Background bed
	StageEvents     StageID = "events"      // One-shot events
	StageNoiseFloor StageID = "noise_floor" // Pink noise room tone and mains hum

	// Mastering
	StageMix      StageID = "mix"      // amix of voice and layers
	StageLoudnorm StageID = "loudnorm" // Loudness normalisation to a fixed target
	StageEncode   StageID = "encode"   // Output codec policy
)

// StageOrder is the fixed pipeline order. Compression and EQ run on the dry
// voice so ambience levels are judged against the mastered voice.
// - Resample first: every later stage sees the working sample rate
// - TempoPitch: before dynamics so the compressor sees the final prosody
// - Compressor → EQ → Highpass: the voice is mastered dry
// - Background/Events/NoiseFloor: layer chains, each on its own input
// - Mix: voice weight 1, layers at their pre-scaled volumes
// - Loudnorm: normalises the full mix
// - Encode: codec/bitrate/samplerate/channels, MUST be last
var StageOrder = []StageID{
	StageResample,
	StageTempoPitch,
	StageCompressor,
	StageEQ,
	StageHighpass,
	StageBackground,
	StageEvents,
	StageNoiseFloor,
	StageMix,
	StageLoudnorm,
	StageEncode,
}

// voiceStages are joined into the single [0:a] chain.
var voiceStages = map[StageID]bool{
	StageResample:   true,
	StageTempoPitch: true,
	StageCompressor: true,
	StageEQ:         true,
	StageHighpass:   true,
}

// Graph labels
const (
	voiceLabel  = "voice"
	mixedLabel  = "mixed"
	OutputLabel = "out"
)

var (
	// ErrInvalidTask means the task is missing its source or target path.
	ErrInvalidTask = errors.New("invalid clip task")
	// ErrInvalidParameters means the parameter set cannot be rendered.
	ErrInvalidParameters = errors.New("invalid parameter set")
)

// Stage is one named step of the pipeline. Filter holds filtergraph text;
// Args holds engine arguments for stages that are not filters.
type Stage struct {
	ID     StageID
	Filter string
	Args   []string
}

// BuildOptions carries the engine capabilities and the fixed output policy.
type BuildOptions struct {
	Features   Features
	SampleRate int // working sample rate of the resample stage
	Loudness   LoudnessTarget
	Output     OutputPolicy
}

// DefaultBuildOptions assumes a full-featured engine and the default policy.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		Features:   Features{Rubberband: true},
		SampleRate: 48000,
		Loudness:   DefaultLoudnessTarget(),
		Output:     DefaultOutputPolicy(),
	}
}

// graphBuilder accumulates engine inputs and mix labels while stages are built.
type graphBuilder struct {
	params  *humanize.ParameterSet
	opts    BuildOptions
	inputs  []string // extra -i inputs after the main clip
	mix     []string // labels fed to amix after [voice]
	weights []string // amix weights for mix, voice excluded
	current string   // label feeding loudnorm
}

// addInput registers an extra engine input and returns its stream index.
func (g *graphBuilder) addInput(path string) int {
	g.inputs = append(g.inputs, path)
	return len(g.inputs) // index 0 is the main clip
}

func (g *graphBuilder) addLayer(label string, weight float64) {
	g.mix = append(g.mix, label)
	g.weights = append(g.weights, fmt.Sprintf("%.4f", weight))
}

// aformat pins sample format, rate and layout so amix never has to guess.
func (g *graphBuilder) aformat() string {
	return fmt.Sprintf("aformat=sample_fmts=fltp:sample_rates=%d:channel_layouts=%s",
		g.opts.SampleRate, g.opts.Output.channelLayout())
}

// stageBuilderFunc builds one stage. Empty Filter and Args mean "skip".
type stageBuilderFunc func(*graphBuilder) Stage

// stageBuilders maps StageID to its builder function.
var stageBuilders = map[StageID]stageBuilderFunc{
	StageResample:   (*graphBuilder).buildResampleStage,
	StageTempoPitch: (*graphBuilder).buildTempoPitchStage,
	StageCompressor: (*graphBuilder).buildCompressorStage,
	StageEQ:         (*graphBuilder).buildEQStage,
	StageHighpass:   (*graphBuilder).buildHighpassStage,
	StageBackground: (*graphBuilder).buildBackgroundStage,
	StageEvents:     (*graphBuilder).buildEventsStage,
	StageNoiseFloor: (*graphBuilder).buildNoiseFloorStage,
	StageMix:        (*graphBuilder).buildMixStage,
	StageLoudnorm:   (*graphBuilder).buildLoudnormStage,
	StageEncode:     (*graphBuilder).buildEncodeStage,
}

// PipelineSpec is the complete, engine-ready description of one render.
type PipelineSpec struct {
	Task        humanize.ClipTask
	Params      humanize.ParameterSet
	Inputs      []string // main clip first, then ambience assets in stream order
	Stages      []Stage  // ordered, skipped stages omitted
	FilterGraph string
	Output      OutputPolicy
}

// StageIDs lists the IDs of the stages present, in order.
func (p *PipelineSpec) StageIDs() []StageID {
	ids := make([]StageID, len(p.Stages))
	for i, s := range p.Stages {
		ids[i] = s.ID
	}
	return ids
}

// HasStage reports whether the pipeline contains the stage.
func (p *PipelineSpec) HasStage(id StageID) bool {
	for _, s := range p.Stages {
		if s.ID == id {
			return true
		}
	}
	return false
}

// Build translates a ParameterSet into a PipelineSpec without running anything.
func Build(task humanize.ClipTask, params humanize.ParameterSet, opts BuildOptions) (*PipelineSpec, error) {
	if task.SourcePath == "" || task.TargetPath == "" {
		return nil, fmt.Errorf("%w: source and target are required", ErrInvalidTask)
	}
	if !(params.TempoRatio > 0) || !(params.PitchRatio > 0) {
		return nil, fmt.Errorf("%w: tempo %.4f pitch %.4f", ErrInvalidParameters, params.TempoRatio, params.PitchRatio)
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 48000
	}

	g := &graphBuilder{params: &params, opts: opts, current: voiceLabel}
	spec := &PipelineSpec{
		Task:   task,
		Params: params,
		Output: opts.Output,
	}

	var voice, chains []string
	for _, id := range StageOrder {
		builder, ok := stageBuilders[id]
		if !ok {
			continue
		}
		stage := builder(g)
		if stage.Filter == "" && len(stage.Args) == 0 {
			continue
		}
		spec.Stages = append(spec.Stages, stage)
		if stage.Filter == "" {
			continue
		}
		if voiceStages[id] {
			voice = append(voice, stage.Filter)
		} else {
			chains = append(chains, stage.Filter)
		}
	}

	voiceChain := fmt.Sprintf("[0:a]%s,%s[%s]", strings.Join(voice, ","), g.aformat(), voiceLabel)
	spec.FilterGraph = strings.Join(append([]string{voiceChain}, chains...), ";")
	spec.Inputs = append([]string{task.SourcePath}, g.inputs...)
	return spec, nil
}

// buildResampleStage resamples to the working rate.
func (g *graphBuilder) buildResampleStage() Stage {
	return Stage{ID: StageResample, Filter: fmt.Sprintf("aresample=%d", g.opts.SampleRate)}
}

// buildTempoPitchStage uses rubberband with formant preservation when the
// engine has it, otherwise an asetrate/atempo approximation.
// Returns an empty stage when both ratios are effectively 1.
func (g *graphBuilder) buildTempoPitchStage() Stage {
	tempo, pitch := g.params.TempoRatio, g.params.PitchRatio
	if math.Abs(tempo-1) < 1e-4 && math.Abs(pitch-1) < 1e-4 {
		return Stage{ID: StageTempoPitch}
	}
	if g.opts.Features.Rubberband {
		return Stage{
			ID:     StageTempoPitch,
			Filter: fmt.Sprintf("rubberband=tempo=%.4f:pitch=%.4f:formant=preserved", tempo, pitch),
		}
	}

	var parts []string
	remaining := tempo
	if math.Abs(pitch-1) >= 1e-4 {
		// asetrate raises pitch and speed together; atempo then undoes the
		// speed part so only the pitch change remains.
		parts = append(parts,
			fmt.Sprintf("asetrate=%d", int(math.Round(float64(g.opts.SampleRate)*pitch))),
			fmt.Sprintf("aresample=%d", g.opts.SampleRate),
		)
		remaining = tempo / pitch
	}
	parts = append(parts, atempoChain(remaining)...)
	return Stage{ID: StageTempoPitch, Filter: strings.Join(parts, ",")}
}

// atempoChain splits a tempo factor into atempo filters within [0.5, 2.0].
func atempoChain(factor float64) []string {
	var chain []string
	for factor > 2.0 {
		chain = append(chain, "atempo=2.0")
		factor /= 2.0
	}
	for factor < 0.5 {
		chain = append(chain, "atempo=0.5")
		factor /= 0.5
	}
	if math.Abs(factor-1) >= 1e-4 {
		chain = append(chain, fmt.Sprintf("atempo=%.4f", factor))
	}
	return chain
}

// buildCompressorStage builds the acompressor filter specification.
// Threshold and makeup are drawn in dB and converted to FFmpeg's linear form.
func (g *graphBuilder) buildCompressorStage() Stage {
	c := g.params.Compressor
	if c.Ratio < 1 {
		return Stage{ID: StageCompressor}
	}
	return Stage{
		ID: StageCompressor,
		Filter: fmt.Sprintf(
			"acompressor=threshold=%.6f:ratio=%.2f:attack=%.0f:release=%.0f:makeup=%.4f",
			DbToLinear(c.ThresholdDB),
			c.Ratio,
			c.AttackMS,
			c.ReleaseMS,
			DbToLinear(c.MakeupDB),
		),
	}
}

// buildEQStage builds one equalizer per band, width in Hz.
func (g *graphBuilder) buildEQStage() Stage {
	var bands []string
	for _, b := range g.params.EQBands {
		if b.Frequency <= 0 || b.Width <= 0 {
			continue
		}
		bands = append(bands, fmt.Sprintf("equalizer=f=%.0f:width_type=h:width=%.0f:g=%.2f", b.Frequency, b.Width, b.GainDB))
	}
	return Stage{ID: StageEQ, Filter: strings.Join(bands, ",")}
}

// buildHighpassStage removes rumble below the drawn cutoff.
func (g *graphBuilder) buildHighpassStage() Stage {
	if g.params.HighpassFrequency <= 0 {
		return Stage{ID: StageHighpass}
	}
	return Stage{ID: StageHighpass, Filter: fmt.Sprintf("highpass=f=%.0f:poles=2", g.params.HighpassFrequency)}
}

// backgroundFadeOut is the fade applied at the end of the background bed.
const backgroundFadeOut = 1.0

// buildBackgroundStage trims (or loops) the background asset and fades it in.
// The volume is applied as the amix weight, not here.
func (g *graphBuilder) buildBackgroundStage() Stage {
	bg := g.params.Background
	if bg == nil || bg.Asset.Path == "" {
		return Stage{ID: StageBackground}
	}
	idx := g.addInput(bg.Asset.Path)

	var parts []string
	if bg.Looped {
		parts = append(parts, "aloop=loop=-1:size=2147483647", "asetpts=N/SR/TB")
	} else {
		parts = append(parts, fmt.Sprintf("atrim=start=%.3f", bg.StartOffset), "asetpts=PTS-STARTPTS")
	}
	if bg.FadeIn > 0 {
		parts = append(parts, fmt.Sprintf("afade=t=in:st=0:d=%.3f", bg.FadeIn))
	}
	// amix cuts the bed where the tempo-adjusted voice ends.
	length := g.params.OutputDuration()
	if length <= 0 {
		length = bg.Coverage
	}
	if length > bg.FadeIn+2*backgroundFadeOut {
		parts = append(parts, fmt.Sprintf("afade=t=out:st=%.3f:d=%.3f", length-backgroundFadeOut, backgroundFadeOut))
	}
	parts = append(parts, g.aformat())

	g.addLayer("bg", bg.Volume)
	return Stage{
		ID:     StageBackground,
		Filter: fmt.Sprintf("[%d:a]%s[bg]", idx, strings.Join(parts, ",")),
	}
}

// buildEventsStage cuts each event to length, fades its edges and delays it
// to the trigger time.
func (g *graphBuilder) buildEventsStage() Stage {
	var chains []string
	for i, ev := range g.params.Events {
		if ev.Asset.Path == "" || ev.Duration <= 0 {
			continue
		}
		idx := g.addInput(ev.Asset.Path)
		fadeOut := math.Min(0.3, ev.Duration/3)
		label := fmt.Sprintf("ev%d", i)
		chains = append(chains, fmt.Sprintf(
			"[%d:a]atrim=duration=%.3f,asetpts=PTS-STARTPTS,afade=t=in:st=0:d=0.050,afade=t=out:st=%.3f:d=%.3f,%s,adelay=delays=%d:all=1[%s]",
			idx,
			ev.Duration,
			ev.Duration-fadeOut,
			fadeOut,
			g.aformat(),
			int64(math.Round(ev.TriggerTime*1000)),
			label,
		))
		g.addLayer(label, ev.Volume)
	}
	return Stage{ID: StageEvents, Filter: strings.Join(chains, ";")}
}

// buildNoiseFloorStage generates band-limited pink noise and, when a mains
// frequency is known, a faint hum. Both are sources inside the graph.
func (g *graphBuilder) buildNoiseFloorStage() Stage {
	nf := g.params.NoiseFloor
	if nf == nil || nf.Amplitude <= 0 {
		return Stage{ID: StageNoiseFloor}
	}
	chains := []string{fmt.Sprintf(
		"anoisesrc=color=pink:amplitude=%.4f:sample_rate=%d,highpass=f=200,lowpass=f=9000,%s[noise]",
		nf.Amplitude, g.opts.SampleRate, g.aformat(),
	)}
	g.addLayer("noise", 1)

	if nf.HumFrequency > 0 && nf.HumAmplitude > 0 {
		chains = append(chains, fmt.Sprintf(
			"sine=frequency=%d:sample_rate=%d,volume=%.5f,%s[hum]",
			nf.HumFrequency, g.opts.SampleRate, nf.HumAmplitude, g.aformat(),
		))
		g.addLayer("hum", 1)
	}
	return Stage{ID: StageNoiseFloor, Filter: strings.Join(chains, ";")}
}

// buildMixStage mixes the voice with every layer. The output length follows
// the voice and weights are used as-is.
func (g *graphBuilder) buildMixStage() Stage {
	if len(g.mix) == 0 {
		return Stage{ID: StageMix}
	}
	var labels strings.Builder
	labels.WriteString("[" + voiceLabel + "]")
	for _, l := range g.mix {
		labels.WriteString("[" + l + "]")
	}
	weights := append([]string{"1"}, g.weights...)
	g.current = mixedLabel
	return Stage{
		ID: StageMix,
		Filter: fmt.Sprintf("%samix=inputs=%d:duration=first:dropout_transition=0:normalize=0:weights=%s[%s]",
			labels.String(), len(g.mix)+1, strings.Join(weights, " "), mixedLabel),
	}
}

// buildLoudnormStage normalises whatever the mix stage produced.
func (g *graphBuilder) buildLoudnormStage() Stage {
	return Stage{
		ID: StageLoudnorm,
		Filter: fmt.Sprintf("[%s]%s,aresample=%d[%s]",
			g.current, g.opts.Loudness.filter(), g.opts.Output.SampleRate, OutputLabel),
	}
}

// buildEncodeStage carries the output codec policy.
func (g *graphBuilder) buildEncodeStage() Stage {
	return Stage{ID: StageEncode, Args: g.opts.Output.Args()}
}

// DbToLinear converts decibel value to linear amplitude.
// Used for converting dB parameters to FFmpeg's linear format.
func DbToLinear(db float64) float64 {
	return math.Pow(10, db/20.0)
}

// LinearToDb converts linear amplitude to decibel value.
// Inverse of DbToLinear.
func LinearToDb(linear float64) float64 {
	if linear <= 0 {
		return -120.0 // Practical floor for audio
	}
	return 20.0 * math.Log10(linear)
}
