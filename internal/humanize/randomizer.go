package humanize

import (
	"hash/fnv"
	"math"
	"math/rand/v2"

	"github.com/linuxmatters/livetake/internal/ambience"
)

// Variance bands around the nominal mastering values. Each clip draws its own
// value from these so no two clips in a batch share identical dynamics.
const (
	CompressionRatioVariance = 0.3

	// DefaultMinClipSeconds is the shortest clip that gets ambience layers.
	DefaultMinClipSeconds = 3.0
)

var (
	ThresholdBand = Range{Min: -22, Max: -18} // dB, nominal -20
	AttackBand    = Range{Min: 10, Max: 20}   // ms, nominal 15
	ReleaseBand   = Range{Min: 120, Max: 180} // ms, nominal 150
	MakeupBand    = Range{Min: 1.5, Max: 2.5} // dB, nominal 2

	// Low-mid warmth and presence bands.
	WarmthGainBand   = Range{Min: 1.1, Max: 1.6}
	PresenceGainBand = Range{Min: 1.3, Max: 1.9}

	HighpassBand = Range{Min: 55, Max: 70} // Hz

	BackgroundVolumeBand = Range{Min: 0.06, Max: 0.18}
	BackgroundFadeInBand = Range{Min: 0.5, Max: 2.0} // seconds

	EventVolumeBand   = Range{Min: 0.08, Max: 0.20}
	EventDurationBand = Range{Min: 1.0, Max: 3.0} // seconds

	HumAmplitudeBand = Range{Min: 0.0005, Max: 0.0015}
)

// EQ band centres and widths (Hz).
const (
	WarmthFrequency   = 250
	WarmthWidth       = 100
	PresenceFrequency = 3000
	PresenceWidth     = 600
)

// Options tune layer placement independently of the scenario profile.
type Options struct {
	// LoopShortBackground loops a background asset shorter than the clip
	// instead of leaving the tail of the clip without background.
	LoopShortBackground bool
	// MinClipSeconds is the shortest clip that still gets ambience layers.
	MinClipSeconds float64
	// HumFrequency is the mains hum in Hz mixed into the noise floor, 0 for none.
	HumFrequency int
}

// DefaultOptions leaves short backgrounds unlooped and adds no hum.
func DefaultOptions() Options {
	return Options{MinClipSeconds: DefaultMinClipSeconds}
}

// Randomizer draws ParameterSets. A Randomizer is not safe for concurrent use;
// create one per task.
type Randomizer struct {
	rng     *rand.Rand
	seed    uint64
	library *ambience.Library
	opts    Options
}

// NewRandomizer returns a Randomizer whose draws are fully determined by seed.
// library may be nil, in which case no background or event layers are chosen.
func NewRandomizer(seed uint64, library *ambience.Library, opts Options) *Randomizer {
	return &Randomizer{
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		seed:    seed,
		library: library,
		opts:    opts,
	}
}

// NewSeed returns a fresh non-deterministic seed.
func NewSeed() uint64 {
	return rand.Uint64()
}

// DeriveSeed mixes a batch seed with a task key so each task gets its own
// reproducible stream regardless of worker scheduling.
func DeriveSeed(batchSeed uint64, key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return splitmix64(batchSeed ^ h.Sum64())
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// Seed returns the seed this Randomizer was created with.
func (r *Randomizer) Seed() uint64 {
	return r.seed
}

// Generate draws a ParameterSet for a clip of mainDuration seconds. A zero,
// negative, or non-finite duration means the duration is unknown: ambience
// layering is skipped and only the voice processing is randomized.
func (r *Randomizer) Generate(profile ScenarioProfile, mainDuration float64) ParameterSet {
	known := mainDuration > 0 && !math.IsInf(mainDuration, 0) && !math.IsNaN(mainDuration)
	if !known {
		mainDuration = 0
	}

	ps := ParameterSet{
		Profile:      profile.Name,
		Seed:         r.seed,
		MainDuration: mainDuration,
		TempoRatio:   profile.Tempo.sample(r.rng),
		PitchRatio:   profile.Pitch.sample(r.rng),
	}

	ps.Compressor = Compressor{
		ThresholdDB: ThresholdBand.sample(r.rng),
		Ratio:       profile.CompressionRange().sample(r.rng),
		AttackMS:    AttackBand.sample(r.rng),
		ReleaseMS:   ReleaseBand.sample(r.rng),
		MakeupDB:    MakeupBand.sample(r.rng),
	}
	ps.EQBands = []EQBand{
		{Frequency: WarmthFrequency, GainDB: WarmthGainBand.sample(r.rng), Width: WarmthWidth},
		{Frequency: PresenceFrequency, GainDB: PresenceGainBand.sample(r.rng), Width: PresenceWidth},
	}
	ps.HighpassFrequency = HighpassBand.sample(r.rng)

	if !known || mainDuration < r.opts.MinClipSeconds {
		return ps
	}

	// The rendered clip is mainDuration/tempo long. The background must cover
	// the longer of the two; events must fit inside the shorter.
	stretched := mainDuration / ps.TempoRatio
	coverage := math.Max(mainDuration, stretched)
	window := math.Min(mainDuration, stretched)

	var used []string
	if r.library != nil && r.rng.Float64() < profile.BackgroundProbability {
		if asset, ok := r.library.Pick(r.rng, ambience.Background); ok {
			ps.Background = r.placeBackground(asset, coverage)
			used = append(used, asset.Name)
		}
	}

	if r.library != nil && profile.MaxEvents > 0 && r.rng.Float64() < profile.EventProbability {
		count := 1 + r.rng.IntN(profile.MaxEvents)
		for i := 0; i < count; i++ {
			asset, ok := r.library.Pick(r.rng, ambience.Event, used...)
			if !ok {
				break
			}
			if ev, ok := r.placeEvent(asset, window); ok {
				ps.Events = append(ps.Events, ev)
				used = append(used, asset.Name)
			}
		}
	}

	if profile.NoiseAmplitude.Max > 0 {
		nf := &NoiseFloor{Amplitude: profile.NoiseAmplitude.sample(r.rng)}
		if r.opts.HumFrequency > 0 {
			nf.HumFrequency = r.opts.HumFrequency
			nf.HumAmplitude = HumAmplitudeBand.sample(r.rng)
		}
		ps.NoiseFloor = nf
	}

	return ps
}

// placeBackground picks volume and offset for a background asset. An asset
// shorter than the needed coverage always starts at zero.
func (r *Randomizer) placeBackground(asset ambience.Asset, coverage float64) *Background {
	bg := &Background{
		Asset:    asset,
		Volume:   BackgroundVolumeBand.sample(r.rng),
		FadeIn:   BackgroundFadeInBand.sample(r.rng),
		Coverage: coverage,
	}
	if asset.Duration >= coverage {
		bg.StartOffset = Range{Min: 0, Max: asset.Duration - coverage}.sample(r.rng)
	} else {
		bg.Looped = r.opts.LoopShortBackground
	}
	return bg
}

// placeEvent fits an event inside [0, window]. The duration never exceeds the
// asset, the band maximum, or the time left after the trigger.
func (r *Randomizer) placeEvent(asset ambience.Asset, window float64) (Event, bool) {
	hi := math.Min(EventDurationBand.Max, math.Min(asset.Duration, window))
	if hi <= 0 {
		return Event{}, false
	}
	lo := math.Min(EventDurationBand.Min, hi)
	duration := Range{Min: lo, Max: hi}.sample(r.rng)
	trigger := Range{Min: 0, Max: window - duration}.sample(r.rng)
	for trigger+duration > window && duration > 0 {
		duration = math.Nextafter(duration, 0)
	}

	return Event{
		Asset:       asset,
		Volume:      EventVolumeBand.sample(r.rng),
		TriggerTime: trigger,
		Duration:    duration,
	}, true
}
