package processor

import "fmt"

// LoudnessTarget is the single-pass loudnorm target applied after mixing.
type LoudnessTarget struct {
	IntegratedLUFS float64 // I, integrated loudness
	TruePeakDB     float64 // TP, true peak ceiling in dBTP
	RangeLU        float64 // LRA, loudness range
}

// DefaultLoudnessTarget returns the live-stream target: -16 LUFS, -1.5 dBTP, 11 LU.
func DefaultLoudnessTarget() LoudnessTarget {
	return LoudnessTarget{
		IntegratedLUFS: -16.0,
		TruePeakDB:     -1.5,
		RangeLU:        11.0,
	}
}

// filter builds the loudnorm filter specification.
// loudnorm upsamples internally, so the caller resamples after it.
func (t LoudnessTarget) filter() string {
	return fmt.Sprintf("loudnorm=I=%.1f:TP=%.1f:LRA=%.1f", t.IntegratedLUFS, t.TruePeakDB, t.RangeLU)
}
