package logging

import (
	"fmt"
	"sort"
	"strings"

	"github.com/linuxmatters/livetake/internal/batch"
	"github.com/linuxmatters/livetake/internal/humanize"
)

// BatchTip is one piece of follow-up advice derived from a batch record.
type BatchTip struct {
	Priority int    // higher first, 1-10
	Message  string // one or two sentences
	RuleID   string // e.g. "rerun_failed"
}

// MaxBatchTips caps the tips shown for one batch.
const MaxBatchTips = 4

// SuccessRateWarning is the success rate (percent) below which a rerun is
// suggested.
const SuccessRateWarning = 90.0

type tipRule func(*batch.Record) *BatchTip

// GenerateBatchTips returns prioritised advice for regenerating failed clips.
func GenerateBatchTips(rec *batch.Record) []BatchTip {
	if rec == nil || rec.TotalFiles == 0 {
		return nil
	}

	rules := []tipRule{
		tipCanceled,
		tipMissingInput,
		tipTimeouts,
		tipRubberband,
		tipEngineErrors,
		tipUndersized,
		tipProbeWarnings,
		tipRerunFailed,
	}

	var tips []BatchTip
	fired := make(map[string]bool)
	for _, rule := range rules {
		if tip := rule(rec); tip != nil {
			tips = append(tips, *tip)
			fired[tip.RuleID] = true
		}
	}

	tips = applyExclusions(tips, fired)
	sort.SliceStable(tips, func(i, j int) bool {
		return tips[i].Priority > tips[j].Priority
	})
	if len(tips) > MaxBatchTips {
		tips = tips[:MaxBatchTips]
	}
	return tips
}

// applyExclusions drops tips made redundant by a more specific one.
func applyExclusions(tips []BatchTip, fired map[string]bool) []BatchTip {
	var result []BatchTip
	for _, tip := range tips {
		if tip.RuleID == "rerun_failed" && fired["batch_canceled"] {
			continue
		}
		result = append(result, tip)
	}
	return result
}

// wrapText wraps text at word boundaries to fit within maxWidth columns.
// Continuation lines are prefixed with indent.
func wrapText(text string, maxWidth int, indent string) string {
	var lines []string
	current := ""
	for _, word := range strings.Fields(text) {
		switch {
		case current == "":
			current = word
		case len(current)+1+len(word) <= maxWidth:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return strings.Join(lines, "\n"+indent)
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func tipCanceled(rec *batch.Record) *BatchTip {
	n := rec.ErrorCounts()[humanize.ErrCanceled]
	if n == 0 {
		return nil
	}
	return &BatchTip{
		Priority: 10,
		RuleID:   "batch_canceled",
		Message: fmt.Sprintf("The batch was interrupted before %s finished. Run it again with --skip-existing to render only what is missing.",
			plural(n, "clip")),
	}
}

func tipMissingInput(rec *batch.Record) *BatchTip {
	n := rec.ErrorCounts()[humanize.ErrMissingInput]
	if n == 0 {
		return nil
	}
	return &BatchTip{
		Priority: 9,
		RuleID:   "missing_input",
		Message:  fmt.Sprintf("%s disappeared before rendering. Re-run synthesis for them, and keep the source folder unchanged while a batch runs.", plural(n, "source file")),
	}
}

func tipTimeouts(rec *batch.Record) *BatchTip {
	n := rec.ErrorCounts()[humanize.ErrTimeout]
	if n == 0 {
		return nil
	}
	return &BatchTip{
		Priority: 8,
		RuleID:   "engine_timeout",
		Message: fmt.Sprintf("%s hit the render timeout. Raise engine.timeout_seconds or lower the worker count if the machine is saturated.",
			plural(n, "clip")),
	}
}

// citesRubberband reports whether an engine failure came from the rubberband
// filter.
func citesRubberband(r humanize.RenderResult) bool {
	return r.ErrorKind == humanize.ErrEngine && strings.Contains(strings.ToLower(r.Diagnostic), "rubberband")
}

func tipRubberband(rec *batch.Record) *BatchTip {
	n := 0
	for _, r := range rec.Failures() {
		if citesRubberband(r) {
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return &BatchTip{
		Priority: 8,
		RuleID:   "rubberband_missing",
		Message: fmt.Sprintf("ffmpeg rejected the rubberband filter on %s. Install an ffmpeg built with librubberband, or let livetake detect its absence and use the atempo fallback.",
			plural(n, "clip")),
	}
}

func tipEngineErrors(rec *batch.Record) *BatchTip {
	n := 0
	for _, r := range rec.Failures() {
		if r.ErrorKind == humanize.ErrEngine && !citesRubberband(r) {
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return &BatchTip{
		Priority: 7,
		RuleID:   "engine_error",
		Message: fmt.Sprintf("ffmpeg failed on %s. The failure logs hold the exact command and ffmpeg's last output for each one.",
			plural(n, "clip")),
	}
}

func tipUndersized(rec *batch.Record) *BatchTip {
	n := rec.ErrorCounts()[humanize.ErrUndersizedOutput]
	if n == 0 {
		return nil
	}
	return &BatchTip{
		Priority: 6,
		RuleID:   "undersized_output",
		Message: fmt.Sprintf("%s produced almost no audio. Make sure those sources are not silent or truncated.",
			plural(n, "clip")),
	}
}

func tipProbeWarnings(rec *batch.Record) *BatchTip {
	n := rec.WarningCount(humanize.ErrProbeFailed)
	if n == 0 {
		return nil
	}
	return &BatchTip{
		Priority: 4,
		RuleID:   "probe_failed",
		Message: fmt.Sprintf("Duration probing failed for %s, so no ambience was added. Check that ffprobe can read those files.",
			plural(n, "clip")),
	}
}

func tipRerunFailed(rec *batch.Record) *BatchTip {
	if rec.FailedCount == 0 || rec.SuccessRate >= SuccessRateWarning {
		return nil
	}
	return &BatchTip{
		Priority: 5,
		RuleID:   "rerun_failed",
		Message: fmt.Sprintf("Only %.0f%% of clips succeeded. Rerun with --skip-existing once the causes above are fixed.",
			rec.SuccessRate),
	}
}
