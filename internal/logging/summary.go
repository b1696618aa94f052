package logging

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/linuxmatters/livetake/internal/batch"
	"github.com/linuxmatters/livetake/internal/humanize"
	"github.com/linuxmatters/livetake/internal/store"
)

const rule = 70

func writeBanner(w io.Writer, title string) {
	fmt.Fprintln(w, strings.Repeat("=", rule))
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", rule))
}

// DisplayBatchSummary prints the console summary after a batch.
func DisplayBatchSummary(w io.Writer, rec *batch.Record, recordPath string) {
	writeBanner(w, fmt.Sprintf("BATCH: %s (%s)", rec.Name, rec.Profile))
	fmt.Fprintf(w, "Files:      %d\n", rec.TotalFiles)
	fmt.Fprintf(w, "Succeeded:  %d", rec.SuccessCount)
	if rec.SkippedCount > 0 {
		fmt.Fprintf(w, " (%d skipped)", rec.SkippedCount)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Failed:     %d\n", rec.FailedCount)
	fmt.Fprintf(w, "Success:    %.1f%%\n", rec.SuccessRate)
	fmt.Fprintf(w, "Elapsed:    %s\n", formatDuration(rec.Elapsed()))
	fmt.Fprintf(w, "Output:     %s\n", rec.TargetFolder)
	if recordPath != "" {
		fmt.Fprintf(w, "Record:     %s\n", recordPath)
	}

	if failures := rec.Failures(); len(failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Failed clips:")
		for _, r := range failures {
			fmt.Fprintf(w, "  %-40s %s\n", r.Task.RelPath, r.ErrorKind)
		}
	}

	if tips := GenerateBatchTips(rec); len(tips) > 0 {
		fmt.Fprintln(w)
		for _, tip := range tips {
			fmt.Fprintf(w, "• %s\n", wrapText(tip.Message, rule-2, "  "))
		}
	}
	fmt.Fprintln(w)
}

// DisplayResult prints the outcome of a single clip.
func DisplayResult(w io.Writer, r humanize.RenderResult) {
	writeBanner(w, "CLIP: "+filepath.Base(r.Task.SourcePath))
	fmt.Fprintf(w, "Status:   %s\n", status(r))
	if r.Success {
		fmt.Fprintf(w, "Output:   %s (%s)\n", r.Task.TargetPath, formatBytes(r.OutputSizeBytes))
	} else if line := lastLine(r.Diagnostic); line != "" {
		fmt.Fprintf(w, "Detail:   %s\n", wrapText(line, rule-10, "          "))
	}
	fmt.Fprintf(w, "Time:     %s\n", formatDuration(time.Duration(r.DurationMS)*time.Millisecond))
	if r.Params != nil {
		fmt.Fprintln(w)
		WriteParameterSet(w, *r.Params)
	}
	fmt.Fprintln(w)
}

// DisplayBatchList prints catalogued batches, newest first.
func DisplayBatchList(w io.Writer, rows []store.BatchRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No batches recorded yet.")
		return
	}
	table := NewMetricTable("Profile", "Files", "OK", "Failed", "Rate", "Started")
	for _, b := range rows {
		table.AddRow(b.ID, []string{
			b.Profile,
			fmt.Sprintf("%d", b.TotalFiles),
			fmt.Sprintf("%d", b.SuccessCount),
			fmt.Sprintf("%d", b.FailedCount),
			formatMetricWithUnit(b.SuccessRate, 1, "%"),
			b.StartTime.Format("2006-01-02 15:04"),
		}, "", b.Name)
	}
	fmt.Fprint(w, table.String())
}

// DisplayBatchDetail prints one catalogued batch and its failed files.
func DisplayBatchDetail(w io.Writer, b *store.BatchRow) {
	writeBanner(w, fmt.Sprintf("BATCH %s: %s", b.ID, b.Name))
	fmt.Fprintf(w, "Profile:   %s\n", b.Profile)
	fmt.Fprintf(w, "Source:    %s\n", b.SourceFolder)
	fmt.Fprintf(w, "Output:    %s\n", b.TargetFolder)
	fmt.Fprintf(w, "Record:    %s\n", b.RecordPath)
	fmt.Fprintf(w, "Result:    %d/%d (%.1f%%) in %s\n", b.SuccessCount, b.TotalFiles, b.SuccessRate, formatDuration(b.Elapsed()))
	for _, f := range b.Files {
		if f.Success {
			continue
		}
		fmt.Fprintf(w, "  FAILED %-36s %s\n", filepath.Base(f.SourcePath), f.ErrorKind)
	}
	fmt.Fprintln(w)
}

// DisplayComparison prints batches side by side, one column per batch.
func DisplayComparison(w io.Writer, recs []*batch.Record) {
	if len(recs) == 0 {
		return
	}
	headers := make([]string, len(recs))
	for i, r := range recs {
		headers[i] = r.Profile
	}
	table := NewMetricTable(headers...)

	column := func(f func(*batch.Record) string) []string {
		out := make([]string, len(recs))
		for i, r := range recs {
			out[i] = f(r)
		}
		return out
	}
	table.AddRow("Batch", column(func(r *batch.Record) string { return r.Name }), "", "")
	table.AddRow("Files", column(func(r *batch.Record) string { return fmt.Sprintf("%d", r.TotalFiles) }), "", "")
	table.AddRow("Succeeded", column(func(r *batch.Record) string { return fmt.Sprintf("%d", r.SuccessCount) }), "", "")
	table.AddRow("Failed", column(func(r *batch.Record) string { return fmt.Sprintf("%d", r.FailedCount) }), "", "")
	table.AddRow("Success rate", column(func(r *batch.Record) string { return formatMetric(r.SuccessRate, 1) }), "%", "")
	table.AddRow("Mean tempo", column(func(r *batch.Record) string { return formatMetric(meanParam(r, tempoOf), 3) }), "x", "")
	table.AddRow("Mean pitch", column(func(r *batch.Record) string { return formatMetricSigned(meanParam(r, semitonesOf), 2) }), "st", "")
	table.AddRow("Mean layers", column(func(r *batch.Record) string { return formatMetric(meanParam(r, layersOf), 1) }), "", "")
	table.AddRow("Elapsed", column(func(r *batch.Record) string { return formatDuration(r.Elapsed()) }), "", "")
	fmt.Fprint(w, table.String())
}

func tempoOf(p *humanize.ParameterSet) float64     { return p.TempoRatio }
func semitonesOf(p *humanize.ParameterSet) float64 { return humanize.RatioToSemitones(p.PitchRatio) }
func layersOf(p *humanize.ParameterSet) float64    { return float64(layerCount(p)) }

// meanParam averages f over rendered clips, NaN when there are none.
func meanParam(r *batch.Record, f func(*humanize.ParameterSet) float64) float64 {
	sum, n := 0.0, 0
	for _, res := range r.PerFile {
		if res.Params != nil && !res.Skipped {
			sum += f(res.Params)
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// DisplayProfiles lists scenario profiles and their ranges.
func DisplayProfiles(w io.Writer, profiles []humanize.ScenarioProfile) {
	table := NewMetricTable("Tempo", "Pitch (st)", "BG", "Events", "Max", "Ratio")
	for _, p := range profiles {
		table.AddRow(p.Name, []string{
			fmt.Sprintf("%.2f-%.2f", p.Tempo.Min, p.Tempo.Max),
			fmt.Sprintf("%+.1f/%+.1f", humanize.RatioToSemitones(p.Pitch.Min), humanize.RatioToSemitones(p.Pitch.Max)),
			formatMetric(p.BackgroundProbability, 2),
			formatMetric(p.EventProbability, 2),
			fmt.Sprintf("%d", p.MaxEvents),
			formatMetric(p.CompressionRatio, 1),
		}, "", p.Description)
	}
	fmt.Fprint(w, table.String())
}

