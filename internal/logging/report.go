package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/linuxmatters/livetake/internal/batch"
	"github.com/linuxmatters/livetake/internal/humanize"
	"github.com/linuxmatters/livetake/internal/processor"
)

// reportWidth is the wrap width for prose in reports.
const reportWidth = 76

// writeSection writes a section header with title and dashed underline.
func writeSection(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("-", len(title)))
}

// WriteBatchReport writes the text report for rec to path.
func WriteBatchReport(path string, rec *batch.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if err := GenerateBatchReport(f, rec); err != nil {
		return err
	}
	return f.Close()
}

// GenerateBatchReport writes a human-readable report of a finished batch.
func GenerateBatchReport(w io.Writer, rec *batch.Record) error {
	if rec == nil {
		return fmt.Errorf("no batch record")
	}
	writeReportHeader(w, rec)
	writeProcessingSummary(w, rec)
	writeResultsTable(w, rec)
	writeFailureBreakdown(w, rec)
	writeLayerSummary(w, rec)
	writeRecommendations(w, rec)
	return nil
}

func writeReportHeader(w io.Writer, rec *batch.Record) {
	title := "Livetake Batch Report"
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", len(title)))
	fmt.Fprintf(w, "Batch:     %s\n", rec.Name)
	fmt.Fprintf(w, "ID:        %s\n", rec.ID)
	fmt.Fprintf(w, "Profile:   %s\n", rec.Profile)
	fmt.Fprintf(w, "Source:    %s\n", rec.SourceFolder)
	fmt.Fprintf(w, "Output:    %s\n", rec.TargetFolder)
	if rec.Seed != 0 {
		fmt.Fprintf(w, "Seed:      %d\n", rec.Seed)
	}
	fmt.Fprintf(w, "Finished:  %s\n", rec.EndTime.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintln(w)
}

func writeProcessingSummary(w io.Writer, rec *batch.Record) {
	writeSection(w, "Processing Summary")
	fmt.Fprintf(w, "Files:       %d\n", rec.TotalFiles)
	fmt.Fprintf(w, "Succeeded:   %d", rec.SuccessCount)
	if rec.SkippedCount > 0 {
		fmt.Fprintf(w, " (%d already present)", rec.SkippedCount)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Failed:      %d\n", rec.FailedCount)
	fmt.Fprintf(w, "Success:     %.1f%%\n", rec.SuccessRate)

	elapsed := rec.Elapsed()
	fmt.Fprintf(w, "Elapsed:     %s", formatDuration(elapsed))
	if audio := renderedAudio(rec); audio > 0 && elapsed > 0 {
		fmt.Fprintf(w, " (%.1fx real-time)", float64(audio)/float64(elapsed))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)
}

// renderedAudio sums the output duration of every rendered clip.
func renderedAudio(rec *batch.Record) time.Duration {
	var total float64
	for _, r := range rec.PerFile {
		if r.Success && r.Params != nil {
			total += r.Params.OutputDuration()
		}
	}
	return time.Duration(total * float64(time.Second))
}

func writeResultsTable(w io.Writer, rec *batch.Record) {
	if len(rec.PerFile) == 0 {
		return
	}
	writeSection(w, "Per-File Results")

	table := NewMetricTable("Tempo", "Pitch", "Layers", "Size", "Tries", "Time")
	for _, r := range rec.PerFile {
		tempo, pitch, layers := MissingValue, MissingValue, MissingValue
		if r.Params != nil {
			tempo = formatMetric(r.Params.TempoRatio, 3)
			pitch = formatMetricSigned(humanize.RatioToSemitones(r.Params.PitchRatio), 2)
			layers = fmt.Sprintf("%d", layerCount(r.Params))
		}
		table.AddRow(r.Task.RelPath, []string{
			tempo,
			pitch,
			layers,
			formatBytes(r.OutputSizeBytes),
			fmt.Sprintf("%d", r.Attempts),
			formatDuration(time.Duration(r.DurationMS) * time.Millisecond),
		}, "", status(r))
	}
	fmt.Fprint(w, table.String())
	fmt.Fprintln(w, "Pitch in semitones; layers counts background, events and noise floor.")
	fmt.Fprintln(w)
}

func layerCount(p *humanize.ParameterSet) int {
	n := len(p.Events)
	if p.Background != nil {
		n++
	}
	if p.NoiseFloor != nil {
		n++
	}
	return n
}

func status(r humanize.RenderResult) string {
	switch {
	case r.Skipped:
		return "skipped (exists)"
	case r.Success && len(r.Warnings) > 0:
		return "ok, " + joinKinds(r.Warnings)
	case r.Success:
		return "ok"
	default:
		return "FAILED " + string(r.ErrorKind)
	}
}

func joinKinds(kinds []humanize.ErrorKind) string {
	s := make([]string, len(kinds))
	for i, k := range kinds {
		s[i] = string(k)
	}
	return strings.Join(s, ", ")
}

func writeFailureBreakdown(w io.Writer, rec *batch.Record) {
	failures := rec.Failures()
	if len(failures) == 0 {
		return
	}
	writeSection(w, "Failures")

	counts := rec.ErrorCounts()
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "%-20s %d\n", k+":", counts[humanize.ErrorKind(k)])
	}
	fmt.Fprintln(w)

	for _, r := range failures {
		fmt.Fprintf(w, "%s [%s]\n", r.Task.RelPath, r.ErrorKind)
		if line := lastLine(r.Diagnostic); line != "" {
			fmt.Fprintf(w, "    %s\n", wrapText(line, reportWidth-4, "    "))
		}
	}
	fmt.Fprintln(w)
}

// lastLine returns the last non-empty line, which is where ffmpeg puts the
// error that ended the run.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

func writeLayerSummary(w io.Writer, rec *batch.Record) {
	var rendered []humanize.RenderResult
	for _, r := range rec.PerFile {
		if r.Params != nil && r.Params.HasLayers() {
			rendered = append(rendered, r)
		}
	}
	if len(rendered) == 0 {
		return
	}
	writeSection(w, "Ambience Layers")
	for _, r := range rendered {
		fmt.Fprintln(w, r.Task.RelPath)
		writeLayers(w, r.Params, "    ")
	}
	fmt.Fprintln(w)
}

func writeLayers(w io.Writer, p *humanize.ParameterSet, prefix string) {
	if bg := p.Background; bg != nil {
		loop := ""
		if bg.Looped {
			loop = ", looped"
		}
		fmt.Fprintf(w, "%sbackground %s: volume %.3f, from %.2fs, fade-in %.2fs%s\n",
			prefix, bg.Asset.Name, bg.Volume, bg.StartOffset, bg.FadeIn, loop)
	}
	for _, ev := range p.Events {
		fmt.Fprintf(w, "%sevent %s: volume %.3f at %.2fs for %.2fs\n",
			prefix, ev.Asset.Name, ev.Volume, ev.TriggerTime, ev.Duration)
	}
	if nf := p.NoiseFloor; nf != nil {
		fmt.Fprintf(w, "%snoise floor: pink %.4f", prefix, nf.Amplitude)
		if nf.HumFrequency > 0 {
			fmt.Fprintf(w, ", hum %d Hz %.4f", nf.HumFrequency, nf.HumAmplitude)
		}
		fmt.Fprintln(w)
	}
}

func writeRecommendations(w io.Writer, rec *batch.Record) {
	tips := GenerateBatchTips(rec)
	if len(tips) == 0 {
		return
	}
	writeSection(w, "Recommendations")
	for _, tip := range tips {
		fmt.Fprintf(w, "• %s\n", wrapText(tip.Message, reportWidth-2, "  "))
	}
	fmt.Fprintln(w)
}

// WriteParameterSet describes one clip's drawn parameters, stage by stage.
func WriteParameterSet(w io.Writer, p humanize.ParameterSet) {
	fmt.Fprintf(w, "Profile %s, seed %d\n", p.Profile, p.Seed)
	if p.MainDuration > 0 {
		fmt.Fprintf(w, "    duration: %.2fs in, %.2fs out\n", p.MainDuration, p.OutputDuration())
	} else {
		fmt.Fprintln(w, "    duration: unknown, ambience skipped")
	}
	fmt.Fprintf(w, "    tempo %.4fx, pitch %s semitones\n",
		p.TempoRatio, formatMetricSigned(humanize.RatioToSemitones(p.PitchRatio), 2))
	c := p.Compressor
	fmt.Fprintf(w, "    compressor: threshold %.1f dB, ratio %.2f:1, attack %.0fms, release %.0fms, makeup %.1f dB\n",
		c.ThresholdDB, c.Ratio, c.AttackMS, c.ReleaseMS, c.MakeupDB)
	for _, b := range p.EQBands {
		fmt.Fprintf(w, "    eq: %s at %.0f Hz (width %.0f)\n",
			formatMetricWithUnit(b.GainDB, 2, "dB"), b.Frequency, b.Width)
	}
	fmt.Fprintf(w, "    highpass: %.0f Hz\n", p.HighpassFrequency)
	writeLayers(w, &p, "    ")
}

// WritePlan prints a dry-run plan: each task's parameters and command line.
func WritePlan(w io.Writer, plans []batch.Planned, binary string) {
	for _, p := range plans {
		fmt.Fprintf(w, "%s -> %s\n", p.Task.RelPath, filepath.Base(p.Task.TargetPath))
		if p.Err != nil {
			fmt.Fprintf(w, "    error: %v\n\n", p.Err)
			continue
		}
		if len(p.Warnings) > 0 {
			fmt.Fprintf(w, "    warnings: %s\n", joinKinds(p.Warnings))
		}
		WriteParameterSet(w, p.Params)
		fmt.Fprintf(w, "    stages: %s\n", strings.Join(stageNames(p.Spec), " > "))
		fmt.Fprintf(w, "    %s\n\n", p.Spec.CommandLine(binary))
	}
}

func stageNames(spec *processor.PipelineSpec) []string {
	ids := spec.StageIDs()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
