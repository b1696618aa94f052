package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/linuxmatters/livetake/internal/ambience"
	"github.com/linuxmatters/livetake/internal/batch"
	"github.com/linuxmatters/livetake/internal/humanize"
	"github.com/linuxmatters/livetake/internal/processor"
)

func sampleParams() humanize.ParameterSet {
	return humanize.ParameterSet{
		Profile:      "gaming",
		Seed:         42,
		MainDuration: 6,
		TempoRatio:   1.1,
		PitchRatio:   humanize.SemitonesToRatio(0.2),
		Compressor:   humanize.Compressor{ThresholdDB: -20, Ratio: 2.8, AttackMS: 15, ReleaseMS: 150, MakeupDB: 2},
		EQBands: []humanize.EQBand{
			{Frequency: 250, GainDB: 1.3, Width: 100},
			{Frequency: 3000, GainDB: 1.6, Width: 600},
		},
		HighpassFrequency: 60,
		Background: &humanize.Background{
			Asset:    ambience.Asset{Name: "cafe.wav", Path: "/amb/background/cafe.wav", Category: ambience.Background, Duration: 30},
			Volume:   0.1,
			FadeIn:   1,
			Coverage: 6,
		},
		NoiseFloor: &humanize.NoiseFloor{Amplitude: 0.008, HumFrequency: 50, HumAmplitude: 0.001},
	}
}

func sampleRecord() *batch.Record {
	params := sampleParams()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &batch.Record{
		ID:           "b-1",
		Name:         "episode",
		SourceFolder: "/audio/episode",
		TargetFolder: "/audio/humanized_episode",
		Profile:      "gaming",
		StartTime:    start,
		TotalFiles:   2,
	}
	rec.Add(humanize.RenderResult{
		Task:            humanize.ClipTask{SourcePath: "/audio/episode/a.wav", RelPath: "a.wav"},
		Success:         true,
		OutputSizeBytes: 96 * 1024,
		DurationMS:      1500,
		Attempts:        1,
		Params:          &params,
	})
	rec.Add(humanize.RenderResult{
		Task:       humanize.ClipTask{SourcePath: "/audio/episode/b.wav", RelPath: "b.wav"},
		ErrorKind:  humanize.ErrTimeout,
		Diagnostic: "first line\nengine exceeded 10s and was killed",
		Attempts:   2,
	})
	rec.Finalize(start.Add(3 * time.Second))
	return rec
}

func TestGenerateBatchReport(t *testing.T) {
	var buf bytes.Buffer
	if err := GenerateBatchReport(&buf, sampleRecord()); err != nil {
		t.Fatalf("GenerateBatchReport() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Livetake Batch Report",
		"Processing Summary",
		"Per-File Results",
		"Failures",
		"Ambience Layers",
		"Recommendations",
		"Success:     50.0%",
		"background cafe.wav",
		"hum 50 Hz",
		"engine exceeded 10s and was killed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "first line") {
		t.Error("failure breakdown should show only the last diagnostic line")
	}
}

func TestGenerateBatchReportNil(t *testing.T) {
	if err := GenerateBatchReport(&bytes.Buffer{}, nil); err == nil {
		t.Error("expected error for nil record")
	}
}

func TestWriteBatchReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.log")
	if err := WriteBatchReport(path, sampleRecord()); err != nil {
		t.Fatalf("WriteBatchReport() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "Livetake Batch Report\n=====") {
		t.Errorf("unexpected report start: %q", string(data[:40]))
	}
}

func TestWritePlan(t *testing.T) {
	task := humanize.ClipTask{SourcePath: "/in/a.wav", TargetPath: "/out/a.m4a", RelPath: "a.wav"}
	params := sampleParams()
	spec, err := processor.Build(task, params, processor.DefaultBuildOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	plans := []batch.Planned{
		{Task: task, Seed: 42, Params: params, Spec: spec, Warnings: []humanize.ErrorKind{humanize.ErrProbeFailed}},
		{Task: humanize.ClipTask{RelPath: "broken.wav", TargetPath: "/out/broken.m4a"}, Err: processor.ErrInvalidTask},
	}

	var buf bytes.Buffer
	WritePlan(&buf, plans, "ffmpeg")
	out := buf.String()

	for _, want := range []string{
		"a.wav -> a.m4a",
		"warnings: probe_failed",
		"Profile gaming, seed 42",
		"stages: resample > tempo_pitch > compressor",
		"ffmpeg -hide_banner",
		"broken.wav -> broken.m4a",
		"error: invalid clip task",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("plan missing %q\n%s", want, out)
		}
	}
}

func TestWriteParameterSetUnknownDuration(t *testing.T) {
	p := sampleParams()
	p.MainDuration = 0
	p.Background = nil
	p.NoiseFloor = nil

	var buf bytes.Buffer
	WriteParameterSet(&buf, p)
	if !strings.Contains(buf.String(), "duration: unknown, ambience skipped") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}
