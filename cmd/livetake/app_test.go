package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/linuxmatters/livetake/internal/batch"
	"github.com/linuxmatters/livetake/internal/config"
	"github.com/linuxmatters/livetake/internal/processor"
)

func TestRunFlagsSeed(t *testing.T) {
	tests := []struct {
		in        string
		want      uint64
		wantFixed bool
		wantErr   bool
	}{
		{"", 0, false, false},
		{"42", 42, true, false},
		{"18446744073709551615", 18446744073709551615, true, false},
		{"-1", 0, false, true},
		{"abc", 0, false, true},
	}
	for _, tt := range tests {
		got, fixed, err := RunFlags{Seed: tt.in}.seed()
		if (err != nil) != tt.wantErr {
			t.Errorf("seed(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want || fixed != tt.wantFixed {
			t.Errorf("seed(%q) = %d, %v; want %d, %v", tt.in, got, fixed, tt.want, tt.wantFixed)
		}
	}
}

func TestSingleTarget(t *testing.T) {
	policy := processor.DefaultOutputPolicy()
	tests := []struct {
		source string
		want   string
	}{
		{filepath.Join("clips", "intro.wav"), filepath.Join("clips", "intro_humanized.m4a")},
		{"take.2.mp3", "take.2_humanized.m4a"},
	}
	for _, tt := range tests {
		if got := singleTarget(tt.source, policy); got != tt.want {
			t.Errorf("singleTarget(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}
}

func TestBatchOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Batch.Workers = 3
	cfg.Batch.SkipExisting = true
	cfg.Ambience.MainsHz = 60
	cfg.Ambience.LoopShortBackground = true
	a := &app{cfg: cfg, log: zerolog.Nop()}

	opts, err := a.batchOptions(RunFlags{Seed: "7"}, false)
	if err != nil {
		t.Fatalf("batchOptions() error = %v", err)
	}
	if opts.Workers != 3 || !opts.SkipExisting {
		t.Errorf("config values not applied: workers=%d skip=%v", opts.Workers, opts.SkipExisting)
	}
	if !opts.FixedSeed || opts.Seed != 7 {
		t.Errorf("seed not applied: %d %v", opts.Seed, opts.FixedSeed)
	}
	if opts.Randomizer.HumFrequency != 60 || !opts.Randomizer.LoopShortBackground {
		t.Errorf("randomizer options = %+v", opts.Randomizer)
	}
	if opts.Timeout != 600*time.Second {
		t.Errorf("Timeout = %v", opts.Timeout)
	}
	if opts.FailureLogDir != filepath.Join("records", "failed") {
		t.Errorf("FailureLogDir = %q", opts.FailureLogDir)
	}

	opts, err = a.batchOptions(RunFlags{Workers: 8}, false)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Workers != 8 || opts.FixedSeed {
		t.Errorf("flag override failed: workers=%d fixed=%v", opts.Workers, opts.FixedSeed)
	}

	if _, err := a.batchOptions(RunFlags{Seed: "x"}, false); err == nil {
		t.Error("expected invalid seed error")
	}
}

func TestComparisonOutcome(t *testing.T) {
	clean := &batch.Record{TotalFiles: 3, SuccessCount: 3}
	partial := &batch.Record{TotalFiles: 3, SuccessCount: 2, FailedCount: 1}

	if err := comparisonOutcome(context.Background(), []*batch.Record{clean, clean}); err != nil {
		t.Errorf("all succeeded: got %v", err)
	}

	err := comparisonOutcome(context.Background(), []*batch.Record{clean, partial})
	if !errors.Is(err, errBatchFailures) {
		t.Fatalf("expected errBatchFailures, got %v", err)
	}
	if err.Error() != "some clips failed: 1 of 6" {
		t.Errorf("unexpected message %q", err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := comparisonOutcome(ctx, []*batch.Record{partial}); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled run: got %v", err)
	}
}
