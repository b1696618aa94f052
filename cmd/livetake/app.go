package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/linuxmatters/livetake/internal/ambience"
	"github.com/linuxmatters/livetake/internal/audio"
	"github.com/linuxmatters/livetake/internal/batch"
	"github.com/linuxmatters/livetake/internal/config"
	"github.com/linuxmatters/livetake/internal/humanize"
	"github.com/linuxmatters/livetake/internal/logging"
	"github.com/linuxmatters/livetake/internal/mains"
	"github.com/linuxmatters/livetake/internal/metrics"
	"github.com/linuxmatters/livetake/internal/processor"
	"github.com/linuxmatters/livetake/internal/store"
	"github.com/linuxmatters/livetake/internal/ui"
)

// debugLogFile receives logs while the progress UI owns the terminal.
const debugLogFile = "livetake-debug.log"

// RunFlags are shared by every command that renders clips.
type RunFlags struct {
	Profile    string `short:"p" default:"chatting" help:"Scenario profile"`
	Workers    int    `short:"w" help:"Parallel renders (default: config, then CPU count)"`
	Seed       string `placeholder:"N" help:"Seed for reproducible output (default: random)"`
	DryRun     bool   `name:"dry-run" help:"Print the ffmpeg commands without rendering"`
	NoAmbience bool   `name:"no-ambience" help:"Skip background and event layers"`
}

// seed parses the --seed flag.
func (r RunFlags) seed() (uint64, bool, error) {
	if r.Seed == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseUint(r.Seed, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid seed %q: %w", r.Seed, err)
	}
	return v, true, nil
}

// BatchFlags add output placement and selection to RunFlags.
type BatchFlags struct {
	RunFlags
	Output       string `short:"o" type:"path" placeholder:"DIR" help:"Output root directory"`
	SkipExisting bool   `name:"skip-existing" help:"Keep outputs that already exist"`
	Limit        int    `placeholder:"N" help:"Process only the first N clips"`
}

// app holds everything a command needs, built from layered configuration.
type app struct {
	cfg         *config.Config
	log         zerolog.Logger
	interactive bool
	closers     []func() error

	prober  *audio.Prober
	engine  *processor.Engine
	library *ambience.Library
	build   processor.BuildOptions
	metrics *metrics.Collector
}

// newApp loads configuration and sets up logging. Interactive runs log to a
// file because the progress UI owns the terminal.
func newApp(g *Globals) (*app, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.Ambience != "" {
		cfg.Ambience.Dir = g.Ambience
	}
	if g.RecordsDir != "" {
		cfg.Batch.RecordsDir = g.RecordsDir
	}

	a := &app{
		cfg:         cfg,
		interactive: !g.Plain && isatty.IsTerminal(os.Stdout.Fd()),
	}

	opts := logging.LoggerOptions{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, File: cfg.Log.File}
	if a.interactive && opts.File == "" {
		opts.File = debugLogFile
	}
	if !a.interactive && opts.File == "" {
		opts.Pretty = true
	}
	log, closeLog, err := logging.NewLogger(opts)
	if err != nil {
		return nil, err
	}
	a.log = log
	a.closers = append(a.closers, closeLog)
	return a, nil
}

// close releases files and databases in reverse order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Debug().Err(err).Msg("close failed")
		}
	}
}

// prepareEngine probes ffmpeg's features and loads the ambience library.
func (a *app) prepareEngine(ctx context.Context, noAmbience bool) error {
	a.prober = audio.NewProber(a.cfg.Engine.FFprobe, audio.DefaultProbeTimeout)
	a.engine = processor.NewEngine(a.cfg.Engine.FFmpeg, a.cfg.Engine.MinOutputBytes, a.log)
	a.metrics = metrics.New()

	a.build = a.cfg.BuildOptions()
	features, err := processor.DetectFeatures(ctx, a.cfg.Engine.FFmpeg)
	if err != nil {
		a.log.Warn().Err(err).Msg("could not list ffmpeg filters, using atempo for tempo and pitch")
	} else if !features.Rubberband {
		a.log.Warn().Msg("ffmpeg has no rubberband filter, using atempo for tempo and pitch")
	}
	a.build.Features = features

	if noAmbience {
		return nil
	}
	lib, err := ambience.Load(ctx, a.cfg.Ambience.Dir, a.prober, a.log)
	if err != nil {
		if errors.Is(err, ambience.ErrLibraryMissing) || errors.Is(err, ambience.ErrNoAssets) {
			return fmt.Errorf("%w (use --no-ambience to render without background and events)", err)
		}
		return err
	}
	a.library = lib
	a.log.Info().
		Int("backgrounds", lib.Len(ambience.Background)).
		Int("events", lib.Len(ambience.Event)).
		Str("dir", a.cfg.Ambience.Dir).
		Msg("ambience library loaded")
	return nil
}

// orchestrator builds an Orchestrator for the given flags.
func (a *app) orchestrator(run RunFlags, skipExisting bool) (*batch.Orchestrator, error) {
	opts, err := a.batchOptions(run, skipExisting)
	if err != nil {
		return nil, err
	}
	return a.newOrchestrator(opts), nil
}

func (a *app) newOrchestrator(opts batch.Options) *batch.Orchestrator {
	return batch.New(opts, a.library, a.prober, a.engine, a.log).WithMetrics(a.metrics)
}

// batchOptions maps configuration and flags onto orchestrator options.
func (a *app) batchOptions(run RunFlags, skipExisting bool) (batch.Options, error) {
	seed, fixed, err := run.seed()
	if err != nil {
		return batch.Options{}, err
	}
	workers := run.Workers
	if workers <= 0 {
		workers = a.cfg.Batch.Workers
	}

	randomizer := humanize.DefaultOptions()
	randomizer.LoopShortBackground = a.cfg.Ambience.LoopShortBackground
	randomizer.MinClipSeconds = a.cfg.Ambience.MinClipSeconds
	randomizer.HumFrequency = mains.Resolve(a.cfg.Ambience.MainsHz)

	return batch.Options{
		Workers:        workers,
		Timeout:        a.cfg.Timeout(),
		Retry:          a.cfg.RetryPolicy(),
		SkipExisting:   skipExisting || a.cfg.Batch.SkipExisting,
		MinOutputBytes: a.cfg.Engine.MinOutputBytes,
		Seed:           seed,
		FixedSeed:      fixed,
		Randomizer:     randomizer,
		Build:          a.build,
		FailureLogDir:  a.cfg.FailureLogDir(),
	}, nil
}

// recorder persists batch records. A catalogue that cannot be opened is
// logged and skipped; the JSON record is still written.
func (a *app) recorder() *store.Recorder {
	rec := &store.Recorder{
		Dir:    a.cfg.Batch.RecordsDir,
		Report: logging.WriteBatchReport,
		Log:    a.log,
	}
	catalog, err := store.OpenCatalog(a.cfg.DatabasePath())
	if err != nil {
		a.log.Warn().Err(err).Msg("batch catalogue unavailable")
		return rec
	}
	rec.Catalog = catalog
	a.closers = append(a.closers, catalog.Close)
	return rec
}

// runBatch executes b, showing the progress UI when interactive.
func (a *app) runBatch(ctx context.Context, orch *batch.Orchestrator, b *batch.Batch) (*batch.Record, error) {
	if !a.interactive {
		return orch.Run(ctx, b)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewModel(b, orch.Workers())
	obs := ui.NewObserver(runCtx, model.ProgressChan)
	orch.WithObserver(obs)

	type outcome struct {
		rec *batch.Record
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		rec, err := orch.Run(runCtx, b)
		obs.Finish(rec, err)
		done <- outcome{rec, err}
	}()

	final, err := tea.NewProgram(model).Run()
	if m, ok := final.(ui.Model); err != nil || !ok || !m.Done {
		// The UI was closed early: stop the batch and wait for the record.
		cancel()
	}
	out := <-done
	if err != nil {
		a.log.Warn().Err(err).Msg("progress UI failed")
	}
	return out.rec, out.err
}

// finish prints the summary and writes metrics.
func (a *app) finish(rec *batch.Record, recordPath string) error {
	logging.DisplayBatchSummary(os.Stdout, rec, recordPath)
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.log.Warn().Err(err).Str("path", a.cfg.Metrics.Textfile).Msg("failed to write metrics")
	}
	if rec.FailedCount > 0 {
		return fmt.Errorf("%w: %d of %d", errBatchFailures, rec.FailedCount, rec.TotalFiles)
	}
	return nil
}

// singleTarget is the default output path for one clip: next to the
// source, with a _humanized suffix and the output extension.
func singleTarget(source string, policy processor.OutputPolicy) string {
	dir, base := filepath.Split(source)
	name := policy.OutputName(base)
	ext := filepath.Ext(name)
	return filepath.Join(dir, name[:len(name)-len(ext)]+"_humanized"+ext)
}
