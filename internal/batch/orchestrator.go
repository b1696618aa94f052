package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/linuxmatters/livetake/internal/ambience"
	"github.com/linuxmatters/livetake/internal/audio"
	"github.com/linuxmatters/livetake/internal/humanize"
	"github.com/linuxmatters/livetake/internal/metrics"
	"github.com/linuxmatters/livetake/internal/processor"
)

// Prober reads a clip's duration.
type Prober interface {
	Probe(ctx context.Context, path string) (*audio.Metadata, error)
}

// Renderer runs one pipeline. *processor.Engine satisfies it.
type Renderer interface {
	Render(ctx context.Context, spec *processor.PipelineSpec, timeout time.Duration) humanize.RenderResult
}

// Persister stores a finalized record.
type Persister interface {
	Persist(rec *Record) error
}

// Observer is told about task progress. Calls come from worker goroutines.
type Observer interface {
	TaskStarted(index int, task humanize.ClipTask)
	TaskFinished(index int, result humanize.RenderResult)
}

type nopObserver struct{}

func (nopObserver) TaskStarted(int, humanize.ClipTask)      {}
func (nopObserver) TaskFinished(int, humanize.RenderResult) {}

// Options configure an Orchestrator.
type Options struct {
	Workers      int
	Timeout      time.Duration
	Retry        RetryPolicy
	SkipExisting bool
	// MinOutputBytes decides whether an existing target counts as done.
	MinOutputBytes int64

	// Seed, when FixedSeed is set, makes every task reproducible. Each task
	// derives its own seed from Seed and its relative path, unless ExactSeed
	// is set, which hands Seed to every task unchanged (used to regenerate a
	// single clip from the seed in its record).
	Seed      uint64
	FixedSeed bool
	ExactSeed bool

	Randomizer humanize.Options
	Build      processor.BuildOptions

	// FailureLogDir receives one text file per failed task, when set.
	FailureLogDir string
}

// Orchestrator fans ClipTasks out over a bounded worker pool.
type Orchestrator struct {
	opts      Options
	library   *ambience.Library
	prober    Prober
	renderer  Renderer
	persister Persister
	observer  Observer
	metrics   *metrics.Collector
	log       zerolog.Logger
}

// New returns an Orchestrator. library may be nil when no ambience is used.
func New(opts Options, library *ambience.Library, prober Prober, renderer Renderer, log zerolog.Logger) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.MinOutputBytes <= 0 {
		opts.MinOutputBytes = processor.DefaultMinOutputBytes
	}
	return &Orchestrator{
		opts:     opts,
		library:  library,
		prober:   prober,
		renderer: renderer,
		observer: nopObserver{},
		log:      log,
	}
}

// WithPersister sets where finalized records are stored.
func (o *Orchestrator) WithPersister(p Persister) *Orchestrator {
	o.persister = p
	return o
}

// WithObserver sets the progress observer.
func (o *Orchestrator) WithObserver(obs Observer) *Orchestrator {
	if obs == nil {
		obs = nopObserver{}
	}
	o.observer = obs
	return o
}

// WithMetrics sets the metrics collector.
func (o *Orchestrator) WithMetrics(m *metrics.Collector) *Orchestrator {
	o.metrics = m
	return o
}

// Workers returns the effective pool size.
func (o *Orchestrator) Workers() int {
	return o.opts.Workers
}

// RunBatch discovers sourceFolder and runs every clip in it with profile.
func (o *Orchestrator) RunBatch(ctx context.Context, sourceFolder string, profile humanize.ScenarioProfile, layout Layout) (*Record, error) {
	b, err := Discover(sourceFolder, profile, layout)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, b)
}

// Run processes every task of b and returns the finalized record. A single
// task's failure never stops the batch; only a persistence failure is
// returned as an error, alongside the complete record.
func (o *Orchestrator) Run(ctx context.Context, b *Batch) (*Record, error) {
	rec := NewRecord(b)
	rec.Seed = o.opts.Seed
	log := o.log.With().Str("batch_id", rec.ID).Str("batch", b.Name).Str("profile", b.Profile.Name).Logger()
	log.Info().Int("files", len(b.Tasks)).Int("workers", o.opts.Workers).Str("target", b.TargetFolder).Msg("batch started")

	var g errgroup.Group
	g.SetLimit(o.opts.Workers)
	for i, task := range b.Tasks {
		g.Go(func() error {
			o.observer.TaskStarted(i, task)
			res := o.process(ctx, task, rec.ID, log)
			rec.Add(res)
			o.metrics.ObserveResult(b.Profile.Name, res)
			o.observer.TaskFinished(i, res)
			return nil
		})
	}
	_ = g.Wait()

	rec.Finalize(time.Now())
	o.metrics.ObserveBatch(b.Name, rec.TotalFiles, rec.SuccessCount, rec.FailedCount, rec.Elapsed())
	log.Info().
		Int("total", rec.TotalFiles).
		Int("succeeded", rec.SuccessCount).
		Int("failed", rec.FailedCount).
		Float64("success_rate", rec.SuccessRate).
		Dur("elapsed", rec.Elapsed()).
		Msg("batch finished")

	if o.persister != nil {
		if err := o.persister.Persist(rec); err != nil {
			return rec, fmt.Errorf("failed to persist batch record: %w", err)
		}
	}
	return rec, nil
}

// taskSeed returns a reproducible seed per task when a batch seed is set.
func (o *Orchestrator) taskSeed(task humanize.ClipTask) uint64 {
	switch {
	case o.opts.FixedSeed && o.opts.ExactSeed:
		return o.opts.Seed
	case o.opts.FixedSeed:
		return humanize.DeriveSeed(o.opts.Seed, task.RelPath)
	}
	return humanize.NewSeed()
}

// prepare probes the clip and draws its parameters. A failed probe is a
// warning: the clip is still rendered, without ambience layers.
func (o *Orchestrator) prepare(ctx context.Context, task humanize.ClipTask, seed uint64, log zerolog.Logger) (humanize.ParameterSet, []humanize.ErrorKind) {
	var warnings []humanize.ErrorKind
	duration := 0.0
	if o.prober != nil {
		meta, err := o.prober.Probe(ctx, task.SourcePath)
		if err != nil {
			log.Warn().Err(err).Msg("duration probe failed, ambience layers skipped")
			warnings = append(warnings, humanize.ErrProbeFailed)
		} else {
			duration = meta.Duration
		}
	}
	params := humanize.NewRandomizer(seed, o.library, o.opts.Randomizer).Generate(task.Profile, duration)
	return params, warnings
}

// process runs one task to completion and always returns a result.
func (o *Orchestrator) process(ctx context.Context, task humanize.ClipTask, batchID string, batchLog zerolog.Logger) humanize.RenderResult {
	start := time.Now()
	log := batchLog.With().Str("source", task.RelPath).Logger()
	result := humanize.RenderResult{Task: task}
	finish := func(r humanize.RenderResult) humanize.RenderResult {
		r.DurationMS = time.Since(start).Milliseconds()
		if !r.Success {
			log.Warn().Str("error_kind", string(r.ErrorKind)).Str("diagnostic", r.Diagnostic).Int("attempts", r.Attempts).Msg("clip failed")
			o.writeFailureLog(batchID, r)
		} else {
			log.Debug().Int64("bytes", r.OutputSizeBytes).Bool("skipped", r.Skipped).Msg("clip done")
		}
		return r
	}

	if err := ctx.Err(); err != nil {
		result.ErrorKind = humanize.ErrCanceled
		result.Diagnostic = err.Error()
		return finish(result)
	}

	if _, err := os.Stat(task.SourcePath); err != nil {
		result.ErrorKind = humanize.ErrMissingInput
		result.Diagnostic = "source file not found"
		if !errors.Is(err, fs.ErrNotExist) {
			result.Diagnostic = err.Error()
		}
		return finish(result)
	}

	if o.opts.SkipExisting {
		if info, err := os.Stat(task.TargetPath); err == nil && info.Size() >= o.opts.MinOutputBytes {
			result.Success = true
			result.Skipped = true
			result.OutputSizeBytes = info.Size()
			return finish(result)
		}
	}

	seed := o.taskSeed(task)
	params, warnings := o.prepare(ctx, task, seed, log)

	spec, err := processor.Build(task, params, o.opts.Build)
	if err != nil {
		result.ErrorKind = humanize.ErrEngine
		result.Diagnostic = err.Error()
		result.Seed = seed
		result.Warnings = warnings
		return finish(result)
	}

	for attempt := 1; ; attempt++ {
		result = o.renderer.Render(ctx, spec, o.opts.Timeout)
		result.Attempts = attempt
		if result.Success || !result.ErrorKind.Retryable() || attempt > o.opts.Retry.MaxRetries {
			break
		}
		wait := o.opts.Retry.backoff(attempt)
		log.Info().Str("error_kind", string(result.ErrorKind)).Int("attempt", attempt).Dur("backoff", wait).Msg("retrying clip")
		if !sleep(ctx, wait) {
			break
		}
	}

	result.Task = task
	result.Seed = seed
	result.Warnings = append(warnings, result.Warnings...)
	result.Params = &params
	return finish(result)
}

// Planned is one task's pipeline, built but not rendered.
type Planned struct {
	Task     humanize.ClipTask
	Seed     uint64
	Params   humanize.ParameterSet
	Spec     *processor.PipelineSpec
	Warnings []humanize.ErrorKind
	Err      error
}

// Plan probes, randomizes and builds every task without running the engine.
func (o *Orchestrator) Plan(ctx context.Context, b *Batch) []Planned {
	out := make([]Planned, len(b.Tasks))
	var g errgroup.Group
	g.SetLimit(o.opts.Workers)
	for i, task := range b.Tasks {
		g.Go(func() error {
			p := Planned{Task: task, Seed: o.taskSeed(task)}
			p.Params, p.Warnings = o.prepare(ctx, task, p.Seed, o.log.With().Str("source", task.RelPath).Logger())
			p.Spec, p.Err = processor.Build(task, p.Params, o.opts.Build)
			out[i] = p
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// writeFailureLog records a failed task for later regeneration.
func (o *Orchestrator) writeFailureLog(batchID string, r humanize.RenderResult) {
	if o.opts.FailureLogDir == "" {
		return
	}
	path := filepath.Join(o.opts.FailureLogDir, batchID, filepath.FromSlash(r.Task.RelPath)+".log")
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		o.log.Warn().Err(err).Msg("failed to create failure log directory")
		return
	}

	content := fmt.Sprintf("file: %s\ntarget: %s\nerror_kind: %s\nattempts: %d\nseed: %d\n",
		r.Task.SourcePath, r.Task.TargetPath, r.ErrorKind, r.Attempts, r.Seed)
	if r.Params != nil {
		if spec, err := processor.Build(r.Task, *r.Params, o.opts.Build); err == nil {
			content += "command: " + spec.CommandLine(engineBinary(o.renderer)) + "\n"
		}
	}
	content += "\n" + r.Diagnostic + "\n"

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		o.log.Warn().Err(err).Str("path", path).Msg("failed to write failure log")
	}
}

func engineBinary(r Renderer) string {
	if e, ok := r.(*processor.Engine); ok {
		return e.Binary
	}
	return "ffmpeg"
}
