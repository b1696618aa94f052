package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/linuxmatters/livetake/internal/batch"
	"github.com/linuxmatters/livetake/internal/cli"
	"github.com/linuxmatters/livetake/internal/humanize"
	"github.com/linuxmatters/livetake/internal/logging"
	"github.com/linuxmatters/livetake/internal/store"
	"github.com/linuxmatters/livetake/internal/ui"
)

// SingleCmd humanizes one clip.
type SingleCmd struct {
	RunFlags
	Input  string `arg:"" name:"file" type:"existingfile" help:"Voice clip to humanize"`
	Output string `short:"o" type:"path" placeholder:"FILE" help:"Output file (default: <input>_humanized.m4a)"`
}

func (c *SingleCmd) Run(ctx context.Context, g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.close()

	profile, err := a.cfg.Profile(c.Profile)
	if err != nil {
		return err
	}
	if err := a.prepareEngine(ctx, c.NoAmbience); err != nil {
		return err
	}
	opts, err := a.batchOptions(c.RunFlags, false)
	if err != nil {
		return err
	}
	// A recorded per-clip seed regenerates that clip exactly.
	opts.ExactSeed = true
	opts.FailureLogDir = ""
	orch := a.newOrchestrator(opts)

	target := c.Output
	if target == "" {
		target = singleTarget(c.Input, a.cfg.OutputPolicy())
	}
	task := humanize.ClipTask{
		SourcePath: c.Input,
		TargetPath: target,
		RelPath:    filepath.Base(c.Input),
		Profile:    profile,
	}
	b := &batch.Batch{
		Name:         strings.TrimSuffix(task.RelPath, filepath.Ext(task.RelPath)),
		SourceFolder: filepath.Dir(c.Input),
		TargetFolder: filepath.Dir(target),
		Profile:      profile,
		Tasks:        []humanize.ClipTask{task},
	}

	if c.DryRun {
		logging.WritePlan(os.Stdout, orch.Plan(ctx, b), a.cfg.Engine.FFmpeg)
		return nil
	}

	rec, err := a.runSingle(ctx, orch, b)
	if err != nil {
		return err
	}
	result := rec.PerFile[0]
	logging.DisplayResult(os.Stdout, result)
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.log.Warn().Err(err).Msg("failed to write metrics")
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", errBatchFailures, result.ErrorKind)
	}
	cli.PrintSuccess(fmt.Sprintf("Humanized with %s, seed %d", profile.Name, result.Seed))
	return nil
}

// runSingle renders the one-clip batch behind a spinner when interactive.
func (a *app) runSingle(ctx context.Context, orch *batch.Orchestrator, b *batch.Batch) (*batch.Record, error) {
	if !a.interactive {
		return orch.Run(ctx, b)
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(ui.NewClipModel(b.Tasks[0], b.Profile.Name))
	type outcome struct {
		rec *batch.Record
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		rec, err := orch.Run(runCtx, b)
		if err == nil {
			p.Send(ui.ClipDoneMsg{Result: rec.PerFile[0]})
		} else {
			p.Quit()
		}
		done <- outcome{rec, err}
	}()
	final, err := p.Run()
	if m, ok := final.(ui.ClipModel); err != nil || !ok || !m.Done {
		cancel()
	}
	out := <-done
	return out.rec, out.err
}

// BatchCmd humanizes every clip in a folder.
type BatchCmd struct {
	BatchFlags
	Source string `arg:"" name:"folder" type:"existingdir" help:"Folder of voice clips"`
}

func (c *BatchCmd) Run(ctx context.Context, g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.close()

	profile, err := a.cfg.Profile(c.Profile)
	if err != nil {
		return err
	}
	b, err := batch.Discover(c.Source, profile, a.layout(c.BatchFlags))
	if err != nil {
		return err
	}
	b.Limit(c.Limit)
	return a.execute(ctx, c.BatchFlags, b)
}

// ClipsCmd humanizes an explicit list of clips as one batch.
type ClipsCmd struct {
	BatchFlags
	Name  string   `short:"n" default:"clips" help:"Batch name, used for the output folder and record"`
	Files []string `arg:"" name:"files" help:"Voice clips to humanize"`
}

func (c *ClipsCmd) Run(ctx context.Context, g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.close()

	profile, err := a.cfg.Profile(c.Profile)
	if err != nil {
		return err
	}
	b, err := batch.DiscoverFiles(c.Name, c.Files, profile, a.layout(c.BatchFlags))
	if err != nil {
		return err
	}
	b.Limit(c.Limit)
	return a.execute(ctx, c.BatchFlags, b)
}

// layout applies --output over the configured output root.
func (a *app) layout(f BatchFlags) batch.Layout {
	l := a.cfg.Layout()
	if f.Output != "" {
		l.OutputRoot = f.Output
	}
	return l
}

// execute plans or runs b and persists its record.
func (a *app) execute(ctx context.Context, f BatchFlags, b *batch.Batch) error {
	if err := a.prepareEngine(ctx, f.NoAmbience); err != nil {
		return err
	}
	orch, err := a.orchestrator(f.RunFlags, f.SkipExisting)
	if err != nil {
		return err
	}

	if f.DryRun {
		logging.WritePlan(os.Stdout, orch.Plan(ctx, b), a.cfg.Engine.FFmpeg)
		return nil
	}

	recorder := a.recorder()
	orch.WithPersister(recorder)
	rec, err := a.runBatch(ctx, orch, b)
	if rec == nil {
		return err
	}
	if err != nil {
		a.log.Error().Err(err).Msg("batch record not saved")
	}
	return a.finish(rec, recorder.LastPath)
}

// CompareCmd runs each folder under each profile and compares the results.
type CompareCmd struct {
	BatchFlags
	Profiles []string `name:"profiles" sep:"," required:"" help:"Profiles to compare, comma separated"`
	Sources  []string `arg:"" name:"folders" type:"existingdir" help:"Folders of voice clips"`
}

func (c *CompareCmd) Run(ctx context.Context, g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.prepareEngine(ctx, c.NoAmbience); err != nil {
		return err
	}
	recorder := a.recorder()

	var records []*batch.Record
sources:
	for _, source := range c.Sources {
		for _, name := range c.Profiles {
			profile, err := a.cfg.Profile(name)
			if err != nil {
				return err
			}
			layout := a.layout(c.BatchFlags)
			// Keep each profile's output apart.
			layout.FolderPrefix = layout.FolderPrefix + profile.Name + "_"
			b, err := batch.Discover(source, profile, layout)
			if err != nil {
				return err
			}
			b.Limit(c.Limit)

			orch, err := a.orchestrator(c.RunFlags, c.SkipExisting)
			if err != nil {
				return err
			}
			orch.WithPersister(recorder)
			rec, err := a.runBatch(ctx, orch, b)
			if rec == nil {
				return err
			}
			records = append(records, rec)
			if ctx.Err() != nil {
				break sources
			}
		}
	}

	logging.DisplayComparison(os.Stdout, records)
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.log.Warn().Err(err).Msg("failed to write metrics")
	}
	return comparisonOutcome(ctx, records)
}

// comparisonOutcome reports cancellation first, then failed clips across
// every compared batch.
func comparisonOutcome(ctx context.Context, records []*batch.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	failed, total := 0, 0
	for _, rec := range records {
		failed += rec.FailedCount
		total += rec.TotalFiles
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errBatchFailures, failed, total)
	}
	return nil
}

// RecordsCmd lists catalogued batches, or shows one.
type RecordsCmd struct {
	ID     string `arg:"" optional:"" name:"id" help:"Batch ID to show"`
	Limit  int    `default:"20" help:"Number of batches to list"`
	Failed bool   `help:"With an ID, print only the failed source paths"`
	File   string `type:"existingfile" placeholder:"FILE" help:"Read a batch_records JSON file instead of the catalogue"`
}

func (c *RecordsCmd) Run(g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.close()

	if c.File != "" {
		records, err := store.ReadRecordFile(c.File)
		if err != nil {
			return err
		}
		for _, rec := range records {
			logging.DisplayBatchSummary(os.Stdout, rec, c.File)
		}
		return nil
	}

	catalog, err := store.OpenCatalog(a.cfg.DatabasePath())
	if err != nil {
		return err
	}
	a.closers = append(a.closers, catalog.Close)

	if c.ID == "" {
		rows, err := catalog.List(c.Limit)
		if err != nil {
			return err
		}
		logging.DisplayBatchList(os.Stdout, rows)
		return nil
	}

	if c.Failed {
		files, err := catalog.Failed(c.ID)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Println(f.SourcePath)
		}
		return nil
	}

	row, err := catalog.Get(c.ID)
	if err != nil {
		return err
	}
	logging.DisplayBatchDetail(os.Stdout, row)
	return nil
}

// ProfilesCmd lists the scenario profiles or exports them as config.
type ProfilesCmd struct {
	Export string `enum:",toml,yaml" default:"" placeholder:"FORMAT" help:"Print profiles as toml or yaml config"`
}

func (c *ProfilesCmd) Run(g *Globals) error {
	a, err := newApp(g)
	if err != nil {
		return err
	}
	defer a.close()

	doc := struct {
		Profiles []humanize.ScenarioProfile `toml:"profiles" yaml:"profiles"`
	}{a.cfg.Profiles}

	switch c.Export {
	case "toml":
		out, err := toml.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to encode profiles: %w", err)
		}
		os.Stdout.Write(out)
	case "yaml":
		out, err := yaml.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to encode profiles: %w", err)
		}
		os.Stdout.Write(out)
	default:
		fmt.Println(cli.TitleStyle.Render("Scenario profiles"))
		logging.DisplayProfiles(os.Stdout, a.cfg.Profiles)
	}
	return nil
}
