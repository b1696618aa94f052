// Package batch discovers input clips, runs them through the humanization
// pipeline on a bounded worker pool and aggregates the outcomes.
package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/linuxmatters/livetake/internal/audio"
	"github.com/linuxmatters/livetake/internal/humanize"
	"github.com/linuxmatters/livetake/internal/processor"
)

var (
	// ErrSourceMissing means the source folder does not exist.
	ErrSourceMissing = errors.New("source folder not found")
	// ErrNoInputs means discovery found nothing to process.
	ErrNoInputs = errors.New("no audio files found")
)

// Layout decides where a batch writes its output.
type Layout struct {
	OutputRoot   string
	FolderPrefix string
	Output       processor.OutputPolicy
}

// TargetFolder returns the batch-specific output folder for a source folder.
func (l Layout) TargetFolder(sourceFolder string) string {
	return filepath.Join(l.OutputRoot, l.FolderPrefix+filepath.Base(filepath.Clean(sourceFolder)))
}

// Batch is a discovered, not yet processed set of tasks.
type Batch struct {
	Name         string
	SourceFolder string
	TargetFolder string
	Profile      humanize.ScenarioProfile
	Tasks        []humanize.ClipTask
}

// Discover lists every audio file under sourceFolder, in lexical order, and
// mirrors each into the batch output folder with the output extension.
// Sources that would share an output name get a _N suffix. Non-audio files
// are skipped silently, and a folder without audio returns ErrNoInputs. The output folder is excluded when it
// lives inside the source tree.
func Discover(sourceFolder string, profile humanize.ScenarioProfile, layout Layout) (*Batch, error) {
	info, err := os.Stat(sourceFolder)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, sourceFolder)
		}
		return nil, fmt.Errorf("failed to stat source folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrSourceMissing, sourceFolder)
	}

	source := filepath.Clean(sourceFolder)
	target := layout.TargetFolder(source)
	absTarget, _ := filepath.Abs(target)

	var rels []string
	err = filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if abs, _ := filepath.Abs(path); abs == absTarget && path != source {
				return filepath.SkipDir
			}
			return nil
		}
		if !audio.IsAudioFile(path) {
			return nil
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		rels = append(rels, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan source folder: %w", err)
	}
	if len(rels) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoInputs, source)
	}
	sort.Strings(rels)

	b := &Batch{
		Name:         filepath.Base(source),
		SourceFolder: source,
		TargetFolder: target,
		Profile:      profile,
		Tasks:        make([]humanize.ClipTask, 0, len(rels)),
	}
	used := make(map[string]bool, len(rels))
	for _, rel := range rels {
		// intro.wav and intro.mp3 would both become intro.m4a.
		out := layout.Output.OutputName(rel)
		stem, ext := strings.TrimSuffix(rel, filepath.Ext(rel)), filepath.Ext(rel)
		for n := 2; used[out]; n++ {
			out = layout.Output.OutputName(fmt.Sprintf("%s_%d%s", stem, n, ext))
		}
		used[out] = true

		b.Tasks = append(b.Tasks, humanize.ClipTask{
			SourcePath: filepath.Join(source, rel),
			TargetPath: filepath.Join(target, out),
			RelPath:    filepath.ToSlash(rel),
			Profile:    profile,
		})
	}
	return b, nil
}

// DiscoverFiles builds a batch from an explicit file list. Outputs go flat
// into the batch folder named name. Files are kept in the given order and
// duplicates are dropped; files that do not exist still become tasks so they
// are reported as missing rather than silently ignored.
func DiscoverFiles(name string, files []string, profile humanize.ScenarioProfile, layout Layout) (*Batch, error) {
	if len(files) == 0 {
		return nil, ErrNoInputs
	}
	target := filepath.Join(layout.OutputRoot, layout.FolderPrefix+name)
	b := &Batch{
		Name:         name,
		SourceFolder: commonDir(files),
		TargetFolder: target,
		Profile:      profile,
	}

	seen := make(map[string]bool)
	used := make(map[string]bool)
	for _, f := range files {
		clean := filepath.Clean(f)
		if seen[clean] {
			continue
		}
		seen[clean] = true

		// Two inputs with the same base name get distinct outputs.
		base := filepath.Base(clean)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		out := layout.Output.OutputName(base)
		for n := 2; used[out]; n++ {
			out = layout.Output.OutputName(fmt.Sprintf("%s_%d%s", stem, n, filepath.Ext(base)))
		}
		used[out] = true

		b.Tasks = append(b.Tasks, humanize.ClipTask{
			SourcePath: clean,
			TargetPath: filepath.Join(target, out),
			RelPath:    filepath.ToSlash(out),
			Profile:    profile,
		})
	}
	return b, nil
}

// commonDir returns the deepest directory shared by all paths.
func commonDir(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	dir := filepath.Dir(filepath.Clean(paths[0]))
	for _, p := range paths[1:] {
		for !isWithin(filepath.Dir(filepath.Clean(p)), dir) {
			parent := filepath.Dir(dir)
			if parent == dir {
				return dir
			}
			dir = parent
		}
	}
	return dir
}

func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !startsWithParent(rel))
}

func startsWithParent(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}

// Limit keeps only the first n tasks. n <= 0 keeps everything.
func (b *Batch) Limit(n int) {
	if n > 0 && n < len(b.Tasks) {
		b.Tasks = b.Tasks[:n]
	}
}
