// Package ambience indexes the background and event sound assets that get
// mixed under humanized clips.
package ambience

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/linuxmatters/livetake/internal/audio"
)

// Category groups assets by how they are mixed.
type Category string

const (
	Background Category = "background"
	Event      Category = "event"
)

// Categories lists every category in display order.
var Categories = []Category{Background, Event}

// categoryDirs maps accepted subdirectory names to categories.
var categoryDirs = map[string]Category{
	"background":  Background,
	"backgrounds": Background,
	"bg":          Background,
	"event":       Event,
	"events":      Event,
	"sfx":         Event,
}

var (
	// ErrLibraryMissing means the assets directory does not exist.
	ErrLibraryMissing = errors.New("ambience directory not found")
	// ErrNoAssets means audio files were found but none could be probed.
	ErrNoAssets = errors.New("no ambience asset could be probed")
)

// probeConcurrency bounds parallel ffprobe calls during Load.
const probeConcurrency = 4

// Asset is one ambience sound file.
type Asset struct {
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Category Category `json:"category"`
	Duration float64  `json:"duration_seconds"`
}

// Prober reports audio metadata for a file.
type Prober interface {
	Probe(ctx context.Context, path string) (*audio.Metadata, error)
}

// Chooser supplies random indexes. *rand.Rand from math/rand/v2 satisfies it.
type Chooser interface {
	IntN(n int) int
}

// Library is the read-only asset index. It is safe to share between
// goroutines once loaded.
type Library struct {
	assets map[Category][]Asset
}

// NewLibrary builds a library from already-known assets.
func NewLibrary(assets ...Asset) *Library {
	lib := &Library{assets: make(map[Category][]Asset)}
	for _, a := range assets {
		lib.assets[a.Category] = append(lib.assets[a.Category], a)
	}
	for c := range lib.assets {
		sortAssets(lib.assets[c])
	}
	return lib
}

func sortAssets(assets []Asset) {
	sort.Slice(assets, func(i, j int) bool {
		if assets[i].Name != assets[j].Name {
			return assets[i].Name < assets[j].Name
		}
		return assets[i].Path < assets[j].Path
	})
}

// Load scans dir for category subdirectories and probes each audio file for
// its duration. A file that cannot be probed is logged and left out.
func Load(ctx context.Context, dir string, prober Prober, log zerolog.Logger) (*Library, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrLibraryMissing, dir)
		}
		return nil, fmt.Errorf("failed to stat ambience directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrLibraryMissing, dir)
	}

	type candidate struct {
		path     string
		category Category
	}
	var candidates []candidate

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !audio.IsAudioFile(path) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		top := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
		category, ok := categoryDirs[strings.ToLower(top)]
		if !ok {
			log.Debug().Str("file", rel).Msg("ambience file outside a category directory, ignored")
			return nil
		}
		candidates = append(candidates, candidate{path: path, category: category})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan ambience directory: %w", err)
	}

	var (
		mu     sync.Mutex
		assets []Asset
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeConcurrency)
	for _, c := range candidates {
		g.Go(func() error {
			meta, err := prober.Probe(gctx, c.path)
			if err != nil || meta.Duration <= 0 {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn().Err(err).Str("file", c.path).Msg("skipping ambience asset, duration unknown")
				return nil
			}
			name := strings.TrimSuffix(filepath.Base(c.path), filepath.Ext(c.path))
			mu.Lock()
			assets = append(assets, Asset{
				Name:     string(c.category) + "/" + name,
				Path:     c.path,
				Category: c.category,
				Duration: meta.Duration,
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ambience load interrupted: %w", err)
	}

	if len(candidates) > 0 && len(assets) == 0 {
		return nil, fmt.Errorf("%w (%d files in %s)", ErrNoAssets, len(candidates), dir)
	}

	lib := NewLibrary(assets...)
	log.Info().
		Str("dir", dir).
		Int("background", lib.Len(Background)).
		Int("event", lib.Len(Event)).
		Int("skipped", len(candidates)-len(assets)).
		Msg("ambience library loaded")
	return lib, nil
}

// Len returns the number of assets in a category.
func (l *Library) Len(category Category) int {
	if l == nil {
		return 0
	}
	return len(l.assets[category])
}

// Assets returns a copy of the assets in a category, sorted by name.
func (l *Library) Assets(category Category) []Asset {
	if l == nil {
		return nil
	}
	return append([]Asset(nil), l.assets[category]...)
}

// Pick returns one asset of the category, avoiding names in exclude when
// anything else is available. The boolean is false when the category is
// empty, which tells the caller to skip that layer.
func (l *Library) Pick(chooser Chooser, category Category, exclude ...string) (Asset, bool) {
	if l == nil {
		return Asset{}, false
	}
	pool := l.assets[category]
	if len(pool) == 0 {
		return Asset{}, false
	}

	if len(exclude) > 0 {
		skip := make(map[string]bool, len(exclude))
		for _, name := range exclude {
			skip[name] = true
		}
		var remaining []Asset
		for _, a := range pool {
			if !skip[a.Name] {
				remaining = append(remaining, a)
			}
		}
		if len(remaining) > 0 {
			pool = remaining
		}
	}

	return pool[chooser.IntN(len(pool))], true
}
