package ambience

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxmatters/livetake/internal/audio"
)

// fakeProber returns durations by file base name; unknown names fail.
type fakeProber map[string]float64

func (f fakeProber) Probe(_ context.Context, path string) (*audio.Metadata, error) {
	d, ok := f[filepath.Base(path)]
	if !ok {
		return nil, errors.New("invalid data found when processing input")
	}
	return &audio.Metadata{Duration: d}, nil
}

// firstChooser always picks index 0.
type firstChooser struct{}

func (firstChooser) IntN(int) int { return 0 }

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "background", "cafe.wav"))
	touch(t, filepath.Join(dir, "Backgrounds", "rain.mp3"))
	touch(t, filepath.Join(dir, "sfx", "door.wav"))
	touch(t, filepath.Join(dir, "events", "broken.wav"))
	touch(t, filepath.Join(dir, "events", "notes.txt"))
	touch(t, filepath.Join(dir, "misc", "stray.wav"))

	prober := fakeProber{"cafe.wav": 60, "rain.mp3": 25, "door.wav": 1.2, "stray.wav": 3}
	lib, err := Load(context.Background(), dir, prober, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 2, lib.Len(Background))
	assert.Equal(t, 1, lib.Len(Event))

	bgs := lib.Assets(Background)
	assert.Equal(t, "background/cafe", bgs[0].Name)
	assert.Equal(t, "background/rain", bgs[1].Name)
	assert.InDelta(t, 25.0, bgs[1].Duration, 1e-9)

	events := lib.Assets(Event)
	assert.Equal(t, "event/door", events[0].Name)
	assert.Equal(t, Event, events[0].Category)
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope"), fakeProber{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrLibraryMissing)
}

func TestLoadNotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.wav")
	touch(t, file)
	_, err := Load(context.Background(), file, fakeProber{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrLibraryMissing)
}

func TestLoadNothingProbed(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "background", "a.wav"))
	touch(t, filepath.Join(dir, "event", "b.wav"))

	_, err := Load(context.Background(), dir, fakeProber{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNoAssets)
}

func TestLoadEmptyDirectory(t *testing.T) {
	lib, err := Load(context.Background(), t.TempDir(), fakeProber{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Zero(t, lib.Len(Background))
	assert.Zero(t, lib.Len(Event))
}

func TestPick(t *testing.T) {
	lib := NewLibrary(
		Asset{Name: "event/b", Category: Event, Duration: 1},
		Asset{Name: "event/a", Category: Event, Duration: 1},
	)

	a, ok := lib.Pick(firstChooser{}, Event)
	require.True(t, ok)
	assert.Equal(t, "event/a", a.Name)

	b, ok := lib.Pick(firstChooser{}, Event, "event/a")
	require.True(t, ok)
	assert.Equal(t, "event/b", b.Name)

	fallback, ok := lib.Pick(firstChooser{}, Event, "event/a", "event/b")
	require.True(t, ok, "exhausted exclusions fall back to the full pool")
	assert.Equal(t, "event/a", fallback.Name)

	_, ok = lib.Pick(firstChooser{}, Background)
	assert.False(t, ok)

	var nilLib *Library
	_, ok = nilLib.Pick(firstChooser{}, Event)
	assert.False(t, ok)
	assert.Zero(t, nilLib.Len(Event))
}

func TestAssetsReturnsCopy(t *testing.T) {
	lib := NewLibrary(Asset{Name: "background/x", Category: Background, Duration: 5})
	assets := lib.Assets(Background)
	assets[0].Name = "changed"
	assert.Equal(t, "background/x", lib.Assets(Background)[0].Name)
}
