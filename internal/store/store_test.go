package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxmatters/livetake/internal/batch"
	"github.com/linuxmatters/livetake/internal/humanize"
)

func testRecord(id, name string, start time.Time) *batch.Record {
	rec := &batch.Record{
		ID:           id,
		Name:         name,
		SourceFolder: "/audio/" + name,
		TargetFolder: "/audio/humanized_" + name,
		Profile:      "chatting",
		StartTime:    start,
		TotalFiles:   3,
	}
	rec.Add(humanize.RenderResult{
		Task:            humanize.ClipTask{SourcePath: "/audio/" + name + "/b.wav", TargetPath: "/audio/humanized_" + name + "/b.m4a", RelPath: "b.wav"},
		Success:         true,
		OutputSizeBytes: 4096,
		Attempts:        1,
		Seed:            18446744073709551615,
	})
	rec.Add(humanize.RenderResult{
		Task:       humanize.ClipTask{SourcePath: "/audio/" + name + "/a.wav", RelPath: "a.wav"},
		ErrorKind:  humanize.ErrTimeout,
		Diagnostic: "engine exceeded 10m0s and was killed",
		Attempts:   2,
	})
	rec.Add(humanize.RenderResult{
		Task:      humanize.ClipTask{SourcePath: "/audio/" + name + "/c.wav", RelPath: "c.wav"},
		ErrorKind: humanize.ErrMissingInput,
	})
	rec.Finalize(start.Add(90 * time.Second))
	return rec
}

func TestRecordFileName(t *testing.T) {
	start := time.Date(2026, 3, 1, 14, 5, 9, 0, time.UTC)
	assert.Equal(t, "batch_records_day_1_2026_20260301_140509.json", RecordFileName(testRecord("x", "day 1/2026", start)))
	assert.Equal(t, "batch_records_batch_20260301_140509.json", RecordFileName(testRecord("x", "///", start)))
}

func TestWriteReadRecordFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "records")
	rec := testRecord("b-1", "episode", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	path, err := WriteRecordFile(dir, rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "batch_records_episode_20260301_120000.json"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePermissions), info.Mode().Perm())

	records, err := ReadRecordFile(path)
	require.NoError(t, err)
	got, ok := records["episode"]
	require.True(t, ok, "record keyed by folder name")
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, 1, got.SuccessCount)
	assert.Equal(t, 2, got.FailedCount)
	require.Len(t, got.PerFile, 3)
	assert.Equal(t, "a.wav", got.PerFile[0].Task.RelPath)
	assert.Equal(t, humanize.ErrTimeout, got.PerFile[0].ErrorKind)
	assert.Equal(t, uint64(18446744073709551615), got.PerFile[1].Seed)
}

func TestReadRecordFileErrors(t *testing.T) {
	_, err := ReadRecordFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("[1,2"), 0o600))
	_, err = ReadRecordFile(bad)
	assert.Error(t, err)
}

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := OpenCatalog(filepath.Join(t.TempDir(), "db", "livetake.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })
	return cat
}

func TestCatalog(t *testing.T) {
	cat := openTestCatalog(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, cat.Save(testRecord("b-1", "monday", base), "/records/monday.json"))
	require.NoError(t, cat.Save(testRecord("b-2", "tuesday", base.Add(24*time.Hour)), "/records/tuesday.json"))

	rows, err := cat.List(0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b-2", rows[0].ID, "newest first")

	rows, err = cat.List(1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	row, err := cat.Get("b-1")
	require.NoError(t, err)
	assert.Equal(t, "monday", row.Name)
	assert.Equal(t, "/records/monday.json", row.RecordPath)
	assert.Equal(t, 90*time.Second, row.Elapsed())
	require.Len(t, row.Files, 3)
	assert.Equal(t, "/audio/monday/a.wav", row.Files[0].SourcePath)
	assert.Equal(t, "18446744073709551615", row.Files[1].Seed)

	failed, err := cat.Failed("b-1")
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, "timeout", failed[0].ErrorKind)
	assert.Equal(t, "missing_input", failed[1].ErrorKind)
}

func TestCatalogGetUnknown(t *testing.T) {
	_, err := openTestCatalog(t).Get("nope")
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestCatalogDuplicateID(t *testing.T) {
	cat := openTestCatalog(t)
	rec := testRecord("b-1", "monday", time.Now())
	require.NoError(t, cat.Save(rec, ""))
	assert.Error(t, cat.Save(rec, ""))
}

func TestRecorderPersist(t *testing.T) {
	dir := t.TempDir()
	cat := openTestCatalog(t)
	var reported string
	r := &Recorder{
		Dir:     dir,
		Catalog: cat,
		Report: func(path string, rec *batch.Record) error {
			reported = path
			return os.WriteFile(path, []byte("report for "+rec.Name), 0o600)
		},
		Log: zerolog.Nop(),
	}

	rec := testRecord("b-9", "friday", time.Date(2026, 3, 6, 9, 30, 0, 0, time.UTC))
	require.NoError(t, r.Persist(rec))

	assert.Equal(t, filepath.Join(dir, "batch_records_friday_20260306_093000.json"), r.LastPath)
	assert.Equal(t, strings.TrimSuffix(r.LastPath, ".json")+".log", reported)

	row, err := cat.Get("b-9")
	require.NoError(t, err)
	assert.Equal(t, r.LastPath, row.RecordPath)
}

func TestRecorderReportFailureIsNotFatal(t *testing.T) {
	r := &Recorder{
		Dir:    t.TempDir(),
		Report: func(string, *batch.Record) error { return errors.New("disk full") },
		Log:    zerolog.Nop(),
	}
	require.NoError(t, r.Persist(testRecord("b-1", "x", time.Now())))
	_, err := os.Stat(r.LastPath)
	assert.NoError(t, err)
}
