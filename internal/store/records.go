// Package store persists batch records: a JSON file per batch for reporting
// tools, and a SQLite catalogue for listing and comparing batches.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/linuxmatters/livetake/internal/batch"
)

const (
	dirPermissions  = 0o750
	filePermissions = 0o600
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// RecordFileName returns batch_records_<folder>_<YYYYmmdd_HHMMSS>.json.
func RecordFileName(rec *batch.Record) string {
	name := strings.Trim(unsafeChars.ReplaceAllString(rec.Name, "_"), "_")
	if name == "" {
		name = "batch"
	}
	return fmt.Sprintf("batch_records_%s_%s.json", name, rec.StartTime.Format("20060102_150405"))
}

// WriteRecordFile writes rec into dir as a JSON object keyed by the source
// folder name and returns the file path.
func WriteRecordFile(dir string, rec *batch.Record) (string, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return "", fmt.Errorf("failed to create records directory: %w", err)
	}
	data, err := json.MarshalIndent(map[string]*batch.Record{rec.Name: rec}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode batch record: %w", err)
	}

	path := filepath.Join(dir, RecordFileName(rec))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, filePermissions); err != nil {
		return "", fmt.Errorf("failed to write batch record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to move batch record into place: %w", err)
	}
	return path, nil
}

// ReadRecordFile loads a file written by WriteRecordFile.
func ReadRecordFile(path string) (map[string]*batch.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch record: %w", err)
	}
	var records map[string]*batch.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode batch record %s: %w", filepath.Base(path), err)
	}
	return records, nil
}

// ReportFunc writes a human-readable report next to the JSON record.
type ReportFunc func(path string, rec *batch.Record) error

// Recorder persists a finished batch everywhere it is configured to.
// It implements batch.Persister.
type Recorder struct {
	Dir     string
	Catalog *Catalog   // optional
	Report  ReportFunc // optional
	Log     zerolog.Logger

	// LastPath is the JSON file written by the most recent Persist.
	LastPath string
}

// Persist writes the JSON record, then the report and catalogue row. The JSON
// file is the record of truth; report and catalogue failures are logged.
func (r *Recorder) Persist(rec *batch.Record) error {
	path, err := WriteRecordFile(r.Dir, rec)
	if err != nil {
		return err
	}
	r.LastPath = path
	r.Log.Info().Str("path", path).Msg("batch record written")

	if r.Report != nil {
		reportPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".log"
		if err := r.Report(reportPath, rec); err != nil {
			r.Log.Warn().Err(err).Str("path", reportPath).Msg("failed to write batch report")
		}
	}
	if r.Catalog != nil {
		if err := r.Catalog.Save(rec, path); err != nil {
			r.Log.Warn().Err(err).Msg("failed to catalogue batch")
		}
	}
	return nil
}
