package batch

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linuxmatters/livetake/internal/humanize"
)

// Record is the outcome of one batch. Results are appended under a mutex as
// workers finish; nothing in Record assumes completion order.
type Record struct {
	mu sync.Mutex

	ID           string    `json:"batch_id"`
	Name         string    `json:"name"`
	SourceFolder string    `json:"source_folder"`
	TargetFolder string    `json:"target_folder"`
	Profile      string    `json:"profile"`
	Seed         uint64    `json:"seed,omitempty"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`

	TotalFiles   int     `json:"total_files"`
	SuccessCount int     `json:"success_count"`
	FailedCount  int     `json:"failed_count"`
	SkippedCount int     `json:"skipped_count"`
	SuccessRate  float64 `json:"success_rate"`

	PerFile []humanize.RenderResult `json:"per_file"`
}

// NewRecord starts a record for b.
func NewRecord(b *Batch) *Record {
	return &Record{
		ID:           uuid.NewString(),
		Name:         b.Name,
		SourceFolder: b.SourceFolder,
		TargetFolder: b.TargetFolder,
		Profile:      b.Profile.Name,
		StartTime:    time.Now(),
		TotalFiles:   len(b.Tasks),
		PerFile:      make([]humanize.RenderResult, 0, len(b.Tasks)),
	}
}

// Add appends one result and updates the counters.
func (r *Record) Add(result humanize.RenderResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.PerFile = append(r.PerFile, result)
	if result.Success {
		r.SuccessCount++
		if result.Skipped {
			r.SkippedCount++
		}
	} else {
		r.FailedCount++
	}
}

// Finalize sets the end time and success rate and orders per-file results by
// source path for stable output.
func (r *Record) Finalize(end time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.EndTime = end
	r.SuccessRate = successRate(r.SuccessCount, r.TotalFiles)
	sort.SliceStable(r.PerFile, func(i, j int) bool {
		return r.PerFile[i].Task.SourcePath < r.PerFile[j].Task.SourcePath
	})
}

// Complete reports whether every task has a result and the counters agree.
func (r *Record) Complete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.PerFile) == r.TotalFiles && r.SuccessCount+r.FailedCount == r.TotalFiles
}

// Progress is a point-in-time view of the counters.
type Progress struct {
	Total, Done, Succeeded, Failed, Skipped int
}

// Snapshot returns the current counters.
func (r *Record) Snapshot() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Progress{
		Total:     r.TotalFiles,
		Done:      len(r.PerFile),
		Succeeded: r.SuccessCount,
		Failed:    r.FailedCount,
		Skipped:   r.SkippedCount,
	}
}

// Failures returns the failed results.
func (r *Record) Failures() []humanize.RenderResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []humanize.RenderResult
	for _, res := range r.PerFile {
		if !res.Success {
			out = append(out, res)
		}
	}
	return out
}

// ErrorCounts tallies failures by kind.
func (r *Record) ErrorCounts() map[humanize.ErrorKind]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[humanize.ErrorKind]int)
	for _, res := range r.PerFile {
		if !res.Success {
			counts[res.ErrorKind]++
		}
	}
	return counts
}

// WarningCount counts results carrying the given warning.
func (r *Record) WarningCount(kind humanize.ErrorKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, res := range r.PerFile {
		if res.HasWarning(kind) {
			n++
		}
	}
	return n
}

// Elapsed is the wall-clock batch duration.
func (r *Record) Elapsed() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// successRate returns a percentage, 0 for an empty batch.
func successRate(success, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(success) / float64(total) * 100
}
