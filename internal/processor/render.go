package processor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/linuxmatters/livetake/internal/humanize"
)

// Render defaults
const (
	DefaultMinOutputBytes = 1024
	DefaultRenderTimeout  = 600 * time.Second

	// diagnosticLimit caps how much of the engine's stderr is kept.
	diagnosticLimit = 4096

	// waitDelay bounds how long Wait blocks on stderr after the process is killed.
	waitDelay = 5 * time.Second

	dirPermissions = 0o750
)

// Engine runs the external ffmpeg binary. It never retries; retry policy
// belongs to the caller.
type Engine struct {
	Binary         string
	MinOutputBytes int64
	Log            zerolog.Logger
}

// NewEngine returns an Engine. An empty binary means "ffmpeg" from PATH.
func NewEngine(binary string, minOutputBytes int64, log zerolog.Logger) *Engine {
	if binary == "" {
		binary = "ffmpeg"
	}
	if minOutputBytes <= 0 {
		minOutputBytes = DefaultMinOutputBytes
	}
	return &Engine{Binary: binary, MinOutputBytes: minOutputBytes, Log: log}
}

// Args returns the full engine argument list writing to output.
func (p *PipelineSpec) Args(output string) []string {
	args := []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error"}
	for _, in := range p.Inputs {
		args = append(args, "-i", in)
	}
	args = append(args, "-filter_complex", p.FilterGraph, "-map", "["+OutputLabel+"]")
	for _, s := range p.Stages {
		args = append(args, s.Args...)
	}
	return append(args, output)
}

// CommandLine renders the invocation as a copy-pasteable shell command.
func (p *PipelineSpec) CommandLine(binary string) string {
	parts := []string{shellQuote(binary)}
	for _, a := range p.Args(p.Task.TargetPath) {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`;|&<>()[]*?!#~=") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// partialPath is the temporary sibling the engine writes to. It keeps the
// target extension so ffmpeg picks the same muxer.
func partialPath(target string) string {
	dir, base := filepath.Split(target)
	ext := filepath.Ext(base)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+".partial"+ext)
}

// Render runs one engine invocation for spec. Success requires exit status
// zero and an output file larger than MinOutputBytes. All failures are
// reported in the result, never as an error.
func (e *Engine) Render(ctx context.Context, spec *PipelineSpec, timeout time.Duration) humanize.RenderResult {
	start := time.Now()
	result := humanize.RenderResult{Task: spec.Task, Attempts: 1}
	fail := func(kind humanize.ErrorKind, diagnostic string) humanize.RenderResult {
		result.Success = false
		result.ErrorKind = kind
		result.Diagnostic = diagnostic
		result.DurationMS = time.Since(start).Milliseconds()
		return result
	}

	if _, err := os.Stat(spec.Task.SourcePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fail(humanize.ErrMissingInput, "source file not found")
		}
		return fail(humanize.ErrMissingInput, err.Error())
	}
	if err := os.MkdirAll(filepath.Dir(spec.Task.TargetPath), dirPermissions); err != nil {
		return fail(humanize.ErrEngine, fmt.Sprintf("failed to create output directory: %v", err))
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tmp := partialPath(spec.Task.TargetPath)
	defer os.Remove(tmp) // no-op after a successful rename

	stderr := &tailBuffer{limit: diagnosticLimit}
	cmd := exec.CommandContext(runCtx, e.Binary, spec.Args(tmp)...)
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	e.Log.Debug().
		Str("source", spec.Task.SourcePath).
		Strs("stages", stageNames(spec.Stages)).
		Msg("engine start")

	runErr := cmd.Run()
	switch {
	case runErr == nil:
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return fail(humanize.ErrTimeout, fmt.Sprintf("engine exceeded %s and was killed", timeout))
	case ctx.Err() != nil:
		return fail(humanize.ErrCanceled, ctx.Err().Error())
	default:
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = runErr.Error()
		}
		return fail(humanize.ErrEngine, diag)
	}

	info, err := os.Stat(tmp)
	if err != nil {
		return fail(humanize.ErrEngine, "engine exited cleanly but wrote no output")
	}
	if info.Size() < e.MinOutputBytes {
		result.OutputSizeBytes = info.Size()
		return fail(humanize.ErrUndersizedOutput,
			fmt.Sprintf("output is %d bytes, minimum is %d", info.Size(), e.MinOutputBytes))
	}
	if err := os.Rename(tmp, spec.Task.TargetPath); err != nil {
		return fail(humanize.ErrEngine, fmt.Sprintf("failed to move output into place: %v", err))
	}

	result.Success = true
	result.OutputSizeBytes = info.Size()
	result.DurationMS = time.Since(start).Milliseconds()
	return result
}

func stageNames(stages []Stage) []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = string(s.ID)
	}
	return names
}

// tailBuffer keeps only the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
