package logging

import (
	"strings"
	"testing"

	"github.com/linuxmatters/livetake/internal/batch"
	"github.com/linuxmatters/livetake/internal/humanize"
)

func TestWrapText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWidth int
		indent   string
		want     string
	}{
		{"short_text_no_wrap", "Hello world", 20, "  ", "Hello world"},
		{"long_text_wraps", "Raise the timeout or lower the worker count", 25, "  ", "Raise the timeout or\n  lower the worker count"},
		{"single_long_word", "supercalifragilisticexpialidocious", 10, "  ", "supercalifragilisticexpialidocious"},
		{"empty_input", "", 20, "  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wrapText(tt.text, tt.maxWidth, tt.indent); got != tt.want {
				t.Errorf("wrapText() = %q, want %q", got, tt.want)
			}
		})
	}
}

// recordWith builds a finalized record from results.
func recordWith(results ...humanize.RenderResult) *batch.Record {
	rec := &batch.Record{Name: "episode", Profile: "chatting", TotalFiles: len(results)}
	for _, r := range results {
		rec.Add(r)
	}
	rec.SuccessRate = float64(rec.SuccessCount) / float64(rec.TotalFiles) * 100
	return rec
}

func ok(path string) humanize.RenderResult {
	return humanize.RenderResult{Task: humanize.ClipTask{SourcePath: path, RelPath: path}, Success: true, Attempts: 1}
}

func failed(path string, kind humanize.ErrorKind, diagnostic string) humanize.RenderResult {
	return humanize.RenderResult{Task: humanize.ClipTask{SourcePath: path, RelPath: path}, ErrorKind: kind, Diagnostic: diagnostic, Attempts: 1}
}

func hasRuleID(tips []BatchTip, ruleID string) bool {
	for _, tip := range tips {
		if tip.RuleID == ruleID {
			return true
		}
	}
	return false
}

func TestGenerateBatchTips(t *testing.T) {
	t.Run("clean_batch", func(t *testing.T) {
		if tips := GenerateBatchTips(recordWith(ok("a.wav"), ok("b.wav"))); len(tips) != 0 {
			t.Errorf("expected no tips, got %+v", tips)
		}
	})

	t.Run("nil_record", func(t *testing.T) {
		if tips := GenerateBatchTips(nil); tips != nil {
			t.Errorf("expected nil, got %+v", tips)
		}
	})

	t.Run("timeout_and_missing", func(t *testing.T) {
		rec := recordWith(
			failed("a.wav", humanize.ErrTimeout, "timed out"),
			failed("b.wav", humanize.ErrMissingInput, "source file not found"),
			ok("c.wav"),
		)
		tips := GenerateBatchTips(rec)
		for _, id := range []string{"engine_timeout", "missing_input", "rerun_failed"} {
			if !hasRuleID(tips, id) {
				t.Errorf("expected %s tip, got %+v", id, tips)
			}
		}
		if tips[0].RuleID != "missing_input" {
			t.Errorf("highest priority tip = %s, want missing_input", tips[0].RuleID)
		}
	})

	t.Run("rubberband_separated_from_engine_errors", func(t *testing.T) {
		rec := recordWith(
			failed("a.wav", humanize.ErrEngine, "No such filter: 'rubberband'"),
			ok("b.wav"), ok("c.wav"), ok("d.wav"), ok("e.wav"),
			ok("f.wav"), ok("g.wav"), ok("h.wav"), ok("i.wav"), ok("j.wav"), ok("k.wav"),
		)
		tips := GenerateBatchTips(rec)
		if !hasRuleID(tips, "rubberband_missing") {
			t.Errorf("expected rubberband tip, got %+v", tips)
		}
		if hasRuleID(tips, "engine_error") {
			t.Error("generic engine tip should not fire for rubberband failures only")
		}
		if hasRuleID(tips, "rerun_failed") {
			t.Error("rerun tip should not fire above the success threshold")
		}
	})

	t.Run("canceled_suppresses_rerun", func(t *testing.T) {
		rec := recordWith(failed("a.wav", humanize.ErrCanceled, "context canceled"), failed("b.wav", humanize.ErrCanceled, ""))
		tips := GenerateBatchTips(rec)
		if !hasRuleID(tips, "batch_canceled") || hasRuleID(tips, "rerun_failed") {
			t.Errorf("unexpected tips %+v", tips)
		}
		if !strings.Contains(tips[0].Message, "2 clips") {
			t.Errorf("message should count clips: %q", tips[0].Message)
		}
	})

	t.Run("probe_warning_on_success", func(t *testing.T) {
		r := ok("a.wav")
		r.Warnings = []humanize.ErrorKind{humanize.ErrProbeFailed}
		if !hasRuleID(GenerateBatchTips(recordWith(r)), "probe_failed") {
			t.Error("expected probe_failed tip")
		}
	})

	t.Run("capped", func(t *testing.T) {
		rec := recordWith(
			failed("a.wav", humanize.ErrCanceled, ""),
			failed("b.wav", humanize.ErrMissingInput, ""),
			failed("c.wav", humanize.ErrTimeout, ""),
			failed("d.wav", humanize.ErrEngine, "rubberband"),
			failed("e.wav", humanize.ErrEngine, "Invalid data"),
			failed("f.wav", humanize.ErrUndersizedOutput, ""),
		)
		if tips := GenerateBatchTips(rec); len(tips) != MaxBatchTips {
			t.Errorf("got %d tips, want %d", len(tips), MaxBatchTips)
		}
	})
}
