package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/livetake/internal/batch"
	"github.com/linuxmatters/livetake/internal/humanize"
)

func testBatch() *batch.Batch {
	return &batch.Batch{
		Name:    "episode",
		Profile: humanize.ScenarioProfile{Name: "gaming"},
		Tasks: []humanize.ClipTask{
			{RelPath: "a.wav"},
			{RelPath: "b.wav"},
			{RelPath: "c.wav"},
		},
	}
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return model
}

func TestModelProgress(t *testing.T) {
	m := NewModel(testBatch(), 2)

	m = update(t, m, FileStartMsg{Index: 0})
	m = update(t, m, FileStartMsg{Index: 1})
	if m.Active != 2 || m.Files[0].Status != StatusRendering {
		t.Fatalf("after start: active=%d status=%v", m.Active, m.Files[0].Status)
	}

	m = update(t, m, FileCompleteMsg{Index: 0, Result: humanize.RenderResult{Success: true, DurationMS: 1200}})
	m = update(t, m, FileCompleteMsg{Index: 1, Result: humanize.RenderResult{ErrorKind: humanize.ErrTimeout}})
	m = update(t, m, FileCompleteMsg{Index: 2, Result: humanize.RenderResult{Success: true, Skipped: true}})

	if m.Active != 0 {
		t.Errorf("Active = %d, want 0", m.Active)
	}
	if m.Completed != 1 || m.Failed != 1 || m.Skipped != 1 || m.Finished() != 3 {
		t.Errorf("counters completed=%d failed=%d skipped=%d", m.Completed, m.Failed, m.Skipped)
	}
	if m.Files[0].Elapsed != 1200*time.Millisecond {
		t.Errorf("Elapsed = %v", m.Files[0].Elapsed)
	}
	if m.Files[2].Status != StatusSkipped || m.Files[1].Status != StatusError {
		t.Errorf("unexpected statuses %v %v", m.Files[1].Status, m.Files[2].Status)
	}

	// Out-of-range indexes are ignored.
	m = update(t, m, FileStartMsg{Index: 7})
	if m.Active != 0 {
		t.Errorf("out-of-range start changed Active to %d", m.Active)
	}

	if !strings.Contains(m.View(), "episode") {
		t.Error("processing view should name the batch")
	}

	m = update(t, m, AllCompleteMsg{Record: &batch.Record{Name: "episode"}})
	if !m.Done || m.Record == nil {
		t.Error("AllCompleteMsg should finish the model")
	}
}

func TestObserverStopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan tea.Msg) // unbuffered, nobody reading
	obs := NewObserver(ctx, ch)
	cancel()

	done := make(chan struct{})
	go func() {
		obs.TaskStarted(0, humanize.ClipTask{})
		obs.Finish(nil, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("observer blocked after cancellation")
	}
}

func TestObserverForwards(t *testing.T) {
	ch := make(chan tea.Msg, 2)
	obs := NewObserver(context.Background(), ch)
	obs.TaskStarted(1, humanize.ClipTask{})
	obs.TaskFinished(1, humanize.RenderResult{Success: true})

	if msg, ok := (<-ch).(FileStartMsg); !ok || msg.Index != 1 {
		t.Errorf("first message = %#v", msg)
	}
	if msg, ok := (<-ch).(FileCompleteMsg); !ok || !msg.Result.Success {
		t.Errorf("second message = %#v", msg)
	}
}
