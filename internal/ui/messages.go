package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/livetake/internal/batch"
	"github.com/linuxmatters/livetake/internal/humanize"
)

// FileStartMsg indicates a worker picked up a clip.
type FileStartMsg struct {
	Index int
}

// FileCompleteMsg indicates a clip finished, successfully or not.
type FileCompleteMsg struct {
	Index  int
	Result humanize.RenderResult
}

// AllCompleteMsg indicates the batch finished and carries its record.
type AllCompleteMsg struct {
	Record *batch.Record
	Err    error
}

// Observer forwards orchestrator progress into a Model's channel. It
// implements batch.Observer. Sends give up once ctx is done so workers never
// block on a UI that has exited.
type Observer struct {
	ctx context.Context
	ch  chan<- tea.Msg
}

// NewObserver returns an Observer feeding ch.
func NewObserver(ctx context.Context, ch chan<- tea.Msg) *Observer {
	return &Observer{ctx: ctx, ch: ch}
}

func (o *Observer) send(msg tea.Msg) {
	select {
	case o.ch <- msg:
	case <-o.ctx.Done():
	}
}

// TaskStarted implements batch.Observer.
func (o *Observer) TaskStarted(index int, _ humanize.ClipTask) {
	o.send(FileStartMsg{Index: index})
}

// TaskFinished implements batch.Observer.
func (o *Observer) TaskFinished(index int, result humanize.RenderResult) {
	o.send(FileCompleteMsg{Index: index, Result: result})
}

// Finish reports the end of the batch.
func (o *Observer) Finish(rec *batch.Record, err error) {
	o.send(AllCompleteMsg{Record: rec, Err: err})
}
