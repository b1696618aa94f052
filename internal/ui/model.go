// Package ui provides the Bubbletea terminal user interface for livetake.
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/livetake/internal/batch"
	"github.com/linuxmatters/livetake/internal/humanize"
)

// FileStatus represents the processing state of a single clip.
type FileStatus int

const (
	StatusQueued FileStatus = iota
	StatusRendering
	StatusComplete
	StatusSkipped
	StatusError
)

// FileProgress tracks one clip of the batch.
type FileProgress struct {
	Task      humanize.ClipTask
	Status    FileStatus
	StartTime time.Time
	Elapsed   time.Duration
	Result    humanize.RenderResult
}

// Model is the Bubbletea model for a batch run. Several clips render at
// once, so any number of files can be in StatusRendering.
type Model struct {
	Name    string
	Profile string
	Workers int
	Files   []FileProgress

	Active    int
	Completed int
	Skipped   int
	Failed    int

	StartTime time.Time
	Done      bool
	Record    *batch.Record
	Err       error

	// ProgressChan receives messages from the Observer.
	ProgressChan chan tea.Msg

	spinnerIndex int

	Width  int
	Height int
}

// NewModel creates a model for b.
func NewModel(b *batch.Batch, workers int) Model {
	files := make([]FileProgress, len(b.Tasks))
	for i, task := range b.Tasks {
		files[i] = FileProgress{Task: task, Status: StatusQueued}
	}
	return Model{
		Name:         b.Name,
		Profile:      b.Profile.Name,
		Workers:      workers,
		Files:        files,
		StartTime:    time.Now(),
		ProgressChan: make(chan tea.Msg, 100),
	}
}

// Init starts listening for progress and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForProgress(m.ProgressChan), tickCmd())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case tickMsg:
		if m.Done {
			return m, nil
		}
		m.spinnerIndex = (m.spinnerIndex + 1) % len(spinnerFrames)
		for i := range m.Files {
			if m.Files[i].Status == StatusRendering {
				m.Files[i].Elapsed = time.Since(m.Files[i].StartTime)
			}
		}
		return m, tickCmd()

	case FileStartMsg:
		if msg.Index >= 0 && msg.Index < len(m.Files) {
			m.Files[msg.Index].Status = StatusRendering
			m.Files[msg.Index].StartTime = time.Now()
			m.Active++
		}
		return m, waitForProgress(m.ProgressChan)

	case FileCompleteMsg:
		if msg.Index >= 0 && msg.Index < len(m.Files) {
			m = m.complete(msg.Index, msg.Result)
		}
		return m, waitForProgress(m.ProgressChan)

	case AllCompleteMsg:
		m.Done = true
		m.Record = msg.Record
		m.Err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) complete(i int, r humanize.RenderResult) Model {
	fp := &m.Files[i]
	if fp.Status == StatusRendering {
		m.Active--
	}
	fp.Result = r
	fp.Elapsed = time.Duration(r.DurationMS) * time.Millisecond
	switch {
	case r.Skipped:
		fp.Status = StatusSkipped
		m.Skipped++
	case r.Success:
		fp.Status = StatusComplete
		m.Completed++
	default:
		fp.Status = StatusError
		m.Failed++
	}
	return m
}

// Finished is the number of clips with a result.
func (m Model) Finished() int {
	return m.Completed + m.Skipped + m.Failed
}

// View renders the UI.
func (m Model) View() string {
	if m.Done {
		return renderCompletionSummary(m)
	}
	return renderProcessingView(m)
}

// waitForProgress creates a command that waits for progress messages.
func waitForProgress(progressChan chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-progressChan
	}
}
