package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/livetake/internal/humanize"
)

// Spinner frames for indeterminate progress
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// tickMsg is sent for spinner/timer animation
type tickMsg time.Time

// tickCmd returns a command that sends a tick message every 100ms
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// ClipDoneMsg carries the result of a single-clip render.
type ClipDoneMsg struct {
	Result humanize.RenderResult
}

// ClipModel shows a spinner while one clip renders. ffmpeg reports no
// progress for a filter graph this shape, so there is no percentage.
type ClipModel struct {
	Task      humanize.ClipTask
	Profile   string
	StartTime time.Time

	Result humanize.RenderResult
	Done   bool

	spinnerIndex int
}

// NewClipModel creates a model for task.
func NewClipModel(task humanize.ClipTask, profile string) ClipModel {
	return ClipModel{Task: task, Profile: profile, StartTime: time.Now()}
}

// Init starts the spinner.
func (m ClipModel) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages and updates the model.
func (m ClipModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tickMsg:
		if m.Done {
			return m, nil
		}
		m.spinnerIndex = (m.spinnerIndex + 1) % len(spinnerFrames)
		return m, tickCmd()

	case ClipDoneMsg:
		m.Result = msg.Result
		m.Done = true
		return m, tea.Quit
	}
	return m, nil
}

// View renders the UI.
func (m ClipModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Livetake"))
	b.WriteString(" ")
	b.WriteString(mutedStyle.Render("profile " + m.Profile))
	b.WriteString("\n\n")

	name := filepath.Base(m.Task.SourcePath)
	elapsed := formatElapsed(time.Since(m.StartTime))
	switch {
	case !m.Done:
		fmt.Fprintf(&b, "%s Rendering %s [%s]\n", spinnerStyle.Render(spinnerFrames[m.spinnerIndex]), name, elapsed)
	case m.Result.Success:
		fmt.Fprintf(&b, "%s %s → %s [%s]\n", okIcon, name, filepath.Base(m.Task.TargetPath), elapsed)
	default:
		fmt.Fprintf(&b, "%s %s %s\n", failIcon, name, m.Result.ErrorKind)
	}
	return b.String()
}
