package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// maxQueueLines caps the visible file list on small terminals.
const maxQueueLines = 12

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A40000"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
	okIcon       = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AA00")).Render("✓")
	skipIcon     = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AAAA")).Render("↷")
	failIcon     = lipgloss.NewStyle().Foreground(lipgloss.Color("#A40000")).Render("✗")
	queuedIcon   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("○")
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#888888")).
			Padding(0, 1).
			Width(60)
)

func renderProcessingView(m Model) string {
	var b strings.Builder
	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")
	b.WriteString(renderFileQueue(m))
	b.WriteString("\n")
	b.WriteString(renderOverallProgress(m))
	return b.String()
}

func renderHeader(m Model) string {
	title := titleStyle.Render("Livetake 🎧 " + m.Name)
	subtitle := mutedStyle.Render(fmt.Sprintf("%d clip(s), profile %s, %d worker(s)", len(m.Files), m.Profile, m.Workers))
	return title + "\n" + subtitle
}

// renderFileQueue lists active clips first, then the most recent results,
// then queued clips, within maxQueueLines.
func renderFileQueue(m Model) string {
	var active, done, queued []string
	for _, f := range m.Files {
		switch f.Status {
		case StatusRendering:
			active = append(active, renderFileEntry(f, m.spinnerIndex))
		case StatusQueued:
			queued = append(queued, renderFileEntry(f, m.spinnerIndex))
		default:
			done = append(done, renderFileEntry(f, m.spinnerIndex))
		}
	}

	lines := active
	room := maxQueueLines - len(lines)
	if room > 0 && len(done) > 0 {
		lines = append(lines, done[max(0, len(done)-room):]...)
	}
	room = maxQueueLines - len(lines)
	if room > 0 && len(queued) > 0 {
		lines = append(lines, queued[:min(room, len(queued))]...)
	}
	if hidden := len(m.Files) - len(lines); hidden > 0 {
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("   … %d more", hidden)))
	}
	return strings.Join(lines, "\n") + "\n"
}

func renderFileEntry(f FileProgress, spinnerIndex int) string {
	name := f.Task.RelPath
	if name == "" {
		name = filepath.Base(f.Task.SourcePath)
	}

	switch f.Status {
	case StatusRendering:
		spinner := spinnerStyle.Render(spinnerFrames[spinnerIndex])
		return fmt.Sprintf(" %s %s [%s]", spinner, name, formatElapsed(f.Elapsed))
	case StatusComplete:
		return fmt.Sprintf(" %s %s → %s", okIcon, name, filepath.Base(f.Task.TargetPath))
	case StatusSkipped:
		return fmt.Sprintf(" %s %s %s", skipIcon, name, mutedStyle.Render("already rendered"))
	case StatusError:
		return fmt.Sprintf(" %s %s %s", failIcon, name, string(f.Result.ErrorKind))
	default:
		return fmt.Sprintf(" %s %s", queuedIcon, name)
	}
}

// renderProgressBar renders a progress bar
func renderProgressBar(progress float64, width int) string {
	progress = min(max(progress, 0), 1)
	filled := int(progress * float64(width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %d%%", bar, int(progress*100))
}

func renderOverallProgress(m Model) string {
	total := len(m.Files)
	progress := 0.0
	if total > 0 {
		progress = float64(m.Finished()) / float64(total)
	}

	var content strings.Builder
	content.WriteString(renderProgressBar(progress, 40))
	content.WriteString("\n")
	fmt.Fprintf(&content, "%d/%d done, %d rendering, %d failed", m.Finished(), total, m.Active, m.Failed)
	elapsed := time.Since(m.StartTime)
	fmt.Fprintf(&content, "\n⏱  %s", formatElapsed(elapsed))
	if done := m.Finished(); done > 0 && done < total {
		remaining := time.Duration(float64(elapsed) / float64(done) * float64(total-done))
		fmt.Fprintf(&content, " | ~%s left", formatElapsed(remaining))
	}
	return boxStyle.Render(content.String())
}

func renderCompletionSummary(m Model) string {
	var b strings.Builder
	header := "✨ Batch complete"
	if m.Failed > 0 {
		header = fmt.Sprintf("Batch complete with %d failure(s)", m.Failed)
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00AA00")).Render(header))
	b.WriteString("\n\n")
	for _, f := range m.Files {
		if f.Status == StatusError {
			b.WriteString(renderFileEntry(f, 0))
			b.WriteString("\n")
		}
	}
	fmt.Fprintf(&b, "%d rendered, %d skipped, %d failed in %s\n",
		m.Completed, m.Skipped, m.Failed, formatElapsed(time.Since(m.StartTime)))
	return b.String()
}

// formatElapsed formats elapsed time as MM:SS or HH:MM:SS
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
