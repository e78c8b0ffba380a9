package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/types"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/walker"
)

// WalkModel represents the fetch-and-scan phase of the TUI.
type WalkModel struct {
	spinner   spinner.Model
	startTime time.Time
	width     int
	height    int

	instanceRoot string
	branch       string

	fetching bool
	commit   string

	snapProgress walker.Progress
	instProgress walker.Progress
	currentPath  string

	done bool
	err  error
}

// FetchDoneMsg is sent when the snapshot fetch finishes.
type FetchDoneMsg struct {
	Commit string
	Err    error
}

// WalkProgressMsg carries a progress update from one of the walkers.
type WalkProgressMsg struct {
	Snapshot bool
	Progress walker.Progress
}

// PlanDoneMsg is sent when both walks finished and the plan is built.
type PlanDoneMsg struct {
	Plan *types.Plan
	Err  error
}

// NewWalkModel creates a new scanning-phase model.
func NewWalkModel(instanceRoot, branch string, fetching bool) WalkModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return WalkModel{
		spinner:      s,
		startTime:    time.Now(),
		width:        80,
		height:       24,
		instanceRoot: instanceRoot,
		branch:       branch,
		fetching:     fetching,
	}
}

// Init initializes the walk model.
func (m WalkModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages for the walk model.
func (m WalkModel) Update(msg tea.Msg) (WalkModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case FetchDoneMsg:
		m.fetching = false
		m.commit = msg.Commit
		m.err = msg.Err
		return m, nil

	case WalkProgressMsg:
		if msg.Snapshot {
			m.snapProgress = msg.Progress
		} else {
			m.instProgress = msg.Progress
		}
		m.currentPath = msg.Progress.CurrentPath
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the walk model.
func (m WalkModel) View() string {
	var b strings.Builder

	contentWidth := m.width - 4
	if contentWidth < 40 {
		contentWidth = 40
	}

	b.WriteString("\n")
	b.WriteString(m.renderHeader(contentWidth))
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorTextStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
	} else if m.fetching {
		b.WriteString(fmt.Sprintf("  %s Fetching snapshot (branch %s)...", m.spinner.View(), m.branch))
	} else {
		b.WriteString(fmt.Sprintf("  %s Comparing: %s",
			m.spinner.View(),
			truncatePath(m.currentPath, contentWidth-20)))
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderProgressBar(contentWidth))
	b.WriteString("\n\n")

	b.WriteString(m.renderStats(contentWidth))
	b.WriteString("\n")

	content := b.String()
	contentLines := strings.Count(content, "\n") + 1

	availableLines := m.height - 2
	if availableLines > contentLines {
		content += strings.Repeat("\n", availableLines-contentLines)
	}

	return outerBoxStyle.Width(m.width - 2).Height(m.height - 2).Render(content)
}

// renderHeader renders the header section.
func (m WalkModel) renderHeader(width int) string {
	title := titleStyle.Render("  modpack-updater")
	hint := mutedTextStyle.Render("[Ctrl+C to stop]")

	spacing := width - lipgloss.Width(title) - lipgloss.Width(hint)
	if spacing < 1 {
		spacing = 1
	}

	return title + strings.Repeat(" ", spacing) + hint
}

// renderProgressBar renders an indeterminate progress animation. The
// walkers do not know the total file count upfront.
func (m WalkModel) renderProgressBar(width int) string {
	barWidth := width - 4
	if barWidth < 10 {
		barWidth = 10
	}

	elapsed := time.Since(m.startTime)
	position := int(elapsed.Seconds()*2) % (barWidth * 2)
	if position > barWidth {
		position = barWidth*2 - position
	}

	var bar strings.Builder
	bar.WriteString("  ")

	pulseWidth := barWidth / 5
	if pulseWidth < 3 {
		pulseWidth = 3
	}

	for i := range barWidth {
		dist := i - position
		if dist < 0 {
			dist = -dist
		}
		if dist < pulseWidth {
			bar.WriteString(progressFillStyle.Render("█"))
		} else {
			bar.WriteString(progressEmptyStyle.Render("░"))
		}
	}

	return bar.String()
}

// renderStats renders the statistics boxes.
func (m WalkModel) renderStats(totalWidth int) string {
	boxWidth := (totalWidth - 10) / 4
	if boxWidth < 10 {
		boxWidth = 10
	}

	snapVal := humanize.Comma(m.snapProgress.FilesHashed)
	instVal := humanize.Comma(m.instProgress.FilesHashed)
	hashedVal := types.FormatSize(m.snapProgress.BytesHashed + m.instProgress.BytesHashed)
	elapsedVal := formatDuration(time.Since(m.startTime))

	snapBox := m.renderStatBox("Snapshot", snapVal, boxWidth)
	instBox := m.renderStatBox("Instance", instVal, boxWidth)
	hashedBox := m.renderStatBox("Hashed", hashedVal, boxWidth)
	elapsedBox := m.renderStatBox("Time", elapsedVal, boxWidth)

	return lipgloss.JoinHorizontal(lipgloss.Top,
		"  ", snapBox, " ", instBox, " ", hashedBox, " ", elapsedBox)
}

// renderStatBox renders a single stat box.
func (m WalkModel) renderStatBox(label, value string, width int) string {
	labelStr := statsLabelStyle.Render(label)
	valueStr := statsValueStyle.Render(value)

	content := lipgloss.JoinVertical(lipgloss.Center,
		center(labelStr, width-4),
		center(valueStr, width-4))

	return statsBoxStyle.Width(width).Render(content)
}

// formatDuration formats a duration as M:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d", m, s)
}
