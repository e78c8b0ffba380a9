package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/types"
)

// PlanModel renders the computed plan for review before applying.
type PlanModel struct {
	plan   *types.Plan
	commit string
	branch string
	dryRun bool

	cursor int
	offset int
	width  int
	height int
}

// NewPlanModel creates a plan review model.
func NewPlanModel(plan *types.Plan, commit, branch string, dryRun bool) PlanModel {
	return PlanModel{
		plan:   plan,
		commit: commit,
		branch: branch,
		dryRun: dryRun,
		width:  80,
		height: 24,
	}
}

// SetDimensions updates the window dimensions.
func (m *PlanModel) SetDimensions(width, height int) {
	m.width = width
	m.height = height
}

// HandleKey handles key input for list navigation.
func (m *PlanModel) HandleKey(key string) {
	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.ensureVisible()
		}

	case "down", "j":
		if m.cursor < len(m.plan.Operations)-1 {
			m.cursor++
			m.ensureVisible()
		}

	case "home", "g":
		m.cursor = 0
		m.offset = 0

	case "end", "G":
		if len(m.plan.Operations) > 0 {
			m.cursor = len(m.plan.Operations) - 1
			m.ensureVisible()
		}

	case "pgup":
		m.cursor -= m.visibleRows()
		if m.cursor < 0 {
			m.cursor = 0
		}
		m.ensureVisible()

	case "pgdown":
		m.cursor += m.visibleRows()
		if m.cursor >= len(m.plan.Operations) {
			m.cursor = len(m.plan.Operations) - 1
		}
		m.ensureVisible()
	}
}

// visibleRows returns how many list rows fit on screen.
func (m PlanModel) visibleRows() int {
	// Header, dividers, help bar and footer take 8 lines.
	rows := m.height - 10
	if rows < 3 {
		rows = 3
	}
	return rows
}

// ensureVisible scrolls the list so the cursor stays on screen.
func (m *PlanModel) ensureVisible() {
	rows := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
}

// View renders the plan review screen.
func (m PlanModel) View() string {
	contentWidth := m.width - 4
	if contentWidth < 60 {
		contentWidth = 60
	}

	var b strings.Builder
	b.WriteString(m.renderHeader(contentWidth))
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n")
	b.WriteString(m.renderHelpBar(contentWidth))
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n")

	if m.plan.Mutations() == 0 {
		b.WriteString("\n")
		b.WriteString(center(successTextStyle.Render("Instance is up to date."), contentWidth))
		b.WriteString("\n")
		if len(m.plan.Operations) > 0 {
			b.WriteString(center(mutedTextStyle.Render(
				fmt.Sprintf("%d files will still be reset to shipped defaults.", len(m.plan.Operations))), contentWidth))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	} else {
		b.WriteString(m.renderOpList(contentWidth))
	}

	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n")
	b.WriteString(m.renderFooter(contentWidth))

	return outerBoxStyle.Width(m.width - 2).Render(b.String())
}

// renderHeader renders the title line with snapshot provenance.
func (m PlanModel) renderHeader(width int) string {
	title := titleStyle.Render("  modpack-updater")
	source := m.branch
	if len(m.commit) >= 8 {
		source += " @ " + m.commit[:8]
	}
	info := mutedTextStyle.Render(source)

	spacing := width - lipgloss.Width(title) - lipgloss.Width(info)
	if spacing < 1 {
		spacing = 1
	}
	return title + strings.Repeat(" ", spacing) + info
}

// renderHelpBar renders the key hints.
func (m PlanModel) renderHelpBar(width int) string {
	hints := []string{
		keyStyle.Render("[↑/↓]") + " " + keyDescStyle.Render("Scroll"),
		keyStyle.Render("[Enter]") + " " + keyDescStyle.Render("Apply"),
		keyStyle.Render("[q]") + " " + keyDescStyle.Render("Quit"),
	}
	if m.dryRun {
		hints = append(hints, warningTextStyle.Render("DRY RUN"))
	}
	return "  " + strings.Join(hints, "   ")
}

// renderOpList renders the scrollable operation list.
func (m PlanModel) renderOpList(width int) string {
	var b strings.Builder
	rows := m.visibleRows()
	ops := m.plan.Operations

	end := m.offset + rows
	if end > len(ops) {
		end = len(ops)
	}

	for i := m.offset; i < end; i++ {
		op := ops[i]

		kind := m.styleForKind(op.Kind).Render(fmt.Sprintf("%-11s", op.Kind))
		size := ""
		if op.Size > 0 {
			size = opSizeStyle.Render(types.FormatSize(op.Size))
		} else {
			size = opSizeStyle.Render("")
		}

		line := fmt.Sprintf("  %s %s  %s", kind, size, truncatePath(op.Path, width-30))
		if i == m.cursor {
			line = selectedItemStyle.Render(line)
		} else {
			line = normalItemStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	for i := end - m.offset; i < rows; i++ {
		b.WriteString("\n")
	}

	return b.String()
}

// styleForKind returns the color style for an operation kind.
func (m PlanModel) styleForKind(kind types.OpKind) lipgloss.Style {
	switch kind {
	case types.OpDelete:
		return deleteOpStyle
	case types.OpForceReset:
		return resetOpStyle
	default:
		return writeOpStyle
	}
}

// renderFooter renders the summary line.
func (m PlanModel) renderFooter(width int) string {
	var deletes, writes, resets int
	for _, op := range m.plan.Operations {
		switch op.Kind {
		case types.OpDelete:
			deletes++
		case types.OpForceReset:
			resets++
		default:
			writes++
		}
	}

	summary := fmt.Sprintf("  %d to write, %d to delete, %d to reset", writes, deletes, resets)
	if len(m.plan.Warnings) > 0 {
		summary += warningTextStyle.Render(fmt.Sprintf("  (%d walk warnings)", len(m.plan.Warnings)))
	}
	return summary + "\n"
}
