package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/history"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/logging"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/reconcile"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/snapshot"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/types"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/walker"
	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/zone"
)

// AppState represents the current state of the application.
type AppState int

const (
	StateFetching AppState = iota
	StateWalking
	StatePlan
	StateConfirm
	StateApplying
	StateComplete
)

// Options configures the TUI application.
type Options struct {
	InstanceRoot string
	SnapshotDir  string
	Branch       string
	Zones        *zone.Config
	Provider     snapshot.Provider
	History      *history.Store
	DryRun       bool
	NoFetch      bool
}

// Model is the main Bubble Tea model for the updater TUI.
type Model struct {
	state     AppState
	walkModel WalkModel
	planModel PlanModel
	options   Options
	logger    *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	commit string
	plan   *types.Plan
	result *types.ExecutionResult
	runErr error

	progressChan chan WalkProgressMsg

	// Confirmation dialog state
	confirmFocused int // 0 = cancel, 1 = apply

	// Applying state
	applySpinner      spinner.Model
	applyProgress     int
	applyTotal        int
	applyErrors       []string
	applyProgressChan chan applyProgressMsg

	width  int
	height int
}

// NewModel creates a new TUI model with the given options.
func NewModel(opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	state := StateFetching
	if opts.NoFetch {
		state = StateWalking
	}

	return Model{
		state:        state,
		walkModel:    NewWalkModel(opts.InstanceRoot, opts.Branch, !opts.NoFetch),
		options:      opts,
		logger:       logging.Get("tui"),
		ctx:          ctx,
		cancel:       cancel,
		width:        80,
		height:       24,
		applySpinner: s,
		progressChan: make(chan WalkProgressMsg, 100),
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	first := m.startFetch()
	if m.options.NoFetch {
		first = m.startPlan()
	}
	return tea.Batch(
		m.walkModel.Init(),
		first,
		m.listenForProgress(),
	)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.walkModel.width = msg.Width
		m.walkModel.height = msg.Height
		m.planModel.SetDimensions(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case FetchDoneMsg:
		m.commit = msg.Commit
		var cmd tea.Cmd
		m.walkModel, cmd = m.walkModel.Update(msg)
		if msg.Err != nil {
			m.runErr = msg.Err
			return m, tea.Quit
		}
		m.state = StateWalking
		return m, tea.Batch(cmd, m.startPlan())

	case WalkProgressMsg:
		var cmd tea.Cmd
		m.walkModel, cmd = m.walkModel.Update(msg)
		return m, tea.Batch(cmd, m.listenForProgress())

	case PlanDoneMsg:
		if msg.Err != nil {
			m.runErr = msg.Err
			return m, tea.Quit
		}
		m.plan = msg.Plan
		m.state = StatePlan
		m.planModel = NewPlanModel(msg.Plan, m.commit, m.options.Branch, m.options.DryRun)
		m.planModel.SetDimensions(m.width, m.height)
		return m, nil

	case spinner.TickMsg:
		switch m.state {
		case StateFetching, StateWalking:
			var cmd tea.Cmd
			m.walkModel, cmd = m.walkModel.Update(msg)
			cmds = append(cmds, cmd)
		case StateApplying:
			var cmd tea.Cmd
			m.applySpinner, cmd = m.applySpinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case applyProgressMsg:
		m.applyProgress = msg.done
		if msg.res.Status == types.StatusFailed {
			m.applyErrors = append(m.applyErrors, fmt.Sprintf("%s: %s", msg.res.Op.Path, msg.res.Reason))
		}
		return m, m.listenForApplyProgress()

	case applyDoneMsg:
		m.result = msg.result
		m.runErr = msg.err
		if msg.err != nil {
			return m, tea.Quit
		}
		m.state = StateComplete
		return m, nil
	}

	return m, tea.Batch(cmds...)
}

// handleKey handles keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		m.cancel()
		return m, tea.Quit
	}

	switch m.state {
	case StateFetching, StateWalking:
		if key == "q" || key == "esc" {
			m.cancel()
			return m, tea.Quit
		}

	case StatePlan:
		switch key {
		case "q", "esc":
			return m, tea.Quit
		case "enter":
			if m.plan.IsNoop() {
				return m, tea.Quit
			}
			m.state = StateConfirm
			m.confirmFocused = 0
		default:
			m.planModel.HandleKey(key)
		}

	case StateConfirm:
		switch key {
		case "q", "esc", "n":
			m.state = StatePlan
		case "left", "h":
			m.confirmFocused = 0
		case "right", "l":
			m.confirmFocused = 1
		case "tab":
			m.confirmFocused = (m.confirmFocused + 1) % 2
		case "enter":
			if m.confirmFocused == 1 {
				return m.startApply()
			}
			m.state = StatePlan
		case "y":
			return m.startApply()
		}

	case StateApplying:
		// No key handling while operations run.

	case StateComplete:
		if key == "q" || key == "enter" || key == "esc" {
			return m, tea.Quit
		}
	}

	return m, nil
}

// View renders the current state.
func (m Model) View() string {
	switch m.state {
	case StateFetching, StateWalking:
		return m.walkModel.View()
	case StatePlan:
		return m.planModel.View()
	case StateConfirm:
		return m.renderConfirmDialog()
	case StateApplying:
		return m.renderApplying()
	case StateComplete:
		return m.renderComplete()
	}
	return ""
}

// renderConfirmDialog renders the apply confirmation dialog.
func (m Model) renderConfirmDialog() string {
	bg := m.planModel.View()

	var deletes int
	for _, op := range m.plan.Operations {
		if op.Kind == types.OpDelete {
			deletes++
		}
	}

	var dialogContent strings.Builder
	dialogContent.WriteString(dialogTitleStyle.Render("Apply Update"))
	dialogContent.WriteString("\n\n")
	dialogContent.WriteString(dialogTextStyle.Render(
		fmt.Sprintf("Apply %d operations (%d deletions)?", len(m.plan.Operations), deletes)))
	dialogContent.WriteString("\n")

	if m.options.DryRun {
		dialogContent.WriteString(warningTextStyle.Render("(Dry run - nothing will be changed)"))
		dialogContent.WriteString("\n")
	}

	dialogContent.WriteString("\n")

	cancelBtn := inactiveButtonStyle.Render("Cancel")
	applyBtn := inactiveButtonStyle.Render("Apply")

	if m.confirmFocused == 0 {
		cancelBtn = activeButtonStyle.Render("Cancel")
	} else {
		applyBtn = activeButtonStyle.Render("Apply")
	}

	buttons := lipgloss.JoinHorizontal(lipgloss.Center, cancelBtn, "  ", applyBtn)
	dialogContent.WriteString(center(buttons, 46))

	dialog := dialogBoxStyle.Render(dialogContent.String())
	return m.overlayDialog(bg, dialog)
}

// renderApplying renders the apply progress view.
func (m Model) renderApplying() string {
	contentWidth := m.width - 4

	var b strings.Builder
	b.WriteString(titleStyle.Render("  Applying update..."))
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("  %s Applying: %d / %d operations",
		m.applySpinner.View(), m.applyProgress, m.applyTotal))
	b.WriteString("\n\n")

	if m.applyTotal > 0 {
		pct := float64(m.applyProgress) / float64(m.applyTotal)
		barWidth := contentWidth - 4
		filled := int(pct * float64(barWidth))
		empty := barWidth - filled

		bar := "  " + progressFillStyle.Render(strings.Repeat("█", filled)) +
			progressEmptyStyle.Render(strings.Repeat("░", empty))
		b.WriteString(bar)
		b.WriteString(fmt.Sprintf(" %d%%", int(pct*100)))
		b.WriteString("\n")
	}

	if len(m.applyErrors) > 0 {
		b.WriteString("\n")
		b.WriteString(errorTextStyle.Render(fmt.Sprintf("  %d errors:", len(m.applyErrors))))
		b.WriteString("\n")
		for _, e := range m.applyErrors {
			b.WriteString(errorTextStyle.Render("    - " + truncatePath(e, contentWidth-6)))
			b.WriteString("\n")
		}
	}

	return outerBoxStyle.Width(m.width - 2).Render(b.String())
}

// renderComplete renders the completion view.
func (m Model) renderComplete() string {
	contentWidth := m.width - 4

	var b strings.Builder
	switch {
	case m.options.DryRun:
		b.WriteString(warningTextStyle.Render("  Dry Run Complete"))
	case m.result != nil && m.result.Status == types.RunPartialFailure:
		b.WriteString(warningTextStyle.Render("  Update Finished With Errors"))
	default:
		b.WriteString(successTextStyle.Render("  Update Complete"))
	}
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n\n")

	if m.options.DryRun {
		b.WriteString(fmt.Sprintf("  Would have applied: %d operations\n", m.applyTotal))
	} else if m.result != nil {
		b.WriteString(fmt.Sprintf("  %s\n", m.result.Summary()))
	}

	if m.result != nil && len(m.result.FailedResults()) > 0 {
		b.WriteString("\n")
		b.WriteString(errorTextStyle.Render("  Errors:"))
		b.WriteString("\n")
		maxErrors := 5
		for i, res := range m.result.FailedResults() {
			if i >= maxErrors {
				b.WriteString(errorTextStyle.Render(
					fmt.Sprintf("    ... and %d more", len(m.result.FailedResults())-maxErrors)))
				b.WriteString("\n")
				break
			}
			b.WriteString(errorTextStyle.Render(
				"    - " + truncatePath(res.Op.Path+": "+res.Reason, contentWidth-6)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(center(keyStyle.Render("[Enter]")+" "+keyDescStyle.Render("Exit"), contentWidth))
	b.WriteString("\n")

	return outerBoxStyle.Width(m.width - 2).Render(b.String())
}

// overlayDialog centers a dialog over a background view.
func (m Model) overlayDialog(bg, dialog string) string {
	dialogLines := strings.Split(dialog, "\n")
	bgLines := strings.Split(bg, "\n")

	dialogHeight := len(dialogLines)
	startRow := (m.height - dialogHeight) / 2
	if startRow < 0 {
		startRow = 0
	}

	dialogWidth := lipgloss.Width(dialog)
	startCol := (m.width - dialogWidth) / 2
	if startCol < 0 {
		startCol = 0
	}

	var result []string
	for i := range max(len(bgLines), startRow+dialogHeight) {
		if i < startRow || i >= startRow+dialogHeight {
			if i < len(bgLines) {
				result = append(result, bgLines[i])
			} else {
				result = append(result, "")
			}
		} else {
			dialogLine := dialogLines[i-startRow]
			if i < len(bgLines) {
				bgLine := bgLines[i]
				if startCol > len(bgLine) {
					result = append(result, strings.Repeat(" ", startCol)+dialogLine)
				} else {
					line := bgLine[:min(startCol, len(bgLine))] + dialogLine
					result = append(result, line)
				}
			} else {
				result = append(result, strings.Repeat(" ", startCol)+dialogLine)
			}
		}
	}

	return strings.Join(result, "\n")
}

// startFetch fetches the snapshot in the background.
func (m Model) startFetch() tea.Cmd {
	return func() tea.Msg {
		commit, err := m.options.Provider.Fetch(m.ctx, m.options.Branch, m.options.SnapshotDir)
		if err != nil {
			m.logger.Error("snapshot fetch failed", "error", err)
		} else {
			m.logger.Info("snapshot fetched", "commit", commit, "branch", m.options.Branch)
		}
		return FetchDoneMsg{Commit: commit, Err: err}
	}
}

// startPlan walks both trees and builds the plan in the background.
func (m Model) startPlan() tea.Cmd {
	progressChan := m.progressChan
	send := func(snap bool) func(walker.Progress) {
		return func(p walker.Progress) {
			select {
			case progressChan <- WalkProgressMsg{Snapshot: snap, Progress: p}:
			default:
				// Channel full, skip this update.
			}
		}
	}

	return func() tea.Msg {
		plan, err := reconcile.Plan(m.ctx, m.options.SnapshotDir, m.options.InstanceRoot, m.options.Zones,
			reconcile.WithSnapshotProgress(send(true)),
			reconcile.WithInstanceProgress(send(false)),
		)
		close(progressChan)

		if err != nil {
			m.logger.Error("planning failed", "error", err)
			return PlanDoneMsg{Err: err}
		}
		m.logger.Info("plan built",
			"operations", len(plan.Operations),
			"mutations", plan.Mutations(),
			"warnings", len(plan.Warnings))
		return PlanDoneMsg{Plan: plan}
	}
}

// listenForProgress returns a command that waits for walk progress.
func (m Model) listenForProgress() tea.Cmd {
	progressChan := m.progressChan
	return func() tea.Msg {
		p, ok := <-progressChan
		if !ok {
			return nil
		}
		return p
	}
}

// applyProgressMsg reports per-operation apply progress.
type applyProgressMsg struct {
	done  int
	total int
	res   types.OperationResult
}

// applyDoneMsg reports the final execution outcome.
type applyDoneMsg struct {
	result *types.ExecutionResult
	err    error
}

// startApply begins applying the plan.
func (m Model) startApply() (tea.Model, tea.Cmd) {
	m.state = StateApplying
	m.applyTotal = len(m.plan.Operations)
	m.applyProgress = 0
	m.applyErrors = nil

	m.applyProgressChan = make(chan applyProgressMsg, 100)
	progressChan := m.applyProgressChan

	plan := m.plan
	opts := m.options
	ctx := m.ctx
	logger := m.logger

	runner := func() tea.Msg {
		if opts.DryRun {
			close(progressChan)
			return applyDoneMsg{}
		}

		result, err := reconcile.Execute(ctx, plan, opts.InstanceRoot,
			reconcile.WithOperationProgress(func(done, total int, res types.OperationResult) {
				select {
				case progressChan <- applyProgressMsg{done: done, total: total, res: res}:
				default:
				}
			}))
		close(progressChan)

		if err != nil {
			logger.Error("execution aborted", "error", err)
			return applyDoneMsg{result: result, err: err}
		}
		logger.Info("execution finished", "summary", result.Summary())

		if opts.History != nil {
			if hErr := opts.History.Touch(opts.InstanceRoot); hErr != nil {
				logger.Warn("failed to record instance path", "error", hErr)
			}
			if _, hErr := opts.History.LogRun(opts.InstanceRoot, opts.Branch, result); hErr != nil {
				logger.Warn("failed to record run", "error", hErr)
			}
		}
		return applyDoneMsg{result: result}
	}

	return m, tea.Batch(m.applySpinner.Tick, runner, m.listenForApplyProgress())
}

// listenForApplyProgress returns a command that waits for apply progress.
func (m Model) listenForApplyProgress() tea.Cmd {
	progressChan := m.applyProgressChan
	return func() tea.Msg {
		if progressChan == nil {
			return nil
		}
		msg, ok := <-progressChan
		if !ok {
			return nil
		}
		return msg
	}
}

// Run starts the TUI application and returns the execution result, nil
// when the user quit before applying.
func Run(opts Options) (*types.ExecutionResult, error) {
	model := NewModel(opts)

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	final, err := p.Run()
	if err != nil {
		return nil, err
	}

	if m, ok := final.(Model); ok {
		return m.result, m.runErr
	}
	return nil, nil
}
