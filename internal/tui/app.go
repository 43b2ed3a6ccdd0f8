package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/crmoraes/nga/internal/models"
	"github.com/crmoraes/nga/internal/storage"
)

// History is the part of the orchestrator the browser reads from.
type History interface {
	ListConversions(limit int) ([]*models.Conversion, error)
	GetConversion(idOrPrefix string) (*models.Conversion, error)
	GetNotes(id string) ([]*models.ConversionNote, error)
	ReadOutput(conv *models.Conversion) (string, error)
	DeleteConversion(id string) error
}

type View int

const (
	ViewList View = iota
	ViewDetail
	ViewOutput
)

const listLimit = 50

// chrome is the number of lines around a viewport: title, blank, blank, help.
const chrome = 4

type App struct {
	history History
	keys    keyMap
	help    help.Model

	view        View
	conversions []*models.Conversion
	selectedIdx int
	selected    *models.Conversion
	viewport    viewport.Model

	width  int
	height int
	err    error
}

func NewApp(h History) *App {
	return &App{
		history:  h,
		keys:     defaultKeys(),
		help:     help.New(),
		view:     ViewList,
		viewport: viewport.New(80, 20),
	}
}

func (a *App) Init() tea.Cmd {
	return a.loadConversions
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		a.viewport.Width = msg.Width
		a.viewport.Height = max(msg.Height-chrome, 1)
		return a, nil

	case conversionsLoadedMsg:
		a.conversions = msg.conversions
		a.err = msg.err
		if a.selectedIdx >= len(a.conversions) {
			a.selectedIdx = max(len(a.conversions)-1, 0)
		}
		return a, nil

	case detailLoadedMsg:
		a.err = msg.err
		if msg.err == nil {
			a.selected = msg.conversion
			a.viewport.SetContent(renderDetail(msg.conversion, msg.notes))
			a.viewport.GotoTop()
			a.view = ViewDetail
		}
		return a, nil

	case outputLoadedMsg:
		a.err = msg.err
		if msg.err == nil {
			a.viewport.SetContent(msg.content)
			a.viewport.GotoTop()
			a.view = ViewOutput
		}
		return a, nil

	case conversionDeletedMsg:
		a.err = msg.err
		if msg.err == nil {
			a.view = ViewList
			a.selected = nil
		}
		return a, a.loadConversions
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, a.keys.ForceQuit) {
		return a, tea.Quit
	}
	switch a.view {
	case ViewList:
		return a.handleListKey(msg)
	case ViewDetail:
		return a.handleDetailKey(msg)
	case ViewOutput:
		return a.handleOutputKey(msg)
	}
	return a, nil
}

func (a *App) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, a.keys.Up):
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case key.Matches(msg, a.keys.Down):
		if a.selectedIdx < len(a.conversions)-1 {
			a.selectedIdx++
		}

	case key.Matches(msg, a.keys.Open):
		if c := a.current(); c != nil {
			return a, a.loadDetail(c.ID)
		}

	case key.Matches(msg, a.keys.Output):
		if c := a.current(); c != nil {
			return a, a.loadOutput(c)
		}

	case key.Matches(msg, a.keys.Refresh):
		return a, a.loadConversions

	case key.Matches(msg, a.keys.Delete):
		if c := a.current(); c != nil {
			return a, a.deleteConversion(c.ID)
		}
	}

	return a, nil
}

func (a *App) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Back):
		a.view = ViewList
		a.selected = nil
		return a, nil

	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, a.keys.Output):
		return a, a.loadOutput(a.selected)

	case key.Matches(msg, a.keys.Delete):
		return a, a.deleteConversion(a.selected.ID)
	}

	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return a, cmd
}

func (a *App) handleOutputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Back):
		if a.selected != nil {
			return a, a.loadDetail(a.selected.ID)
		}
		a.view = ViewList
		return a, nil

	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit
	}

	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return a, cmd
}

func (a *App) current() *models.Conversion {
	if a.selectedIdx < len(a.conversions) {
		return a.conversions[a.selectedIdx]
	}
	return nil
}

func (a *App) View() string {
	switch a.view {
	case ViewList:
		return a.viewList()
	case ViewDetail:
		return a.viewScroll(a.detailTitle(), a.keys.detailHelp())
	case ViewOutput:
		return a.viewScroll(titleStyle.Render("Output"), a.keys.outputHelp())
	}
	return ""
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	statusRunning  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	statusComplete = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusFailed   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

func (a *App) viewList() string {
	s := titleStyle.Render("nga") + "\n\n"

	if a.err != nil {
		s += errorStyle.Render(fmt.Sprintf("Error: %v", a.err)) + "\n"
	}

	if len(a.conversions) == 0 {
		s += "No conversions yet. Run 'nga convert <file>' to create one.\n"
	} else {
		s += "Recent Conversions\n"
		s += "──────────────────\n"

		for i, c := range a.conversions {
			line := formatLine(c)
			switch {
			case i == a.selectedIdx:
				line = selectedStyle.Render("▶ " + line)
			case c.Failed():
				line = "  " + line
			default:
				line = "  " + dimStyle.Render(line)
			}
			s += line + "\n"
		}
	}

	return s + "\n" + a.help.View(a.keys.listHelp())
}

func (a *App) viewScroll(title string, bindings helpKeys) string {
	s := title + "\n"
	if a.err != nil {
		s += errorStyle.Render(fmt.Sprintf("Error: %v", a.err))
	}
	s += "\n" + a.viewport.View() + "\n"
	return s + "\n" + a.help.View(bindings)
}

func (a *App) detailTitle() string {
	if a.selected == nil {
		return titleStyle.Render("Conversion")
	}
	return titleStyle.Render("Conversion "+shortID(a.selected.ID)) + "  " + formatStatus(a.selected.Status)
}

func formatLine(c *models.Conversion) string {
	summary := fmt.Sprintf("%d topics  %d actions", c.TopicCount, c.ActionCount)
	if c.Failed() {
		summary = c.ErrorCode
	}
	return fmt.Sprintf("%s  %-30s %s  %-8s  %s",
		shortID(c.ID), truncate(c.InputPath, 30), formatStatus(c.Status), storage.FormatTimeAgo(c.CreatedAt), summary)
}

func formatStatus(status models.ConversionStatus) string {
	switch status {
	case models.ConversionStatusRunning:
		return statusRunning.Render("● running ")
	case models.ConversionStatusComplete:
		return statusComplete.Render("✓ complete")
	case models.ConversionStatusFailed:
		return statusFailed.Render("✗ failed  ")
	default:
		return string(status)
	}
}

// renderDetail is the scrollable body of the detail view.
func renderDetail(c *models.Conversion, notes []*models.ConversionNote) string {
	var b strings.Builder
	field := func(label, value string) {
		if value != "" {
			b.WriteString(labelStyle.Render(fmt.Sprintf("%-10s", label)) + " " + value + "\n")
		}
	}

	field("ID:", c.ID)
	field("Input:", c.InputPath)
	field("Output:", c.OutputPath)
	field("Batch:", c.BatchID)
	field("Shape:", string(c.Shape))
	field("Created:", c.CreatedAt.Format("2006-01-02 15:04:05"))
	if c.Failed() {
		field("Error:", errorStyle.Render(fmt.Sprintf("[%s] %s", c.ErrorCode, c.Error)))
	} else {
		field("Topics:", fmt.Sprint(c.TopicCount))
		field("Actions:", fmt.Sprint(c.ActionCount))
		if c.HasLegacyVariables {
			field("Variables:", "legacy references rewritten")
		}
	}

	b.WriteString("\nNotes\n")
	b.WriteString("─────\n")
	if len(notes) == 0 {
		b.WriteString(dimStyle.Render("(no notes)") + "\n")
	}
	for _, n := range notes {
		b.WriteString("• " + n.Text + "\n")
	}
	return b.String()
}

// Messages

type conversionsLoadedMsg struct {
	conversions []*models.Conversion
	err         error
}

type detailLoadedMsg struct {
	conversion *models.Conversion
	notes      []*models.ConversionNote
	err        error
}

type outputLoadedMsg struct {
	content string
	err     error
}

type conversionDeletedMsg struct {
	id  string
	err error
}

// Commands

func (a *App) loadConversions() tea.Msg {
	conversions, err := a.history.ListConversions(listLimit)
	return conversionsLoadedMsg{conversions: conversions, err: err}
}

func (a *App) loadDetail(id string) tea.Cmd {
	return func() tea.Msg {
		c, err := a.history.GetConversion(id)
		if err != nil {
			return detailLoadedMsg{err: err}
		}

		notes, err := a.history.GetNotes(c.ID)
		return detailLoadedMsg{conversion: c, notes: notes, err: err}
	}
}

func (a *App) loadOutput(c *models.Conversion) tea.Cmd {
	return func() tea.Msg {
		content, err := a.history.ReadOutput(c)
		return outputLoadedMsg{content: content, err: err}
	}
}

func (a *App) deleteConversion(id string) tea.Cmd {
	return func() tea.Msg {
		return conversionDeletedMsg{id: id, err: a.history.DeleteConversion(id)}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen+3:]
}
