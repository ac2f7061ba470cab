package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/openmined/syftnotes/internal/client/handlers"
	"github.com/openmined/syftnotes/internal/merge"
)

const (
	txtLoading    = "Loading conflicts..."
	txtResolving  = "Resolving %s..."
	txtNoConflict = "No conflicts. Nothing to resolve."
	txtTUIHelp    = "↑/↓ select · l keep local · r keep remote · b keep both · R reload · q quit"
)

var (
	cursorStyle   = green
	selectedStyle = green.Bold(true)
	resolvedStyle = gray
	tuiTitleStyle = cyan.Bold(true)
	tuiErrorStyle = red
	tuiHelpStyle  = gray
)

type ConflictsTUIOpts struct {
	List    func() ([]handlers.ConflictSummary, error)
	Resolve func(noteID string, choice merge.Choice) error
}

type conflictsModel struct {
	opts *ConflictsTUIOpts

	spinner   spinner.Model
	conflicts []handlers.ConflictSummary
	cursor    int

	isLoading    bool
	message      string
	errorMessage string
	resolved     int
}

type conflictsLoadedMsg struct {
	conflicts []handlers.ConflictSummary
	err       error
}

type conflictResolvedMsg struct {
	noteID string
	choice merge.Choice
	err    error
}

func newConflictsModel(opts *ConflictsTUIOpts) conflictsModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = cyan

	return conflictsModel{
		opts:      opts,
		spinner:   s,
		isLoading: true,
		message:   txtLoading,
	}
}

func (m conflictsModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

func (m conflictsModel) load() tea.Cmd {
	return func() tea.Msg {
		conflicts, err := m.opts.List()
		return conflictsLoadedMsg{conflicts: conflicts, err: err}
	}
}

func (m conflictsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case conflictsLoadedMsg:
		m.isLoading = false
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			return m, nil
		}
		m.conflicts = msg.conflicts
		m.cursor = min(m.cursor, max(len(m.conflicts)-1, 0))
		return m, nil

	case conflictResolvedMsg:
		m.isLoading = false
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("%s: %s", msg.noteID, msg.err)
			return m, nil
		}
		m.resolved++
		for i := range m.conflicts {
			if m.conflicts[i].NoteID == msg.noteID {
				m.conflicts[i].Choice = string(msg.choice)
			}
		}
		return m, nil
	}

	return m, nil
}

func (m conflictsModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	}
	if m.isLoading {
		return m, nil
	}
	m.errorMessage = ""

	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.conflicts)-1 {
			m.cursor++
		}
	case "R":
		m.isLoading = true
		m.message = txtLoading
		return m, m.load()
	case "l":
		return m.resolve(merge.ChoiceLocal)
	case "r":
		return m.resolve(merge.ChoiceRemote)
	case "b":
		return m.resolve(merge.ChoiceBoth)
	}
	return m, nil
}

func (m conflictsModel) resolve(choice merge.Choice) (tea.Model, tea.Cmd) {
	if len(m.conflicts) == 0 {
		return m, nil
	}
	noteID := m.conflicts[m.cursor].NoteID
	m.isLoading = true
	m.message = fmt.Sprintf(txtResolving, noteID)

	return m, func() tea.Msg {
		return conflictResolvedMsg{noteID: noteID, choice: choice, err: m.opts.Resolve(noteID, choice)}
	}
}

func (m conflictsModel) View() string {
	var b strings.Builder
	b.WriteString(tuiTitleStyle.Render("SyftNotes conflicts"))
	b.WriteString("\n\n")

	if len(m.conflicts) == 0 && !m.isLoading {
		b.WriteString(gray.Render(txtNoConflict))
		b.WriteString("\n")
	}
	for i, c := range m.conflicts {
		cursor := "  "
		line := fmt.Sprintf("%s  %s", c.NoteID, strings.Join(c.Differences, ", "))
		switch {
		case i == m.cursor:
			cursor = cursorStyle.Render("> ")
			line = selectedStyle.Render(line)
		case c.Choice != "":
			line = resolvedStyle.Render(line)
		}
		if c.Choice != "" {
			line += "  " + lightGray.Render("→ "+c.Choice)
		}
		b.WriteString(cursor + line + "\n")
	}

	if m.isLoading {
		b.WriteString(fmt.Sprintf("\n%s %s\n", m.spinner.View(), m.message))
	}
	if m.errorMessage != "" {
		b.WriteString("\n")
		b.WriteString(tuiErrorStyle.Render("ERROR: " + m.errorMessage))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(tuiHelpStyle.Render(txtTUIHelp))
	b.WriteString("\n")
	return b.String()
}

// RunConflictsTUI lists the daemon's conflicts and records choices until
// the user quits. Choices are applied by the daemon's next pass.
func RunConflictsTUI(opts ConflictsTUIOpts) error {
	model, err := tea.NewProgram(newConflictsModel(&opts), tea.WithAltScreen()).Run()
	if err != nil {
		return fmt.Errorf("conflicts ui: %w", err)
	}
	if fm, ok := model.(conflictsModel); ok && fm.resolved > 0 {
		fmt.Printf("%s %d conflict(s), they are applied on the next sync\n", green.Render("resolved"), fm.resolved)
	}
	return nil
}
