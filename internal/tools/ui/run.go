package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

type Action func(ctx context.Context) ([]string, error)

type actionMsg struct {
	details []string
	err     error
}

type model struct {
	title   string
	action  Action
	done    bool
	err     error
	details []string
}

func (m model) Init() tea.Cmd {
	action := m.action
	return func() tea.Msg {
		details, err := action(context.Background())
		return actionMsg{details: details, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case actionMsg:
		m.done = true
		m.details = msg.details
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	switch {
	case !m.done:
		fmt.Fprintf(&b, "%s: Running...\n", m.title)
	case m.err != nil:
		fmt.Fprintf(&b, "%s: FAILED\n  %v\n", m.title, m.err)
	default:
		fmt.Fprintf(&b, "%s: OK\n", m.title)
	}
	for _, d := range m.details {
		fmt.Fprintf(&b, "  - %s\n", d)
	}
	return b.String()
}

// Run shows a status view until action returns.
func Run(title string, action Action) ([]string, error) {
	final, err := tea.NewProgram(model{title: title, action: action}).Run()
	if err != nil {
		return nil, err
	}
	m, ok := final.(model)
	if !ok || !m.done {
		return nil, errors.New("cancelled")
	}
	return m.details, m.err
}
