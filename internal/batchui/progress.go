// Package batchui renders batch.Executor progress in a terminal using
// bubbletea/lipgloss, grounded on the teacher's root go.mod carrying the
// same Charm stack for its own interactive CLI output.
package batchui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/arxos/graphrules/internal/batch"
)

var (
	barFilled = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	barEmpty  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// progressMsg wraps a batch.Progress event for delivery into the Bubble
// Tea update loop.
type progressMsg batch.Progress

type doneMsg struct{ result batch.Result }

// Model is the bubbletea model driving the progress bar. Feed() is called
// from the goroutine running batch.Executor.Run; it forwards events into
// the program's message channel.
type Model struct {
	total     int
	completed int
	succeeded int
	failed    int
	width     int
	done      bool
	result    batch.Result
	program   *tea.Program
}

func NewModel(total, width int) *Model {
	return &Model{total: total, width: width}
}

// Attach binds this model to a running tea.Program so Feed can send
// messages into it.
func (m *Model) Attach(p *tea.Program) { m.program = p }

// Feed is the onProgress callback passed to batch.Executor.Run.
func (m *Model) Feed(p batch.Progress) {
	if m.program != nil {
		m.program.Send(progressMsg(p))
	}
}

// Done signals batch completion once Run returns.
func (m *Model) Done(result batch.Result) {
	if m.program != nil {
		m.program.Send(doneMsg{result: result})
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.completed = msg.Completed
		m.total = msg.Total
		if msg.Result.Err != nil {
			m.failed++
		} else {
			m.succeeded++
		}
		return m, nil

	case doneMsg:
		m.done = true
		m.result = msg.result
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.done {
		return fmt.Sprintf("batch complete: %d/%d succeeded in %s\n",
			m.result.Succeeded, m.result.Total, m.result.Duration.Round(time.Millisecond))
	}

	barWidth := 30
	filled := 0
	if m.total > 0 {
		filled = barWidth * m.completed / m.total
	}
	bar := barFilled.Render(strings.Repeat("█", filled)) + barEmpty.Render(strings.Repeat("░", barWidth-filled))

	return fmt.Sprintf("[%s] %d/%d  %s %d  %s %d\n",
		bar, m.completed, m.total,
		okStyle.Render("ok"), m.succeeded,
		failStyle.Render("fail"), m.failed)
}
