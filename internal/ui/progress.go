package ui

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

type jobDoneMsg struct {
	value any
	err   error
}

// SpinnerModel shows a spinner while one job runs. ctrl+c cancels the job
// and waits for it to return.
type SpinnerModel struct {
	Title     string
	Spinner   spinner.Model
	StartedAt time.Time
	Done      bool
	Cancelled bool

	run    tea.Cmd
	cancel context.CancelFunc
	result jobDoneMsg
}

func newSpinnerModel(title string, run tea.Cmd, cancel context.CancelFunc) SpinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorPrimary)
	return SpinnerModel{
		Title:     title,
		Spinner:   s,
		StartedAt: time.Now(),
		run:       run,
		cancel:    cancel,
	}
}

func (m SpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.Spinner.Tick, m.run)
}

func (m SpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.Cancelled {
			m.Cancelled = true
			m.cancel()
		}
		return m, nil
	case jobDoneMsg:
		m.Done = true
		m.result = msg
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m SpinnerModel) View() string {
	if m.Done {
		return ""
	}
	elapsed := time.Since(m.StartedAt).Round(time.Second)
	status := StyleSubtle.Render(fmt.Sprintf("(%s)", elapsed))
	if m.Cancelled {
		status = StyleWarning.Render("cancelling...")
	}
	return fmt.Sprintf("%s %s %s\n", m.Spinner.View(), m.Title, status)
}

// RunWithSpinner runs job while a spinner is drawn on f. When f is not a
// terminal the job runs without any output.
func RunWithSpinner[T any](ctx context.Context, f *os.File, title string, job func(context.Context) (T, error)) (T, error) {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return job(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	run := func() tea.Msg {
		v, err := job(ctx)
		return jobDoneMsg{value: v, err: err}
	}

	var zero T
	final, err := tea.NewProgram(newSpinnerModel(title, run, cancel), tea.WithOutput(f)).Run()
	if err != nil {
		return zero, fmt.Errorf("spinner: %w", err)
	}
	m, ok := final.(SpinnerModel)
	if !ok || !m.Done {
		return zero, fmt.Errorf("spinner: job did not finish")
	}
	v, _ := m.result.value.(T)
	return v, m.result.err
}
