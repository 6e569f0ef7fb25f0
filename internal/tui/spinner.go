package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type doneMsg struct{}

type spinModel struct {
	spinner spinner.Model
	label   string
	done    bool
}

func newSpinModel(label string) spinModel {
	return spinModel{
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
		label:   label,
	}
}

func (m spinModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinModel) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + " " + m.label
}

// Spin shows a spinner on w while fn runs and returns fn's error. The
// spinner line is cleared when fn returns.
func Spin(ctx context.Context, w io.Writer, label string, fn func(ctx context.Context) error) error {
	p := tea.NewProgram(newSpinModel(label),
		tea.WithOutput(w),
		tea.WithInput(nil),
		tea.WithContext(ctx),
		tea.WithoutSignalHandler(),
	)

	errc := make(chan error, 1)
	go func() {
		errc <- fn(ctx)
		p.Send(doneMsg{})
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fnErr := <-errc
		if fnErr != nil {
			return fnErr
		}
		return fmt.Errorf("spinner: %w", err)
	}
	return <-errc
}
