package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"headbench/internal/coordinator"
	"headbench/internal/runner"
	"headbench/internal/tui/styles"
)

const (
	tickInterval = 200 * time.Millisecond
)

type tickMsg time.Time

type eventMsg coordinator.Event

// Model follows a run through the coordinator's event stream: one progress
// step per worker exit, done on the Completed event.
type Model struct {
	Cfg      runner.Config
	Progress progress.Model
	Spinner  spinner.Model

	Spawned  int
	Exited   int
	Abnormal int
	Report   *coordinator.Report
	Err      error
	Done     bool

	StartTime time.Time
	Quitting  bool
	Width     int

	events <-chan coordinator.Event
	cancel context.CancelFunc
}

// NewModel watches events. cancel is called when the user quits early; the
// run still waits for its workers to drain.
func NewModel(cfg runner.Config, events <-chan coordinator.Event, cancel context.CancelFunc) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Active
	return Model{
		Cfg:       cfg,
		Progress:  progress.New(progress.WithDefaultGradient()),
		Spinner:   sp,
		StartTime: time.Now(),
		events:    events,
		cancel:    cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), m.Spinner.Tick, tickCmd())
}

func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return eventMsg{Kind: coordinator.EventCompleted}
		}
		return eventMsg(ev)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Progress.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			// A second press leaves the view; the run keeps draining.
			if m.Quitting {
				return m, tea.Quit
			}
			m.Quitting = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case eventMsg:
		switch msg.Kind {
		case coordinator.EventSpawned:
			m.Spawned++
		case coordinator.EventExited:
			m.Exited++
			if msg.Err != nil {
				m.Abnormal++
			}
		case coordinator.EventCompleted:
			m.Done = true
			m.Report = msg.Report
			m.Err = msg.Err
			return m, tea.Quit
		}
		return m, tea.Batch(m.Progress.SetPercent(m.percent()), m.waitForEvent())

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.Progress.Update(msg)
		m.Progress = progressModel.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) percent() float64 {
	if m.Cfg.Workers < 1 {
		return 1
	}
	return float64(m.Exited) / float64(m.Cfg.Workers)
}

func (m Model) View() string {
	if m.Done {
		return ""
	}

	s := strings.Builder{}

	s.WriteString(styles.Title.Render("headbench"))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("Target: %s\n", m.Cfg.TargetURL()))
	s.WriteString(fmt.Sprintf("Requests: %d | Workers: %d | Concurrency: %d\n", m.Cfg.Requests, m.Cfg.Workers, m.Cfg.Concurrency))
	s.WriteString(styles.Subtle.Render(fmt.Sprintf("Elapsed: %s", time.Since(m.StartTime).Round(100*time.Millisecond))))
	s.WriteString("\n\n")

	status := fmt.Sprintf("%s workers exited %s/%d (spawned %d)",
		m.Spinner.View(), styles.Value.Render(fmt.Sprint(m.Exited)), m.Cfg.Workers, m.Spawned)
	if m.Abnormal > 0 {
		status += " " + styles.Error.Render(fmt.Sprintf("abnormal: %d", m.Abnormal))
	}
	s.WriteString(status)
	s.WriteString("\n\n")
	s.WriteString(m.Progress.View())
	s.WriteString("\n")
	if m.Quitting {
		s.WriteString(styles.Warn.Render("Stopping, waiting for in-flight requests..."))
	} else {
		s.WriteString(styles.RenderKey("q", "stop admitting requests"))
	}
	s.WriteString("\n")

	return s.String()
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
