package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headbench/internal/coordinator"
	"headbench/internal/runner"
)

func newTestModel() Model {
	cfg := runner.Default()
	cfg.Workers = 2
	return NewModel(cfg, make(chan coordinator.Event), nil)
}

func update(m tea.Model, msg tea.Msg) tea.Model {
	next, _ := m.Update(msg)
	return next
}

func TestModelCountsExits(t *testing.T) {
	var m tea.Model = newTestModel()

	m = update(m, eventMsg{Kind: coordinator.EventSpawned, Index: 0})
	m = update(m, eventMsg{Kind: coordinator.EventSpawned, Index: 1})
	m = update(m, eventMsg{Kind: coordinator.EventExited, Index: 0})
	m = update(m, eventMsg{Kind: coordinator.EventExited, Index: 1, Err: errors.New("exit status 1")})

	got := m.(Model)
	assert.Equal(t, 2, got.Spawned)
	assert.Equal(t, 2, got.Exited)
	assert.Equal(t, 1, got.Abnormal)
	assert.InDelta(t, 1.0, got.percent(), 1e-9)
	assert.Contains(t, got.View(), "abnormal: 1")
	assert.Nil(t, got.Report)
}

func requireQuit(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	require.True(t, ok, "expected the program to quit")
}

func TestModelQuitsOnCompleted(t *testing.T) {
	rep := &coordinator.Report{Requests: 10, Workers: 2}
	next, cmd := newTestModel().Update(eventMsg{Kind: coordinator.EventCompleted, Report: rep})

	requireQuit(t, cmd)
	got := next.(Model)
	assert.Same(t, rep, got.Report)
	assert.True(t, got.Done)
	assert.Empty(t, got.View())
}

func TestModelQuitsWhenRunFails(t *testing.T) {
	runErr := errors.New("invalid config: concurrency must be >= 1, got 0")
	next, cmd := newTestModel().Update(eventMsg{Kind: coordinator.EventCompleted, Err: runErr})

	requireQuit(t, cmd)
	got := next.(Model)
	assert.Nil(t, got.Report)
	assert.Equal(t, runErr, got.Err)
	assert.Empty(t, got.View())
}

func TestModelQuitsWhenEventsClose(t *testing.T) {
	events := make(chan coordinator.Event)
	close(events)
	m := NewModel(runner.Default(), events, nil)

	msg := m.waitForEvent()()
	_, cmd := m.Update(msg)
	requireQuit(t, cmd)
}

func TestModelSecondQuitLeaves(t *testing.T) {
	calls := 0
	m := NewModel(runner.Default(), make(chan coordinator.Event), func() { calls++ })
	q := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}

	next, cmd := m.Update(q)
	assert.Nil(t, cmd)
	next, cmd = next.Update(q)
	requireQuit(t, cmd)
	assert.Equal(t, 1, calls)
	assert.True(t, next.(Model).Quitting)
}

func TestModelQuitCancels(t *testing.T) {
	cancelled := false
	cfg := runner.Default()
	m := NewModel(cfg, make(chan coordinator.Event), func() { cancelled = true })

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.True(t, cancelled)
	assert.True(t, next.(Model).Quitting)
	assert.Contains(t, next.(Model).View(), "waiting for in-flight requests")
}
