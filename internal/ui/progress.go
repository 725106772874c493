// Package ui renders live pass progress in a terminal.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"irlower/internal/passes"
)

type progressModel struct {
	title   string
	events  <-chan passes.Event
	spinner spinner.Model
	prog    progress.Model
	items   []passItem
	index   map[string]int
	failed  string
	width   int
	done    bool
}

type passItem struct {
	name   string
	status passes.Status
	note   string
}

type eventMsg passes.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that shows every pass of names
// with its status. The model quits when events is closed.
func NewProgressModel(title string, names []string, events <-chan passes.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]passItem, 0, len(names))
	index := make(map[string]int, len(names))
	for i, name := range names {
		items = append(items, passItem{name: name, status: passes.StatusQueued})
		index[name] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(passes.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	switch {
	case m.failed != "":
		header = fmt.Sprintf("failed: %s (%s)", header, m.failed)
	case m.done:
		header = "done: " + header
	default:
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	nameWidth := max(m.width-12-4-16, 20)
	for _, item := range m.items {
		status := styleStatus(item.status).Render(fmt.Sprintf("%10s", item.status))
		fmt.Fprintf(&b, "  %s %s", status, pad(truncate(item.name, nameWidth), nameWidth))
		if item.note != "" {
			b.WriteString(" ")
			b.WriteString(item.note)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done && m.failed == "" {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev passes.Event) tea.Cmd {
	idx, ok := m.index[ev.Pass]
	if !ok {
		return nil
	}
	item := &m.items[idx]
	item.status = ev.Status
	switch ev.Status {
	case passes.StatusDone:
		item.note = fmt.Sprintf("%d iter, %s", ev.Iterations, ev.Elapsed.Round(time.Microsecond))
	case passes.StatusError:
		m.failed = ev.Pass
	}
	if len(m.items) == 0 {
		return nil
	}
	return m.prog.SetPercent(completion(m.items))
}

// completion counts a running pass as half done.
func completion(items []passItem) float64 {
	total := 0.0
	for _, item := range items {
		switch item.status {
		case passes.StatusDone, passes.StatusError:
			total += 1.0
		case passes.StatusWorking:
			total += 0.5
		}
	}
	return total / float64(len(items))
}

func styleStatus(status passes.Status) lipgloss.Style {
	switch status {
	case passes.StatusDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case passes.StatusError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case passes.StatusWorking:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}

func pad(value string, width int) string {
	return runewidth.FillRight(value, width)
}
