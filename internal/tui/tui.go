// Package tui provides the terminal interface over the task store.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AnsonZhang2009/playground-todo-list/internal/client/taskstore"
	"github.com/AnsonZhang2009/playground-todo-list/internal/models"
)

// Run starts the TUI over the given store and blocks until the user quits.
func Run(ctx context.Context, store *taskstore.Store) error {
	m := newModel(store)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	unsubscribe := store.Subscribe(func() {
		program.Send(storeChangedMsg{})
	})
	defer unsubscribe()

	_, err := program.Run()
	return err
}

type storeChangedMsg struct{}

type opDoneMsg struct{}

type model struct {
	store  *taskstore.Store
	tasks  []models.Task
	cursor int

	adding bool
	input  []rune

	loading bool
	errMsg  string
}

func newModel(store *taskstore.Store) *model {
	return &model{store: store}
}

func (m *model) Init() tea.Cmd {
	return m.fetchCmd()
}

func (m *model) fetchCmd() tea.Cmd {
	return func() tea.Msg {
		m.store.FetchAll(context.Background(), nil)
		return opDoneMsg{}
	}
}

func (m *model) refresh() {
	m.tasks = m.store.Tasks()
	m.loading = m.store.Loading()
	m.errMsg = m.store.Err()
	if m.cursor >= len(m.tasks) {
		m.cursor = len(m.tasks) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case storeChangedMsg, opDoneMsg:
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if m.adding {
			return m.updateAdding(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m *model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "j", "down":
		if m.cursor < len(m.tasks)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "r":
		return m, m.fetchCmd()
	case "a":
		m.adding = true
		m.input = nil
	case " ", "enter":
		if task := m.selected(); task != nil {
			id := task.ID
			return m, func() tea.Msg {
				m.store.Toggle(context.Background(), id)
				return opDoneMsg{}
			}
		}
	case "d":
		if task := m.selected(); task != nil {
			id := task.ID
			return m, func() tea.Msg {
				m.store.Remove(context.Background(), id)
				return opDoneMsg{}
			}
		}
	}
	return m, nil
}

func (m *model) updateAdding(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.adding = false
		m.input = nil
	case "enter":
		title := strings.TrimSpace(string(m.input))
		m.adding = false
		m.input = nil
		if title == "" {
			return m, nil
		}
		return m, func() tea.Msg {
			m.store.Create(context.Background(), models.NewTask{Title: title})
			return opDoneMsg{}
		}
	case "backspace":
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	default:
		if msg.Type == tea.KeyRunes {
			m.input = append(m.input, msg.Runes...)
		}
		if msg.Type == tea.KeySpace {
			m.input = append(m.input, ' ')
		}
	}
	return m, nil
}

func (m *model) selected() *models.Task {
	if m.cursor < 0 || m.cursor >= len(m.tasks) {
		return nil
	}
	return &m.tasks[m.cursor]
}

func (m *model) View() string {
	var b strings.Builder

	b.WriteString("  todo\n\n")

	if m.loading {
		b.WriteString("  loading...\n\n")
	}

	if len(m.tasks) == 0 && !m.loading {
		b.WriteString("  no tasks\n")
	}
	for i, t := range m.tasks {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		check := "[ ]"
		if t.Completed {
			check = "[x]"
		}
		pending := ""
		if t.ID < 0 {
			pending = " (saving...)"
		}
		b.WriteString(fmt.Sprintf("%s%s %s  due %s%s\n",
			cursor, check, t.Title, t.DueDate.Format("2006-01-02"), pending))
	}

	b.WriteString(fmt.Sprintf("\n  %d pending / %d done\n",
		len(m.store.PendingTasks()), len(m.store.CompletedTasks())))

	if m.errMsg != "" {
		b.WriteString(fmt.Sprintf("\n  error: %s\n", m.errMsg))
	}

	if m.adding {
		b.WriteString(fmt.Sprintf("\n  new task: %s█\n  enter to save, esc to cancel\n", string(m.input)))
	} else {
		b.WriteString("\n  a add · space toggle · d delete · r refresh · q quit\n")
	}

	return b.String()
}
