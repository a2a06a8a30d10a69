// Package tui is the interactive shopping list: an input row, a header
// with counts and a scrollable list of cards. It renders whatever rows
// it was last sent and emits intents; it never edits rows itself.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/idilsaglam/shoplist/internal/model"
	"github.com/idilsaglam/shoplist/internal/ui"
)

// Intents is what the TUI asks of the Mutation Dispatcher.
type Intents interface {
	Add(ctx context.Context, text string) bool
	Delete(ctx context.Context, id string)
	TogglePurchased(ctx context.Context, id string, current bool)
}

// RowsMsg carries a freshly synchronized list into the program.
type RowsMsg []model.Row

// addedMsg reports an add write. text is the raw input that was submitted.
type addedMsg struct {
	text string
	ok   bool
}

type focus int

const (
	focusInput focus = iota
	focusList
)

// listItem adapts a view row to bubbles/list.Item.
type listItem struct {
	row model.Row
}

func (i listItem) Title() string       { return i.row.Text }
func (i listItem) Description() string { return ui.FormatCreated(i.row.CreatedAt) }
func (i listItem) FilterValue() string { return i.row.Text }

// cardDelegate renders each row as a two-line card.
type cardDelegate struct{}

func (d cardDelegate) Height() int                               { return 2 }
func (d cardDelegate) Spacing() int                              { return 1 }
func (d cardDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d cardDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}
	t := ui.Current()

	text := it.row.Text
	meta := ui.FormatCreated(it.row.CreatedAt)
	trash := t.Error.Render(t.SymTrash)
	if it.row.IsPurchased {
		text = t.Purchased.Render(text)
		trash = t.Muted.Render(t.SymTrash)
	}

	prefix := "  "
	if index == m.Index() {
		prefix = t.Selected.Render(">") + " "
	}
	fmt.Fprintf(w, "%s%s %s\n", prefix, ui.Box(it.row.IsPurchased), text)
	fmt.Fprintf(w, "    %s  %s", t.Muted.Render(meta), trash)
}

type Model struct {
	ctx     context.Context
	intents Intents

	rows  []model.Row
	list  list.Model
	input textinput.Model
	focus focus
	width int
}

var (
	toggleBind = key.NewBinding(key.WithKeys(" ", "space", "enter"), key.WithHelp("space", "toggle purchased"))
	deleteBind = key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete"))
	addBind    = key.NewBinding(key.WithKeys("a", "tab"), key.WithHelp("a/tab", "add"))
)

// New builds the model. ctx bounds the writes it issues.
func New(ctx context.Context, intents Intents) Model {
	l := list.New(nil, cardDelegate{}, 0, 0)
	l.Title = ui.Header(nil)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.Styles.Title = lipgloss.NewStyle()
	l.Styles.HelpStyle = ui.Current().Help
	l.Styles.PaginationStyle = ui.Current().Help
	l.SetStatusBarItemName("product", "products")
	l.AdditionalShortHelpKeys = func() []key.Binding { return []key.Binding{addBind, toggleBind, deleteBind} }
	l.AdditionalFullHelpKeys = func() []key.Binding { return []key.Binding{addBind, toggleBind, deleteBind} }

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Add a product..."
	ti.CharLimit = 200
	ti.Focus()

	return Model{
		ctx:     ctx,
		intents: intents,
		rows:    []model.Row{},
		list:    l,
		input:   ti,
		focus:   focusInput,
		width:   80,
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

// Rows is the list currently on screen.
func (m Model) Rows() []model.Row { return m.rows }

// InputValue is the current input buffer.
func (m Model) InputValue() string { return m.input.Value() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.list.SetSize(msg.Width-4, max(msg.Height-8, 4))
		return m, nil

	case RowsMsg:
		cmd := m.setRows(msg)
		return m, cmd

	case addedMsg:
		// Clear only what was submitted; the user may have typed since.
		if msg.ok && m.input.Value() == msg.text {
			m.input.SetValue("")
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.focus == focusInput {
			return m.updateInput(msg)
		}
		return m.updateList(msg)
	}

	var cmd tea.Cmd
	if m.focus == focusInput {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m *Model) setRows(rows []model.Row) tea.Cmd {
	m.rows = rows
	items := make([]list.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, listItem{row: r})
	}
	m.list.Title = ui.Header(rows)
	return m.list.SetItems(items)
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		return m, m.addCmd(text)
	case "tab", "esc":
		m.focus = focusList
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "q" || msg.String() == "esc":
		return m, tea.Quit
	case key.Matches(msg, addBind):
		m.focus = focusInput
		cmd := m.input.Focus()
		return m, cmd
	case key.Matches(msg, toggleBind):
		if row, ok := m.selected(); ok {
			return m, m.toggleCmd(row.ID, row.IsPurchased)
		}
		return m, nil
	case key.Matches(msg, deleteBind):
		// Purchased cards cannot be deleted.
		if row, ok := m.selected(); ok && !row.IsPurchased {
			return m, m.deleteCmd(row.ID)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) selected() (model.Row, bool) {
	it, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return model.Row{}, false
	}
	return it.row, true
}

// -------------- intents ----------------

func (m Model) addCmd(text string) tea.Cmd {
	ctx, in := m.ctx, m.intents
	return func() tea.Msg {
		return addedMsg{text: text, ok: in.Add(ctx, text)}
	}
}

func (m Model) toggleCmd(id string, current bool) tea.Cmd {
	ctx, in := m.ctx, m.intents
	return func() tea.Msg {
		in.TogglePurchased(ctx, id, current)
		return nil
	}
}

func (m Model) deleteCmd(id string) tea.Cmd {
	ctx, in := m.ctx, m.intents
	return func() tea.Msg {
		in.Delete(ctx, id)
		return nil
	}
}

// -------------- view ----------------

func (m Model) View() string {
	t := ui.Current()
	bar := lipgloss.NewStyle().
		Border(t.Border).
		BorderForeground(t.BorderColor).
		Padding(0, 1).
		Width(max(m.width-6, 20))

	title := "Add product"
	if m.focus == focusInput {
		title = t.Accent.Render(title) + t.Muted.Render("  enter to add · tab to list")
	} else {
		title = t.Muted.Render(title + "  a/tab to type")
	}
	inputRow := bar.Render(title + "\n" + m.input.View())

	return panelString(lipgloss.JoinVertical(lipgloss.Left, inputRow, m.list.View()))
}

func panelString(inner string) string {
	t := ui.Current()
	return lipgloss.NewStyle().
		Border(t.Border).
		BorderForeground(t.BorderColor).
		Padding(0, 1).
		Render(inner)
}
