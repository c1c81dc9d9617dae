// Package inbox renders retrieved messages as an interactive list with a
// per-message detail view. It operates purely on already-retrieved data;
// no transport session is held while the viewer runs.
package inbox

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mailvault/internal/mailer"
	"github.com/nhle/mailvault/internal/model"
	"github.com/nhle/mailvault/internal/theme"
)

// messageItem wraps a model.IncomingMessage so it can be used in a
// bubbles/list.
type messageItem struct {
	msg model.IncomingMessage
}

// FilterValue returns the string used for fuzzy filtering.
func (i messageItem) FilterValue() string {
	return i.msg.Subject + " " + i.msg.From
}

// Title returns the message subject for the list.
func (i messageItem) Title() string {
	if i.msg.Subject == "" {
		return "(no subject)"
	}
	return i.msg.Subject
}

// Description returns a short summary line for the list.
func (i messageItem) Description() string {
	parts := []string{i.msg.From}
	if !i.msg.Date.IsZero() {
		parts = append(parts, i.msg.Date.Format("2006-01-02 15:04"))
	}
	if n := len(i.msg.Attachments); n > 0 {
		parts = append(parts, fmt.Sprintf("%d attachment(s)", n))
	}
	return strings.Join(parts, " | ")
}

// Model is the bubbletea model for the inbox viewer.
type Model struct {
	list     list.Model
	failures []mailer.ItemFailure
	selected *model.IncomingMessage
	width    int
	height   int
}

// New creates an inbox viewer over retrieved messages and per-item
// failures.
func New(messages []model.IncomingMessage, failures []mailer.ItemFailure) Model {
	items := make([]list.Item, 0, len(messages))
	for _, msg := range messages {
		items = append(items, messageItem{msg: msg})
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = fmt.Sprintf("Inbox (%d messages)", len(messages))
	l.SetShowStatusBar(false)

	return Model{list: l, failures: failures}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-2)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.selected != nil {
				m.selected = nil
				return m, nil
			}
			return m, tea.Quit

		case "esc":
			if m.selected != nil {
				m.selected = nil
				return m, nil
			}

		case "enter":
			if m.selected == nil {
				if item, ok := m.list.SelectedItem().(messageItem); ok {
					m.selected = &item.msg
				}
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if m.selected != nil {
		return m.detailView()
	}

	var b strings.Builder
	b.WriteString(m.list.View())
	if len(m.failures) > 0 {
		b.WriteString("\n")
		b.WriteString(theme.ErrorStyle.Render(
			fmt.Sprintf("%d message(s) could not be retrieved", len(m.failures)),
		))
	}
	return b.String()
}

// detailView renders the selected message.
func (m Model) detailView() string {
	msg := m.selected

	var b strings.Builder
	b.WriteString(theme.LabelStyle.Render("From: "))
	b.WriteString(msg.From)
	b.WriteString("\n")
	b.WriteString(theme.LabelStyle.Render("To: "))
	b.WriteString(strings.Join(msg.Recipients, ", "))
	b.WriteString("\n")
	b.WriteString(theme.LabelStyle.Render("Subject: "))
	b.WriteString(msg.Subject)
	b.WriteString("\n")
	if !msg.Date.IsZero() {
		b.WriteString(theme.LabelStyle.Render("Date: "))
		b.WriteString(msg.Date.Format("2006-01-02 15:04:05"))
		b.WriteString("\n")
	}
	for _, att := range msg.Attachments {
		b.WriteString(theme.LabelStyle.Render("Attachment: "))
		b.WriteString(fmt.Sprintf("%s (%d bytes)", att.Filename, len(att.Data)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(msg.Body)

	detail := theme.DetailPanelStyle.Render(b.String())
	help := theme.HelpStyle.Render("esc: back to list | q: quit")
	return detail + "\n" + help
}

// Run retrieves nothing itself; it displays already-retrieved messages
// until the user quits.
func Run(messages []model.IncomingMessage, failures []mailer.ItemFailure) error {
	p := tea.NewProgram(New(messages, failures), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running inbox viewer: %w", err)
	}
	return nil
}
