package chat

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"maple-party/internal/notify"
)

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	header := m.headerLine()
	body := frame(m.body.View(), m.width)
	var footer string
	if m.modal != nil {
		footer = m.help.View(modalHelp{keys: m.keys, confirm: m.modal.Confirm})
	} else {
		footer = m.help.View(m.keys)
	}
	screen := strings.Join([]string{header, body, m.input.View(), footer}, "\n")
	if m.modal == nil {
		return screen
	}
	box := notify.RenderBox(m.modal.Message, min(m.width-4, 60))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m *Model) headerLine() string {
	title := titleStyle.Render("maple-party")
	if m.deps.Party != nil {
		if id, ok := m.deps.Party.PartyRecruitID(); ok {
			title += titleStyle.Render(" · party " + strconv.FormatInt(id, 10))
		}
	}
	if m.showLogs {
		title += " " + mutedStyle.Render("[logs]")
	}
	line := title + " " + statusBadge(m.state.Status())
	if m.lastErr != "" {
		line += " " + errorStyle.Render(m.lastErr)
	}
	return truncateLines(line, m.width)
}
