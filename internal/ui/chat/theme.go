package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"maple-party/internal/realtime"
)

var (
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	senderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	badgeStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true)
)

func statusBadge(status realtime.Status) string {
	style := badgeStyle
	switch status {
	case realtime.StatusJoined:
		style = style.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("10"))
	case realtime.StatusConnected:
		style = style.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("39"))
	case realtime.StatusConnecting:
		style = style.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("220"))
	default:
		style = style.Foreground(lipgloss.Color("15")).Background(lipgloss.Color("236"))
	}
	return style.Render(status.String())
}

func frame(content string, width int) string {
	inner := max(width-panelStyle.GetHorizontalFrameSize(), 1)
	return panelStyle.Width(inner).Render(content)
}

// truncateLines cuts every line to width display cells.
func truncateLines(content string, width int) string {
	if width <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if ansi.StringWidth(line) > width {
			lines[i] = ansi.Truncate(line, width, "…")
		}
	}
	return strings.Join(lines, "\n")
}

func appendLinesWithLimit(current []string, next string, limit int) []string {
	normalized := strings.ReplaceAll(next, "\r\n", "\n")
	normalized = strings.TrimSuffix(normalized, "\n")
	current = append(current, strings.Split(normalized, "\n")...)
	if len(current) > limit {
		current = append([]string(nil), current[len(current)-limit:]...)
	}
	return current
}
