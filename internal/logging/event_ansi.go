package logging

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	ansiOnce sync.Once

	tsStyle        lipgloss.Style
	componentStyle lipgloss.Style
	messageStyle   lipgloss.Style
	keyStyle       lipgloss.Style
	valueStyle     lipgloss.Style
	badgeBase      lipgloss.Style
)

// initANSIStyles pins the color profile: events are rendered for the chat
// log pane even when stderr is not a terminal.
func initANSIStyles() {
	ansiOnce.Do(func() {
		lipgloss.SetColorProfile(termenv.ANSI256)
		tsStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
		componentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
		messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
		keyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("117"))
		valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
		badgeBase = lipgloss.NewStyle().Bold(true).Width(5)
	})
}

// FormatEventANSI renders event as one colored line.
func FormatEventANSI(event Event) string {
	initANSIStyles()
	var b strings.Builder
	b.WriteString(tsStyle.Render(event.Time.Format("15:04:05.000")))
	b.WriteByte(' ')
	b.WriteString(levelBadge(event.Level))
	b.WriteByte(' ')
	if event.Component != "" {
		b.WriteString(componentStyle.Render(event.Component))
		b.WriteByte(' ')
	}
	b.WriteString(messageStyle.Render(event.Message))
	for _, key := range sortedFieldKeys(event.Fields) {
		b.WriteByte(' ')
		b.WriteString(keyStyle.Render(key + "="))
		b.WriteString(valueStyle.Render(fieldText(key, event.Fields[key])))
	}
	b.WriteByte('\n')
	return b.String()
}

func levelBadge(level slog.Level) string {
	switch {
	case level <= slog.LevelDebug:
		return badgeBase.Foreground(lipgloss.Color("245")).Render("DEBUG")
	case level <= slog.LevelInfo:
		return badgeBase.Foreground(lipgloss.Color("39")).Render("INFO")
	case level <= slog.LevelWarn:
		return badgeBase.Foreground(lipgloss.Color("214")).Render("WARN")
	default:
		return badgeBase.Foreground(lipgloss.Color("196")).Render("ERROR")
	}
}
