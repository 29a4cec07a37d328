package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Console prints alerts as framed boxes and asks confirmations with a huh
// prompt. It serializes calls so prompts never interleave.
type Console struct {
	Out io.Writer
	// Ask overrides the interactive prompt; nil uses huh.
	Ask func(ctx context.Context, msg Message) (bool, error)

	mu sync.Mutex
}

func (c *Console) Alert(ctx context.Context, msg Message) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.Out, RenderBox(msg, 60))
	return err == nil, err
}

func (c *Console) Confirm(ctx context.Context, msg Message) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ask := c.Ask
	if ask == nil {
		ask = askWithForm
	}
	return ask(ctx, msg)
}

func askWithForm(ctx context.Context, msg Message) (bool, error) {
	accepted := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(titleOrKind(msg)).
			Description(msg.Text).
			Affirmative("Yes").
			Negative("No").
			Value(&accepted),
	))
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return accepted, nil
}

var kindColors = map[Kind]lipgloss.Color{
	Info:    lipgloss.Color("39"),
	Success: lipgloss.Color("42"),
	Warning: lipgloss.Color("214"),
	Error:   lipgloss.Color("196"),
}

// RenderBox renders msg as a bordered block no wider than width.
func RenderBox(msg Message, width int) string {
	color := kindColors[msg.Kind]
	title := lipgloss.NewStyle().Bold(true).Foreground(color).Render(titleOrKind(msg))
	body := lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Render(msg.Text)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1)
	if width > 4 {
		box = box.MaxWidth(width)
	}
	return box.Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}

func titleOrKind(msg Message) string {
	if msg.Title != "" {
		return msg.Title
	}
	switch msg.Kind {
	case Success:
		return "Done"
	case Warning:
		return "Warning"
	case Error:
		return "Error"
	default:
		return "Notice"
	}
}
