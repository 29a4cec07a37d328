package chat

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"maple-party/internal/realtime"
)

// Feed carries realtime callbacks into the program. Its methods never block:
// when the view falls behind, the oldest pending item is dropped.
type Feed struct {
	states   chan realtime.State
	messages chan realtime.ChatMessage
}

func NewFeed() *Feed {
	return &Feed{
		states:   make(chan realtime.State, 16),
		messages: make(chan realtime.ChatMessage, 256),
	}
}

func (f *Feed) States() <-chan realtime.State {
	return f.states
}

func (f *Feed) Messages() <-chan realtime.ChatMessage {
	return f.messages
}

func (f *Feed) OnState(s realtime.State) {
	offerLatest(f.states, s)
}

func (f *Feed) OnMessage(msg realtime.ChatMessage) {
	offerLatest(f.messages, msg)
}

// Run shows the chat until the user quits or ctx ends.
func Run(ctx context.Context, deps Deps) error {
	m := New(ctx, deps)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	m.cleanup()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("chat view: %w", err)
	}
	return nil
}
