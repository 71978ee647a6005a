package tui

import (
	"context"
	"fmt"

	"stripedl/internal/trigger"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the trigger until the user quits.
func Run(ctx context.Context, t *trigger.Trigger) error {
	p := tea.NewProgram(newModel(ctx, t), tea.WithContext(ctx))
	t.OnChange(func(s trigger.State) { p.Send(stateMsg(s)) })
	defer t.OnChange(nil)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run ui: %w", err)
	}
	return nil
}
