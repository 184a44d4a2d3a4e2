// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the channels back to the write loop
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// FrequencyChangeMsg is a frequency requested from the keyboard
type FrequencyChangeMsg struct {
	Frequency float64
}

// QuitMsg asks the application to stop
type QuitMsg struct{}

// FrequencyControl holds channels from the TUI to the tone stream
type FrequencyControl struct {
	Changes chan FrequencyChangeMsg
	Quit    chan QuitMsg
}

// NewFrequencyControl creates a new control handler
func NewFrequencyControl() *FrequencyControl {
	return &FrequencyControl{
		Changes: make(chan FrequencyChangeMsg, 10),
		Quit:    make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(setup Setup, frequency float64, ctrl *FrequencyControl) Model {
	return Model{
		setup:     setup,
		frequency: frequency,
		control:   ctrl,
	}
}

// Run creates the TUI program
func Run(setup Setup, frequency float64, ctrl *FrequencyControl) *tea.Program {
	return tea.NewProgram(NewModel(setup, frequency, ctrl), tea.WithAltScreen())
}
