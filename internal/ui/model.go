// ABOUTME: Bubbletea model for the tone generator TUI
// ABOUTME: Defines display state, key handling and rendering
package ui

import (
	"fmt"
	"time"

	"github.com/Resonate-Protocol/sinetone/pkg/audio"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/hwparams"
	"github.com/Resonate-Protocol/sinetone/pkg/tone"
	tea "github.com/charmbracelet/bubbletea"
)

// Frequency steps for the arrow and page keys
const (
	fineStep   = 10.0
	coarseStep = 100.0
)

// Setup is the negotiated configuration shown in the header
type Setup struct {
	Device   string
	Stream   audio.StreamConfig
	Software hwparams.SoftwareParams
	Resample bool
}

// Model represents the TUI state
type Model struct {
	setup Setup

	// Requested frequency; the stream reports what it is playing in stats
	frequency float64
	stats     tone.Stats

	showDebug bool
	control   *FrequencyControl

	// Dimensions
	width  int
	height int
}

// StatsMsg carries a stream progress snapshot
type StatsMsg tone.Stats

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatsMsg:
		m.stats = tone.Stats(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderTone()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders the device and negotiated stream
func (m Model) renderHeader() string {
	cfg := m.setup.Stream
	return fmt.Sprintf(`┌─ Sine Tone ──────────────────────────────────────────┐
│ Device: %-44s │
│ Format: %-44s │
│ Buffer: %-44s │
├──────────────────────────────────────────────────────┤
`,
		truncate(m.setup.Device, 44),
		truncate(fmt.Sprintf("%s %dHz %s", cfg.Format, cfg.Rate, channelName(cfg.Channels)), 44),
		truncate(fmt.Sprintf("%d frames, period %d (%s)", cfg.BufferSize, cfg.PeriodSize, cfg.Access), 44))
}

// renderTone renders the frequency and level meter
func (m Model) renderTone() string {
	playing := m.stats.Frequency
	if playing == 0 {
		playing = m.frequency
	}

	level := int(m.stats.Level * 100)
	return fmt.Sprintf("│ Tone:   %-44s │\n"+
		"│ Level:  [%s] %3d%%%-26s │\n",
		fmt.Sprintf("%.2fHz (requested %.2fHz)", playing, m.frequency),
		renderBar(level, 100, 10), level, "")
}

// renderStats renders write loop counters
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Stats:  %-44s │
│         %-44s │
`,
		truncate(fmt.Sprintf("Frames: %d  Periods: %d", m.stats.Frames, m.stats.Periods), 44),
		truncate(fmt.Sprintf("Underruns: %d  Elapsed: %s", m.stats.Underruns, m.stats.Elapsed.Truncate(100*time.Millisecond)), 44))
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ ↑/↓:±10Hz  PgUp/PgDn:±100Hz  d:Debug  q:Quit         │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders software parameters
func (m Model) renderDebug() string {
	sw := m.setup.Software
	return fmt.Sprintf("│ DEBUG:%-47s │\n│   %-50s │\n│   %-50s │\n",
		"",
		truncate(fmt.Sprintf("start_threshold=%d avail_min=%d period_event=%v", sw.StartThreshold, sw.AvailMin, sw.PeriodEvent), 50),
		truncate(fmt.Sprintf("resample=%v", m.setup.Resample), 50))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.control != nil {
			select {
			case m.control.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		m.setFrequency(m.frequency + fineStep)
	case "down":
		m.setFrequency(m.frequency - fineStep)
	case "pgup":
		m.setFrequency(m.frequency + coarseStep)
	case "pgdown":
		m.setFrequency(m.frequency - coarseStep)
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// setFrequency clamps hz and forwards the change
func (m *Model) setFrequency(hz float64) {
	hz = tone.ClampFrequency(hz)
	if hz == m.frequency {
		return
	}
	m.frequency = hz

	if m.control != nil {
		select {
		case m.control.Changes <- FrequencyChangeMsg{Frequency: hz}:
		default:
		}
	}
}

// Utility functions
func renderBar(value, max, width int) string {
	if value < 0 {
		value = 0
	}
	if value > max {
		value = max
	}
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	switch channels {
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	default:
		return fmt.Sprintf("%d channels", channels)
	}
}
