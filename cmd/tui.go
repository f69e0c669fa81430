// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/crsfscope/internal/monitor"
	"github.com/Thermoquad/crsfscope/pkg/crsf"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// TUI model
type model struct {
	connInfo      string
	mon           *monitor.Monitor
	statsInterval int
	showAll       bool
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	rejected      int
	closed        bool
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type frameEventMsg monitor.Event
type syncMsg struct {
	rejected int
}
type connectionClosedMsg struct{}

// formatUptime formats a duration as a human-friendly string
func formatUptime(d time.Duration) string {
	if d < time.Second {
		return "0 seconds"
	}

	seconds := uint64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}

	// Join with commas and "and" for last item
	if len(parts) == 1 {
		return parts[0]
	}
	if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], ", ")
	return rest + ", and " + last
}

func plural(n uint64, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func initialModel(connInfo string, mon *monitor.Monitor, statsInterval int, showAll bool) model {
	return model{
		connInfo:      connInfo,
		mon:           mon,
		statsInterval: statsInterval,
		showAll:       showAll,
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.mon.ResetStats()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		// Re-render with fresh rates
		return m, tickCmd()

	case syncMsg:
		m.synchronized = true
		m.rejected = msg.rejected
		if msg.rejected > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after rejecting %d candidate frames", msg.rejected), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case connectionClosedMsg:
		m.closed = true
		m.addLogEntry("Connection closed", true)

	case frameEventMsg:
		m.logEvent(monitor.Event(msg))
	}

	return m, nil
}

// logEvent adds log entries for one decoder outcome
func (m *model) logEvent(ev monitor.Event) {
	if ev.Err != nil {
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", ev.Err), true)
		return
	}

	frameType := crsf.FormatFrameType(ev.Frame.Type())
	if len(ev.Anomalies) > 0 {
		for _, err := range ev.Anomalies {
			m.addLogEntry(fmt.Sprintf("%s: %s", frameType, err.Message), true)
		}
	} else if m.showAll {
		m.addLogEntry(fmt.Sprintf("%s (valid)", frameType), false)
	}
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// tuiStyles holds the shared lipgloss styles of both TUIs
type tuiStyles struct {
	title      lipgloss.Style
	header     lipgloss.Style
	statsLabel lipgloss.Style
	statsValue lipgloss.Style
	error      lipgloss.Style
	warning    lipgloss.Style
	box        lipgloss.Style
}

func newTUIStyles() tuiStyles {
	return tuiStyles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		statsLabel: lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true),
		statsValue: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true),
		warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	st := newTUIStyles()
	snap := m.mon.Snapshot()

	// Header
	var s strings.Builder
	s.WriteString(st.title.Render("CRSFSCOPE - ERROR DETECTION"))
	s.WriteString("\n")
	s.WriteString(st.header.Render(fmt.Sprintf("%s | Mode: %s | 'r' reset stats, 'q' quit",
		m.connInfo, func() string {
			if m.showAll {
				return "All frames"
			}
			return "Errors only"
		}())))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.closed:
		s.WriteString(st.error.Render("✗ Connection closed"))
	case !m.synchronized:
		s.WriteString(st.warning.Render("⏳ Waiting for synchronization..."))
	default:
		s.WriteString(st.statsValue.Render("✓ Synchronized"))
		if m.rejected > 0 {
			s.WriteString(st.header.Render(fmt.Sprintf(" (rejected %d candidate frames)", m.rejected)))
		}
	}
	s.WriteString("\n\n")

	// Statistics
	s.WriteString(st.box.Render(renderStatistics(snap.Stats, st)))
	s.WriteString("\n\n")

	// Telemetry section (only shown if telemetry received)
	if snap.Channels.Valid || len(snap.Telemetry) > 0 {
		s.WriteString(st.statsLabel.Render("Latest Telemetry:"))
		s.WriteString("\n")
		s.WriteString(st.box.Render(renderTelemetry(snap, st)))
		s.WriteString("\n\n")
	}

	// Error log
	s.WriteString(st.statsLabel.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 20 // Reserve space for header, stats and telemetry
	if logHeight < 5 {
		logHeight = 5
	}
	s.WriteString(st.box.Width(m.width - 4).Render(renderEventLog(m.errorLog, logHeight, st)))

	return s.String()
}

// renderStatistics renders the statistics box content
func renderStatistics(stats monitor.StatsSnapshot, st tuiStyles) string {
	var validPercent, errorPercent float64
	if stats.TotalFrames > 0 {
		validPercent = float64(stats.ValidFrames) * 100.0 / float64(stats.TotalFrames)
		errorPercent = float64(stats.Errors) * 100.0 / float64(stats.TotalFrames)
	}

	var content strings.Builder
	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		st.statsLabel.Render("Total:"), st.statsValue.Render(fmt.Sprintf("%d", stats.TotalFrames)),
		st.statsLabel.Render("Valid:"), st.statsValue.Render(fmt.Sprintf("%d (%.1f%%)", stats.ValidFrames, validPercent)),
		st.statsLabel.Render("Errors:"), st.error.Render(fmt.Sprintf("%d (%.1f%%)", stats.Errors, errorPercent)),
	))

	if stats.CRCErrors > 0 || stats.HeaderErrors > 0 || stats.TruncatedFrames > 0 {
		content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			st.statsLabel.Render("CRC Errors:"), st.error.Render(fmt.Sprintf("%d", stats.CRCErrors)),
			st.statsLabel.Render("Header Errors:"), st.error.Render(fmt.Sprintf("%d", stats.HeaderErrors)),
			st.statsLabel.Render("Truncated:"), st.error.Render(fmt.Sprintf("%d", stats.TruncatedFrames)),
		))
	}

	if stats.MalformedFrames > 0 {
		content.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d)\n",
			st.statsLabel.Render("Malformed:"), st.error.Render(fmt.Sprintf("%d", stats.MalformedFrames)),
			st.header.Render("length mismatches"), stats.LengthMismatches,
			st.header.Render("unknown types"), stats.UnknownTypes,
		))
	}

	if stats.AnomalousValues > 0 {
		content.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d, %s: %d, %s: %d)\n",
			st.statsLabel.Render("Anomalous:"), st.warning.Render(fmt.Sprintf("%d", stats.AnomalousValues)),
			st.header.Render("channel range"), stats.ChannelRange,
			st.header.Render("link quality"), stats.LinkQuality,
			st.header.Render("battery"), stats.BatteryRange,
			st.header.Render("GPS"), stats.GPSRange,
		))
	}

	errRate := st.statsValue.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
	if stats.ErrorRate > 0 {
		errRate = st.error.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
	}
	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		st.statsLabel.Render("Frame Rate:"), st.statsValue.Render(fmt.Sprintf("%.1f frames/s", stats.FrameRate)),
		st.statsLabel.Render("Error Rate:"), errRate,
		st.statsLabel.Render("Uptime:"), st.statsValue.Render(formatUptime(time.Duration(stats.Uptime*float64(time.Second)))),
	))

	return content.String()
}

// renderTelemetry renders received channels and the latest message of each telemetry type
func renderTelemetry(snap monitor.Snapshot, st tuiStyles) string {
	var content strings.Builder

	if snap.Channels.Valid {
		content.WriteString(st.statsLabel.Render("RC_CHANNELS_PACKED (us)"))
		content.WriteString("\n")
		us := crsf.Channels(snap.Channels.Micros)
		content.WriteString(st.statsValue.Render(strings.TrimRight(crsf.FormatChannels(us), "\n")))
		content.WriteString("\n")
	}

	names := make([]string, 0, len(snap.Telemetry))
	for name := range snap.Telemetry {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entry := snap.Telemetry[name]
		content.WriteString(fmt.Sprintf("%s %s\n",
			st.statsLabel.Render(name),
			st.header.Render(fmt.Sprintf("x%d, %s ago", entry.Count, time.Since(entry.UpdatedAt).Truncate(time.Millisecond)))))
		content.WriteString(st.statsValue.Render(strings.TrimRight(crsf.FormatMessage(entry.Message), "\n")))
		content.WriteString("\n")
	}

	return strings.TrimRight(content.String(), "\n")
}

// renderEventLog renders the last height entries
func renderEventLog(entries []errorLogEntry, height int, st tuiStyles) string {
	var content strings.Builder
	startIdx := len(entries) - height
	if startIdx < 0 {
		startIdx = 0
	}

	if len(entries) == 0 {
		content.WriteString(st.header.Render("  (no events yet)"))
		return content.String()
	}

	for i := startIdx; i < len(entries); i++ {
		entry := entries[i]
		timestamp := entry.timestamp.Format("15:04:05.000")
		if entry.isError {
			content.WriteString(fmt.Sprintf("%s %s\n",
				st.header.Render(timestamp),
				st.error.Render("✗ "+entry.message),
			))
		} else {
			content.WriteString(fmt.Sprintf("%s %s\n",
				st.header.Render(timestamp),
				st.warning.Render("ℹ "+entry.message),
			))
		}
	}
	return content.String()
}
