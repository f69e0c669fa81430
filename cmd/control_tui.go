// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/crsfscope/internal/monitor"
	"github.com/Thermoquad/crsfscope/pkg/crsf"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	minMicros    = 988  // Lowest stick position (172 ticks)
	maxMicros    = 2012 // Highest stick position (1811 ticks)
	centerMicros = 1500
	fineStep     = 10
	coarseStep   = 100
	barWidth     = 24
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	// Connection manager (for channel updates and reconnection)
	connMgr  *connectionManager
	connInfo string
	rate     float64

	// Channel editor
	micros    [crsf.NumChannels]uint16
	selected  int
	editing   bool
	editInput textinput.Model
	armed     bool

	// Devices that answered DEVICE_PING
	devices map[crsf.Address]crsf.DeviceInfo

	// Monitoring (reused from tui.go patterns)
	errorLog      []errorLogEntry
	maxLogEntries int

	// UI state
	width          int
	height         int
	synchronized   bool
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type controlSyncMsg struct {
	rejected int
}

type controlBatchMsg struct {
	events  []monitor.Event
	syncMsg *controlSyncMsg
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(connMgr *connectionManager, connInfo string, hz float64) controlModel {
	// Initialize text input for channel values
	ti := textinput.New()
	ti.Placeholder = strconv.Itoa(centerMicros)
	ti.CharLimit = 4
	ti.Width = 6

	m := controlModel{
		connMgr:       connMgr,
		connInfo:      connInfo,
		rate:          hz,
		editInput:     ti,
		devices:       make(map[crsf.Address]crsf.DeviceInfo),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
	for i := range m.micros {
		m.micros[i] = centerMicros
	}
	m.pushChannels()
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case controlTickMsg:
		return m, controlTickCmd()

	case controlBatchMsg:
		if msg.syncMsg != nil {
			m.synchronized = true
			if msg.syncMsg.rejected > 0 {
				m.addLogEntry(fmt.Sprintf("Synchronized after rejecting %d candidate frames", msg.syncMsg.rejected), false)
			} else {
				m.addLogEntry("Synchronized", false)
			}
		}
		for _, ev := range msg.events {
			m.processEvent(ev)
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.synchronized = false
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected - pinging devices", false)
	}

	if m.editing {
		var cmd tea.Cmd
		m.editInput, cmd = m.editInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editing {
		return m.handleEditKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		m.selected = (m.selected + crsf.NumChannels - 1) % crsf.NumChannels

	case "down", "j":
		m.selected = (m.selected + 1) % crsf.NumChannels

	case "left", "h":
		m.setMicros(m.selected, adjustMicros(m.micros[m.selected], -fineStep))

	case "right", "l":
		m.setMicros(m.selected, adjustMicros(m.micros[m.selected], fineStep))

	case "[":
		m.setMicros(m.selected, adjustMicros(m.micros[m.selected], -coarseStep))

	case "]":
		m.setMicros(m.selected, adjustMicros(m.micros[m.selected], coarseStep))

	case "c":
		m.setMicros(m.selected, centerMicros)

	case "C":
		for i := range m.micros {
			m.micros[i] = centerMicros
		}
		m.pushChannels()
		m.addLogEntry("All channels centered", false)

	case "enter":
		m.editing = true
		m.editInput.SetValue(strconv.Itoa(int(m.micros[m.selected])))
		m.editInput.CursorEnd()
		return m, m.editInput.Focus()

	case " ":
		m.armed = !m.armed
		m.connMgr.setArmed(m.armed)
		if m.armed {
			m.addLogEntry(fmt.Sprintf("Transmit ARMED at %.0f Hz", m.rate), false)
		} else {
			m.addLogEntry("Transmit disarmed", false)
		}

	case "p":
		if err := sendDevicePing(m.connMgr.getConn()); err != nil {
			m.addLogEntry(fmt.Sprintf("Failed to send DEVICE_PING: %v", err), true)
		} else {
			m.addLogEntry("Sent DEVICE_PING", false)
		}
	}

	return m, nil
}

func (m controlModel) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
		m.editInput.Blur()
		return m, nil

	case "enter":
		m.editing = false
		m.editInput.Blur()
		us, err := parseMicros(m.editInput.Value())
		if err != nil {
			m.addLogEntry(err.Error(), true)
			return m, nil
		}
		m.setMicros(m.selected, us)
		m.addLogEntry(fmt.Sprintf("CH%d = %d us", m.selected+1, us), false)
		return m, nil
	}

	var cmd tea.Cmd
	m.editInput, cmd = m.editInput.Update(msg)
	return m, cmd
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	st := newTUIStyles()
	snap := m.connMgr.mon.Snapshot()

	var s strings.Builder

	// Header
	s.WriteString(st.title.Render("CRSFSCOPE CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = st.warning.Render("RECONNECTING...")
	}
	s.WriteString(st.header.Render(fmt.Sprintf("| %s | q=quit space=arm enter=edit", connStatus)))
	s.WriteString("\n\n")

	// Layout: left panel (channels) | right panel (link)
	leftWidth := 44
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 30 {
		rightWidth = 30
	}

	channelPanel := st.box.Width(leftWidth).Render(m.renderChannels(st))
	linkPanel := st.box.Width(rightWidth).Render(m.renderLinkPanel(snap, st))
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, channelPanel, " ", linkPanel))
	s.WriteString("\n\n")

	// Statistics bar
	s.WriteString(m.renderStatisticsBar(snap.Stats, st))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(st.statsLabel.Render("EVENTS"))
	s.WriteString("\n")
	s.WriteString(st.box.Width(m.width - 4).Render(renderEventLog(m.errorLog, 8, st)))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderChannels(st tuiStyles) string {
	var s strings.Builder

	for i, us := range m.micros {
		label := fmt.Sprintf("CH%-2d", i+1)
		value := fmt.Sprintf("%4d us", us)
		if i == m.selected && m.editing {
			value = m.editInput.View()
		}

		line := fmt.Sprintf("%s %s %s", label, value, channelBar(us, barWidth))
		if i == m.selected {
			s.WriteString(st.statsValue.Render("> " + line))
		} else {
			s.WriteString("  " + line)
		}
		s.WriteString("\n")
	}

	return strings.TrimRight(s.String(), "\n")
}

func (m controlModel) renderLinkPanel(snap monitor.Snapshot, st tuiStyles) string {
	var s strings.Builder

	// Transmit state
	txState := st.warning.Render("DISARMED")
	if m.armed {
		txState = st.error.Render("ARMED")
	}
	s.WriteString(fmt.Sprintf("%s %s  %s %s\n",
		st.statsLabel.Render("TX:"), txState,
		st.statsLabel.Render("Rate:"), st.statsValue.Render(fmt.Sprintf("%.0f Hz", m.rate))))
	s.WriteString(fmt.Sprintf("%s %s  %s %s\n\n",
		st.statsLabel.Render("Sent:"), st.statsValue.Render(fmt.Sprintf("%d", m.connMgr.sent.Load())),
		st.statsLabel.Render("Write errors:"), st.statsValue.Render(fmt.Sprintf("%d", m.connMgr.txErrors.Load()))))

	// Devices
	s.WriteString(st.statsLabel.Render("DEVICES"))
	s.WriteString("\n")
	if len(m.devices) == 0 {
		s.WriteString(st.header.Render("  (none yet, p to ping)"))
		s.WriteString("\n")
	}
	addrs := make([]int, 0, len(m.devices))
	for a := range m.devices {
		addrs = append(addrs, int(a))
	}
	sort.Ints(addrs)
	for _, a := range addrs {
		dev := m.devices[crsf.Address(a)]
		s.WriteString(fmt.Sprintf("  %s %s\n", st.statsValue.Render(dev.Name), st.header.Render(formatAddress(dev.Origin))))
	}
	s.WriteString("\n")

	// Link telemetry
	s.WriteString(st.statsLabel.Render("TELEMETRY"))
	s.WriteString("\n")
	shown := false
	for _, name := range []string{"LINK_STATISTICS", "BATTERY_SENSOR", "FLIGHT_MODE", "GPS", "ELRS_STATUS"} {
		entry, ok := snap.Telemetry[name]
		if !ok {
			continue
		}
		shown = true
		s.WriteString(strings.TrimRight(crsf.FormatMessage(entry.Message), "\n"))
		s.WriteString("\n")
	}
	if !shown {
		s.WriteString(st.header.Render("  No telemetry data"))
	}

	return strings.TrimRight(s.String(), "\n")
}

func (m controlModel) renderStatisticsBar(stats monitor.StatsSnapshot, st tuiStyles) string {
	var validPercent, errorPercent float64
	if stats.TotalFrames > 0 {
		validPercent = float64(stats.ValidFrames) * 100.0 / float64(stats.TotalFrames)
		errorPercent = float64(stats.Errors) * 100.0 / float64(stats.TotalFrames)
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s",
		st.statsLabel.Render("Total:"), st.statsValue.Render(fmt.Sprintf("%d", stats.TotalFrames)),
		st.statsLabel.Render("Valid:"), st.statsValue.Render(fmt.Sprintf("%.1f%%", validPercent)),
		st.statsLabel.Render("Errors:"), func() string {
			if errorPercent > 0 {
				return st.error.Render(fmt.Sprintf("%.1f%%", errorPercent))
			}
			return st.statsValue.Render("0.0%")
		}(),
		st.statsLabel.Render("Rate:"), st.statsValue.Render(fmt.Sprintf("%.1f frames/s", stats.FrameRate)),
	)

	return st.box.Width(m.width - 4).Render(content)
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *controlModel) processEvent(ev monitor.Event) {
	if ev.Err != nil {
		if m.synchronized {
			m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", ev.Err), true)
		}
		return
	}

	for _, err := range ev.Anomalies {
		m.addLogEntry(fmt.Sprintf("%s: %s", crsf.FormatFrameType(ev.Frame.Type()), err.Message), true)
	}

	if info, ok := ev.Message.(crsf.DeviceInfo); ok {
		if _, exists := m.devices[info.Origin]; !exists {
			m.addLogEntry(fmt.Sprintf("Device discovered: %s at %s", info.Name, formatAddress(info.Origin)), false)
		}
		m.devices[info.Origin] = info
	}
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) setMicros(ch int, us uint16) {
	m.micros[ch] = us
	m.pushChannels()
}

// pushChannels hands the edited values to the transmit loop
func (m *controlModel) pushChannels() {
	m.connMgr.setChannels(microsToChannels(m.micros))
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// adjustMicros moves us by delta, clamped to the stick range
func adjustMicros(us uint16, delta int) uint16 {
	v := int(us) + delta
	if v < minMicros {
		v = minMicros
	}
	if v > maxMicros {
		v = maxMicros
	}
	return uint16(v)
}

// parseMicros parses an edited channel value in microseconds
func parseMicros(s string) (uint16, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid channel value: %q", s)
	}
	if v < minMicros || v > maxMicros {
		return 0, fmt.Errorf("channel value must be between %d and %d us", minMicros, maxMicros)
	}
	return uint16(v), nil
}

// microsToChannels converts microsecond values to raw channel ticks
func microsToChannels(us [crsf.NumChannels]uint16) crsf.Channels {
	var ch crsf.Channels
	for i, v := range us {
		ch[i] = crsf.MicrosToTicks(v)
	}
	return ch
}

// channelBar renders us as a horizontal bar of width cells
func channelBar(us uint16, width int) string {
	filled := (int(us) - minMicros) * width / (maxMicros - minMicros)
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}
