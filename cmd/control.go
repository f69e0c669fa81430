// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Thermoquad/crsfscope/internal/monitor"
	"github.com/Thermoquad/crsfscope/pkg/crsf"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for driving RC channels",
	Long: `Drive the 16 RC channels of a CRSF link via an interactive terminal UI.

This command streams RC_CHANNELS_PACKED frames to a TX module, receiver or
simulator at a fixed rate while showing the telemetry coming back.

Features:
  - Channel editor (16 channels, microseconds)
  - Transmit arm/disarm (frames are only sent while armed)
  - Real-time link telemetry (LQ, RSSI, battery, flight mode)
  - Device discovery (DEVICE_PING / DEVICE_INFO)
  - Statistics tracking and event logging
  - Automatic reconnection on connection loss

Keys: up/down select, left/right -/+10us, [ ] -/+100us, enter edit value,
c center channel, C center all, space arm/disarm, p ping devices, q quit.

Supports serial, WebSocket and TCP connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
	controlCmd.Flags().Float64("rate", 50, "RC frame rate (Hz)")
}

// connectionManager handles connection lifecycle, reconnection and the
// channel values shared with the transmit loop
type connectionManager struct {
	conn     Connection
	connInfo string
	mu       sync.RWMutex
	p        *tea.Program
	done     chan struct{}
	stopRead chan struct{}
	mon      *monitor.Monitor

	channels crsf.Channels
	armed    bool
	sent     atomic.Uint64
	txErrors atomic.Uint64
}

func (cm *connectionManager) getConn() Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.connInfo = connInfo
}

func (cm *connectionManager) setChannels(ch crsf.Channels) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.channels = ch
}

func (cm *connectionManager) setArmed(armed bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.armed = armed
}

// transmitState returns the connection, channels and armed flag under one lock
func (cm *connectionManager) transmitState() (Connection, crsf.Channels, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn, cm.channels, cm.armed
}

func runControl(cmd *cobra.Command, args []string) error {
	if cfg.Transmit.Rate <= 0 {
		return fmt.Errorf("--rate must be positive")
	}

	// Open initial connection (serial, WebSocket or TCP)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	// Create connection manager
	cm := &connectionManager{
		conn:     conn,
		connInfo: connInfo,
		done:     make(chan struct{}),
		stopRead: make(chan struct{}),
		mon:      monitor.New(monitor.WithLogger(logger)),
	}

	// Create TUI model with connection manager
	m := initialControlModel(cm, connInfo, cfg.Transmit.Rate)

	// Create TUI program with alt screen
	p := tea.NewProgram(m, tea.WithAltScreen())
	cm.p = p

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start reader and transmit goroutines
	go cm.readerLoop()
	go cm.transmitLoop(ctx, cfg.Transmit.Rate)

	// Ask every device to identify itself
	sendDevicePing(cm.getConn())

	// Run TUI
	_, err = p.Run()
	cancel()
	close(cm.done) // Signal goroutines to stop
	cm.getConn().Close()
	if err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

// transmitLoop sends the current channel set at hz until ctx is cancelled
func (cm *connectionManager) transmitLoop(ctx context.Context, hz float64) {
	limiter := rate.NewLimiter(rate.Limit(hz), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		conn, ch, armed := cm.transmitState()
		if !armed || conn == nil {
			continue
		}

		frame := crsf.BuildRCFrame(ch)
		if _, err := conn.Write(frame[:]); err != nil {
			if cm.txErrors.Add(1) == 1 {
				logger.Warn("RC frame write failed", zap.Error(err))
			}
			continue
		}
		cm.sent.Add(1)
	}
}

// readerLoop handles reading from connection with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		// Start reading from current connection
		connLost := cm.readFromConnection()

		if connLost {
			// Notify TUI about connection loss
			cm.p.Send(connectionLostMsg{})

			// Attempt to reconnect
			if !cm.reconnect() {
				return // Shutdown requested during reconnect
			}
		}
	}
}

// readFromConnection feeds the monitor until the connection fails
// Returns true if connection was lost, false if shutdown requested
func (cm *connectionManager) readFromConnection() bool {
	synchronized := false
	rejectedBeforeSync := 0

	// Buffered channel for batching updates
	batchChan := make(chan monitor.Event, 100)
	syncChan := make(chan controlSyncMsg, 1)
	readerDone := make(chan struct{})

	// Reader goroutine - decodes frames and sends events to batch channel
	go func() {
		defer close(readerDone)
		buf := make([]byte, 128)
		for {
			select {
			case <-cm.done:
				return
			case <-cm.stopRead:
				return
			default:
			}

			conn := cm.getConn()
			if conn == nil {
				return
			}

			n, err := conn.Read(buf)
			if err != nil {
				// Check if we're shutting down
				select {
				case <-cm.done:
					return
				default:
					// For WebSocket and TCP connections, a read error usually
					// means the connection is permanently closed
					if errors.Is(err, ErrConnectionClosed) {
						return
					}
					// Brief pause before retry on transient errors (e.g., serial)
					time.Sleep(10 * time.Millisecond)
					continue
				}
			}

			for _, ev := range cm.mon.Feed(buf[:n]) {
				if ev.Err != nil && !synchronized {
					rejectedBeforeSync++
					continue
				}
				if ev.Frame != nil && !synchronized {
					synchronized = true
					select {
					case syncChan <- controlSyncMsg{rejected: rejectedBeforeSync}:
					default:
					}
				}
				select {
				case batchChan <- ev:
				default:
				}
			}
		}
	}()

	// Batch sender goroutine - sends batched updates to TUI at fixed rate
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-cm.done:
				return
			case <-readerDone:
				return
			case <-ticker.C:
				var batch controlBatchMsg

				// Check for sync message
				select {
				case sync := <-syncChan:
					batch.syncMsg = &sync
				default:
				}

				// Drain all available events from batch channel
			drainLoop:
				for {
					select {
					case ev := <-batchChan:
						batch.events = append(batch.events, ev)
					default:
						break drainLoop
					}
				}

				// Send batch if we have anything
				if batch.syncMsg != nil || len(batch.events) > 0 {
					cm.p.Send(batch)
				}
			}
		}
	}()

	// Wait for reader to finish (connection lost or shutdown)
	<-readerDone

	// Check if we're shutting down
	select {
	case <-cm.done:
		return false
	default:
		return true // Connection lost
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	// Close old connection
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		// Attempt to reconnect
		conn, connInfo, err := OpenConnection()
		if err == nil {
			cm.setConn(conn, connInfo)

			// Notify TUI about reconnection
			cm.p.Send(reconnectedMsg{connInfo: connInfo})

			sendDevicePing(conn)
			return true
		}
		logger.Debug("reconnect failed", zap.Error(err), zap.Duration("backoff", backoff))

		// Exponential backoff
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// sendDevicePing broadcasts DEVICE_PING so devices announce themselves
func sendDevicePing(conn Connection) error {
	if conn == nil {
		return ErrConnectionClosed
	}
	_, err := conn.Write(crsf.NewDevicePing(crsf.AddressBroadcast, crsf.AddressRadioTransmitter))
	return err
}
