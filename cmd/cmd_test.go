// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/crsfscope/internal/config"
	"github.com/Thermoquad/crsfscope/pkg/crsf"
)

//////////////////////////////////////////////////////////////
// Channel list parsing
//////////////////////////////////////////////////////////////

func TestParseChannelList(t *testing.T) {
	t.Run("empty keeps defaults", func(t *testing.T) {
		ch, err := parseChannelList("", false)
		require.NoError(t, err)
		require.Equal(t, crsf.NeutralChannels(), ch)
	})

	t.Run("sparse ticks", func(t *testing.T) {
		ch, err := parseChannelList("172, ,1811", false)
		require.NoError(t, err)
		require.Equal(t, uint16(172), ch[0])
		require.Equal(t, uint16(crsf.ChannelNeutralRaw), ch[1])
		require.Equal(t, uint16(1811), ch[2])
		require.Equal(t, uint16(crsf.ChannelNeutralRaw), ch[15])
	})

	t.Run("microseconds", func(t *testing.T) {
		ch, err := parseChannelList("988,1500,2012", true)
		require.NoError(t, err)
		require.Equal(t, uint16(173), ch[0])
		require.Equal(t, uint16(992), ch[1])
		require.Equal(t, uint16(1811), ch[2])
	})

	t.Run("too many channels", func(t *testing.T) {
		_, err := parseChannelList(strings.Repeat("1000,", 16)+"1000", false)
		require.Error(t, err)
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := parseChannelList("2048", false)
		require.ErrorIs(t, err, errChannelRange)
	})

	t.Run("not a number", func(t *testing.T) {
		_, err := parseChannelList("1000,abc", false)
		require.ErrorContains(t, err, "channel 2")
	})
}

//////////////////////////////////////////////////////////////
// Control TUI helpers
//////////////////////////////////////////////////////////////

func TestAdjustMicros(t *testing.T) {
	tests := []struct {
		us    uint16
		delta int
		want  uint16
	}{
		{1500, fineStep, 1510},
		{1500, -coarseStep, 1400},
		{2010, coarseStep, maxMicros},
		{990, -coarseStep, minMicros},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, adjustMicros(tt.us, tt.delta), "adjustMicros(%d, %d)", tt.us, tt.delta)
	}
}

func TestParseMicros(t *testing.T) {
	us, err := parseMicros(" 1200 ")
	require.NoError(t, err)
	require.Equal(t, uint16(1200), us)

	_, err = parseMicros("abc")
	require.Error(t, err)

	_, err = parseMicros("900")
	require.Error(t, err)

	_, err = parseMicros("2100")
	require.Error(t, err)
}

func TestMicrosToChannels(t *testing.T) {
	var us [crsf.NumChannels]uint16
	for i := range us {
		us[i] = centerMicros
	}
	us[0] = minMicros
	us[1] = maxMicros

	ch := microsToChannels(us)
	require.Equal(t, uint16(173), ch[0])
	require.Equal(t, uint16(1811), ch[1])
	for i := 2; i < crsf.NumChannels; i++ {
		require.Equal(t, uint16(992), ch[i])
	}
}

func TestChannelBar(t *testing.T) {
	require.Equal(t, "[----------]", channelBar(minMicros, 10))
	require.Equal(t, "[#####-----]", channelBar(centerMicros, 10))
	require.Equal(t, "[##########]", channelBar(maxMicros, 10))
	require.Equal(t, "[----------]", channelBar(500, 10))
}

//////////////////////////////////////////////////////////////
// Formatting helpers
//////////////////////////////////////////////////////////////

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 seconds"},
		{time.Second, "1 second"},
		{time.Hour, "1 hour"},
		{61 * time.Second, "1 minute and 1 second"},
		{25*time.Hour + 61*time.Second, "1 day, 1 hour, 1 minute, and 1 second"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, formatUptime(tt.d))
	}
}

func TestFormatAddress(t *testing.T) {
	require.Equal(t, "FLIGHT_CONTROLLER (0xC8)", formatAddress(crsf.AddressFlightController))
}

//////////////////////////////////////////////////////////////
// Connections
//////////////////////////////////////////////////////////////

func TestOpenConnectionRequiresTarget(t *testing.T) {
	_, _, err := openConnection(config.ConnectionConfig{})
	require.Error(t, err)
}

func TestTCPConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	rc := crsf.BuildRCFrame(crsf.NeutralChannels())
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		c.Write(rc[:])
		c.Close()
	}()

	conn, info, err := openConnection(config.ConnectionConfig{
		TCP:         ln.Addr().String(),
		Port:        "/dev/null-not-used",
		DialTimeout: time.Second,
	})
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, "TCP: "+ln.Addr().String(), info)

	decoder := crsf.NewDecoder()
	var frames []*crsf.Frame
	buf := make([]byte, 64)
	for {
		n, err := conn.Read(buf)
		frames = append(frames, decoder.Decode(buf[:n], nil)...)
		if err != nil {
			require.ErrorIs(t, err, ErrConnectionClosed)
			break
		}
	}
	require.Len(t, frames, 1)
	require.Equal(t, crsf.FrameTypeRCChannelsPacked, frames[0].Type())
}

//////////////////////////////////////////////////////////////
// Config-bound flags
//////////////////////////////////////////////////////////////

func TestConfigBoundFlags(t *testing.T) {
	tests := []struct {
		cmd      *cobra.Command
		name     string
		defValue string
	}{
		{serveCmd, "http-addr", ":9090"},
		{serveCmd, "mqtt", "false"},
		{serveCmd, "mqtt-broker", "tcp://localhost:1883"},
		{serveCmd, "mqtt-prefix", "crsf"},
		{serveCmd, "record", ""},
		{rawLogCmd, "record", ""},
		{controlCmd, "rate", "50"},
		{rcSendCmd, "rate", "50"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.Name()+"/"+tt.name, func(t *testing.T) {
			f := tt.cmd.Flags().Lookup(tt.name)
			require.NotNil(t, f)
			require.Equal(t, tt.defValue, f.DefValue)
		})
	}
}
