// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package crsf

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.timestamp.Format("15:04:05.000")
	frameType := FormatFrameType(f.Type())

	variant := "CRSF"
	if f.IsELRS() {
		variant = "ELRS"
	}

	result := fmt.Sprintf("[%s] %s (0x%02X) %s len=%d crc=0x%02X\n",
		timestamp, frameType, uint8(f.Type()), variant, f.length, f.crc)

	msg, err := DecodeMessage(f)
	if err != nil {
		result += fmt.Sprintf("  Decode error: %v\n", err)
		return result + formatHex(f.payload)
	}

	return result + FormatMessage(msg)
}

// FormatFrameType returns the human-readable name for a frame type
func FormatFrameType(t FrameType) string {
	switch t {
	// Telemetry
	case FrameTypeGPS:
		return "GPS"
	case FrameTypeVario:
		return "VARIO"
	case FrameTypeBatterySensor:
		return "BATTERY_SENSOR"
	case FrameTypeBaroAltitude:
		return "BARO_ALTITUDE"
	case FrameTypeHeartbeat:
		return "HEARTBEAT"
	case FrameTypeOpenTXSync:
		return "OPENTX_SYNC"
	case FrameTypeLinkStatistics:
		return "LINK_STATISTICS"
	case FrameTypeRadioID:
		return "RADIO_ID"

	// Attitude and position
	case FrameTypeAttitude:
		return "ATTITUDE"
	case FrameTypeFlightMode:
		return "FLIGHT_MODE"

	// RC channels
	case FrameTypeRCChannelsPacked:
		return "RC_CHANNELS_PACKED"
	case FrameTypeSubsetRCChannelsPacked:
		return "SUBSET_RC_CHANNELS_PACKED"
	case FrameTypeLinkStatisticsRX:
		return "LINK_STATISTICS_RX"
	case FrameTypeLinkStatisticsTX:
		return "LINK_STATISTICS_TX"

	// Device communication
	case FrameTypeDevicePing:
		return "DEVICE_PING"
	case FrameTypeDeviceInfo:
		return "DEVICE_INFO"
	case FrameTypeParameterSettings:
		return "PARAMETER_SETTINGS"
	case FrameTypeParameterRead:
		return "PARAMETER_READ"
	case FrameTypeCommand:
		return "COMMAND"

	// ELRS
	case FrameTypeELRSStatus:
		return "ELRS_STATUS"
	case FrameTypeELRSBootloader:
		return "ELRS_BOOTLOADER"

	// MSP
	case FrameTypeMSPRequest:
		return "MSP_REQ"
	case FrameTypeMSPResponse:
		return "MSP_RESP"
	case FrameTypeMSPWrite:
		return "MSP_WRITE"

	case FrameTypeArduino:
		return "ARDUINO"

	default:
		return "UNKNOWN"
	}
}

// String implements fmt.Stringer
func (t FrameType) String() string {
	return FormatFrameType(t)
}

// Known reports whether t is a member of the frame type enumeration
func (t FrameType) Known() bool {
	return FormatFrameType(t) != "UNKNOWN"
}

// FormatAddress returns the human-readable name for a device address
func FormatAddress(a Address) string {
	switch a {
	case AddressBroadcast:
		return "BROADCAST"
	case AddressUSB:
		return "USB"
	case AddressTBSCorePNP:
		return "TBS_CORE_PNP"
	case AddressCurrentSensor:
		return "CURRENT_SENSOR"
	case AddressGPS:
		return "GPS"
	case AddressTBSBlackbox:
		return "TBS_BLACKBOX"
	case AddressFlightController:
		return "FLIGHT_CONTROLLER"
	case AddressRaceTag:
		return "RACE_TAG"
	case AddressRadioTransmitter:
		return "RADIO_TRANSMITTER"
	case AddressCRSFReceiver:
		return "CRSF_RECEIVER"
	case AddressCRSFTransmitter:
		return "CRSF_TRANSMITTER"
	case AddressReserved1, AddressReserved2:
		return "RESERVED"
	default:
		return "UNKNOWN"
	}
}

// String implements fmt.Stringer
func (a Address) String() string {
	return FormatAddress(a)
}

// FormatMessage formats a decoded message based on its type
func FormatMessage(msg Message) string {
	switch m := msg.(type) {
	case RCChannels:
		return FormatChannels(m.Channels)

	case LinkStatistics:
		return fmt.Sprintf("  Uplink: RSSI=-%d/-%d dBm, LQ=%d%%, SNR=%d dB, Antenna=%d, Power=%s\n"+
			"  Downlink: RSSI=-%d dBm, LQ=%d%%, SNR=%d dB, RF Mode=%s\n",
			m.UplinkRSSIAnt1, m.UplinkRSSIAnt2, m.UplinkLinkQuality, m.UplinkSNR, m.ActiveAntenna,
			formatPowerLevel(PowerLevel(m.UplinkTXPower)),
			m.DownlinkRSSI, m.DownlinkLinkQuality, m.DownlinkSNR, formatRFMode(RFMode(m.RFMode)))

	case GPS:
		return fmt.Sprintf("  Position: %.7f, %.7f, Alt=%d m, Speed=%.1f km/h, Heading=%.2f°, Sats=%d\n",
			float64(m.Latitude)/1e7, float64(m.Longitude)/1e7, m.Altitude,
			float64(m.GroundSpeed)/10, float64(m.Heading)/100, m.Satellites)

	case BatterySensor:
		return fmt.Sprintf("  Battery: %.1f V, %.1f A, Used=%d mAh, Remaining=%d%%\n",
			float64(m.Voltage)/10, float64(m.Current)/10, m.Capacity, m.Remaining)

	case Attitude:
		return fmt.Sprintf("  Attitude: Pitch=%.4f rad, Roll=%.4f rad, Yaw=%.4f rad\n",
			float64(m.Pitch)/10000, float64(m.Roll)/10000, float64(m.Yaw)/10000)

	case FlightMode:
		return fmt.Sprintf("  Flight Mode: %q\n", m.Mode)

	case DeviceInfo:
		return fmt.Sprintf("  Device: %q, Type=0x%02X, ID=0x%02X, %s -> %s\n",
			m.Name, m.DeviceType, m.DeviceID, m.Origin, m.Destination)

	case ELRSStatus:
		match := "No"
		if m.ModelMatch {
			match = "Yes"
		}
		return fmt.Sprintf("  ELRS: Rate=%s, Power=%s, Sensitivity=-%d dBm, Quality=%d%%, SNR=%d dB, Antenna=%d, Model Match=%s\n",
			formatPacketRate(m.PacketRate), formatPowerLevel(m.TXPower), m.RXSensitivity,
			m.SignalQuality, m.SNR, m.Antenna, match)

	case MSPFrame:
		return fmt.Sprintf("  MSP v%d: Function=%d, Packet=%d, %s -> %s, %d bytes\n",
			m.Version, m.Function, m.PacketID, m.Origin, m.Destination, len(m.Data))

	case UnknownMessage:
		if len(m.Payload) == 0 {
			return "  (no payload)\n"
		}
		return formatHex(m.Payload)
	}

	return "  (unhandled message)\n"
}

// FormatChannels formats a channel set as two rows of eight raw values
func FormatChannels(ch Channels) string {
	var b strings.Builder
	for row := 0; row < 2; row++ {
		b.WriteString(" ")
		for i := row * 8; i < row*8+8; i++ {
			fmt.Fprintf(&b, " ch%-2d=%4d", i+1, ch[i])
		}
		b.WriteString("\n")
	}
	return b.String()
}

// formatHex returns a hex dump of payload, 16 bytes per line
func formatHex(payload []byte) string {
	result := "  Payload: "
	for i, b := range payload {
		if i > 0 && i%16 == 0 {
			result += "\n           "
		}
		result += fmt.Sprintf("%02X ", b)
	}
	return result + "\n"
}

// formatPacketRate returns a human-readable ELRS packet rate
func formatPacketRate(r PacketRate) string {
	names := []string{"50Hz", "150Hz", "250Hz", "500Hz", "1000Hz"}
	if int(r) < len(names) {
		return names[r]
	}
	return "UNKNOWN"
}

// formatPowerLevel returns a human-readable ELRS power level
func formatPowerLevel(p PowerLevel) string {
	names := []string{"10mW", "25mW", "50mW", "100mW", "250mW", "500mW", "1000mW", "2000mW"}
	if int(p) < len(names) {
		return names[p]
	}
	return "UNKNOWN"
}

// formatRFMode returns a human-readable ELRS RF mode
func formatRFMode(m RFMode) string {
	switch m {
	case RFMode4CH:
		return "4CH"
	case RFModeDynamic:
		return "DYNAMIC"
	case RFMode250Hz:
		return "250Hz"
	case RFMode500Hz:
		return "500Hz"
	default:
		return "UNKNOWN"
	}
}
