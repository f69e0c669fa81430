// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package crsf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrPayloadTooShort is returned when a known frame type does not carry enough
// payload bytes for its layout
var ErrPayloadTooShort = errors.New("payload too short")

// Message is a decoded frame payload. Each recognized frame type has its own
// concrete type; everything else decodes to UnknownMessage.
type Message interface {
	FrameType() FrameType
}

// Payload sizes of the fixed layouts
const (
	linkStatisticsSize = 10
	gpsSize            = 17
	batterySensorSize  = 8
	attitudeSize       = 6
	deviceInfoSize     = 5 + deviceNameSize
	deviceNameSize     = 16
	elrsStatusSize     = 8
	mspHeaderSize      = 6
)

// RCChannels is the decoded RC_CHANNELS_PACKED payload
type RCChannels struct {
	Channels Channels
}

// LinkStatistics is the decoded LINK_STATISTICS payload.
// RSSI values are magnitudes of negative dBm.
type LinkStatistics struct {
	UplinkRSSIAnt1      uint8
	UplinkRSSIAnt2      uint8
	UplinkLinkQuality   uint8
	UplinkSNR           int8
	ActiveAntenna       uint8
	RFMode              uint8
	UplinkTXPower       uint8
	DownlinkRSSI        uint8
	DownlinkLinkQuality uint8
	DownlinkSNR         int8
}

// GPS is the decoded GPS payload
type GPS struct {
	Latitude    int32  // degrees * 1e7
	Longitude   int32  // degrees * 1e7
	GroundSpeed uint16 // km/h * 10
	Heading     uint16 // degrees * 100
	Altitude    int32  // meters
	Satellites  uint8
}

// BatterySensor is the decoded BATTERY_SENSOR payload
type BatterySensor struct {
	Voltage   uint16 // volts * 10
	Current   uint16 // amps * 10
	Capacity  uint32 // mAh, 24 bits on the wire
	Remaining uint8  // percent
}

// Attitude is the decoded ATTITUDE payload. Angles are radians * 10000.
type Attitude struct {
	Pitch int16
	Roll  int16
	Yaw   int16
}

// FlightMode is the decoded FLIGHT_MODE payload
type FlightMode struct {
	Mode string
}

// DeviceInfo is the decoded DEVICE_INFO payload
type DeviceInfo struct {
	Destination Address
	Origin      Address
	DeviceType  uint8
	DeviceID    uint8
	Name        string
}

// ELRSStatus is the decoded ELRS_STATUS payload
type ELRSStatus struct {
	PacketRate    PacketRate
	TXPower       PowerLevel
	RXSensitivity uint8
	SignalQuality uint8
	SNR           int8
	Antenna       uint8
	ModelMatch    bool
	PHMode        uint8
}

// MSPFrame is the decoded MSP_REQ / MSP_RESP / MSP_WRITE payload
type MSPFrame struct {
	Kind        FrameType
	Destination Address
	Origin      Address
	Version     uint8
	PacketID    uint8
	Function    uint8
	Data        []byte
}

// UnknownMessage carries the raw payload of frame types without a decoded layout.
// The payload is kept so the frame can be relayed unmodified.
type UnknownMessage struct {
	Type    FrameType
	Payload []byte
}

// FrameType implements Message
func (RCChannels) FrameType() FrameType { return FrameTypeRCChannelsPacked }

// FrameType implements Message
func (LinkStatistics) FrameType() FrameType { return FrameTypeLinkStatistics }

// FrameType implements Message
func (GPS) FrameType() FrameType { return FrameTypeGPS }

// FrameType implements Message
func (BatterySensor) FrameType() FrameType { return FrameTypeBatterySensor }

// FrameType implements Message
func (Attitude) FrameType() FrameType { return FrameTypeAttitude }

// FrameType implements Message
func (FlightMode) FrameType() FrameType { return FrameTypeFlightMode }

// FrameType implements Message
func (DeviceInfo) FrameType() FrameType { return FrameTypeDeviceInfo }

// FrameType implements Message
func (ELRSStatus) FrameType() FrameType { return FrameTypeELRSStatus }

// FrameType implements Message
func (m MSPFrame) FrameType() FrameType { return m.Kind }

// FrameType implements Message
func (m UnknownMessage) FrameType() FrameType { return m.Type }

// DecodeMessage decodes the payload of f into its typed representation
func DecodeMessage(f *Frame) (Message, error) {
	return DecodePayload(f.Type(), f.Payload())
}

// DecodePayload decodes a payload according to the layout of frameType
func DecodePayload(frameType FrameType, p []byte) (Message, error) {
	switch frameType {
	case FrameTypeRCChannelsPacked:
		if err := needPayload(frameType, p, PackedChannelsSize); err != nil {
			return nil, err
		}
		ch, _ := ChannelsFromPayload(p)
		return RCChannels{Channels: ch}, nil

	case FrameTypeLinkStatistics:
		if err := needPayload(frameType, p, linkStatisticsSize); err != nil {
			return nil, err
		}
		return LinkStatistics{
			UplinkRSSIAnt1:      p[0],
			UplinkRSSIAnt2:      p[1],
			UplinkLinkQuality:   p[2],
			UplinkSNR:           int8(p[3]),
			ActiveAntenna:       p[4],
			RFMode:              p[5],
			UplinkTXPower:       p[6],
			DownlinkRSSI:        p[7],
			DownlinkLinkQuality: p[8],
			DownlinkSNR:         int8(p[9]),
		}, nil

	case FrameTypeGPS:
		if err := needPayload(frameType, p, gpsSize); err != nil {
			return nil, err
		}
		return GPS{
			Latitude:    int32(binary.BigEndian.Uint32(p[0:4])),
			Longitude:   int32(binary.BigEndian.Uint32(p[4:8])),
			GroundSpeed: binary.BigEndian.Uint16(p[8:10]),
			Heading:     binary.BigEndian.Uint16(p[10:12]),
			Altitude:    int32(binary.BigEndian.Uint32(p[12:16])),
			Satellites:  p[16],
		}, nil

	case FrameTypeBatterySensor:
		if err := needPayload(frameType, p, batterySensorSize); err != nil {
			return nil, err
		}
		return BatterySensor{
			Voltage:   binary.BigEndian.Uint16(p[0:2]),
			Current:   binary.BigEndian.Uint16(p[2:4]),
			Capacity:  uint24(p[4:7]),
			Remaining: p[7],
		}, nil

	case FrameTypeAttitude:
		if err := needPayload(frameType, p, attitudeSize); err != nil {
			return nil, err
		}
		return Attitude{
			Pitch: int16(binary.BigEndian.Uint16(p[0:2])),
			Roll:  int16(binary.BigEndian.Uint16(p[2:4])),
			Yaw:   int16(binary.BigEndian.Uint16(p[4:6])),
		}, nil

	case FrameTypeFlightMode:
		return FlightMode{Mode: cString(p)}, nil

	case FrameTypeDeviceInfo:
		if err := needPayload(frameType, p, deviceInfoSize); err != nil {
			return nil, err
		}
		nameLen := int(p[4])
		if nameLen > deviceNameSize {
			nameLen = deviceNameSize
		}
		return DeviceInfo{
			Destination: Address(p[0]),
			Origin:      Address(p[1]),
			DeviceType:  p[2],
			DeviceID:    p[3],
			Name:        cString(p[5 : 5+nameLen]),
		}, nil

	case FrameTypeELRSStatus:
		if err := needPayload(frameType, p, elrsStatusSize); err != nil {
			return nil, err
		}
		return ELRSStatus{
			PacketRate:    PacketRate(p[0]),
			TXPower:       PowerLevel(p[1]),
			RXSensitivity: p[2],
			SignalQuality: p[3],
			SNR:           int8(p[4]),
			Antenna:       p[5],
			ModelMatch:    p[6] != 0,
			PHMode:        p[7],
		}, nil

	case FrameTypeMSPRequest, FrameTypeMSPResponse, FrameTypeMSPWrite:
		if err := needPayload(frameType, p, mspHeaderSize); err != nil {
			return nil, err
		}
		size := int(p[3])
		if size > len(p)-mspHeaderSize {
			size = len(p) - mspHeaderSize
		}
		data := make([]byte, size)
		copy(data, p[mspHeaderSize:mspHeaderSize+size])
		return MSPFrame{
			Kind:        frameType,
			Destination: Address(p[0]),
			Origin:      Address(p[1]),
			Version:     p[2],
			PacketID:    p[4],
			Function:    p[5],
			Data:        data,
		}, nil
	}

	raw := make([]byte, len(p))
	copy(raw, p)
	return UnknownMessage{Type: frameType, Payload: raw}, nil
}

// needPayload checks that p holds at least n bytes for frameType's layout
func needPayload(frameType FrameType, p []byte, n int) error {
	if len(p) < n {
		return fmt.Errorf("%w: %s payload %d bytes (need %d)", ErrPayloadTooShort, FormatFrameType(frameType), len(p), n)
	}
	return nil
}

// uint24 reads a big-endian 24-bit value from the first 3 bytes of b
func uint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// cString returns the bytes of b up to the first NUL as a string
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
