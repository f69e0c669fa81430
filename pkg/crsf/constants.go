// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package crsf provides a Go implementation of the CRSF (Crossfire) serial link protocol.
//
// CRSF is the length-prefixed, CRC-8 protected framing used between RC receivers,
// transmitter modules and flight controllers (TBS Crossfire, ExpressLRS). This package
// provides frame classification and validation, the 16x11-bit RC channel codec,
// RC frame generation, a streaming decoder, telemetry decoding and formatting.
package crsf

// Sync bytes
const (
	SyncByte     = 0xC8 // Flight controller address, used as the standard sync byte
	SyncByteELRS = 0xEE // ELRS variant (CRSF transmitter address)
)

// Frame size limits
const (
	MaxPayloadSize = 62
	MinFrameLength = 2  // type + crc
	MaxFrameLength = 64 // value of the length field, not the buffer size
	MaxFrameSize   = MaxFrameLength + headerSize
	MinFrameSize   = 4 // sync + length + type + crc
)

// Byte offsets within a frame
const (
	offsetSync    = 0
	offsetLength  = 1
	offsetType    = 2
	offsetPayload = 3
	headerSize    = 2 // sync + length
)

// CRC-8/DVB-S2 configuration
const (
	crcPolynomial = 0xD5
	crcInitial    = 0x00
)

// RC channel packing
const (
	NumChannels        = 16
	ChannelBits        = 11
	ChannelMask        = 0x07FF
	PackedChannelsSize = NumChannels * ChannelBits / 8 // 22

	RCFrameLength = PackedChannelsSize + 2     // type + payload + crc = 24
	RCFrameSize   = RCFrameLength + headerSize // 26 bytes on the wire
)

// Channel value conventions. The codec itself carries raw 11-bit values.
const (
	ChannelValueMin   = 172  // 988 µs
	ChannelValueMid   = 992  // 1500 µs
	ChannelValueMax   = 1811 // 2012 µs
	ChannelNeutralRaw = 1500
)

// FrameType identifies the kind of frame carried in byte 2
type FrameType uint8

// Frame types - telemetry (receiver -> transmitter)
const (
	FrameTypeGPS            FrameType = 0x02
	FrameTypeVario          FrameType = 0x03
	FrameTypeBatterySensor  FrameType = 0x08
	FrameTypeBaroAltitude   FrameType = 0x09
	FrameTypeHeartbeat      FrameType = 0x0B
	FrameTypeOpenTXSync     FrameType = 0x10
	FrameTypeLinkStatistics FrameType = 0x14
	FrameTypeRadioID        FrameType = 0x3A
)

// Frame types - attitude and position
const (
	FrameTypeAttitude   FrameType = 0x1E
	FrameTypeFlightMode FrameType = 0x21
)

// Frame types - RC channels (transmitter -> receiver)
const (
	FrameTypeRCChannelsPacked       FrameType = 0x16
	FrameTypeSubsetRCChannelsPacked FrameType = 0x17
	FrameTypeLinkStatisticsRX       FrameType = 0x1C
	FrameTypeLinkStatisticsTX       FrameType = 0x1D
)

// Frame types - device communication
const (
	FrameTypeDevicePing        FrameType = 0x28
	FrameTypeDeviceInfo        FrameType = 0x29
	FrameTypeParameterSettings FrameType = 0x2C
	FrameTypeParameterRead     FrameType = 0x2D
	FrameTypeCommand           FrameType = 0x32
)

// Frame types - ELRS specific
const (
	FrameTypeELRSStatus     FrameType = 0x2A
	FrameTypeELRSBootloader FrameType = 0x30
)

// Frame types - MSP over CRSF
const (
	FrameTypeMSPRequest  FrameType = 0x7A
	FrameTypeMSPResponse FrameType = 0x7B
	FrameTypeMSPWrite    FrameType = 0x7C
)

// Frame types - vendor specific
const (
	FrameTypeArduino FrameType = 0x80
)

// Address identifies a device on the CRSF bus
type Address uint8

// Device addresses
const (
	AddressBroadcast        Address = 0x00
	AddressUSB              Address = 0x10
	AddressTBSCorePNP       Address = 0x80
	AddressReserved1        Address = 0x8A
	AddressCurrentSensor    Address = 0xC0
	AddressGPS              Address = 0xC2
	AddressTBSBlackbox      Address = 0xC4
	AddressFlightController Address = 0xC8
	AddressReserved2        Address = 0xCA
	AddressRaceTag          Address = 0xCC
	AddressRadioTransmitter Address = 0xEA
	AddressCRSFReceiver     Address = 0xEC
	AddressCRSFTransmitter  Address = 0xEE
)

// PacketRate represents ELRS packet rate settings
type PacketRate uint8

// ELRS packet rate values
const (
	PacketRate50Hz PacketRate = iota
	PacketRate150Hz
	PacketRate250Hz
	PacketRate500Hz
	PacketRate1000Hz
)

// PowerLevel represents ELRS transmit power settings
type PowerLevel uint8

// ELRS power level values
const (
	Power10mW PowerLevel = iota
	Power25mW
	Power50mW
	Power100mW
	Power250mW
	Power500mW
	Power1000mW
	Power2000mW
)

// RFMode represents ELRS RF modes
type RFMode uint8

// ELRS RF mode values
const (
	RFMode4CH RFMode = iota
	RFModeDynamic
	RFMode250Hz
	RFMode500Hz
)
