// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package crsf

import (
	"errors"
	"strings"
	"testing"
)

// ============================================================
// Message Decode Tests
// ============================================================

func TestDecodePayload_LinkStatistics(t *testing.T) {
	payload := []byte{80, 82, 100, 0xF6, 1, 2, 3, 90, 99, 5}
	msg, err := DecodePayload(FrameTypeLinkStatistics, payload)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}

	ls, ok := msg.(LinkStatistics)
	if !ok {
		t.Fatalf("Expected LinkStatistics, got %T", msg)
	}
	expected := LinkStatistics{
		UplinkRSSIAnt1:      80,
		UplinkRSSIAnt2:      82,
		UplinkLinkQuality:   100,
		UplinkSNR:           -10,
		ActiveAntenna:       1,
		RFMode:              2,
		UplinkTXPower:       3,
		DownlinkRSSI:        90,
		DownlinkLinkQuality: 99,
		DownlinkSNR:         5,
	}
	if ls != expected {
		t.Errorf("Expected %+v, got %+v", expected, ls)
	}
	if ls.FrameType() != FrameTypeLinkStatistics {
		t.Errorf("Expected LINK_STATISTICS, got %s", ls.FrameType())
	}
}

func TestDecodePayload_GPS(t *testing.T) {
	payload := []byte{
		0x1D, 0xCD, 0x65, 0x00, // lat 500000000 (50.0°)
		0xFA, 0x0A, 0x1F, 0x00, // lon -100000000 (-10.0°)
		0x01, 0xF4, // speed 500
		0x23, 0x28, // heading 9000
		0xFF, 0xFF, 0xFF, 0xF6, // alt -10
		12, // sats
	}
	msg, err := DecodePayload(FrameTypeGPS, payload)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}

	gps := msg.(GPS)
	if gps.Latitude != 500000000 {
		t.Errorf("Expected latitude 500000000, got %d", gps.Latitude)
	}
	if gps.Longitude != -100000000 {
		t.Errorf("Expected longitude -100000000, got %d", gps.Longitude)
	}
	if gps.GroundSpeed != 500 || gps.Heading != 9000 {
		t.Errorf("Unexpected speed/heading %d/%d", gps.GroundSpeed, gps.Heading)
	}
	if gps.Altitude != -10 {
		t.Errorf("Expected altitude -10, got %d", gps.Altitude)
	}
	if gps.Satellites != 12 {
		t.Errorf("Expected 12 satellites, got %d", gps.Satellites)
	}
}

func TestDecodePayload_BatterySensor(t *testing.T) {
	payload := []byte{0x00, 0xA8, 0x00, 0x64, 0x01, 0x02, 0x03, 75}
	msg, err := DecodePayload(FrameTypeBatterySensor, payload)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}

	bat := msg.(BatterySensor)
	if bat.Voltage != 168 {
		t.Errorf("Expected voltage 168, got %d", bat.Voltage)
	}
	if bat.Current != 100 {
		t.Errorf("Expected current 100, got %d", bat.Current)
	}
	if bat.Capacity != 0x010203 {
		t.Errorf("Expected capacity 0x010203, got 0x%06X", bat.Capacity)
	}
	if bat.Remaining != 75 {
		t.Errorf("Expected remaining 75, got %d", bat.Remaining)
	}
}

func TestDecodePayload_BatteryCapacity24Bit(t *testing.T) {
	payload := []byte{0, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0}
	msg, err := DecodePayload(FrameTypeBatterySensor, payload)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if c := msg.(BatterySensor).Capacity; c != 0xFFFFFF {
		t.Errorf("Expected 24-bit max capacity, got 0x%X", c)
	}
}

func TestDecodePayload_Attitude(t *testing.T) {
	payload := []byte{0x03, 0xE8, 0xFC, 0x18, 0x7A, 0x98}
	msg, err := DecodePayload(FrameTypeAttitude, payload)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	expected := Attitude{Pitch: 1000, Roll: -1000, Yaw: 31384}
	if msg.(Attitude) != expected {
		t.Errorf("Expected %+v, got %+v", expected, msg)
	}
}

func TestDecodePayload_FlightMode(t *testing.T) {
	tests := []struct {
		name     string
		payload  []byte
		expected string
	}{
		{"null terminated", []byte("ACRO\x00"), "ACRO"},
		{"no terminator", []byte("HOR"), "HOR"},
		{"trailing garbage", []byte("WAIT\x00XX"), "WAIT"},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodePayload(FrameTypeFlightMode, tt.payload)
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if mode := msg.(FlightMode).Mode; mode != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, mode)
			}
		})
	}
}

func TestDecodePayload_DeviceInfo(t *testing.T) {
	payload := make([]byte, deviceInfoSize)
	payload[0] = byte(AddressRadioTransmitter)
	payload[1] = byte(AddressCRSFReceiver)
	payload[2] = 0x01
	payload[3] = 0x42
	payload[4] = 8
	copy(payload[5:], "ELRS RX\x00")

	msg, err := DecodePayload(FrameTypeDeviceInfo, payload)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	info := msg.(DeviceInfo)
	if info.Destination != AddressRadioTransmitter || info.Origin != AddressCRSFReceiver {
		t.Errorf("Unexpected addresses %s -> %s", info.Origin, info.Destination)
	}
	if info.DeviceType != 0x01 || info.DeviceID != 0x42 {
		t.Errorf("Unexpected type/id 0x%02X/0x%02X", info.DeviceType, info.DeviceID)
	}
	if info.Name != "ELRS RX" {
		t.Errorf("Expected name %q, got %q", "ELRS RX", info.Name)
	}
}

func TestDecodePayload_DeviceInfoNameLengthClamped(t *testing.T) {
	payload := make([]byte, deviceInfoSize)
	payload[4] = 200
	copy(payload[5:], "ABCDEFGHIJKLMNOP")

	msg, err := DecodePayload(FrameTypeDeviceInfo, payload)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if name := msg.(DeviceInfo).Name; name != "ABCDEFGHIJKLMNOP" {
		t.Errorf("Expected name clamped to 16 bytes, got %q", name)
	}
}

func TestDecodePayload_ELRSStatus(t *testing.T) {
	payload := []byte{byte(PacketRate500Hz), byte(Power250mW), 105, 98, 0xFB, 1, 1, 0}
	msg, err := DecodePayload(FrameTypeELRSStatus, payload)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	st := msg.(ELRSStatus)
	if st.PacketRate != PacketRate500Hz || st.TXPower != Power250mW {
		t.Errorf("Unexpected rate/power %d/%d", st.PacketRate, st.TXPower)
	}
	if st.SNR != -5 {
		t.Errorf("Expected SNR -5, got %d", st.SNR)
	}
	if !st.ModelMatch {
		t.Error("Expected model match")
	}
}

func TestDecodePayload_MSP(t *testing.T) {
	payload := []byte{byte(AddressFlightController), byte(AddressRadioTransmitter), 1, 3, 7, 100, 0xAA, 0xBB, 0xCC}
	msg, err := DecodePayload(FrameTypeMSPResponse, payload)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	msp := msg.(MSPFrame)
	if msp.FrameType() != FrameTypeMSPResponse {
		t.Errorf("Expected MSP_RESP, got %s", msp.FrameType())
	}
	if msp.Function != 100 || msp.PacketID != 7 || msp.Version != 1 {
		t.Errorf("Unexpected MSP header %+v", msp)
	}
	if string(msp.Data) != "\xAA\xBB\xCC" {
		t.Errorf("Unexpected MSP data % X", msp.Data)
	}
}

func TestDecodePayload_MSPSizeClamped(t *testing.T) {
	payload := []byte{0, 0, 1, 50, 0, 1, 0x01}
	msg, err := DecodePayload(FrameTypeMSPRequest, payload)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if data := msg.(MSPFrame).Data; len(data) != 1 {
		t.Errorf("MSP data should be clamped to available bytes, got %d", len(data))
	}
}

func TestDecodePayload_TooShort(t *testing.T) {
	tests := []struct {
		frameType FrameType
		size      int
	}{
		{FrameTypeRCChannelsPacked, PackedChannelsSize},
		{FrameTypeLinkStatistics, linkStatisticsSize},
		{FrameTypeGPS, gpsSize},
		{FrameTypeBatterySensor, batterySensorSize},
		{FrameTypeAttitude, attitudeSize},
		{FrameTypeDeviceInfo, deviceInfoSize},
		{FrameTypeELRSStatus, elrsStatusSize},
		{FrameTypeMSPWrite, mspHeaderSize},
	}

	for _, tt := range tests {
		t.Run(tt.frameType.String(), func(t *testing.T) {
			_, err := DecodePayload(tt.frameType, make([]byte, tt.size-1))
			if !errors.Is(err, ErrPayloadTooShort) {
				t.Errorf("Expected ErrPayloadTooShort, got %v", err)
			}
			if _, err := DecodePayload(tt.frameType, make([]byte, tt.size)); err != nil {
				t.Errorf("Exact size should decode: %v", err)
			}
		})
	}
}

func TestDecodePayload_UnknownPreservesPayload(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	msg, err := DecodePayload(FrameType(0x55), payload)
	if err != nil {
		t.Fatalf("Unknown types should not error: %v", err)
	}
	unknown, ok := msg.(UnknownMessage)
	if !ok {
		t.Fatalf("Expected UnknownMessage, got %T", msg)
	}
	if unknown.FrameType() != FrameType(0x55) {
		t.Errorf("Expected type 0x55, got 0x%02X", uint8(unknown.FrameType()))
	}
	if string(unknown.Payload) != string(payload) {
		t.Errorf("Expected payload % X, got % X", payload, unknown.Payload)
	}

	payload[0] = 0xFF
	if unknown.Payload[0] != 0x01 {
		t.Error("UnknownMessage should own a copy of the payload")
	}
}

func TestDecodePayload_KnownTypeWithoutLayout(t *testing.T) {
	msg, err := DecodePayload(FrameTypeVario, []byte{0x00, 0x10})
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if _, ok := msg.(UnknownMessage); !ok {
		t.Errorf("Expected UnknownMessage for VARIO, got %T", msg)
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatFrameType(t *testing.T) {
	tests := []struct {
		frameType FrameType
		expected  string
	}{
		{FrameTypeGPS, "GPS"},
		{FrameTypeRCChannelsPacked, "RC_CHANNELS_PACKED"},
		{FrameTypeLinkStatistics, "LINK_STATISTICS"},
		{FrameTypeELRSStatus, "ELRS_STATUS"},
		{FrameTypeMSPResponse, "MSP_RESP"},
		{FrameTypeArduino, "ARDUINO"},
		{FrameType(0x55), "UNKNOWN"},
		{FrameType(0xFF), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatFrameType(tt.frameType); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
			if tt.frameType.Known() != (tt.expected != "UNKNOWN") {
				t.Errorf("Known() disagrees with name %s", tt.expected)
			}
		})
	}
}

func TestFormatAddress(t *testing.T) {
	if got := AddressFlightController.String(); got != "FLIGHT_CONTROLLER" {
		t.Errorf("Expected FLIGHT_CONTROLLER, got %s", got)
	}
	if got := AddressReserved1.String(); got != "RESERVED" {
		t.Errorf("Expected RESERVED, got %s", got)
	}
	if got := Address(0x42).String(); got != "UNKNOWN" {
		t.Errorf("Expected UNKNOWN, got %s", got)
	}
}

func TestFormatFrame_RCChannels(t *testing.T) {
	rc := BuildRCFrame(NeutralChannels())
	frame, err := ParseFrame(rc[:])
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	out := FormatFrame(frame)
	if !strings.Contains(out, "RC_CHANNELS_PACKED (0x16) CRSF len=24") {
		t.Errorf("Missing header in output:\n%s", out)
	}
	if !strings.Contains(out, "ch1 =1500") || !strings.Contains(out, "ch16=1500") {
		t.Errorf("Missing channel values in output:\n%s", out)
	}
}

func TestFormatFrame_LinkStatistics(t *testing.T) {
	payload := []byte{80, 82, 100, 10, 1, byte(RFMode250Hz), byte(Power100mW), 90, 99, 5}
	frame, err := ParseFrame(buildFrame(SyncByteELRS, FrameTypeLinkStatistics, payload))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	out := FormatFrame(frame)
	for _, want := range []string{"ELRS", "LQ=100%", "Power=100mW", "RF Mode=250Hz"} {
		if !strings.Contains(out, want) {
			t.Errorf("Missing %q in output:\n%s", want, out)
		}
	}
}

func TestFormatFrame_DecodeErrorFallsBackToHex(t *testing.T) {
	frame, err := ParseFrame(buildFrame(SyncByte, FrameTypeGPS, []byte{0xDE, 0xAD}))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	out := FormatFrame(frame)
	if !strings.Contains(out, "Decode error") || !strings.Contains(out, "DE AD") {
		t.Errorf("Expected decode error and hex dump:\n%s", out)
	}
}

func TestFormatFrame_Unknown(t *testing.T) {
	frame, err := ParseFrame(buildFrame(SyncByte, FrameType(0x55), []byte{0x01}))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	out := FormatFrame(frame)
	if !strings.Contains(out, "UNKNOWN (0x55)") || !strings.Contains(out, "01") {
		t.Errorf("Expected UNKNOWN with hex dump:\n%s", out)
	}
}

func TestFormatMessage_AllTypes(t *testing.T) {
	messages := []Message{
		RCChannels{Channels: NeutralChannels()},
		LinkStatistics{UplinkLinkQuality: 100},
		GPS{Latitude: 500000000, Satellites: 9},
		BatterySensor{Voltage: 168, Remaining: 50},
		Attitude{Pitch: 1000},
		FlightMode{Mode: "ACRO"},
		DeviceInfo{Name: "RX"},
		ELRSStatus{PacketRate: PacketRate(99), TXPower: PowerLevel(99)},
		MSPFrame{Kind: FrameTypeMSPRequest},
		UnknownMessage{Type: FrameType(0x55)},
	}

	for _, msg := range messages {
		if out := FormatMessage(msg); out == "" {
			t.Errorf("Empty output for %T", msg)
		}
	}
}

func TestFormatEnums(t *testing.T) {
	if got := formatPacketRate(PacketRate1000Hz); got != "1000Hz" {
		t.Errorf("Expected 1000Hz, got %s", got)
	}
	if got := formatPowerLevel(Power2000mW); got != "2000mW" {
		t.Errorf("Expected 2000mW, got %s", got)
	}
	if got := formatRFMode(RFModeDynamic); got != "DYNAMIC" {
		t.Errorf("Expected DYNAMIC, got %s", got)
	}
	if got := formatPacketRate(PacketRate(5)); got != "UNKNOWN" {
		t.Errorf("Expected UNKNOWN, got %s", got)
	}
}
