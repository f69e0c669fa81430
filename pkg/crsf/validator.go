// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package crsf

import "fmt"

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyLengthMismatch AnomalyType = iota
	AnomalyChannelRange
	AnomalyLinkQuality
	AnomalyBatteryRemaining
	AnomalyGPSCoordinate
	AnomalyUnknownType
)

// String implements fmt.Stringer
func (a AnomalyType) String() string {
	switch a {
	case AnomalyLengthMismatch:
		return "length_mismatch"
	case AnomalyChannelRange:
		return "channel_range"
	case AnomalyLinkQuality:
		return "link_quality"
	case AnomalyBatteryRemaining:
		return "battery_remaining"
	case AnomalyGPSCoordinate:
		return "gps_coordinate"
	case AnomalyUnknownType:
		return "unknown_type"
	default:
		return "unknown"
	}
}

// ValidationError represents a frame that passed CRC but carries suspicious content
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame inspects a CRC-valid frame and detects anomalies
// Returns a slice of validation errors (empty if frame is plausible)
func ValidateFrame(f *Frame) []ValidationError {
	_, errs := DecodeAndValidate(f)
	return errs
}

// DecodeAndValidate decodes f once and checks the result.
// The message is nil when the payload does not fit the frame type's layout;
// unknown frame types decode to UnknownMessage and are flagged.
func DecodeAndValidate(f *Frame) (Message, []ValidationError) {
	errors := []ValidationError{}

	msg, err := DecodeMessage(f)
	if !f.Type().Known() {
		return msg, append(errors, ValidationError{
			Type:    AnomalyUnknownType,
			Message: fmt.Sprintf("Unknown frame type 0x%02X", uint8(f.Type())),
			Details: map[string]interface{}{"type": uint8(f.Type())},
		})
	}
	if err != nil {
		return nil, append(errors, ValidationError{
			Type:    AnomalyLengthMismatch,
			Message: err.Error(),
			Details: map[string]interface{}{"type": uint8(f.Type()), "length": len(f.Payload())},
		})
	}

	return msg, append(errors, ValidateMessage(msg)...)
}

// ValidateMessage checks decoded field values against protocol ranges
func ValidateMessage(msg Message) []ValidationError {
	switch m := msg.(type) {
	case RCChannels:
		return validateChannels(m.Channels)
	case LinkStatistics:
		return validateLinkStatistics(m)
	case BatterySensor:
		return validateBattery(m)
	case GPS:
		return validateGPS(m)
	}
	return nil
}

// validateChannels flags channels outside the CRSF stick range (172-1811)
func validateChannels(ch Channels) []ValidationError {
	errors := []ValidationError{}
	for i, v := range ch {
		if v < ChannelValueMin || v > ChannelValueMax {
			errors = append(errors, ValidationError{
				Type:    AnomalyChannelRange,
				Message: fmt.Sprintf("Channel %d out of range (%d, valid %d-%d)", i+1, v, ChannelValueMin, ChannelValueMax),
				Details: map[string]interface{}{"channel": i + 1, "value": v, "min": ChannelValueMin, "max": ChannelValueMax},
			})
		}
	}
	return errors
}

// validateLinkStatistics validates LINK_STATISTICS link quality percentages
func validateLinkStatistics(m LinkStatistics) []ValidationError {
	errors := []ValidationError{}

	if m.UplinkLinkQuality > 100 {
		errors = append(errors, ValidationError{
			Type:    AnomalyLinkQuality,
			Message: fmt.Sprintf("Uplink LQ=%d%% (max 100)", m.UplinkLinkQuality),
			Details: map[string]interface{}{"direction": "uplink", "value": m.UplinkLinkQuality},
		})
	}

	if m.DownlinkLinkQuality > 100 {
		errors = append(errors, ValidationError{
			Type:    AnomalyLinkQuality,
			Message: fmt.Sprintf("Downlink LQ=%d%% (max 100)", m.DownlinkLinkQuality),
			Details: map[string]interface{}{"direction": "downlink", "value": m.DownlinkLinkQuality},
		})
	}

	return errors
}

// validateBattery validates BATTERY_SENSOR remaining percentage
func validateBattery(m BatterySensor) []ValidationError {
	if m.Remaining <= 100 {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyBatteryRemaining,
		Message: fmt.Sprintf("Battery remaining=%d%% (max 100)", m.Remaining),
		Details: map[string]interface{}{"value": m.Remaining},
	}}
}

// validateGPS validates GPS coordinates are on the globe
func validateGPS(m GPS) []ValidationError {
	errors := []ValidationError{}

	if m.Latitude < -900000000 || m.Latitude > 900000000 {
		errors = append(errors, ValidationError{
			Type:    AnomalyGPSCoordinate,
			Message: fmt.Sprintf("Latitude out of range (%.7f)", float64(m.Latitude)/1e7),
			Details: map[string]interface{}{"latitude": m.Latitude},
		})
	}

	if m.Longitude < -1800000000 || m.Longitude > 1800000000 {
		errors = append(errors, ValidationError{
			Type:    AnomalyGPSCoordinate,
			Message: fmt.Sprintf("Longitude out of range (%.7f)", float64(m.Longitude)/1e7),
			Details: map[string]interface{}{"longitude": m.Longitude},
		})
	}

	return errors
}
