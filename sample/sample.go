// Package sample converts canonical float samples into the numeric
// representations accepted by audio output devices.
//
// Canonical samples are float32 values in range [-1, 1]. Integer
// conversions clamp values outside of that range, float conversion passes
// them through unchanged.
package sample

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Format identifies the numeric representation of device samples.
type Format int

const (
	// Float32 is 32-bit IEEE float, silence is 0.
	Float32 Format = iota
	// Int16 is signed 16-bit integer, silence is 0.
	Int16
	// Uint16 is unsigned 16-bit integer, silence is mid-scale.
	Uint16
)

// ErrUnknownFormat is returned when sample format is not supported.
var ErrUnknownFormat = errors.New("unknown sample format")

const uint16Offset = 1 << 15

func (f Format) String() string {
	switch f {
	case Float32:
		return "f32"
	case Int16:
		return "i16"
	case Uint16:
		return "u16"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Size returns the size of a single sample in bytes.
func (f Format) Size() int {
	switch f {
	case Float32:
		return 4
	case Int16, Uint16:
		return 2
	}
	return 0
}

// ParseFormat returns the format for its short or long name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "f32", "float32":
		return Float32, nil
	case "i16", "int16":
		return Int16, nil
	case "u16", "uint16":
		return Uint16, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Silence returns the device value of zero sample.
func Silence(f Format) float64 {
	switch f {
	case Int16:
		return float64(ToInt16(0))
	case Uint16:
		return float64(ToUint16(0))
	}
	return float64(ToFloat32(0))
}

// ToFloat32 converts canonical sample into float device sample.
func ToFloat32(s float32) float32 {
	return s
}

// ToInt16 converts canonical sample into signed 16-bit device sample.
func ToInt16(s float32) int16 {
	return int16(clamp(s) * math.MaxInt16)
}

// ToUint16 converts canonical sample into unsigned 16-bit device sample.
func ToUint16(s float32) uint16 {
	return uint16(int32(clamp(s)*math.MaxInt16) + uint16Offset)
}

func clamp(s float32) float32 {
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}
