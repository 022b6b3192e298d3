// Package waveform defines the phase tables that drive electrophoretic
// pixel transitions. A waveform is an ordered sequence of matrices, one per
// frame tick, mapping (previous intensity, next intensity) to the 2-bit
// drive phase applied to the pixel for that tick.
package waveform

import (
	"errors"
	"fmt"
)

// IntensityValues is the number of gray levels a pixel can hold.
const IntensityValues = 32

// Intensity is a 5-bit pixel gray value in [0, IntensityValues).
type Intensity = uint8

// Phase is the drive command applied to one pixel for one frame interval.
type Phase uint8

const (
	PhaseNoop   Phase = 0b00
	PhaseBlack  Phase = 0b01
	PhaseWhite  Phase = 0b10
	PhaseToggle Phase = 0b11
)

// PhaseMatrix maps [previous][next] intensity to a phase.
type PhaseMatrix [IntensityValues][IntensityValues]Phase

// Waveform is the full step sequence for one transition. Its length is the
// number of frames needed to drive any pixel from its previous to its next
// intensity.
type Waveform []PhaseMatrix

// ModeID identifies a waveform mode inside a loaded table.
type ModeID uint8

// ModeKind names the standard update modes exposed by EPD controllers.
type ModeKind int

const (
	ModeInit ModeKind = iota
	ModeDU
	ModeGC16
	ModeGL16
	ModeA2
)

func (k ModeKind) String() string {
	switch k {
	case ModeInit:
		return "INIT"
	case ModeDU:
		return "DU"
	case ModeGC16:
		return "GC16"
	case ModeGL16:
		return "GL16"
	case ModeA2:
		return "A2"
	}
	return fmt.Sprintf("ModeKind(%d)", int(k))
}

// ParseModeKind is the inverse of String.
func ParseModeKind(s string) (ModeKind, error) {
	switch s {
	case "INIT":
		return ModeInit, nil
	case "DU":
		return ModeDU, nil
	case "GC16":
		return ModeGC16, nil
	case "GL16":
		return ModeGL16, nil
	case "A2":
		return ModeA2, nil
	}
	return 0, fmt.Errorf("waveform: unknown mode kind %q", s)
}

var (
	ErrUnknownMode        = errors.New("waveform: unknown mode")
	ErrNoTemperatureRange = errors.New("waveform: no waveform for temperature")
)

// Table yields waveforms for a given mode and panel temperature. Loading and
// parsing of vendor tables lives outside this module; the display pipeline
// only depends on this interface.
type Table interface {
	// Lookup returns the waveform driving transitions for the given mode at
	// the given temperature in degrees Celsius.
	Lookup(mode ModeID, temperature int) (Waveform, error)

	// ModeID resolves a standard mode kind to this table's mode identifier.
	ModeID(kind ModeKind) (ModeID, error)
}

// TemperatureRange associates a waveform with the half-open temperature
// interval [Min, Max) in degrees Celsius.
type TemperatureRange struct {
	Min      int
	Max      int
	Waveform Waveform
}

// Mode is one entry of a StaticTable.
type Mode struct {
	Kind   ModeKind
	Ranges []TemperatureRange
}

// StaticTable is an in-memory Table built from explicit mode entries. Mode
// identifiers are the entry indices in declaration order.
type StaticTable struct {
	modes []Mode
}

// NewStaticTable builds a table from the given modes.
func NewStaticTable(modes []Mode) *StaticTable {
	return &StaticTable{modes: modes}
}

func (t *StaticTable) Lookup(mode ModeID, temperature int) (Waveform, error) {
	if int(mode) >= len(t.modes) {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownMode, mode)
	}
	for _, r := range t.modes[mode].Ranges {
		if temperature >= r.Min && temperature < r.Max {
			return r.Waveform, nil
		}
	}
	return nil, fmt.Errorf("%w: mode %d at %d°C", ErrNoTemperatureRange, mode, temperature)
}

func (t *StaticTable) ModeID(kind ModeKind) (ModeID, error) {
	for i, m := range t.modes {
		if m.Kind == kind {
			return ModeID(i), nil
		}
	}
	return 0, fmt.Errorf("%w: kind %s", ErrUnknownMode, kind)
}

// Uniform returns a waveform of the given length whose entry for every
// transition between two distinct intensities is computed by phase; entries
// for stable pixels (prev == next) stay PhaseNoop. Useful as a coarse
// built-in fallback when no vendor table is available, and in tests.
func Uniform(steps int, phase func(step int, prev, next Intensity) Phase) Waveform {
	wf := make(Waveform, steps)
	for k := range wf {
		for prev := 0; prev < IntensityValues; prev++ {
			for next := 0; next < IntensityValues; next++ {
				if prev == next {
					continue
				}
				wf[k][prev][next] = phase(k, Intensity(prev), Intensity(next))
			}
		}
	}
	return wf
}

// BuiltinDU is a minimal direct-update table usable when the device vendor
// table cannot be loaded: two driving steps toward the target, valid from
// 0°C to 50°C.
func BuiltinDU() *StaticTable {
	wf := Uniform(2, func(_ int, prev, next Intensity) Phase {
		if next > prev {
			return PhaseWhite
		}
		return PhaseBlack
	})
	return NewStaticTable([]Mode{
		{Kind: ModeDU, Ranges: []TemperatureRange{{Min: 0, Max: 50, Waveform: wf}}},
	})
}
