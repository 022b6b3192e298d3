package display

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// temperatureReadInterval bounds how often the sensor file is re-read.
// Waveform lookups between reads use the cached value.
const temperatureReadInterval = 30 * time.Second

// TemperatureSource supplies the panel temperature the generator uses to
// select waveforms.
type TemperatureSource interface {
	// Update refreshes the cached temperature if the read interval elapsed.
	Update() error

	// Temperature returns the last read value in degrees Celsius.
	Temperature() int
}

// SensorFile reads integer degrees Celsius from a sysfs hwmon file.
type SensorFile struct {
	file     *os.File
	interval time.Duration
	clock    clock

	temperature atomic.Int32
	lastRead    time.Time
}

// OpenSensor opens the temperature sensor at path.
func OpenSensor(path string) (*SensorFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open temperature sensor: %w", err)
	}
	return &SensorFile{file: file, interval: temperatureReadInterval, clock: systemClock{}}, nil
}

func (s *SensorFile) Update() error {
	if !s.lastRead.IsZero() && s.clock.Now().Sub(s.lastRead) <= s.interval {
		return nil
	}

	if _, err := s.file.Seek(0, 0); err != nil {
		return fmt.Errorf("seek in panel temperature file: %w", err)
	}

	buffer := make([]byte, 12)
	n, err := s.file.Read(buffer)
	if err != nil {
		return fmt.Errorf("read panel temperature: %w", err)
	}

	value, err := strconv.Atoi(strings.TrimSpace(string(buffer[:n])))
	if err != nil {
		return fmt.Errorf("parse panel temperature: %w", err)
	}

	s.temperature.Store(int32(value))
	s.lastRead = s.clock.Now()
	return nil
}

func (s *SensorFile) Temperature() int {
	return int(s.temperature.Load())
}

func (s *SensorFile) Close() error {
	return s.file.Close()
}

// StaticTemperature is a TemperatureSource pinned to a fixed value, for dry
// runs without sensor hardware.
type StaticTemperature int

func (t StaticTemperature) Update() error    { return nil }
func (t StaticTemperature) Temperature() int { return int(t) }
