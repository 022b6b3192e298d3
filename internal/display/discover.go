package display

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	framebufferName = "mxs-lcdif"
	sensorName      = "sy7636a_temperature"
)

var ErrDeviceNotFound = errors.New("display: device not found")

// DiscoverFramebuffer locates the EPD framebuffer device node by scanning
// the graphics class for the panel controller.
func DiscoverFramebuffer() (string, error) {
	return discoverFramebuffer("/sys/class/graphics", "/dev")
}

func discoverFramebuffer(classDir, devDir string) (string, error) {
	entries, err := os.ReadDir(classDir)
	if err != nil {
		return "", fmt.Errorf("scan graphics class: %w", err)
	}
	for _, entry := range entries {
		name, err := readSysfsLine(filepath.Join(classDir, entry.Name(), "name"))
		if err != nil || name != framebufferName {
			continue
		}
		dev, err := readSysfsLine(filepath.Join(classDir, entry.Name(), "dev"))
		if err != nil {
			continue
		}
		_, minor, ok := strings.Cut(dev, ":")
		if !ok {
			continue
		}
		devPath := filepath.Join(devDir, "fb"+minor)
		if _, err := os.Stat(devPath); err == nil {
			return devPath, nil
		}
	}
	return "", fmt.Errorf("%w: framebuffer %q", ErrDeviceNotFound, framebufferName)
}

// DiscoverTemperatureSensor locates the panel temperature sysfs file.
func DiscoverTemperatureSensor() (string, error) {
	return discoverTemperatureSensor("/sys/class/hwmon")
}

func discoverTemperatureSensor(classDir string) (string, error) {
	entries, err := os.ReadDir(classDir)
	if err != nil {
		return "", fmt.Errorf("scan hwmon class: %w", err)
	}
	for _, entry := range entries {
		name, err := readSysfsLine(filepath.Join(classDir, entry.Name(), "name"))
		if err != nil || name != sensorName {
			continue
		}
		sensorPath := filepath.Join(classDir, entry.Name(), "temp0")
		if _, err := os.Stat(sensorPath); err == nil {
			return sensorPath, nil
		}
	}
	return "", fmt.Errorf("%w: sensor %q", ErrDeviceNotFound, sensorName)
}

func readSysfsLine(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimSpace(line), nil
}
