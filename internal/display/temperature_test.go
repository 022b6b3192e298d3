package display

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sensorFixture(t *testing.T, contents string) (*SensorFile, string, *fakeClock) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "temp0")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = file.Close()
	})
	clk := newFakeClock(time.Unix(1000, 0))
	sensor := &SensorFile{file: file, interval: temperatureReadInterval, clock: clk}
	return sensor, path, clk
}

func TestSensorReadsTemperature(t *testing.T) {
	sensor, _, _ := sensorFixture(t, "24\n")
	if err := sensor.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := sensor.Temperature(); got != 24 {
		t.Fatalf("Temperature = %d, want 24", got)
	}
}

func TestSensorReadsNegativeTemperature(t *testing.T) {
	sensor, _, _ := sensorFixture(t, "-5\n")
	if err := sensor.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := sensor.Temperature(); got != -5 {
		t.Fatalf("Temperature = %d, want -5", got)
	}
}

func TestSensorCachesWithinInterval(t *testing.T) {
	sensor, path, clk := sensorFixture(t, "24\n")
	if err := sensor.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := os.WriteFile(path, []byte("30\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	clk.Advance(temperatureReadInterval - time.Second)
	if err := sensor.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := sensor.Temperature(); got != 24 {
		t.Fatalf("Temperature = %d, want cached 24", got)
	}

	clk.Advance(2 * time.Second)
	if err := sensor.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := sensor.Temperature(); got != 30 {
		t.Fatalf("Temperature = %d, want refreshed 30", got)
	}
}

func TestSensorRejectsGarbage(t *testing.T) {
	sensor, _, _ := sensorFixture(t, "not a number\n")
	if err := sensor.Update(); err == nil {
		t.Fatal("Update accepted a malformed temperature")
	}
}
