package display

import (
	"strings"
	"testing"
	"time"

	"github.com/Eeems/waved/internal/waveform"
)

func TestPerfReportFormat(t *testing.T) {
	perf := NewPerfRecorder()
	base := time.UnixMicro(5_000_000)

	u := Update{
		IDs:    []UpdateID{3, 4},
		Mode:   2,
		Region: UpdateRegion{Width: 24, Height: 1},
		timing: updateTiming{
			queue:         base,
			dequeue:       base.Add(time.Millisecond),
			generateTimes: []time.Time{base.Add(2 * time.Millisecond), base.Add(3 * time.Millisecond)},
			vsyncTimes:    []time.Time{base.Add(4 * time.Millisecond)},
		},
	}
	perf.record(&u)

	report := perf.Report()
	lines := strings.Split(strings.TrimRight(report, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("report has %d lines, want header + 1 record", len(lines))
	}
	if lines[0] != "id,mode,width,height,queue_time,dequeue_time,generate_times,vsync_times" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "3:4,2,24,1,5000000,5001000,5002000:5003000,5004000" {
		t.Fatalf("record = %q", lines[1])
	}
}

func TestPipelineRecordsTimings(t *testing.T) {
	perf := NewPerfRecorder()
	dev := NewMemDevice()
	d := New(Config{
		Device:          dev,
		Temperature:     StaticTemperature(24),
		Table:           singleModeTable(toggleWaveform(2)),
		PowerOffTimeout: time.Hour,
		Perf:            perf,
	})
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	region := UpdateRegion{Top: 0, Left: 0, Width: 4, Height: 4}
	if !d.PushUpdate(0, false, region, fill(31, 16)) {
		t.Fatal("PushUpdate rejected a valid update")
	}
	waitFor(t, "perf record", func() bool {
		return strings.Count(perf.Report(), "\n") == 2
	})

	record := strings.Split(strings.TrimRight(perf.Report(), "\n"), "\n")[1]
	fields := strings.Split(record, ",")
	if len(fields) != 8 {
		t.Fatalf("record has %d fields: %q", len(fields), record)
	}
	// Two frames generated, two flipped; plus the pre-generation tick.
	if got := strings.Count(fields[6], ":") + 1; got != 3 {
		t.Fatalf("generate_times has %d entries, want 3", got)
	}
	if got := strings.Count(fields[7], ":") + 1; got != 2 {
		t.Fatalf("vsync_times has %d entries, want 2", got)
	}
}

func toggleWaveform(steps int) waveform.Waveform {
	wf := make(waveform.Waveform, steps)
	for k := range wf {
		wf[k] = toggleMatrix()
	}
	return wf
}
