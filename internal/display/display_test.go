package display

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/Eeems/waved/internal/waveform"
)

func singleModeTable(wf waveform.Waveform) *waveform.StaticTable {
	return waveform.NewStaticTable([]waveform.Mode{
		{Kind: waveform.ModeDU, Ranges: []waveform.TemperatureRange{
			{Min: -128, Max: 127, Waveform: wf},
		}},
	})
}

func newTestDisplay(table waveform.Table) *Display {
	d := New(Config{
		Device:      NewMemDevice(),
		Temperature: StaticTemperature(24),
		Table:       table,
	})
	d.initPipeline()
	return d
}

func fill(value waveform.Intensity, n int) []waveform.Intensity {
	buf := make([]waveform.Intensity, n)
	for i := range buf {
		buf[i] = value
	}
	return buf
}

func queueLen(d *Display) int {
	d.updatesMu.Lock()
	defer d.updatesMu.Unlock()
	return len(d.pending)
}

func TestPushUpdateRejectsBufferMismatch(t *testing.T) {
	d := newTestDisplay(singleModeTable(waveform.Waveform{{}}))
	region := UpdateRegion{Top: 0, Left: 0, Width: 4, Height: 4}
	if d.PushUpdate(0, false, region, fill(31, 15)) {
		t.Fatal("PushUpdate accepted a short buffer")
	}
	if queueLen(d) != 0 {
		t.Fatalf("queue length = %d after rejection", queueLen(d))
	}
}

func TestPushUpdateRejectsOutOfBounds(t *testing.T) {
	d := newTestDisplay(singleModeTable(waveform.Waveform{{}}))
	cases := []UpdateRegion{
		{Top: 0, Left: EPDHeight - 5, Width: 10, Height: 10},
		{Top: EPDWidth - 5, Left: 0, Width: 10, Height: 10},
		{Top: 0, Left: 0, Width: EPDHeight + 1, Height: 1},
	}
	for _, region := range cases {
		if d.PushUpdate(0, false, region, fill(0, region.Width*region.Height)) {
			t.Errorf("PushUpdate accepted out-of-bounds region %+v", region)
		}
	}
	if queueLen(d) != 0 {
		t.Fatalf("queue length = %d after rejections", queueLen(d))
	}
}

func TestPushUpdateMasksIntensities(t *testing.T) {
	d := newTestDisplay(singleModeTable(waveform.Waveform{{}}))
	region := UpdateRegion{Top: 0, Left: 0, Width: 8, Height: 2}
	buffer := make([]waveform.Intensity, 16)
	for i := range buffer {
		buffer[i] = waveform.Intensity(240 + i)
	}
	if !d.PushUpdate(0, false, region, buffer) {
		t.Fatal("PushUpdate rejected a valid update")
	}

	d.updatesMu.Lock()
	defer d.updatesMu.Unlock()
	for i, v := range d.pending[0].Buffer {
		if v >= waveform.IntensityValues {
			t.Fatalf("stored intensity %d at %d exceeds 5-bit domain", v, i)
		}
	}
}

func TestPushUpdateMonotonicIDs(t *testing.T) {
	d := newTestDisplay(singleModeTable(waveform.Waveform{{}}))
	region := UpdateRegion{Top: 0, Left: 0, Width: 2, Height: 2}

	var last UpdateID
	for i := 0; i < 5; i++ {
		if !d.PushUpdate(0, false, region, fill(0, 4)) {
			t.Fatal("PushUpdate rejected a valid update")
		}
	}

	d.updatesMu.Lock()
	defer d.updatesMu.Unlock()
	for i, u := range d.pending {
		id := u.IDs[0]
		if i > 0 && id <= last {
			t.Fatalf("ids not strictly increasing: %d after %d", id, last)
		}
		last = id
	}
}

func TestPushUpdateTransform(t *testing.T) {
	d := newTestDisplay(singleModeTable(waveform.Waveform{{}}))
	region := UpdateRegion{Top: 0, Left: 0, Width: 2, Height: 1}
	if !d.PushUpdate(0, false, region, []waveform.Intensity{7, 9}) {
		t.Fatal("PushUpdate rejected a valid update")
	}

	d.updatesMu.Lock()
	defer d.updatesMu.Unlock()
	got := d.pending[0]
	wantRegion := UpdateRegion{Top: EPDHeight - 2, Left: EPDWidth - 1, Width: 1, Height: 2}
	if got.Region != wantRegion {
		t.Fatalf("transformed region = %+v, want %+v", got.Region, wantRegion)
	}
	if !bytes.Equal(got.Buffer, []byte{9, 7}) {
		t.Fatalf("transformed buffer = %v, want [9 7]", got.Buffer)
	}
}

func TestTransformBufferInvolution(t *testing.T) {
	region := UpdateRegion{Width: 5, Height: 3}
	buffer := make([]waveform.Intensity, 15)
	for i := range buffer {
		buffer[i] = waveform.Intensity(i)
	}

	forward := transformBuffer(buffer, region)
	back := transformBuffer(forward, UpdateRegion{Width: region.Height, Height: region.Width})
	if !bytes.Equal(back, buffer) {
		t.Fatalf("buffer transform involution broken: %v -> %v -> %v", buffer, forward, back)
	}
}

func TestStartRejectsInvalidFramebuffer(t *testing.T) {
	dev := NewMemDevice()
	info, _ := dev.VarScreenInfo()
	info.YResVirtual = info.YRes
	dev.SetVarScreenInfo(info)

	d := New(Config{
		Device:      dev,
		Temperature: StaticTemperature(24),
		Table:       singleModeTable(waveform.Waveform{{}}),
	})
	err := d.Start()
	if err == nil {
		d.Stop()
		t.Fatal("Start accepted a framebuffer with bad dimensions")
	}
	if !errors.Is(err, ErrInvalidFramebuffer) {
		t.Fatalf("Start error = %v, want ErrInvalidFramebuffer", err)
	}
}

func TestStartWritesNullFrameToEveryPage(t *testing.T) {
	dev := NewMemDevice()
	d := New(Config{
		Device:          dev,
		Temperature:     StaticTemperature(24),
		Table:           singleModeTable(waveform.Waveform{{}}),
		PowerOffTimeout: time.Hour,
	})
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	d.Stop()

	null := buildNullFrame()
	for _, page := range []int{0, 1, bufTotalFrames - 1} {
		if !bytes.Equal(dev.Page(page), null) {
			t.Fatalf("page %d does not hold the null frame", page)
		}
	}
}

func TestStartStopRestart(t *testing.T) {
	d := New(Config{
		Device:          NewMemDevice(),
		Temperature:     StaticTemperature(24),
		Table:           singleModeTable(waveform.Waveform{{}}),
		PowerOffTimeout: time.Hour,
	})
	for i := 0; i < 2; i++ {
		if err := d.Start(); err != nil {
			t.Fatalf("Start #%d: %v", i+1, err)
		}
		if err := d.Start(); err != nil {
			t.Fatalf("Start while started: %v", err)
		}
		d.Stop()
		d.Stop()
	}
}
