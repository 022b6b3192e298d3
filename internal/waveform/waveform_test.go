package waveform

import (
	"errors"
	"testing"
)

func TestStaticTableLookup(t *testing.T) {
	cold := Waveform{{}}
	warm := Waveform{{}, {}}
	table := NewStaticTable([]Mode{
		{Kind: ModeDU, Ranges: []TemperatureRange{
			{Min: 0, Max: 20, Waveform: cold},
			{Min: 20, Max: 50, Waveform: warm},
		}},
	})

	wf, err := table.Lookup(0, 10)
	if err != nil {
		t.Fatalf("Lookup(0, 10): %v", err)
	}
	if len(wf) != 1 {
		t.Fatalf("Lookup(0, 10) returned %d steps, want cold waveform", len(wf))
	}

	wf, err = table.Lookup(0, 20)
	if err != nil {
		t.Fatalf("Lookup(0, 20): %v", err)
	}
	if len(wf) != 2 {
		t.Fatalf("Lookup(0, 20) returned %d steps, want warm waveform", len(wf))
	}

	if _, err := table.Lookup(0, 60); !errors.Is(err, ErrNoTemperatureRange) {
		t.Fatalf("Lookup(0, 60) err = %v, want ErrNoTemperatureRange", err)
	}
	if _, err := table.Lookup(5, 10); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("Lookup(5, 10) err = %v, want ErrUnknownMode", err)
	}
}

func TestStaticTableModeID(t *testing.T) {
	table := NewStaticTable([]Mode{
		{Kind: ModeInit},
		{Kind: ModeGC16},
	})

	id, err := table.ModeID(ModeGC16)
	if err != nil {
		t.Fatalf("ModeID(GC16): %v", err)
	}
	if id != 1 {
		t.Fatalf("ModeID(GC16) = %d, want 1", id)
	}
	if _, err := table.ModeID(ModeA2); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("ModeID(A2) err = %v, want ErrUnknownMode", err)
	}
}

func TestParseModeKindRoundTrip(t *testing.T) {
	for _, kind := range []ModeKind{ModeInit, ModeDU, ModeGC16, ModeGL16, ModeA2} {
		parsed, err := ParseModeKind(kind.String())
		if err != nil {
			t.Fatalf("ParseModeKind(%s): %v", kind, err)
		}
		if parsed != kind {
			t.Fatalf("round trip %s -> %s", kind, parsed)
		}
	}
	if _, err := ParseModeKind("BOGUS"); err == nil {
		t.Fatal("ParseModeKind accepted an unknown kind")
	}
}

func TestUniformKeepsStablePixelsNoop(t *testing.T) {
	wf := Uniform(3, func(int, Intensity, Intensity) Phase { return PhaseToggle })
	if len(wf) != 3 {
		t.Fatalf("Uniform returned %d steps, want 3", len(wf))
	}
	for k := range wf {
		for v := 0; v < IntensityValues; v++ {
			if wf[k][v][v] != PhaseNoop {
				t.Fatalf("step %d drives stable pixel %d", k, v)
			}
		}
	}
	if wf[1][0][31] != PhaseToggle {
		t.Fatalf("step 1 phase = %d, want toggle", wf[1][0][31])
	}
}

func TestBuiltinDUDrivesTowardTarget(t *testing.T) {
	table := BuiltinDU()
	id, err := table.ModeID(ModeDU)
	if err != nil {
		t.Fatalf("ModeID(DU): %v", err)
	}
	wf, err := table.Lookup(id, 24)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	for k := range wf {
		if wf[k][0][31] != PhaseWhite {
			t.Fatalf("step %d lightening phase = %d, want white drive", k, wf[k][0][31])
		}
		if wf[k][31][0] != PhaseBlack {
			t.Fatalf("step %d darkening phase = %d, want black drive", k, wf[k][31][0])
		}
	}
}
