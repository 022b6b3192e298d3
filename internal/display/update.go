package display

import (
	"sync/atomic"
	"time"

	"github.com/Eeems/waved/internal/waveform"
)

// UpdateID identifies one PushUpdate call. IDs are monotonic across the
// process so merged updates can report every request they folded in.
type UpdateID uint64

var nextUpdateID atomic.Uint64

// Update is one queued request. It is immutable after enqueue except through
// the generator's merge path: the region may expand when compatible peers
// fold in, and may shrink mid-immediate to the still-active subregion.
type Update struct {
	IDs       []UpdateID
	Mode      waveform.ModeID
	Immediate bool
	Region    UpdateRegion
	Buffer    []waveform.Intensity

	timing updateTiming
}

// updateTiming collects the per-stage timestamps the perf recorder reports.
// All fields stay zero when no recorder is attached.
type updateTiming struct {
	queue         time.Time
	dequeue       time.Time
	generateTimes []time.Time
	vsyncTimes    []time.Time
}

// apply writes the update's target intensities into a panel-sized row-major
// intensity array over the update's region.
func (u *Update) apply(dst []waveform.Intensity) {
	for y := 0; y < u.Region.Height; y++ {
		row := (u.Region.Top+y)*EPDWidth + u.Region.Left
		copy(dst[row:row+u.Region.Width], u.Buffer[y*u.Region.Width:(y+1)*u.Region.Width])
	}
}

// transformBuffer converts a portrait row-major intensity buffer for region
// into the EPD frame produced by transformRegion, masking every value to the
// intensity domain.
func transformBuffer(buffer []waveform.Intensity, region UpdateRegion) []waveform.Intensity {
	trans := make([]waveform.Intensity, len(buffer))
	w := region.Width
	h := region.Height
	for k := range trans {
		i := h - (k % h) - 1
		j := w - (k / h) - 1
		trans[k] = buffer[i*w+j] & (waveform.IntensityValues - 1)
	}
	return trans
}
