package display

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// PerfRecorder collects per-update pipeline timings: when the update was
// queued and dequeued, generation ticks (for a batch update, one when
// generation starts and one as each frame finishes; for an immediate update,
// one as each frame starts), and when each frame was flipped. Attach one through Config.Perf; with none attached the
// pipeline records nothing.
type PerfRecorder struct {
	mu      sync.Mutex
	records []perfRecord
}

type perfRecord struct {
	ids           []UpdateID
	mode          int
	width, height int
	timing        updateTiming
}

func NewPerfRecorder() *PerfRecorder {
	return &PerfRecorder{}
}

func (p *PerfRecorder) record(u *Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, perfRecord{
		ids:    append([]UpdateID(nil), u.IDs...),
		mode:   int(u.Mode),
		width:  u.Region.Width,
		height: u.Region.Height,
		timing: u.timing,
	})
}

// Report renders the collected records as CSV. Timestamps are microseconds;
// the generate and vsync columns hold colon-separated lists, one entry per
// recorded stage tick.
func (p *PerfRecorder) Report() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	b.WriteString("id,mode,width,height,queue_time,dequeue_time,generate_times,vsync_times\n")
	for _, r := range p.records {
		for i, id := range r.ids {
			if i > 0 {
				b.WriteByte(':')
			}
			b.WriteString(strconv.FormatUint(uint64(id), 10))
		}
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(r.mode))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(r.width))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(r.height))
		b.WriteByte(',')
		writeMicros(&b, r.timing.queue)
		b.WriteByte(',')
		writeMicros(&b, r.timing.dequeue)
		b.WriteByte(',')
		writeMicroList(&b, r.timing.generateTimes)
		b.WriteByte(',')
		writeMicroList(&b, r.timing.vsyncTimes)
		b.WriteByte('\n')
	}
	return b.String()
}

func writeMicros(b *strings.Builder, t time.Time) {
	b.WriteString(strconv.FormatInt(t.UnixMicro(), 10))
}

func writeMicroList(b *strings.Builder, ts []time.Time) {
	for i, t := range ts {
		if i > 0 {
			b.WriteByte(':')
		}
		writeMicros(b, t)
	}
}
