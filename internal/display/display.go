// Package display drives an electrophoretic panel through a Linux
// framebuffer. Callers push rectangular intensity updates; a generator
// goroutine merges compatible requests and encodes them into packed phase
// frames, and a vsync goroutine flips those frames to the panel one per
// refresh, powering the panel down when idle.
package display

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Eeems/waved/internal/waveform"
)

// ErrInvalidFramebuffer reports that the framebuffer does not expose the
// panel geometry this driver requires.
var ErrInvalidFramebuffer = errors.New("display: framebuffer has invalid dimensions")

// defaultPowerOffTimeout is how long the vsync loop waits for the next batch
// before powering the panel down.
const defaultPowerOffTimeout = 3 * time.Second

// Config assembles the collaborators of a Display.
type Config struct {
	Device      Device
	Temperature TemperatureSource
	Table       waveform.Table
	Logger      zerolog.Logger

	// PowerOffTimeout overrides the idle delay before the panel powers off.
	PowerOffTimeout time.Duration

	// Perf, when set, collects per-update stage timings.
	Perf *PerfRecorder

	clock clock
}

// Display owns the update pipeline and both of its goroutines.
type Display struct {
	logger zerolog.Logger
	dev    Device
	temp   TemperatureSource
	table  waveform.Table
	clock  clock
	perf   *PerfRecorder

	powerOffTimeout time.Duration

	currentIntensity []waveform.Intensity
	nextIntensity    []waveform.Intensity
	waveformSteps    []uint32

	nullFrame   []byte
	framebuffer []byte
	varInfo     VarScreenInfo
	fixInfo     FixScreenInfo

	updatesMu         sync.Mutex
	updatesCond       *sync.Cond
	pending           []Update
	stoppingGenerator bool

	// Single-slot batch handoff: the generator takes an empty buffer from
	// free, fills it, and sends it on ready; the vsync loop flushes the
	// batch and returns the buffer to free. Both buffers start on free, so
	// the generator can fill one batch while the previous one flips.
	ready chan frameBatch
	free  chan [][]byte

	generatorStop chan struct{}
	generatorDone chan struct{}
	vsyncStop     chan struct{}
	vsyncDone     chan struct{}

	started    bool
	powerState bool
}

// frameBatch carries the packed frames of one update plus the update
// metadata the vsync loop reports to the perf recorder.
type frameBatch struct {
	frames [][]byte
	update Update
}

// New assembles a display from its collaborators. Start must run before
// updates are processed; PushUpdate may be called at any time.
func New(cfg Config) *Display {
	d := &Display{
		logger:          cfg.Logger,
		dev:             cfg.Device,
		temp:            cfg.Temperature,
		table:           cfg.Table,
		clock:           cfg.clock,
		perf:            cfg.Perf,
		powerOffTimeout: cfg.PowerOffTimeout,

		currentIntensity: make([]waveform.Intensity, epdSize),
		nextIntensity:    make([]waveform.Intensity, epdSize),
		waveformSteps:    make([]uint32, epdSize),

		nullFrame: buildNullFrame(),
	}
	if d.clock == nil {
		d.clock = systemClock{}
	}
	if d.powerOffTimeout == 0 {
		d.powerOffTimeout = defaultPowerOffTimeout
	}
	d.updatesCond = sync.NewCond(&d.updatesMu)
	return d
}

// Start powers the panel, validates and maps the framebuffer, resets every
// physical page to the null frame, and spawns the generator and vsync
// goroutines. Idempotent once started.
func (d *Display) Start() error {
	if d.started {
		return nil
	}

	d.setPower(true)
	if err := d.temp.Update(); err != nil {
		return err
	}

	varInfo, err := d.dev.VarScreenInfo()
	if err != nil {
		return err
	}
	fixInfo, err := d.dev.FixScreenInfo()
	if err != nil {
		return err
	}

	if varInfo.XRes != bufWidth ||
		varInfo.YRes != bufHeight ||
		varInfo.XResVirtual != bufWidth ||
		varInfo.YResVirtual != bufHeight*bufTotalFrames ||
		fixInfo.SMemLen < bufWidth*bufHeight*bufTotalFrames*bufDepth {
		return fmt.Errorf(
			"%w: %dx%d virtual %dx%d smem %d",
			ErrInvalidFramebuffer,
			varInfo.XRes, varInfo.YRes,
			varInfo.XResVirtual, varInfo.YResVirtual,
			fixInfo.SMemLen,
		)
	}

	framebuffer, err := d.dev.Map(int(fixInfo.SMemLen))
	if err != nil {
		return err
	}

	d.varInfo = varInfo
	d.fixInfo = fixInfo
	d.framebuffer = framebuffer

	for i := 0; i < bufTotalFrames; i++ {
		d.resetFrame(i)
	}

	d.initPipeline()
	go d.runGenerator()
	go d.runVsync()

	d.started = true
	return nil
}

// Stop shuts both goroutines down in order, discards pending updates,
// unmaps the framebuffer, and powers the panel off. Safe to call twice.
func (d *Display) Stop() {
	if d.started {
		d.updatesMu.Lock()
		d.stoppingGenerator = true
		d.pending = nil
		d.updatesCond.Broadcast()
		d.updatesMu.Unlock()
		close(d.generatorStop)
		<-d.generatorDone

		close(d.vsyncStop)
		<-d.vsyncDone

		if d.framebuffer != nil {
			if err := d.dev.Unmap(d.framebuffer); err != nil {
				d.logger.Warn().Err(err).Msg("unmap framebuffer failed")
			}
			d.framebuffer = nil
		}

		d.started = false
	}

	d.setPower(false)
}

// PushUpdate enqueues an update for the given mode. The region and buffer
// are in portrait coordinates; both are transformed into the EPD frame
// here. Returns false, without touching the queue, if the buffer length
// does not match the region or the transformed region leaves the panel.
func (d *Display) PushUpdate(mode waveform.ModeID, immediate bool, region UpdateRegion, buffer []waveform.Intensity) bool {
	if len(buffer) != region.Width*region.Height {
		return false
	}

	trans := transformBuffer(buffer, region)
	region = transformRegion(region, EPDHeight, EPDWidth)

	if region.Left < 0 || region.Top < 0 ||
		region.Left+region.Width > EPDWidth ||
		region.Top+region.Height > EPDHeight {
		return false
	}

	update := Update{
		IDs:       []UpdateID{UpdateID(nextUpdateID.Add(1) - 1)},
		Mode:      mode,
		Immediate: immediate,
		Region:    region,
		Buffer:    trans,
	}
	if d.perf != nil {
		update.timing.queue = d.clock.Now()
	}

	d.updatesMu.Lock()
	d.pending = append(d.pending, update)
	d.updatesCond.Signal()
	d.updatesMu.Unlock()
	return true
}

// PushUpdateKind resolves a standard mode kind through the waveform table
// and enqueues the update.
func (d *Display) PushUpdateKind(kind waveform.ModeKind, immediate bool, region UpdateRegion, buffer []waveform.Intensity) bool {
	mode, err := d.table.ModeID(kind)
	if err != nil {
		d.logger.Error().Err(err).Stringer("kind", kind).Msg("mode kind not in waveform table")
		return false
	}
	return d.PushUpdate(mode, immediate, region, buffer)
}

func (d *Display) initPipeline() {
	d.stoppingGenerator = false
	d.ready = make(chan frameBatch, 1)
	d.free = make(chan [][]byte, 2)
	d.free <- nil
	d.free <- nil
	d.generatorStop = make(chan struct{})
	d.generatorDone = make(chan struct{})
	d.vsyncStop = make(chan struct{})
	d.vsyncDone = make(chan struct{})
}

func (d *Display) setPower(on bool) {
	if on == d.powerState {
		return
	}
	if err := d.dev.Blank(!on); err != nil {
		d.logger.Warn().Err(err).Bool("on", on).Msg("panel power toggle failed")
		return
	}
	d.powerState = on
}

// resetFrame writes the null frame into one physical page.
func (d *Display) resetFrame(index int) {
	copy(d.framebuffer[index*bufFrame:(index+1)*bufFrame], d.nullFrame)
}

// buildNullFrame lays out the fixed control template every frame starts
// from. Each control byte sits at stride bufDepth, starting at byte 2 of
// the frame. The first row carries the horizontal sync pattern, the next
// two the vertical start sequence, and the remaining rows the per-line
// strobe signals around the data area.
func buildNullFrame() []byte {
	frame := make([]byte, bufFrame)
	pos := 2
	run := func(count int, value byte) {
		for i := 0; i < count; i++ {
			frame[pos] = value
			pos += bufDepth
		}
	}

	// First line
	run(20, 0b01000011)
	run(20, 0b01000111)
	run(63, 0b01000101)
	run(40, 0b01000111)
	run(117, 0b01000011)

	// Second and third lines
	for y := 1; y < 3; y++ {
		run(8, 0b01000001)
		run(11, 0b01100001)
		run(36, 0b01000001)
		run(200, 0b01000011)
		run(5, 0b01000001)
	}

	// Following lines
	for y := 3; y < bufHeight; y++ {
		run(8, 0b01000001)
		run(11, 0b01100001)
		run(7, 0b01000001)
		run(29, 0b01010001)
		run(200, 0b01010011)
		run(5, 0b01010001)
	}

	return frame
}
