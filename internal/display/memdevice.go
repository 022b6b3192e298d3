package display

import (
	"sync"
)

// MemDevice is an in-memory Device used by tests and dry runs. It exposes
// the same geometry contract as the real panel and records every blank and
// flip so callers can assert on the drive sequence.
type MemDevice struct {
	mu sync.Mutex

	varInfo VarScreenInfo
	fixInfo FixScreenInfo
	mem     []byte

	blankEvents []bool
	putCount    int
	panOffsets  []uint32
}

// NewMemDevice returns a device with the exact geometry the pipeline
// validates against.
func NewMemDevice() *MemDevice {
	smemLen := uint32(bufWidth * bufHeight * bufTotalFrames * bufDepth)
	return &MemDevice{
		varInfo: VarScreenInfo{
			XRes:         bufWidth,
			YRes:         bufHeight,
			XResVirtual:  bufWidth,
			YResVirtual:  bufHeight * bufTotalFrames,
			BitsPerPixel: 8 * bufDepth,
		},
		fixInfo: FixScreenInfo{
			SMemLen:    smemLen,
			LineLength: bufStride,
		},
		mem: make([]byte, smemLen),
	}
}

// SetVarScreenInfo overrides the reported variable screen info, letting
// tests exercise the validation path with broken geometry.
func (d *MemDevice) SetVarScreenInfo(info VarScreenInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.varInfo = info
}

func (d *MemDevice) VarScreenInfo() (VarScreenInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.varInfo, nil
}

func (d *MemDevice) FixScreenInfo() (FixScreenInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fixInfo, nil
}

func (d *MemDevice) Map(length int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if length > len(d.mem) {
		d.mem = make([]byte, length)
	}
	return d.mem, nil
}

func (d *MemDevice) Unmap([]byte) error {
	return nil
}

func (d *MemDevice) Blank(powerOff bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blankEvents = append(d.blankEvents, powerOff)
	return nil
}

func (d *MemDevice) PutVarScreenInfo(info *VarScreenInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.putCount++
	d.varInfo = *info
	return nil
}

func (d *MemDevice) PanDisplay(info *VarScreenInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.panOffsets = append(d.panOffsets, info.YOffset)
	d.varInfo = *info
	return nil
}

func (d *MemDevice) Close() error {
	return nil
}

// BlankEvents returns the sequence of Blank calls; true means power down.
func (d *MemDevice) BlankEvents() []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]bool(nil), d.blankEvents...)
}

// PutCount returns how many times PutVarScreenInfo ran.
func (d *MemDevice) PutCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.putCount
}

// PanOffsets returns the YOffset of every PanDisplay call in order.
func (d *MemDevice) PanOffsets() []uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint32(nil), d.panOffsets...)
}

// Page returns the contents of one physical framebuffer page.
func (d *MemDevice) Page(index int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.mem[index*bufFrame:(index+1)*bufFrame]...)
}
