package display

import (
	"encoding/binary"

	"github.com/Eeems/waved/internal/waveform"
)

func (d *Display) runGenerator() {
	defer close(d.generatorDone)
	for {
		update, ok := d.popUpdate()
		if !ok {
			return
		}
		if update.Immediate {
			d.generateImmediate(&update)
		} else {
			d.generateBatch(&update)
		}
	}
}

// popUpdate blocks until an update is pending or the display is stopping.
func (d *Display) popUpdate() (Update, bool) {
	d.updatesMu.Lock()
	defer d.updatesMu.Unlock()

	for len(d.pending) == 0 && !d.stoppingGenerator {
		d.updatesCond.Wait()
	}
	if d.stoppingGenerator {
		return Update{}, false
	}

	update := d.pending[0]
	d.pending = d.pending[1:]
	if d.perf != nil {
		update.timing.dequeue = d.clock.Now()
	}
	return update, true
}

// mergeUpdates folds queued updates compatible with the in-flight one into
// it, front to back, stopping at the first peer with a different mode or
// immediacy. For immediate updates a peer is also left queued if merging it
// would change the target of any pixel still mid-transition.
func (d *Display) mergeUpdates(cur *Update) {
	d.updatesMu.Lock()
	defer d.updatesMu.Unlock()

	for len(d.pending) > 0 {
		peer := &d.pending[0]

		if cur.Immediate != peer.Immediate || cur.Mode != peer.Mode {
			return
		}

		merged := cur.Region
		merged.Extend(peer.Region)

		if cur.Immediate {
			for y := 0; y < peer.Region.Height; y++ {
				row := (peer.Region.Top+y)*EPDWidth + peer.Region.Left
				buf := y * peer.Region.Width
				for x := 0; x < peer.Region.Width; x++ {
					if d.waveformSteps[row+x] > 0 && d.nextIntensity[row+x] != peer.Buffer[buf+x] {
						return
					}
				}
			}
		}

		peer.apply(d.nextIntensity)
		cur.Region = merged
		cur.IDs = append(cur.IDs, peer.IDs...)
		d.pending = d.pending[1:]
	}
}

// generateBatch produces one packed frame per waveform step for the whole
// update region and hands the batch to the vsync loop.
func (d *Display) generateBatch(update *Update) {
	wf, err := d.table.Lookup(update.Mode, d.temp.Temperature())
	if err != nil {
		d.logger.Error().Err(err).Msg("waveform lookup failed")
		return
	}

	copy(d.nextIntensity, d.currentIntensity)
	update.apply(d.nextIntensity)

	d.mergeUpdates(update)

	aligned := update.Region.Align(bufActualDepth)

	frames, ok := d.takeBatch()
	if !ok {
		return
	}
	if d.perf != nil {
		update.timing.generateTimes = append(update.timing.generateTimes, d.clock.Now())
	}

	startOffset := update.Region.Top*EPDWidth + update.Region.Left
	midOffset := EPDWidth - update.Region.Width

	for k := range wf {
		frames = d.appendFrame(frames)
		frame := frames[len(frames)-1]
		matrix := &wf[k]

		idx := startOffset
		for y := aligned.Top; y < aligned.Top+aligned.Height; y++ {
			off := (marginTop+y)*bufStride + (marginLeft+aligned.Left/bufActualDepth)*bufDepth

			for sx := aligned.Left; sx < aligned.Left+aligned.Width; sx += bufActualDepth {
				var phases uint16

				for x := sx; x < sx+bufActualDepth; x++ {
					phases <<= 2

					if update.Region.Contains(x, y) {
						phases |= uint16(matrix[d.currentIntensity[idx]][d.nextIntensity[idx]])
						idx++
					}
				}

				binary.LittleEndian.PutUint16(frame[off:], phases)
				off += bufDepth
			}

			idx += midOffset
		}

		if d.perf != nil {
			update.timing.generateTimes = append(update.timing.generateTimes, d.clock.Now())
		}
	}

	if d.sendFrames(frames, update) {
		copy(d.currentIntensity, d.nextIntensity)
	}
}

// generateImmediate emits one frame per iteration, tracking each pixel's
// progress through the waveform so freshly merged updates can join an
// animation already in flight. The working region shrinks to the pixels
// still transitioning after every frame.
func (d *Display) generateImmediate(update *Update) {
	wf, err := d.table.Lookup(update.Mode, d.temp.Temperature())
	if err != nil {
		d.logger.Error().Err(err).Msg("waveform lookup failed")
		return
	}
	stepCount := uint32(len(wf))

	clear(d.waveformSteps)
	copy(d.nextIntensity, d.currentIntensity)
	update.apply(d.nextIntensity)

	for {
		d.mergeUpdates(update)

		frames, ok := d.takeBatch()
		if !ok {
			return
		}
		frames = d.appendFrame(frames)
		frame := frames[len(frames)-1]
		if d.perf != nil {
			update.timing.generateTimes = append(update.timing.generateTimes, d.clock.Now())
		}

		aligned := update.Region.Align(bufActualDepth)
		var activeRegion UpdateRegion
		finished := true

		idx := update.Region.Top*EPDWidth + update.Region.Left
		midOffset := EPDWidth - update.Region.Width

		for y := aligned.Top; y < aligned.Top+aligned.Height; y++ {
			off := (marginTop+y)*bufStride + (marginLeft+aligned.Left/bufActualDepth)*bufDepth

			for sx := aligned.Left; sx < aligned.Left+aligned.Width; sx += bufActualDepth {
				var phases uint16

				for x := sx; x < sx+bufActualDepth; x++ {
					phases <<= 2

					if update.Region.Contains(x, y) {
						phase := waveform.PhaseNoop

						if d.currentIntensity[idx] != d.nextIntensity[idx] {
							finished = false

							// Advance pixel to its next step
							phase = wf[d.waveformSteps[idx]][d.currentIntensity[idx]][d.nextIntensity[idx]]
							activeRegion.ExtendPoint(x, y)
							d.waveformSteps[idx]++

							if d.waveformSteps[idx] == stepCount {
								// Transition complete: reset to allow further
								// transitions, and commit the final value
								d.waveformSteps[idx] = 0
								d.currentIntensity[idx] = d.nextIntensity[idx]
							}
						}

						phases |= uint16(phase)
						idx++
					}
				}

				binary.LittleEndian.PutUint16(frame[off:], phases)
				off += bufDepth
			}

			idx += midOffset
		}

		if finished {
			// The frame is all noops; return the buffer instead of flipping.
			d.free <- frames[:0]
			return
		}

		if !d.sendFrames(frames, update) {
			return
		}
		update.Region = activeRegion
	}
}

// takeBatch claims an empty batch buffer, blocking until the vsync loop has
// drained a previous one or the display is stopping.
func (d *Display) takeBatch() ([][]byte, bool) {
	select {
	case frames := <-d.free:
		return frames[:0], true
	case <-d.generatorStop:
		return nil, false
	}
}

// appendFrame grows the batch by one frame initialized to the null frame,
// reusing the buffer's previous allocations.
func (d *Display) appendFrame(frames [][]byte) [][]byte {
	if len(frames) < cap(frames) {
		frames = frames[:len(frames)+1]
		if frames[len(frames)-1] == nil {
			frames[len(frames)-1] = make([]byte, bufFrame)
		}
	} else {
		frames = append(frames, make([]byte, bufFrame))
	}
	copy(frames[len(frames)-1], d.nullFrame)
	return frames
}

func (d *Display) sendFrames(frames [][]byte, update *Update) bool {
	select {
	case d.ready <- frameBatch{frames: frames, update: *update}:
		return true
	case <-d.generatorStop:
		return false
	}
}
