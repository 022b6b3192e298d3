package display

func (d *Display) runVsync() {
	defer close(d.vsyncDone)

	nextFrame := 0
	firstFrame := true

	for {
		var batch frameBatch

		idle := d.clock.NewTimer(d.powerOffTimeout)
		select {
		case batch = <-d.ready:
			idle.Stop()
		case <-d.vsyncStop:
			idle.Stop()
			return
		case <-idle.C():
			// No updates are coming; cut power to save battery until the
			// next batch arrives.
			d.setPower(false)
			select {
			case batch = <-d.ready:
			case <-d.vsyncStop:
				return
			}
		}

		d.setPower(true)
		if err := d.temp.Update(); err != nil {
			d.logger.Error().Err(err).Msg("panel temperature read failed")
			return
		}

		for k := range batch.frames {
			nextFrame = (nextFrame + 1) % 2

			copy(d.framebuffer[nextFrame*bufFrame:(nextFrame+1)*bufFrame], batch.frames[k])
			d.varInfo.YOffset = uint32(nextFrame * bufHeight)

			var err error
			if firstFrame {
				// Schedule the first frame
				err = d.dev.PutVarScreenInfo(&d.varInfo)
			} else {
				// Schedule the next frame; blocks until the vsync of the
				// previous one, which paces the whole pipeline
				err = d.dev.PanDisplay(&d.varInfo)
			}
			if err != nil {
				d.logger.Error().Err(err).Msg("vsync and flip failed")
				return
			}
			firstFrame = false

			if d.perf != nil {
				batch.update.timing.vsyncTimes = append(batch.update.timing.vsyncTimes, d.clock.Now())
			}
		}

		if d.perf != nil {
			d.perf.record(&batch.update)
		}

		d.free <- batch.frames
	}
}
