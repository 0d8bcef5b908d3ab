// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

// ShowControls makes the controls visible. While playing, the inactivity
// timer is (re)started; otherwise it stays suspended and controls remain.
func (c *Controller) ShowControls() {
	_ = c.do(func() error {
		if c.closed {
			return nil
		}
		c.showControlsLocked()
		return nil
	})
}

// PointerActivity reports a pointer move or touch on the player.
func (c *Controller) PointerActivity() {
	c.ShowControls()
}

func (c *Controller) showControlsLocked() {
	if !c.st.ControlsVisible {
		c.st.ControlsVisible = true
		c.touch()
	}
	if c.st.Phase == PhasePlaying && c.st.IsPlaying {
		c.restartTimerLocked()
		return
	}
	c.stopTimerLocked()
}

func (c *Controller) restartTimerLocked() {
	c.stopTimerLocked()
	token := c.timerToken
	c.timer = c.clock.AfterFunc(c.delay, func() { c.onControlsTimeout(token) })
}

// stopTimerLocked cancels the pending hide and invalidates a callback that
// may already be running.
func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerToken++
}

func (c *Controller) onControlsTimeout(token uint64) {
	_ = c.do(func() error {
		if c.closed || token != c.timerToken {
			return nil
		}
		c.timer = nil
		if c.st.Phase != PhasePlaying || !c.st.IsPlaying || c.st.IsSeeking {
			return nil
		}
		if c.st.ControlsVisible {
			c.st.ControlsVisible = false
			c.touch()
		}
		return nil
	})
}
