package session

import "github.com/vovakirdan/partychat/internal/proto"

// restartTypingTimerLocked cancels the idle timer and schedules a new one.
// Each schedule gets a generation; a callback from an older generation that
// lost the race with Stop is a no-op.
func (c *Controller) restartTypingTimerLocked() {
	c.stopTypingTimerLocked()
	gen := c.timerGen
	c.typingTimer = c.clock.AfterFunc(c.idle, func() {
		c.onTypingIdle(gen)
	})
}

func (c *Controller) stopTypingTimerLocked() {
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	c.timerGen++
}

func (c *Controller) onTypingIdle(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.timerGen || c.closed {
		return
	}
	c.typingTimer = nil
	if !c.selfTyping {
		return
	}
	c.selfTyping = false
	c.sendTypingLocked(false)
	c.publishLocked()
}

func (c *Controller) sendTypingLocked(typing bool) {
	if c.transport == nil {
		return
	}
	if err := c.transport.SendMessage(proto.SetTypingPresence, proto.SetTypingData{Typing: typing}); err != nil {
		c.log.Warn().Err(err).Bool("typing", typing).Msg("send typing presence")
	}
}
