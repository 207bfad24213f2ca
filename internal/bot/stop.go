package bot

import "time"

// Stop stops receiving Telegram updates and refuses new downloads, waits up
// to grace for running ones and cancels whatever is still running after that.
func (b *Bot) Stop(grace time.Duration) {
	if b == nil || b.tgService == nil {
		return
	}
	b.tgService.StopReceivingUpdates()

	b.mu.Lock()
	b.stopping = true
	b.mu.Unlock()

	b.Wait(grace)
	b.cancelJobs()
}

// Wait blocks until every spawned download has finished. Downloads still
// running after grace are cancelled and given another grace to return;
// Wait returns false in that case.
func (b *Bot) Wait(grace time.Duration) bool {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
	}

	b.logger.Warn().Dur("grace", grace).Msg("Cancelling unfinished downloads")
	b.cancelJobs()

	// загрузки в Telegram не слушают контекст
	timer.Reset(grace)
	select {
	case <-done:
	case <-timer.C:
		b.logger.Error().Dur("grace", grace).Msg("Downloads still running after cancel, giving up")
	}
	return false
}
