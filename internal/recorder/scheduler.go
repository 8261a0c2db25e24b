package recorder

import (
	"context"
	"time"
)

// Task is a handle on a recurring scheduled function.
type Task interface {
	// Cancel stops future runs. It does not wait for a run in progress.
	Cancel()
}

// Scheduler runs fn every interval until the returned Task is cancelled.
type Scheduler interface {
	Every(interval time.Duration, fn func()) Task
}

// TimeScheduler is the wall-clock Scheduler backed by time.Ticker.
type TimeScheduler struct{}

type tickerTask struct {
	cancel context.CancelFunc
}

func (t tickerTask) Cancel() { t.cancel() }

// Every starts a goroutine that calls fn on each tick.
func (TimeScheduler) Every(interval time.Duration, fn func()) Task {
	ctx, cancel := context.WithCancel(context.Background())
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Cancel may race with a tick that already fired.
				if ctx.Err() != nil {
					return
				}
				fn()
			}
		}
	}()
	return tickerTask{cancel: cancel}
}
