// Package schedule runs deferred and repeating callbacks behind handles that
// must be cancelled when their owner is reset or torn down.
package schedule

import (
	"sync"
	"time"
)

// Handle identifies a scheduled task. Cancel is idempotent.
type Handle interface {
	Cancel()
}

// Scheduler defers work. Callbacks run on a goroutine owned by the scheduler,
// so owners must guard the state they touch.
type Scheduler interface {
	After(d time.Duration, fn func()) Handle
	Every(d time.Duration, fn func()) Handle
}

// Real schedules on wall-clock time.
type Real struct{}

// NewReal returns a wall-clock scheduler.
func NewReal() Real {
	return Real{}
}

// After runs fn once after d.
func (Real) After(d time.Duration, fn func()) Handle {
	return &timerHandle{timer: time.AfterFunc(d, fn)}
}

// Every runs fn every d until cancelled.
func (Real) Every(d time.Duration, fn func()) Handle {
	h := &tickerHandle{
		ticker: time.NewTicker(d),
		done:   make(chan struct{}),
	}
	go h.loop(fn)
	return h
}

type timerHandle struct {
	timer *time.Timer
}

func (h *timerHandle) Cancel() {
	h.timer.Stop()
}

type tickerHandle struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (h *tickerHandle) loop(fn func()) {
	for {
		select {
		case <-h.done:
			return
		case <-h.ticker.C:
			// Cancel may have raced with the tick.
			select {
			case <-h.done:
				return
			default:
			}
			fn()
		}
	}
}

func (h *tickerHandle) Cancel() {
	h.once.Do(func() {
		h.ticker.Stop()
		close(h.done)
	})
}
