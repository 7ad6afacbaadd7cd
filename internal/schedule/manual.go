package schedule

import (
	"sync"
	"time"
)

// Manual is a Scheduler driven by Advance instead of the wall clock. Due
// callbacks run synchronously on the caller's goroutine, in due order.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	m         *Manual
	id        int
	due       time.Duration
	every     time.Duration
	fn        func()
	cancelled bool
}

// NewManual returns a scheduler positioned at time zero.
func NewManual() *Manual {
	return &Manual{}
}

// After implements Scheduler.
func (m *Manual) After(d time.Duration, fn func()) Handle {
	return m.add(d, 0, fn)
}

// Every implements Scheduler.
func (m *Manual) Every(d time.Duration, fn func()) Handle {
	if d <= 0 {
		panic("schedule: non-positive interval")
	}
	return m.add(d, d, fn)
}

func (m *Manual) add(d, every time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	task := &manualTask{m: m, id: m.seq, due: m.now + d, every: every, fn: fn}
	m.tasks = append(m.tasks, task)
	return task
}

// Advance moves the clock forward by d and runs every callback that falls due.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		var next *manualTask
		for _, task := range m.tasks {
			if task.cancelled || task.due > target {
				continue
			}
			if next == nil || task.due < next.due || (task.due == next.due && task.id < next.id) {
				next = task
			}
		}
		if next == nil {
			m.now = target
			m.compact()
			m.mu.Unlock()
			return
		}

		m.now = next.due
		if next.every > 0 {
			next.due += next.every
		} else {
			next.cancelled = true
		}
		fn := next.fn
		m.mu.Unlock()

		fn()
	}
}

// Elapsed reports how far the clock has been advanced.
func (m *Manual) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending counts tasks that may still fire.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, task := range m.tasks {
		if !task.cancelled {
			count++
		}
	}
	return count
}

func (m *Manual) compact() {
	live := m.tasks[:0]
	for _, task := range m.tasks {
		if !task.cancelled {
			live = append(live, task)
		}
	}
	m.tasks = live
}

func (t *manualTask) Cancel() {
	t.m.mu.Lock()
	t.cancelled = true
	t.m.mu.Unlock()
}
