package call

import (
	"sync"
	"time"

	"github.com/signwave/backend/internal/schedule"
)

// MessageFunc is invoked after each simulated message is appended. index is
// the position of msg in the transcript.
type MessageFunc func(msg string, index int)

// Simulator plays a fixed message sequence on a repeating timer. It never
// loops: after the last message the timer is cancelled.
type Simulator struct {
	mu sync.Mutex

	sched     schedule.Scheduler
	interval  time.Duration
	sequence  []string
	onMessage MessageFunc

	transcript []string
	next       int
	ticker     schedule.Handle
	generation uint64
}

// NewSimulator creates a stopped simulator.
func NewSimulator(sched schedule.Scheduler, interval time.Duration, sequence []string, onMessage MessageFunc) *Simulator {
	return &Simulator{
		sched:     sched,
		interval:  interval,
		sequence:  append([]string(nil), sequence...),
		onMessage: onMessage,
	}
}

// Start begins emitting messages. It reports false if the simulator is
// already running or the sequence has been exhausted.
func (s *Simulator) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil || s.next >= len(s.sequence) {
		return false
	}
	s.generation++
	gen := s.generation
	s.ticker = s.sched.Every(s.interval, func() {
		s.tick(gen)
	})
	return true
}

// Stop cancels the timer and clears the transcript.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	if s.ticker != nil {
		s.ticker.Cancel()
		s.ticker = nil
	}
	s.transcript = nil
	s.next = 0
}

// Transcript returns the messages emitted so far.
func (s *Simulator) Transcript() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.transcript...)
}

// NextIndex is the index of the next message to emit.
func (s *Simulator) NextIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Running reports whether the timer is armed.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticker != nil
}

func (s *Simulator) tick(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.ticker == nil {
		s.mu.Unlock()
		return
	}

	msg := s.sequence[s.next]
	s.transcript = append(s.transcript, msg)
	index := s.next
	s.next++
	if s.next >= len(s.sequence) {
		s.ticker.Cancel()
		s.ticker = nil
	}
	onMessage := s.onMessage
	s.mu.Unlock()

	if onMessage != nil {
		onMessage(msg, index)
	}
}
