package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/signwave/backend/internal/model/flow"
	"github.com/signwave/backend/internal/schedule"
	"github.com/signwave/backend/internal/service/avatar"
)

var (
	ErrFlowNotFound = errors.New("flow not found")
	ErrUnknownKind  = errors.New("unknown flow kind")
)

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	Configs   map[flow.Kind]Config
	Scheduler schedule.Scheduler
	Chooser   Chooser
	// IdleTimeout enables the idle sweep. Flows untouched for one to two
	// periods are closed. Zero disables it.
	IdleTimeout time.Duration
}

// Service keeps every live flow keyed by id.
type Service struct {
	mu        sync.RWMutex
	flows     map[string]*Machine
	configs   map[flow.Kind]Config
	sched     schedule.Scheduler
	choose    Chooser
	presenter *avatar.Presenter
	log       zerolog.Logger
	sweeper   schedule.Handle
}

// NewService bootstraps the in-memory flow registry.
func NewService(presenter *avatar.Presenter, logger zerolog.Logger, opts Options) *Service {
	configs := make(map[flow.Kind]Config, 3)
	for _, kind := range []flow.Kind{flow.KindSignToText, flow.KindTextToSign, flow.KindVoice} {
		cfg, ok := opts.Configs[kind]
		if !ok {
			cfg = DefaultConfig(kind)
		}
		cfg.Kind = kind
		configs[kind] = cfg
	}

	sched := opts.Scheduler
	if sched == nil {
		sched = schedule.NewReal()
	}
	choose := opts.Chooser
	if choose == nil {
		choose = NewRandomChooser(0)
	}

	s := &Service{
		flows:     make(map[string]*Machine),
		configs:   configs,
		sched:     sched,
		choose:    choose,
		presenter: presenter,
		log:       logger,
	}
	if opts.IdleTimeout > 0 {
		s.sweeper = sched.Every(opts.IdleTimeout, func() { s.Sweep() })
	}
	return s
}

// Create provisions an idle flow of kind.
func (s *Service) Create(_ context.Context, kind flow.Kind) (flow.Snapshot, error) {
	cfg, ok := s.configs[kind]
	if !ok {
		return flow.Snapshot{}, ErrUnknownKind
	}

	m := NewMachine(uuid.NewString(), cfg, s.sched, s.choose, s.presenter, s.log)

	s.mu.Lock()
	s.flows[m.ID()] = m
	s.mu.Unlock()

	return m.Snapshot(), nil
}

// Get returns the current snapshot of a flow.
func (s *Service) Get(_ context.Context, id string) (flow.Snapshot, error) {
	m, err := s.lookup(id)
	if err != nil {
		return flow.Snapshot{}, err
	}
	return m.Snapshot(), nil
}

// Start begins capture on a flow.
func (s *Service) Start(_ context.Context, id string) (flow.Snapshot, error) {
	m, err := s.lookup(id)
	if err != nil {
		return flow.Snapshot{}, err
	}
	return m.Start()
}

// ReportDevice relays the outcome of the browser's capture-device request.
func (s *Service) ReportDevice(_ context.Context, id string, granted bool, reason string) (flow.Snapshot, error) {
	m, err := s.lookup(id)
	if err != nil {
		return flow.Snapshot{}, err
	}
	if granted {
		return m.GrantDevice()
	}
	return m.DenyDevice(reason)
}

// Submit hands text to a text-to-sign flow. Blank text never reaches the
// state machine.
func (s *Service) Submit(_ context.Context, id, text string) (flow.Snapshot, error) {
	if strings.TrimSpace(text) == "" {
		return flow.Snapshot{}, ErrEmptyInput
	}
	m, err := s.lookup(id)
	if err != nil {
		return flow.Snapshot{}, err
	}
	return m.Submit(text)
}

// Stop ends recording on a flow.
func (s *Service) Stop(_ context.Context, id string, short bool) (flow.Snapshot, error) {
	m, err := s.lookup(id)
	if err != nil {
		return flow.Snapshot{}, err
	}
	return m.Stop(short)
}

// Reset returns a flow to idle.
func (s *Service) Reset(_ context.Context, id string) (flow.Snapshot, error) {
	m, err := s.lookup(id)
	if err != nil {
		return flow.Snapshot{}, err
	}
	return m.Reset()
}

// Speak pushes the current result to subscribers for speech synthesis.
func (s *Service) Speak(_ context.Context, id string) (flow.Snapshot, error) {
	m, err := s.lookup(id)
	if err != nil {
		return flow.Snapshot{}, err
	}
	return m.Speak()
}

// Subscribe attaches a listener to a flow.
func (s *Service) Subscribe(_ context.Context, id string, listener Listener) (func(), error) {
	m, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return m.Subscribe(listener)
}

// Close tears a flow down and forgets it.
func (s *Service) Close(_ context.Context, id string) error {
	s.mu.Lock()
	m, ok := s.flows[id]
	delete(s.flows, id)
	s.mu.Unlock()

	if !ok {
		return ErrFlowNotFound
	}
	m.Close()
	return nil
}

// Sweep closes flows that saw no request, pending work or subscriber since
// the previous sweep and returns how many were closed.
func (s *Service) Sweep() int {
	s.mu.RLock()
	candidates := make([]*Machine, 0, len(s.flows))
	for _, m := range s.flows {
		candidates = append(candidates, m)
	}
	s.mu.RUnlock()

	var idle []*Machine
	for _, m := range candidates {
		if m.idle() {
			idle = append(idle, m)
		}
	}
	if len(idle) == 0 {
		return 0
	}

	s.mu.Lock()
	for _, m := range idle {
		if s.flows[m.ID()] == m {
			delete(s.flows, m.ID())
		}
	}
	s.mu.Unlock()

	for _, m := range idle {
		m.Close()
	}
	s.log.Info().Int("count", len(idle)).Msg("swept idle flows")
	return len(idle)
}

// Shutdown closes every flow.
func (s *Service) Shutdown() {
	if s.sweeper != nil {
		s.sweeper.Cancel()
	}

	s.mu.Lock()
	flows := s.flows
	s.flows = make(map[string]*Machine)
	s.mu.Unlock()

	for _, m := range flows {
		m.Close()
	}
}

func (s *Service) lookup(id string) (*Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.flows[id]
	if !ok {
		return nil, ErrFlowNotFound
	}
	m.touch()
	return m, nil
}
