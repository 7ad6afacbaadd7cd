package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/signwave/backend/internal/model/flow"
	"github.com/signwave/backend/internal/schedule"
	"github.com/signwave/backend/internal/service/avatar"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrClosed            = errors.New("flow closed")
	ErrEmptyInput        = errors.New("input text is required")
)

// Listener receives flow events. It is called without the machine lock held,
// possibly from a scheduler goroutine.
type Listener func(flow.Event)

// Machine is the state machine of one demo flow instance.
//
// idle -> device_requested -> recording -> processing -> result -> idle
//
// Kinds without a capture device go straight from idle to recording. Every
// scheduled completion carries the generation it was scheduled in; Reset and
// Close bump the generation so a late callback is dropped.
type Machine struct {
	mu sync.Mutex

	id        string
	cfg       Config
	sched     schedule.Scheduler
	choose    Chooser
	presenter *avatar.Presenter
	log       zerolog.Logger
	now       func() time.Time

	state         flow.State
	input         string
	result        *flow.TranslationResult
	deviceActive  bool
	pending       schedule.Handle
	generation    uint64
	notifications []flow.Notification
	updatedAt     time.Time
	closed        bool
	// touched 记录上次清扫后是否有请求访问过
	touched bool

	listeners    map[int]Listener
	nextListener int
}

// NewMachine creates an idle machine.
func NewMachine(id string, cfg Config, sched schedule.Scheduler, choose Chooser, presenter *avatar.Presenter, logger zerolog.Logger) *Machine {
	if choose == nil {
		choose = NewRandomChooser(0)
	}
	m := &Machine{
		id:        id,
		cfg:       cfg,
		sched:     sched,
		choose:    choose,
		presenter: presenter,
		log:       logger.With().Str("component", "flow").Str("flow", id).Str("kind", string(cfg.Kind)).Logger(),
		now:       func() time.Time { return time.Now().UTC() },
		state:     flow.StateIdle,
		listeners: make(map[int]Listener),
		touched:   true,
	}
	m.updatedAt = m.now()
	return m
}

// ID returns the flow identifier.
func (m *Machine) ID() string {
	return m.id
}

// Kind returns the flow kind.
func (m *Machine) Kind() flow.Kind {
	return m.cfg.Kind
}

// Start begins capture. Flows that need a device and do not hold one move to
// device_requested and wait for GrantDevice or DenyDevice.
func (m *Machine) Start() (flow.Snapshot, error) {
	return m.transition("start", func() error {
		switch m.state {
		case flow.StateIdle:
		case flow.StateDeviceRequested:
			return nil
		default:
			return m.invalid("start")
		}

		if m.cfg.Kind.Device() != flow.DeviceNone && !m.deviceActive {
			m.state = flow.StateDeviceRequested
			return nil
		}
		m.state = flow.StateRecording
		return nil
	})
}

// GrantDevice records that the browser acquired the capture device.
func (m *Machine) GrantDevice() (flow.Snapshot, error) {
	return m.transition("grant", func() error {
		if m.state != flow.StateDeviceRequested {
			return m.invalid("grant device")
		}
		m.deviceActive = true
		m.state = flow.StateRecording
		name := m.deviceName()
		m.notify("info", strings.ToUpper(name[:1])+name[1:]+" activated", fmt.Sprintf("Your %s is now ready for sign language translation", name))
		return nil
	})
}

// DenyDevice records a permission failure. The flow returns to idle, the
// error is surfaced as a notification and nothing is retried.
func (m *Machine) DenyDevice(reason string) (flow.Snapshot, error) {
	return m.transition("deny", func() error {
		if m.state != flow.StateDeviceRequested {
			return m.invalid("deny device")
		}
		m.state = flow.StateIdle
		m.deviceActive = false

		message := fmt.Sprintf("Could not access your %s. Please check permissions.", m.deviceName())
		if reason = strings.TrimSpace(reason); reason != "" {
			message += " (" + reason + ")"
		}
		m.notify("error", "Permission Error", message)
		return nil
	})
}

// Submit feeds text to a flow without a capture device. The text is echoed as
// the result after the configured delay. Callers reject blank text first.
func (m *Machine) Submit(text string) (flow.Snapshot, error) {
	return m.transition("submit", func() error {
		if m.cfg.Kind.Device() != flow.DeviceNone {
			return m.invalid("submit")
		}
		switch m.state {
		case flow.StateIdle, flow.StateRecording:
		default:
			return m.invalid("submit")
		}

		m.input = text
		m.state = flow.StateRecording
		m.beginProcessing(m.cfg.delay(false), text)
		return nil
	})
}

// Stop ends recording and starts processing. short selects the shorter
// latency where the kind defines one.
func (m *Machine) Stop(short bool) (flow.Snapshot, error) {
	return m.transition("stop", func() error {
		if m.state != flow.StateRecording {
			return m.invalid("stop")
		}
		if m.cfg.Kind.Device() == flow.DeviceNone {
			if strings.TrimSpace(m.input) == "" {
				return ErrEmptyInput
			}
			m.beginProcessing(m.cfg.delay(short), m.input)
			return nil
		}
		m.beginProcessing(m.cfg.delay(short), "")
		return nil
	})
}

// Reset cancels pending work, releases the device and returns to idle.
func (m *Machine) Reset() (flow.Snapshot, error) {
	return m.transition("reset", func() error {
		m.resetLocked()
		return nil
	})
}

// Speak asks subscribers to read the current result aloud. Fire-and-forget.
func (m *Machine) Speak() (flow.Snapshot, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return flow.Snapshot{}, ErrClosed
	}
	if m.state != flow.StateResult || m.result == nil {
		m.mu.Unlock()
		return flow.Snapshot{}, m.invalid("speak")
	}
	text := m.result.Text
	snap := m.snapshotLocked()
	listeners := m.listenersLocked()
	m.mu.Unlock()

	m.log.Debug().Str("text", text).Msg("speak requested")
	dispatch(listeners, flow.Event{Type: flow.EventSpeak, Snapshot: snap, Speech: text})
	return snap, nil
}

// Close tears the machine down. Pending callbacks are cancelled, the device
// is released and listeners get a final EventClosed before they are dropped.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.resetLocked()
	m.closed = true
	snap := m.snapshotLocked()
	listeners := m.listenersLocked()
	m.listeners = make(map[int]Listener)
	m.mu.Unlock()

	m.log.Debug().Msg("flow closed")
	dispatch(listeners, flow.Event{Type: flow.EventClosed, Snapshot: snap})
}

func (m *Machine) touch() {
	m.mu.Lock()
	m.touched = true
	m.mu.Unlock()
}

// idle reports whether the machine went unused since the previous call: no
// request, no pending work and no subscriber. The activity mark is cleared.
func (m *Machine) idle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	idle := !m.touched && m.pending == nil && len(m.listeners) == 0
	m.touched = false
	return idle
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() flow.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe registers a listener and returns its cancel function.
func (m *Machine) Subscribe(listener Listener) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = listener

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}, nil
}

func (m *Machine) transition(action string, apply func() error) (flow.Snapshot, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return flow.Snapshot{}, ErrClosed
	}
	from := m.state
	if err := apply(); err != nil {
		m.mu.Unlock()
		return flow.Snapshot{}, err
	}
	m.updatedAt = m.now()
	snap := m.snapshotLocked()
	listeners := m.listenersLocked()
	m.mu.Unlock()

	m.log.Info().Str("action", action).Str("from", string(from)).Str("to", string(snap.State)).Msg("flow transition")
	dispatch(listeners, flow.Event{Type: flow.EventState, Snapshot: snap})
	return snap, nil
}

func (m *Machine) beginProcessing(delay time.Duration, echo string) {
	m.state = flow.StateProcessing
	m.result = nil
	m.generation++
	gen := m.generation
	m.pending = m.sched.After(delay, func() {
		m.complete(gen, echo)
	})
}

func (m *Machine) complete(gen uint64, echo string) {
	m.mu.Lock()
	if m.closed || gen != m.generation || m.state != flow.StateProcessing {
		m.mu.Unlock()
		m.log.Debug().Uint64("generation", gen).Msg("dropping stale completion")
		return
	}

	text := echo
	if m.cfg.Kind.Device() != flow.DeviceNone {
		text = m.pickPhrase()
	}
	m.result = &flow.TranslationResult{
		Text:          text,
		Confidence:    m.cfg.Confidence,
		LanguageLabel: m.cfg.LanguageLabel,
	}
	m.state = flow.StateResult
	m.pending = nil
	m.updatedAt = m.now()
	snap := m.snapshotLocked()
	listeners := m.listenersLocked()
	m.mu.Unlock()

	m.log.Info().Str("text", text).Msg("processing complete")
	dispatch(listeners, flow.Event{Type: flow.EventState, Snapshot: snap})
}

func (m *Machine) pickPhrase() string {
	if len(m.cfg.Phrases) == 0 {
		return ""
	}
	idx := m.choose(len(m.cfg.Phrases))
	if idx < 0 || idx >= len(m.cfg.Phrases) {
		idx = 0
	}
	return m.cfg.Phrases[idx]
}

func (m *Machine) resetLocked() {
	if m.pending != nil {
		m.pending.Cancel()
		m.pending = nil
	}
	m.generation++
	if m.deviceActive {
		m.deviceActive = false
		m.log.Debug().Str("device", string(m.cfg.Kind.Device())).Msg("device released")
	}
	m.state = flow.StateIdle
	m.input = ""
	m.result = nil
	m.notifications = nil
}

func (m *Machine) snapshotLocked() flow.Snapshot {
	snap := flow.Snapshot{
		ID:           m.id,
		Kind:         m.cfg.Kind,
		State:        m.state,
		Device:       m.cfg.Kind.Device(),
		DeviceActive: m.deviceActive,
		Input:        m.input,
		UpdatedAt:    m.updatedAt,
	}
	if m.result != nil {
		result := *m.result
		snap.Result = &result
	}
	if len(m.notifications) > 0 {
		snap.Notifications = append([]flow.Notification(nil), m.notifications...)
	}

	text := ""
	if snap.Result != nil {
		text = snap.Result.Text
	}
	if m.presenter != nil {
		snap.AssetRef = m.presenter.AssetFor(context.Background(), text, m.state == flow.StateProcessing)
	}
	return snap
}

func (m *Machine) listenersLocked() []Listener {
	if len(m.listeners) == 0 {
		return nil
	}
	out := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		out = append(out, l)
	}
	return out
}

func (m *Machine) notify(level, title, message string) {
	m.notifications = append(m.notifications, flow.Notification{
		Level:     level,
		Title:     title,
		Message:   message,
		CreatedAt: m.now(),
	})
}

func (m *Machine) invalid(action string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, m.state)
}

func (m *Machine) deviceName() string {
	switch m.cfg.Kind.Device() {
	case flow.DeviceMicrophone:
		return "microphone"
	default:
		return "camera"
	}
}

func dispatch(listeners []Listener, event flow.Event) {
	for _, l := range listeners {
		l(event)
	}
}
