package call

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/signwave/backend/internal/model/call"
	"github.com/signwave/backend/internal/schedule"
	"github.com/signwave/backend/internal/service/avatar"
)

// Default message intervals.
const (
	WidgetInterval = 5000 * time.Millisecond
	PageInterval   = 7000 * time.Millisecond
)

const roomIDLength = 8

var (
	ErrCallNotFound   = errors.New("call not found")
	ErrCallActive     = errors.New("call already active")
	ErrCallNotActive  = errors.New("call not active")
	ErrUnknownContext = errors.New("unknown call context")
)

// HistoryRecorder persists the contacts the user joined calls with.
type HistoryRecorder interface {
	RecordCall(ctx context.Context, contactName string) ([]string, error)
}

// Listener receives call events, outside any service lock.
type Listener func(call.Event)

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	Scheduler      schedule.Scheduler
	WidgetInterval time.Duration
	PageInterval   time.Duration
	PublicBaseURL  string
	// IdleTimeout enables the idle sweep. Zero disables it.
	IdleTimeout time.Duration
}

type room struct {
	mu           sync.Mutex
	session      call.Session
	sim          *Simulator
	listeners    map[int]Listener
	nextListener int
	ended        bool
	touched      bool
}

// Service owns simulated call sessions keyed by room id.
type Service struct {
	mu    sync.RWMutex
	rooms map[string]*room

	sched     schedule.Scheduler
	intervals map[call.Context]time.Duration
	baseURL   string
	presenter *avatar.Presenter
	history   HistoryRecorder
	log       zerolog.Logger
	sweeper   schedule.Handle
}

// NewService bootstraps the in-memory call registry.
func NewService(presenter *avatar.Presenter, history HistoryRecorder, logger zerolog.Logger, opts Options) *Service {
	sched := opts.Scheduler
	if sched == nil {
		sched = schedule.NewReal()
	}
	widget := opts.WidgetInterval
	if widget <= 0 {
		widget = WidgetInterval
	}
	page := opts.PageInterval
	if page <= 0 {
		page = PageInterval
	}

	s := &Service{
		rooms: make(map[string]*room),
		sched: sched,
		intervals: map[call.Context]time.Duration{
			call.ContextWidget: widget,
			call.ContextPage:   page,
		},
		baseURL:   strings.TrimRight(opts.PublicBaseURL, "/"),
		presenter: presenter,
		history:   history,
		log:       logger.With().Str("component", "call").Logger(),
	}
	if opts.IdleTimeout > 0 {
		s.sweeper = sched.Every(opts.IdleTimeout, func() { s.Sweep() })
	}
	return s
}

// Create opens an inactive room for a contact. A blank contact becomes the
// default contact.
func (s *Service) Create(_ context.Context, contactName string, callCtx call.Context) (call.Session, error) {
	interval, ok := s.intervals[callCtx]
	if !ok {
		return call.Session{}, ErrUnknownContext
	}
	contactName = strings.TrimSpace(contactName)
	if contactName == "" {
		contactName = call.DefaultContactName
	}

	r := &room{
		session: call.Session{
			ContactName: contactName,
			Context:     callCtx,
			AssetRef:    s.presenter.Idle(),
			CreatedAt:   time.Now().UTC(),
		},
		listeners: make(map[int]Listener),
		touched:   true,
	}
	r.sim = NewSimulator(s.sched, interval, call.Sequence(callCtx), func(msg string, index int) {
		s.onMessage(r, msg, index)
	})

	s.mu.Lock()
	id := newRoomID()
	for _, taken := s.rooms[id]; taken; _, taken = s.rooms[id] {
		id = newRoomID()
	}
	r.session.RoomID = id
	s.rooms[id] = r
	s.mu.Unlock()

	s.log.Info().Str("room", id).Str("contact", contactName).Str("context", string(callCtx)).Msg("call created")
	return s.snapshot(r), nil
}

// Get returns the current state of a room.
func (s *Service) Get(_ context.Context, roomID string) (call.Session, error) {
	r, err := s.lookup(roomID)
	if err != nil {
		return call.Session{}, err
	}
	return s.snapshot(r), nil
}

// Join activates the call, records the contact in history and starts the
// message simulator. When the browser could not acquire devices the call
// still starts and carries a notice.
func (s *Service) Join(ctx context.Context, roomID string, devicesGranted bool) (call.Session, error) {
	r, err := s.lookup(roomID)
	if err != nil {
		return call.Session{}, err
	}

	r.mu.Lock()
	if r.ended {
		r.mu.Unlock()
		return call.Session{}, ErrCallNotFound
	}
	if r.session.Active {
		r.mu.Unlock()
		return call.Session{}, ErrCallActive
	}
	r.session.Active = true
	r.session.MicEnabled = true
	r.session.VideoEnabled = true
	r.session.DeviceActive = devicesGranted
	r.session.NeedsDevice = !devicesGranted
	r.session.Notice = ""
	if !devicesGranted {
		r.session.Notice = "Could not access camera or microphone. Please check permissions."
	}
	contact := r.session.ContactName
	r.sim.Start()
	snap := s.snapshotLocked(r)
	listeners := listenersOf(r)
	r.mu.Unlock()

	if s.history != nil {
		if _, err := s.history.RecordCall(ctx, contact); err != nil {
			s.log.Warn().Err(err).Str("room", roomID).Msg("failed to record call history")
		}
	}

	s.log.Info().Str("room", roomID).Bool("devices", devicesGranted).Msg("call joined")
	dispatch(listeners, call.Event{Type: call.EventState, Session: snap})
	return snap, nil
}

// ToggleMic flips the microphone of an active call.
func (s *Service) ToggleMic(_ context.Context, roomID string) (call.Session, error) {
	return s.update(roomID, "toggle mic", func(session *call.Session) {
		session.MicEnabled = !session.MicEnabled
	})
}

// ToggleVideo flips the camera of an active call. Turning video on without an
// acquired device flags the session so the browser asks again.
func (s *Service) ToggleVideo(_ context.Context, roomID string) (call.Session, error) {
	return s.update(roomID, "toggle video", func(session *call.Session) {
		session.VideoEnabled = !session.VideoEnabled
		session.NeedsDevice = session.VideoEnabled && !session.DeviceActive
	})
}

// End tears the call down: the simulator is stopped, the transcript cleared
// and the room forgotten.
func (s *Service) End(_ context.Context, roomID string) (call.Session, error) {
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	delete(s.rooms, roomID)
	s.mu.Unlock()
	if !ok {
		return call.Session{}, ErrCallNotFound
	}

	snap, listeners := s.endRoom(r)
	s.log.Info().Str("room", roomID).Msg("call ended")
	dispatch(listeners, call.Event{Type: call.EventEnded, Session: snap})
	return snap, nil
}

// Subscribe attaches a listener to a room.
func (s *Service) Subscribe(_ context.Context, roomID string, listener Listener) (func(), error) {
	r, err := s.lookup(roomID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return nil, ErrCallNotFound
	}
	id := r.nextListener
	r.nextListener++
	r.listeners[id] = listener

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}, nil
}

// Interval returns how far apart the messages of a call context arrive.
func (s *Service) Interval(callCtx call.Context) time.Duration {
	return s.intervals[callCtx]
}

// ShareLink builds the public URL of the call page.
func (s *Service) ShareLink(_ context.Context, roomID string) (string, error) {
	if _, err := s.lookup(roomID); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/video-call/%s", s.baseURL, roomID), nil
}

// Sweep ends rooms that saw no request, running simulator or subscriber since
// the previous sweep and returns how many were ended.
func (s *Service) Sweep() int {
	s.mu.RLock()
	candidates := make(map[string]*room, len(s.rooms))
	for id, r := range s.rooms {
		candidates[id] = r
	}
	s.mu.RUnlock()

	idle := make(map[string]*room)
	for id, r := range candidates {
		if r.idle() {
			idle[id] = r
		}
	}
	if len(idle) == 0 {
		return 0
	}

	s.mu.Lock()
	for id, r := range idle {
		if s.rooms[id] == r {
			delete(s.rooms, id)
		}
	}
	s.mu.Unlock()

	for _, r := range idle {
		s.endRoom(r)
	}
	s.log.Info().Int("count", len(idle)).Msg("swept idle calls")
	return len(idle)
}

// Shutdown ends every room without notifying listeners.
func (s *Service) Shutdown() {
	if s.sweeper != nil {
		s.sweeper.Cancel()
	}

	s.mu.Lock()
	rooms := s.rooms
	s.rooms = make(map[string]*room)
	s.mu.Unlock()

	for _, r := range rooms {
		s.endRoom(r)
	}
}

func (s *Service) update(roomID, action string, apply func(*call.Session)) (call.Session, error) {
	r, err := s.lookup(roomID)
	if err != nil {
		return call.Session{}, err
	}

	r.mu.Lock()
	if r.ended {
		r.mu.Unlock()
		return call.Session{}, ErrCallNotFound
	}
	if !r.session.Active {
		r.mu.Unlock()
		return call.Session{}, ErrCallNotActive
	}
	apply(&r.session)
	snap := s.snapshotLocked(r)
	listeners := listenersOf(r)
	r.mu.Unlock()

	s.log.Debug().Str("room", roomID).Str("action", action).Msg("call updated")
	dispatch(listeners, call.Event{Type: call.EventState, Session: snap})
	return snap, nil
}

func (s *Service) endRoom(r *room) (call.Session, []Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sim.Stop()
	r.ended = true
	r.session.Active = false
	r.session.MicEnabled = false
	r.session.VideoEnabled = false
	r.session.DeviceActive = false
	r.session.NeedsDevice = false
	r.session.Notice = ""
	r.session.AssetRef = s.presenter.Idle()
	snap := s.snapshotLocked(r)
	listeners := listenersOf(r)
	r.listeners = make(map[int]Listener)
	return snap, listeners
}

func (s *Service) onMessage(r *room, msg string, index int) {
	r.mu.Lock()
	if r.ended || !r.session.Active {
		r.mu.Unlock()
		return
	}
	r.session.AssetRef = s.presenter.AssetFor(context.Background(), msg, false)
	snap := s.snapshotLocked(r)
	listeners := listenersOf(r)
	r.mu.Unlock()

	s.log.Debug().Str("room", snap.RoomID).Int("index", index).Str("message", msg).Msg("call message")
	dispatch(listeners, call.Event{Type: call.EventMessage, Session: snap, Message: msg})
}

func (s *Service) snapshot(r *room) call.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return s.snapshotLocked(r)
}

func (s *Service) snapshotLocked(r *room) call.Session {
	snap := r.session
	snap.Transcript = r.sim.Transcript()
	snap.NextMessageIndex = r.sim.NextIndex()
	return snap
}

func (s *Service) lookup(roomID string) (*room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrCallNotFound
	}
	r.touch()
	return r, nil
}

func (r *room) touch() {
	r.mu.Lock()
	r.touched = true
	r.mu.Unlock()
}

func (r *room) idle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idle := !r.touched && len(r.listeners) == 0 && !r.sim.Running()
	r.touched = false
	return idle
}

func listenersOf(r *room) []Listener {
	if len(r.listeners) == 0 {
		return nil
	}
	out := make([]Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		out = append(out, l)
	}
	return out
}

func dispatch(listeners []Listener, event call.Event) {
	for _, l := range listeners {
		l(event)
	}
}

const roomAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newRoomID returns an opaque base-36 token.
func newRoomID() string {
	u := uuid.New()
	var b strings.Builder
	b.Grow(roomIDLength)
	for i := 0; i < roomIDLength; i++ {
		b.WriteByte(roomAlphabet[int(u[i])%len(roomAlphabet)])
	}
	return b.String()
}
