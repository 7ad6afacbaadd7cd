package call_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/signwave/backend/internal/model/call"
	"github.com/signwave/backend/internal/model/sign"
	"github.com/signwave/backend/internal/schedule"
	"github.com/signwave/backend/internal/service/avatar"
	"github.com/signwave/backend/internal/service/call"
	"github.com/signwave/backend/internal/service/history"
	"github.com/signwave/backend/internal/storage/kv"
)

type fixture struct {
	sched   *schedule.Manual
	history *history.Store
	svc     *call.Service
}

func newFixture() fixture {
	sched := schedule.NewManual()
	presenter := avatar.NewPresenter(sign.NewTable(sign.Seed()), zerolog.Nop())
	store := history.NewStore(kv.NewMemoryStore(), zerolog.Nop())
	svc := call.NewService(presenter, store, zerolog.Nop(), call.Options{
		Scheduler:     sched,
		PublicBaseURL: "https://signwave.example/",
	})
	return fixture{sched: sched, history: store, svc: svc}
}

type eventLog struct {
	mu     sync.Mutex
	events []model.Event
}

func (l *eventLog) listen(e model.Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func TestCreateDefaultsContactAndRoomID(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	session, err := f.svc.Create(ctx, "  ", model.ContextPage)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultContactName, session.ContactName)
	assert.Regexp(t, `^[0-9a-z]{8}$`, session.RoomID)
	assert.False(t, session.Active)
	assert.Equal(t, sign.IdleAsset, session.AssetRef)

	_, err = f.svc.Create(ctx, "Ann", model.Context("kiosk"))
	assert.ErrorIs(t, err, call.ErrUnknownContext)

	link, err := f.svc.ShareLink(ctx, session.RoomID)
	require.NoError(t, err)
	assert.Equal(t, "https://signwave.example/video-call/"+session.RoomID, link)
}

func TestWidgetCallPlaysFourMessagesThenStops(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	session, err := f.svc.Create(ctx, "Ann", model.ContextWidget)
	require.NoError(t, err)
	log := &eventLog{}
	_, err = f.svc.Subscribe(ctx, session.RoomID, log.listen)
	require.NoError(t, err)

	session, err = f.svc.Join(ctx, session.RoomID, true)
	require.NoError(t, err)
	assert.True(t, session.Active)
	assert.True(t, session.MicEnabled)
	assert.True(t, session.VideoEnabled)
	assert.Empty(t, session.Notice)

	f.sched.Advance(call.WidgetInterval)
	session, err = f.svc.Get(ctx, session.RoomID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi there! How can I help you today?"}, session.Transcript)
	assert.Equal(t, 1, session.NextMessageIndex)
	// the table key has no trailing "?", so the first line shows the idle asset
	assert.Equal(t, sign.IdleAsset, session.AssetRef)

	f.sched.Advance(call.WidgetInterval)
	session, err = f.svc.Get(ctx, session.RoomID)
	require.NoError(t, err)
	assert.Equal(t, "/signs/full-body/understand.gif", session.AssetRef)

	f.sched.Advance(time.Hour)
	session, err = f.svc.Get(ctx, session.RoomID)
	require.NoError(t, err)
	assert.Len(t, session.Transcript, 4)
	assert.Equal(t, 4, session.NextMessageIndex)
	assert.Equal(t, "/signs/full-body/assist.gif", session.AssetRef)
	assert.Equal(t, 0, f.sched.Pending())

	assert.Equal(t, []string{
		model.EventState,
		model.EventMessage,
		model.EventMessage,
		model.EventMessage,
		model.EventMessage,
	}, log.types())

	names, err := f.history.LoadHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ann"}, names)
}

func TestPageCallUsesLongerInterval(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	session, err := f.svc.Create(ctx, "", model.ContextPage)
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, session.RoomID, true)
	require.NoError(t, err)

	f.sched.Advance(call.WidgetInterval)
	session, err = f.svc.Get(ctx, session.RoomID)
	require.NoError(t, err)
	assert.Empty(t, session.Transcript)

	f.sched.Advance(6 * call.PageInterval)
	session, err = f.svc.Get(ctx, session.RoomID)
	require.NoError(t, err)
	assert.Len(t, session.Transcript, 6)
	// lines without a dedicated animation fall back to the idle asset
	assert.Equal(t, sign.IdleAsset, session.AssetRef)
}

func TestJoinWithoutDevicesAddsNotice(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	session, err := f.svc.Create(ctx, "Bob", model.ContextPage)
	require.NoError(t, err)
	session, err = f.svc.Join(ctx, session.RoomID, false)
	require.NoError(t, err)

	assert.True(t, session.Active)
	assert.False(t, session.DeviceActive)
	assert.True(t, session.NeedsDevice)
	assert.NotEmpty(t, session.Notice)

	_, err = f.svc.Join(ctx, session.RoomID, true)
	assert.ErrorIs(t, err, call.ErrCallActive)
}

func TestToggles(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	session, err := f.svc.Create(ctx, "Ann", model.ContextPage)
	require.NoError(t, err)

	_, err = f.svc.ToggleMic(ctx, session.RoomID)
	assert.ErrorIs(t, err, call.ErrCallNotActive)

	_, err = f.svc.Join(ctx, session.RoomID, false)
	require.NoError(t, err)

	session, err = f.svc.ToggleMic(ctx, session.RoomID)
	require.NoError(t, err)
	assert.False(t, session.MicEnabled)

	session, err = f.svc.ToggleVideo(ctx, session.RoomID)
	require.NoError(t, err)
	assert.False(t, session.VideoEnabled)
	assert.False(t, session.NeedsDevice)

	session, err = f.svc.ToggleVideo(ctx, session.RoomID)
	require.NoError(t, err)
	assert.True(t, session.VideoEnabled)
	assert.True(t, session.NeedsDevice)
}

func TestEndClearsTranscriptAndCancelsTimer(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	session, err := f.svc.Create(ctx, "Ann", model.ContextPage)
	require.NoError(t, err)
	log := &eventLog{}
	_, err = f.svc.Subscribe(ctx, session.RoomID, log.listen)
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, session.RoomID, true)
	require.NoError(t, err)
	f.sched.Advance(2 * call.PageInterval)

	ended, err := f.svc.End(ctx, session.RoomID)
	require.NoError(t, err)
	assert.False(t, ended.Active)
	assert.Empty(t, ended.Transcript)
	assert.Equal(t, 0, ended.NextMessageIndex)
	assert.Equal(t, 0, f.sched.Pending())

	before := len(log.types())
	f.sched.Advance(time.Hour)
	assert.Len(t, log.types(), before)
	assert.Equal(t, model.EventEnded, log.types()[before-1])

	_, err = f.svc.Get(ctx, session.RoomID)
	assert.ErrorIs(t, err, call.ErrCallNotFound)
	_, err = f.svc.End(ctx, session.RoomID)
	assert.ErrorIs(t, err, call.ErrCallNotFound)
	_, err = f.svc.ShareLink(ctx, session.RoomID)
	assert.ErrorIs(t, err, call.ErrCallNotFound)
}

type failingRecorder struct{}

func (failingRecorder) RecordCall(context.Context, string) ([]string, error) {
	return nil, errors.New("disk full")
}

func TestJoinSurvivesHistoryFailure(t *testing.T) {
	sched := schedule.NewManual()
	presenter := avatar.NewPresenter(sign.NewTable(sign.Seed()), zerolog.Nop())
	svc := call.NewService(presenter, failingRecorder{}, zerolog.Nop(), call.Options{Scheduler: sched})
	ctx := context.Background()

	session, err := svc.Create(ctx, "Ann", model.ContextWidget)
	require.NoError(t, err)
	session, err = svc.Join(ctx, session.RoomID, true)
	require.NoError(t, err)
	assert.True(t, session.Active)

	svc.Shutdown()
	assert.Equal(t, 0, sched.Pending())
}

func TestIdleSweepEndsAbandonedRooms(t *testing.T) {
	sched := schedule.NewManual()
	presenter := avatar.NewPresenter(sign.NewTable(sign.Seed()), zerolog.Nop())
	svc := call.NewService(presenter, nil, zerolog.Nop(), call.Options{
		Scheduler:    sched,
		PageInterval: 50 * time.Second,
		IdleTimeout:  time.Minute,
	})
	ctx := context.Background()

	abandoned, err := svc.Create(ctx, "Ann", model.ContextWidget)
	require.NoError(t, err)
	playing, err := svc.Create(ctx, "Bob", model.ContextPage)
	require.NoError(t, err)
	_, err = svc.Join(ctx, playing.RoomID, true)
	require.NoError(t, err)

	sched.Advance(2 * time.Minute)
	_, err = svc.Get(ctx, abandoned.RoomID)
	assert.ErrorIs(t, err, call.ErrCallNotFound)

	// 模拟器仍在播放时房间不会被清扫
	sched.Advance(3 * time.Minute)
	session, err := svc.Get(ctx, playing.RoomID)
	require.NoError(t, err)
	assert.True(t, session.Active)
	assert.Len(t, session.Transcript, 6)

	sched.Advance(2 * time.Minute)
	_, err = svc.Get(ctx, playing.RoomID)
	assert.ErrorIs(t, err, call.ErrCallNotFound)

	svc.Shutdown()
	assert.Equal(t, 0, sched.Pending())
}
