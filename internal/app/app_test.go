package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signwave/backend/internal/config"
	"github.com/signwave/backend/internal/model/call"
	"github.com/signwave/backend/internal/model/flow"
	"github.com/signwave/backend/internal/schedule"
)

func testConfig(backend, path string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Addr: ":0", PublicBaseURL: "http://localhost:5173"},
		Demo: config.DemoConfig{
			SignToTextDelay:      300 * time.Millisecond,
			SignToTextShortDelay: 100 * time.Millisecond,
			TextToSignDelay:      50 * time.Millisecond,
			VoiceDelay:           200 * time.Millisecond,
			WidgetInterval:       time.Second,
			PageInterval:         2 * time.Second,
			Seed:                 1,
		},
		Storage: config.StorageConfig{Backend: backend, Path: path},
	}
}

func TestNewAppliesDemoTimings(t *testing.T) {
	sched := schedule.NewManual()
	a, err := New(testConfig("memory", ""), zerolog.Nop(), sched)
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()

	snap, err := a.Flows.Create(ctx, flow.KindTextToSign)
	require.NoError(t, err)
	_, err = a.Flows.Submit(ctx, snap.ID, "yes")
	require.NoError(t, err)
	sched.Advance(50 * time.Millisecond)

	snap, err = a.Flows.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, flow.StateResult, snap.State)
	assert.Equal(t, "/signs/yes.gif", snap.AssetRef)

	session, err := a.Calls.Create(ctx, "Ann", call.ContextPage)
	require.NoError(t, err)
	_, err = a.Calls.Join(ctx, session.RoomID, true)
	require.NoError(t, err)
	sched.Advance(2 * time.Second)
	session, err = a.Calls.Get(ctx, session.RoomID)
	require.NoError(t, err)
	assert.Len(t, session.Transcript, 1)

	link, err := a.Calls.ShareLink(ctx, session.RoomID)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5173/video-call/"+session.RoomID, link)
}

func TestHistoryPersistsAcrossRestartsWithSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signwave.db")
	ctx := context.Background()

	first, err := New(testConfig("sqlite", path), zerolog.Nop(), schedule.NewManual())
	require.NoError(t, err)
	session, err := first.Calls.Create(ctx, "Ann", call.ContextWidget)
	require.NoError(t, err)
	_, err = first.Calls.Join(ctx, session.RoomID, true)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(testConfig("sqlite", path), zerolog.Nop(), schedule.NewManual())
	require.NoError(t, err)
	defer second.Close()

	names, err := second.History.LoadHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ann"}, names)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(testConfig("redis", ""), zerolog.Nop(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}
