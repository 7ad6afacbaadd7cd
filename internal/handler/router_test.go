package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	signModel "github.com/signwave/backend/internal/model/sign"
	"github.com/signwave/backend/internal/schedule"
	"github.com/signwave/backend/internal/service/avatar"
	callService "github.com/signwave/backend/internal/service/call"
	flowService "github.com/signwave/backend/internal/service/flow"
	historyService "github.com/signwave/backend/internal/service/history"
	"github.com/signwave/backend/internal/storage/kv"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := zerolog.Nop()
	sched := schedule.NewManual()
	table := signModel.NewTable(signModel.Seed())
	presenter := avatar.NewPresenter(table, logger)
	store := historyService.NewStore(kv.NewMemoryStore(), logger)
	flows := flowService.NewService(presenter, logger, flowService.Options{Scheduler: sched})
	calls := callService.NewService(presenter, store, logger, callService.Options{Scheduler: sched})
	t.Cleanup(func() {
		flows.Shutdown()
		calls.Shutdown()
	})

	return NewRouter(Deps{
		Logger:    logger,
		Table:     table,
		Presenter: presenter,
		Flows:     flows,
		Calls:     calls,
		History:   store,
	})
}

func TestRouterMountsAPI(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/api/health", "", http.StatusOK},
		{http.MethodGet, "/api/signs", "", http.StatusOK},
		{http.MethodGet, "/api/avatar?text=hello", "", http.StatusOK},
		{http.MethodPost, "/api/flows", `{"kind":"voice"}`, http.StatusCreated},
		{http.MethodPost, "/api/calls", `{"contactName":"Ann"}`, http.StatusCreated},
		{http.MethodGet, "/api/history", "", http.StatusOK},
		{http.MethodGet, "/api/custom-signs", "", http.StatusOK},
		{http.MethodGet, "/api/flows/unknown", "", http.StatusNotFound},
		{http.MethodGet, "/api/missing", "", http.StatusNotFound},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		assert.Equal(t, tc.status, resp.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRouterAppliesCORS(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "http://localhost:5173", resp.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Body.String(), `"status":"ok"`)
}
