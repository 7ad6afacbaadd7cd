package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusNotFound, "flow not found")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"flow not found"}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	var body struct {
		Text string `json:"text"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"hello"}`))
	require.NoError(t, DecodeJSON(req, &body))
	assert.Equal(t, "hello", body.Text)

	empty := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, DecodeJSON(empty, &body))

	unknown := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"txt":"hello"}`))
	assert.Error(t, DecodeJSON(unknown, &body))
}

func TestSendSSEEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupSSEHeaders(rec)

	require.NoError(t, SendSSEEvent(rec, rec, "state", map[string]string{"state": "idle"}))
	require.NoError(t, SendSSEComment(rec, rec, "ping"))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "event: state\ndata: {\"state\":\"idle\"}\n\n: ping\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}
