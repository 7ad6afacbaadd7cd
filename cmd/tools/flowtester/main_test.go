package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runWithEnv(t, nil, args...)
}

func runWithEnv(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("DEMO_SEED", "3")
	t.Setenv("DEMO_SIGN_TO_TEXT_DELAY", "20")
	t.Setenv("DEMO_SIGN_TO_TEXT_SHORT_DELAY", "10")
	t.Setenv("DEMO_TEXT_TO_SIGN_DELAY", "10")
	t.Setenv("DEMO_VOICE_DELAY", "10")
	t.Setenv("DEMO_WIDGET_INTERVAL", "5")
	t.Setenv("DEMO_PAGE_INTERVAL", "5")
	for key, value := range env {
		t.Setenv(key, value)
	}

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTextToSignCommand(t *testing.T) {
	out, err := run(t, "text-to-sign", "--text", "thank you")
	require.NoError(t, err)
	assert.Contains(t, out, "processing")
	assert.Contains(t, out, `result: "thank you"`)
	assert.Contains(t, out, "asset: /signs/thank-you.gif")
}

func TestTextToSignRequiresText(t *testing.T) {
	_, err := run(t, "text-to-sign")
	assert.EqualError(t, err, "--text is required")
}

func TestSignToTextDenied(t *testing.T) {
	out, err := run(t, "sign-to-text", "--deny")
	require.NoError(t, err)
	assert.Contains(t, out, "Permission Error")
}

func TestVoiceCommand(t *testing.T) {
	out, err := run(t, "voice")
	require.NoError(t, err)
	assert.Contains(t, out, "English (speech)")
}

func TestCallCommandPrintsWidgetTranscript(t *testing.T) {
	out, err := run(t, "call", "--context", "widget", "--contact", "Ann")
	require.NoError(t, err)
	assert.Contains(t, out, "with Ann")
	assert.Contains(t, out, "[4] I think we can definitely assist with that. -> /signs/full-body/assist.gif")
	assert.NotContains(t, out, "[5]")
}

// 默认的 page 通话播放 6 条消息，总时长超过 --timeout 时仍需完整播放
func TestCallCommandOutlastsTimeout(t *testing.T) {
	out, err := runWithEnv(t, map[string]string{"DEMO_PAGE_INTERVAL": "70"}, "--timeout", "300ms", "call")
	require.NoError(t, err)
	assert.Contains(t, out, "[6] ")
	assert.NotContains(t, out, "[7]")
}

func TestCallCommandRejectsUnknownContext(t *testing.T) {
	_, err := run(t, "call", "--context", "kiosk")
	assert.Error(t, err)
}

func TestHistoryCommandEmpty(t *testing.T) {
	out, err := run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "no calls yet")
}
