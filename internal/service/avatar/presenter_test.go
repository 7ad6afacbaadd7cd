package avatar

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/signwave/backend/internal/model/sign"
)

func newTestPresenter(opts ...Option) *Presenter {
	return NewPresenter(sign.NewTable(sign.Seed()), zerolog.Nop(), opts...)
}

func TestPresentProcessingAlwaysIdle(t *testing.T) {
	p := newTestPresenter()
	ctx := context.Background()

	for _, text := range []string{"hello", "thank you", "", "anything at all"} {
		got := p.Present(ctx, text, true)
		assert.Equal(t, sign.IdleAsset, got.AssetRef, "text %q", text)
		assert.True(t, got.Processing)
	}
}

func TestPresentResolvesThroughTable(t *testing.T) {
	p := newTestPresenter()
	ctx := context.Background()

	assert.Equal(t, "/signs/goodbye.gif", p.AssetFor(ctx, "Goodbye", false))
	assert.Equal(t, sign.IdleAsset, p.AssetFor(ctx, "see you", false))
	assert.Equal(t, sign.IdleAsset, p.AssetFor(ctx, "", false))

	got := p.Present(ctx, "hello", false)
	assert.Equal(t, DefaultLanguageLabel, got.LanguageLabel)
	assert.False(t, got.Fallback)
}

func TestPresentFallsBackWhenAssetMissing(t *testing.T) {
	fsys := fstest.MapFS{
		"signs/hello.gif":                 {Data: []byte("gif")},
		"signs/full-body/avatar-idle.gif": {Data: []byte("gif")},
		"signs/yes.gif":                   {Mode: fs.ModeDir | 0o755},
	}
	p := newTestPresenter(WithLoader(NewFSLoader(fsys)), WithLanguageLabel("BSL"))
	ctx := context.Background()

	hello := p.Present(ctx, "hello", false)
	assert.Equal(t, "/signs/hello.gif", hello.AssetRef)
	assert.False(t, hello.Fallback)
	assert.Equal(t, "BSL", hello.LanguageLabel)

	missing := p.Present(ctx, "thank you", false)
	assert.Equal(t, sign.IdleAsset, missing.AssetRef)
	assert.True(t, missing.Fallback)

	dir := p.Present(ctx, "yes", false)
	assert.Equal(t, sign.IdleAsset, dir.AssetRef)
	assert.True(t, dir.Fallback)
}

func TestPresentNeverEmpty(t *testing.T) {
	p := NewPresenter(sign.NewTable(nil), zerolog.Nop())
	for _, text := range []string{"", "hello", "?"} {
		assert.NotEmpty(t, p.AssetFor(context.Background(), text, false))
	}
}
