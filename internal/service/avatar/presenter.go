package avatar

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/signwave/backend/internal/model/sign"
)

// DefaultLanguageLabel is the sign language the avatar performs.
const DefaultLanguageLabel = "ASL"

// AssetLoader checks that an asset can be fetched for display.
type AssetLoader interface {
	Load(ctx context.Context, assetRef string) error
}

// FSLoader resolves asset refs such as "/signs/hello.gif" against a file tree.
type FSLoader struct {
	fsys fs.FS
}

// NewFSLoader returns a loader rooted at fsys.
func NewFSLoader(fsys fs.FS) *FSLoader {
	return &FSLoader{fsys: fsys}
}

func (l *FSLoader) Load(_ context.Context, assetRef string) error {
	name := strings.TrimPrefix(path.Clean("/"+assetRef), "/")
	info, err := fs.Stat(l.fsys, name)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("asset %s is a directory", assetRef)
	}
	return nil
}

// Presentation is what the avatar currently shows.
type Presentation struct {
	Text          string `json:"text"`
	AssetRef      string `json:"assetRef"`
	Processing    bool   `json:"processing"`
	LanguageLabel string `json:"languageLabel"`
	Fallback      bool   `json:"fallback"`
}

// Presenter picks the avatar asset for a piece of text.
type Presenter struct {
	table  *sign.Table
	loader AssetLoader
	label  string
	log    zerolog.Logger
}

// Option customizes a Presenter.
type Option func(*Presenter)

// WithLoader enables asset-load checks.
func WithLoader(loader AssetLoader) Option {
	return func(p *Presenter) {
		p.loader = loader
	}
}

// WithLanguageLabel overrides the sign-language label.
func WithLanguageLabel(label string) Option {
	return func(p *Presenter) {
		if strings.TrimSpace(label) != "" {
			p.label = label
		}
	}
}

// NewPresenter builds a Presenter over table.
func NewPresenter(table *sign.Table, logger zerolog.Logger, opts ...Option) *Presenter {
	p := &Presenter{
		table: table,
		label: DefaultLanguageLabel,
		log:   logger.With().Str("component", "avatar").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Idle returns the idle asset.
func (p *Presenter) Idle() string {
	return p.table.Default()
}

// Present resolves the asset for text. Processing always shows the idle
// asset. An asset that fails to load is replaced by the idle asset and is not
// retried.
func (p *Presenter) Present(ctx context.Context, text string, processing bool) Presentation {
	out := Presentation{
		Text:          text,
		Processing:    processing,
		LanguageLabel: p.label,
		AssetRef:      p.table.ResolveFor(text, processing),
	}

	if out.AssetRef != p.Idle() && p.loader != nil {
		if err := p.loader.Load(ctx, out.AssetRef); err != nil {
			p.log.Debug().Err(err).Str("asset", out.AssetRef).Msg("asset load failed, showing idle")
			out.AssetRef = p.Idle()
			out.Fallback = true
		}
	}

	p.log.Debug().
		Str("text", sign.Normalize(text)).
		Str("asset", out.AssetRef).
		Bool("processing", processing).
		Str("language", p.label).
		Msg("showing sign")
	return out
}

// AssetFor is Present reduced to the asset reference.
func (p *Presenter) AssetFor(ctx context.Context, text string, processing bool) string {
	return p.Present(ctx, text, processing).AssetRef
}
