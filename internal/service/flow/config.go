package flow

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/signwave/backend/internal/model/flow"
)

// Simulated inference latencies.
const (
	SignToTextDelay      = 3000 * time.Millisecond
	SignToTextShortDelay = 1500 * time.Millisecond
	TextToSignDelay      = 1500 * time.Millisecond
	VoiceDelay           = 2000 * time.Millisecond
)

// Config describes one flow kind.
type Config struct {
	Kind flow.Kind
	// Delay is the processing latency after Stop or Submit.
	Delay time.Duration
	// ShortDelay is used by Stop(short=true); zero means Delay.
	ShortDelay    time.Duration
	Phrases       []string
	Confidence    float64
	LanguageLabel string
}

// DefaultConfig returns the canonical settings for kind.
func DefaultConfig(kind flow.Kind) Config {
	switch kind {
	case flow.KindSignToText:
		return Config{
			Kind:       kind,
			Delay:      SignToTextDelay,
			ShortDelay: SignToTextShortDelay,
			Phrases: []string{
				"Hello, nice to meet you",
				"Can you help me with directions?",
				"Thank you for your assistance",
				"I would like to order food please",
			},
			Confidence:    0.98,
			LanguageLabel: "American Sign Language (ASL)",
		}
	case flow.KindVoice:
		return Config{
			Kind:  kind,
			Delay: VoiceDelay,
			Phrases: []string{
				"Hello, how are you?",
				"Thank you for your help",
				"Can we meet tomorrow?",
				"Goodbye",
			},
			Confidence:    0.95,
			LanguageLabel: "English (speech)",
		}
	default:
		return Config{
			Kind:          flow.KindTextToSign,
			Delay:         TextToSignDelay,
			Confidence:    1,
			LanguageLabel: "American Sign Language (ASL)",
		}
	}
}

func (c Config) delay(short bool) time.Duration {
	if short && c.ShortDelay > 0 {
		return c.ShortDelay
	}
	return c.Delay
}

// Chooser picks an index in [0, n).
type Chooser func(n int) int

// NewRandomChooser returns a goroutine-safe uniform Chooser. A zero seed picks
// a random one.
func NewRandomChooser(seed uint64) Chooser {
	if seed == 0 {
		seed = rand.Uint64()
	}
	var mu sync.Mutex
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return func(n int) int {
		if n <= 1 {
			return 0
		}
		mu.Lock()
		defer mu.Unlock()
		return rng.IntN(n)
	}
}
