package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/signwave/backend/internal/model/call"
	"github.com/signwave/backend/internal/storage/kv"
)

// Keys under which lists are persisted.
const (
	CallHistoryKey = "callHistory"
	CustomSignsKey = "customSigns"
)

var (
	ErrContactRequired = errors.New("contact name is required")
	ErrGestureRequired = errors.New("gesture and meaning are required")
)

// Store persists the contacts the user has called and the dashboard's custom
// signs. There is no eviction; both lists grow without bound.
type Store struct {
	mu  sync.Mutex
	kv  kv.Store
	log zerolog.Logger
}

// NewStore wraps a key-value backend.
func NewStore(store kv.Store, logger zerolog.Logger) *Store {
	return &Store{
		kv:  store,
		log: logger.With().Str("component", "history").Logger(),
	}
}

// RecordCall appends contactName unless it is already present and returns the
// resulting list. Concurrent writers are serialized; the last write wins.
func (s *Store) RecordCall(ctx context.Context, contactName string) ([]string, error) {
	name := strings.TrimSpace(contactName)
	if name == "" {
		return nil, ErrContactRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.loadNames(ctx)
	if err != nil {
		return nil, err
	}
	for _, existing := range names {
		if existing == name {
			return names, nil
		}
	}

	names = append(names, name)
	if err := s.write(ctx, CallHistoryKey, names); err != nil {
		return nil, err
	}

	s.log.Info().Str("contact", name).Int("size", len(names)).Msg("call history updated")
	return names, nil
}

// LoadHistory returns contact names in the order they were first called.
func (s *Store) LoadHistory(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadNames(ctx)
}

// Entries is LoadHistory shaped for clients.
func (s *Store) Entries(ctx context.Context) ([]call.HistoryEntry, error) {
	names, err := s.LoadHistory(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]call.HistoryEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, call.HistoryEntry{ContactName: name})
	}
	return entries, nil
}

// CustomSigns returns the stored custom signs, seeded on first use.
func (s *Store) CustomSigns(ctx context.Context) ([]call.CustomSign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadSigns(ctx)
}

// AddCustomSign appends a gesture and returns the updated list.
func (s *Store) AddCustomSign(ctx context.Context, sign call.CustomSign) ([]call.CustomSign, error) {
	sign.Gesture = strings.TrimSpace(sign.Gesture)
	sign.Meaning = strings.TrimSpace(sign.Meaning)
	if sign.Gesture == "" || sign.Meaning == "" {
		return nil, ErrGestureRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	signs, err := s.loadSigns(ctx)
	if err != nil {
		return nil, err
	}
	signs = append(signs, sign)
	if err := s.write(ctx, CustomSignsKey, signs); err != nil {
		return nil, err
	}

	s.log.Info().Str("gesture", sign.Gesture).Msg("custom sign added")
	return signs, nil
}

func (s *Store) loadNames(ctx context.Context) ([]string, error) {
	names := make([]string, 0)
	found, err := s.read(ctx, CallHistoryKey, &names)
	if err != nil || !found {
		return make([]string, 0), err
	}
	return names, nil
}

func (s *Store) loadSigns(ctx context.Context) ([]call.CustomSign, error) {
	var signs []call.CustomSign
	found, err := s.read(ctx, CustomSignsKey, &signs)
	if err != nil {
		return nil, err
	}
	if !found {
		return call.SeedCustomSigns(), nil
	}
	return signs, nil
}

// read decodes key into out. A corrupt value is logged and treated as absent
// so the next write replaces it.
func (s *Store) read(ctx context.Context, key string, out any) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable stored value")
		return false, nil
	}
	return true, nil
}

func (s *Store) write(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
