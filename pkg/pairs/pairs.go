// Package pairs keeps a short list of favourite source/target zone pairs in a
// key-value store.
package pairs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultKey is the key the list is stored under.
	DefaultKey = "savedTimezones"
	// MaxPairs is the most pairs a list may hold.
	MaxPairs = 10
)

var (
	// ErrDuplicateOrLimit is matched by every error that leaves a Save unapplied
	// because of the list's contents.
	ErrDuplicateOrLimit = errors.New("pair rejected")
	// ErrDuplicatePair means the (from, to) pair is already saved.
	ErrDuplicatePair = fmt.Errorf("%w: already saved", ErrDuplicateOrLimit)
	// ErrPairLimit means the list already holds MaxPairs pairs.
	ErrPairLimit = fmt.Errorf("%w: limit of %d saved pairs reached", ErrDuplicateOrLimit, MaxPairs)
	// ErrPairNotFound means no pair has the requested id.
	ErrPairNotFound = errors.New("saved pair not found")
	// ErrInvalidPair means from or to is empty.
	ErrInvalidPair = errors.New("both zones of a pair are required")
)

// Pair is a saved source and target zone. ID is the creation time in Unix
// milliseconds and is strictly increasing within one list.
type Pair struct {
	From string `json:"from"`
	To   string `json:"to"`
	ID   int64  `json:"id"`
}

// KV is a string-keyed blob store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Store manages pair lists held in a KV. Its read-modify-write cycles are serialised.
type Store struct {
	kv     KV
	logger *slog.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// NewStore returns a Store backed by kv.
func NewStore(kv KV, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, logger: logger, now: time.Now}
}

// List returns the pairs stored under key, oldest first.
func (s *Store) List(ctx context.Context, key string) ([]Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(ctx, key)
}

// Find returns the pair with the given id.
func (s *Store) Find(ctx context.Context, key string, id int64) (Pair, error) {
	list, err := s.List(ctx, key)
	if err != nil {
		return Pair{}, err
	}
	i := slices.IndexFunc(list, func(p Pair) bool { return p.ID == id })
	if i < 0 {
		return Pair{}, fmt.Errorf("pair %d: %w", id, ErrPairNotFound)
	}
	return list[i], nil
}

// Save appends (from, to) to the list under key. A duplicate pair or a full list
// leaves the stored list unchanged.
func (s *Store) Save(ctx context.Context, key, from, to string) (Pair, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return Pair{}, ErrInvalidPair
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.read(ctx, key)
	if err != nil {
		return Pair{}, err
	}
	if slices.ContainsFunc(list, func(p Pair) bool { return p.From == from && p.To == to }) {
		return Pair{}, fmt.Errorf("%s to %s: %w", from, to, ErrDuplicatePair)
	}
	if len(list) >= MaxPairs {
		return Pair{}, ErrPairLimit
	}

	id := s.now().UnixMilli()
	if n := len(list); n > 0 && id <= list[n-1].ID {
		id = list[n-1].ID + 1
	}
	p := Pair{From: from, To: to, ID: id}
	if err := s.write(ctx, key, append(list, p)); err != nil {
		return Pair{}, err
	}
	s.logger.Debug("saved pair", "key", key, "from", from, "to", to, "id", id)
	return p, nil
}

// Remove deletes the pair with the given id.
func (s *Store) Remove(ctx context.Context, key string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.read(ctx, key)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(list, func(p Pair) bool { return p.ID == id })
	if i < 0 {
		return fmt.Errorf("pair %d: %w", id, ErrPairNotFound)
	}
	if err := s.write(ctx, key, slices.Delete(list, i, i+1)); err != nil {
		return err
	}
	s.logger.Debug("removed pair", "key", key, "id", id)
	return nil
}

func (s *Store) read(ctx context.Context, key string) ([]Pair, error) {
	data, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading saved pairs: %w", err)
	}
	list := []Pair{}
	if !ok || len(data) == 0 {
		return list, nil
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decoding saved pairs under %q: %w", key, err)
	}
	return list, nil
}

func (s *Store) write(ctx context.Context, key string, list []Pair) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encoding saved pairs: %w", err)
	}
	if err := s.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("writing saved pairs: %w", err)
	}
	return nil
}
