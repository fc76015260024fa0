// Package signals defines the technical and sentiment collaborators and
// simple implementations of them.
package signals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"trading-agent/internal/models"
)

// ErrNoSignal is returned when a source has nothing for a symbol.
var ErrNoSignal = errors.New("no signal for symbol")

// TechnicalSource supplies a composite score and current price.
type TechnicalSource interface {
	Technical(ctx context.Context, symbol string) (models.TechnicalSignal, error)
}

// SentimentSource supplies a sentiment label and red flags.
type SentimentSource interface {
	Sentiment(ctx context.Context, symbol string) (models.SentimentSignal, error)
}

// Entry is one symbol's externally produced signals.
type Entry struct {
	CompositeScore float64  `json:"composite_score"`
	CurrentPrice   float64  `json:"current_price"`
	Sentiment      string   `json:"sentiment"`
	RedFlags       []string `json:"red_flags"`
}

// Static serves fixed signals. It satisfies both sources and is safe for
// concurrent use.
type Static struct {
	mu      sync.RWMutex
	asOf    time.Time
	entries map[string]Entry
}

// NewStatic creates a source from entries keyed by symbol.
func NewStatic(asOf time.Time, entries map[string]Entry) *Static {
	m := make(map[string]Entry, len(entries))
	for sym, e := range entries {
		m[strings.ToUpper(sym)] = e
	}
	return &Static{asOf: asOf, entries: m}
}

// Set replaces one symbol's entry.
func (s *Static) Set(symbol string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[strings.ToUpper(symbol)] = e
}

// Symbols returns the symbols the source knows.
func (s *Static) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.entries))
	for sym := range s.entries {
		out = append(out, sym)
	}
	return out
}

func (s *Static) lookup(symbol string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[symbol]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNoSignal, symbol)
	}
	return e, nil
}

// Technical implements TechnicalSource.
func (s *Static) Technical(ctx context.Context, symbol string) (models.TechnicalSignal, error) {
	if err := ctx.Err(); err != nil {
		return models.TechnicalSignal{}, err
	}
	e, err := s.lookup(symbol)
	if err != nil {
		return models.TechnicalSignal{}, err
	}
	if e.CompositeScore < 0 || e.CompositeScore > 100 {
		return models.TechnicalSignal{}, fmt.Errorf("composite score %.1f for %s out of range", e.CompositeScore, symbol)
	}
	if e.CurrentPrice <= 0 {
		return models.TechnicalSignal{}, fmt.Errorf("no price for %s", symbol)
	}
	return models.TechnicalSignal{
		Symbol:         symbol,
		CompositeScore: e.CompositeScore,
		CurrentPrice:   e.CurrentPrice,
		AsOf:           s.asOf,
	}, nil
}

// Sentiment implements SentimentSource.
func (s *Static) Sentiment(ctx context.Context, symbol string) (models.SentimentSignal, error) {
	if err := ctx.Err(); err != nil {
		return models.SentimentSignal{}, err
	}
	e, err := s.lookup(symbol)
	if err != nil {
		return models.SentimentSignal{}, err
	}
	label, err := models.ParseSentimentLabel(strings.ToUpper(e.Sentiment))
	if err != nil {
		return models.SentimentSignal{}, fmt.Errorf("%s: %w", symbol, err)
	}
	return models.SentimentSignal{
		Symbol:   symbol,
		Label:    label,
		RedFlags: append([]string(nil), e.RedFlags...),
		AsOf:     s.asOf,
	}, nil
}

// fileFormat is the on-disk signal file.
type fileFormat struct {
	AsOf    time.Time        `json:"as_of"`
	Signals map[string]Entry `json:"signals"`
}

// LoadFile reads a JSON signal file into a Static source.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading signals: %w", err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing signals %s: %w", path, err)
	}
	if len(f.Signals) == 0 {
		return nil, fmt.Errorf("signals file %s has no entries", path)
	}
	if f.AsOf.IsZero() {
		if info, err := os.Stat(path); err == nil {
			f.AsOf = info.ModTime()
		}
	}
	return NewStatic(f.AsOf, f.Signals), nil
}
