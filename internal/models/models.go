// Package models provides domain models for the trading application.
package models

import (
	"fmt"
	"time"
)

// Side represents the side of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// SentimentLabel is the classification produced by the sentiment collaborator.
type SentimentLabel string

const (
	SentimentBullish SentimentLabel = "BULLISH"
	SentimentNeutral SentimentLabel = "NEUTRAL"
	SentimentBearish SentimentLabel = "BEARISH"
)

// ParseSentimentLabel converts a raw label into a SentimentLabel.
func ParseSentimentLabel(s string) (SentimentLabel, error) {
	switch SentimentLabel(s) {
	case SentimentBullish, SentimentNeutral, SentimentBearish:
		return SentimentLabel(s), nil
	}
	return "", fmt.Errorf("unknown sentiment label %q", s)
}

// ConfidenceTier governs the fraction of the maximum position size used.
type ConfidenceTier string

const (
	ConfidenceHigh     ConfidenceTier = "HIGH"
	ConfidenceModerate ConfidenceTier = "MODERATE"
	ConfidenceLow      ConfidenceTier = "LOW"
)

// Rank orders tiers for execution priority. Higher is applied first.
func (c ConfidenceTier) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceModerate:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// Decision is the outcome of the decision matrix for one symbol.
type Decision string

const (
	DecisionExecute Decision = "EXECUTE"
	DecisionCaution Decision = "CAUTION"
	DecisionSkip    Decision = "SKIP"
)

// Actionable reports whether the decision leads to sizing and risk checks.
func (d Decision) Actionable() bool {
	return d == DecisionExecute || d == DecisionCaution
}

// MarketStatus represents the current market status.
type MarketStatus string

const (
	MarketOpen    MarketStatus = "OPEN"
	MarketPreOpen MarketStatus = "PRE_OPEN"
	MarketClosed  MarketStatus = "CLOSED"
	MarketHoliday MarketStatus = "HOLIDAY"
)

// TechnicalSignal is what the technical collaborator supplies per symbol.
type TechnicalSignal struct {
	Symbol         string
	CompositeScore float64 // 0-100
	CurrentPrice   float64
	AsOf           time.Time
}

// SentimentSignal is what the sentiment collaborator supplies per symbol.
type SentimentSignal struct {
	Symbol   string
	Label    SentimentLabel
	RedFlags []string
	AsOf     time.Time
}

// AnalysisKind distinguishes cached analysis rows.
type AnalysisKind string

const (
	AnalysisSentiment AnalysisKind = "SENTIMENT"
	AnalysisCombined  AnalysisKind = "COMBINED"
)

// AnalysisEntry is a cached upstream analysis, valid for a soft TTL.
type AnalysisEntry struct {
	ID        int64
	Symbol    string
	Kind      AnalysisKind
	Score     float64
	Label     string
	Details   string // JSON
	CreatedAt time.Time
}
