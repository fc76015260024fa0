// Package decision maps technical and sentiment signals to a trade decision.
package decision

import (
	"fmt"
	"strings"

	"trading-agent/internal/models"
)

// Thresholds for the decision matrix.
type Thresholds struct {
	Technical      float64 // c1: score >= Technical
	HighConviction float64 // HIGH needs score >= HighConviction and BULLISH
	MaxPositions   int     // c4: open < MaxPositions
}

// DefaultThresholds returns 60 / 75 / 5.
func DefaultThresholds() Thresholds {
	return Thresholds{Technical: 60, HighConviction: 75, MaxPositions: 5}
}

// Input is everything the synthesizer sees for one symbol.
type Input struct {
	Symbol            string
	TechnicalScore    float64
	Sentiment         models.SentimentLabel
	RedFlags          []string
	OpenPositionCount int
}

// Synthesizer applies the decision precedence. It holds no state.
type Synthesizer struct {
	t Thresholds
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(t Thresholds) *Synthesizer {
	return &Synthesizer{t: t}
}

// Synthesize evaluates the four criteria, then applies in order:
// red-flag veto, bearish override, 4 of 4 EXECUTE, 3 of 4 CAUTION, else SKIP.
func (s *Synthesizer) Synthesize(in Input) models.Evaluation {
	c := models.Criteria{
		TechnicalOK: in.TechnicalScore >= s.t.Technical,
		SentimentOK: in.Sentiment != models.SentimentBearish,
		NoRedFlags:  len(in.RedFlags) == 0,
		CapacityOK:  in.OpenPositionCount < s.t.MaxPositions,
	}
	ev := models.Evaluation{Symbol: in.Symbol, Criteria: c}

	switch {
	case !c.NoRedFlags:
		ev.Decision = models.DecisionSkip
		ev.Reasoning = fmt.Sprintf("red flag veto: %s", strings.Join(in.RedFlags, "; "))
	case in.Sentiment == models.SentimentBearish:
		ev.Decision = models.DecisionSkip
		ev.Reasoning = "bearish sentiment overrides the matrix"
	case c.PassCount() == 4:
		ev.Decision = models.DecisionExecute
		ev.Confidence = s.executeConfidence(in)
		ev.Reasoning = fmt.Sprintf("4/4 criteria met, score %.1f, %s", in.TechnicalScore, in.Sentiment)
	case c.PassCount() == 3:
		ev.Decision = models.DecisionCaution
		ev.Confidence = models.ConfidenceModerate
		ev.Reasoning = fmt.Sprintf("3/4 criteria met (%s), trading at moderate size", failed(c))
	default:
		ev.Decision = models.DecisionSkip
		ev.Reasoning = fmt.Sprintf("%d/4 criteria met (%s)", c.PassCount(), failed(c))
	}

	if ev.Decision == models.DecisionSkip {
		ev.Confidence = models.ConfidenceLow
	}
	return ev
}

func (s *Synthesizer) executeConfidence(in Input) models.ConfidenceTier {
	switch {
	case in.TechnicalScore >= s.t.HighConviction && in.Sentiment == models.SentimentBullish:
		return models.ConfidenceHigh
	case in.TechnicalScore >= s.t.Technical && in.TechnicalScore < s.t.HighConviction:
		return models.ConfidenceModerate
	default:
		return models.ConfidenceLow
	}
}

func failed(c models.Criteria) string {
	var names []string
	if !c.TechnicalOK {
		names = append(names, "technical below threshold")
	}
	if !c.SentimentOK {
		names = append(names, "bearish sentiment")
	}
	if !c.NoRedFlags {
		names = append(names, "red flags")
	}
	if !c.CapacityOK {
		names = append(names, "no position capacity")
	}
	return strings.Join(names, ", ")
}
