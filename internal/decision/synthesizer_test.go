package decision

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"trading-agent/internal/models"
)

func TestSynthesize(t *testing.T) {
	s := NewSynthesizer(DefaultThresholds())

	tests := []struct {
		name       string
		in         Input
		decision   models.Decision
		confidence models.ConfidenceTier
		passCount  int
	}{
		{
			name:       "red flag vetoes a perfect setup",
			in:         Input{TechnicalScore: 95, Sentiment: models.SentimentBullish, RedFlags: []string{"x"}},
			decision:   models.DecisionSkip,
			confidence: models.ConfidenceLow,
			passCount:  3,
		},
		{
			name:       "bearish overrides three passing criteria",
			in:         Input{TechnicalScore: 72, Sentiment: models.SentimentBearish, OpenPositionCount: 1},
			decision:   models.DecisionSkip,
			confidence: models.ConfidenceLow,
			passCount:  3,
		},
		{
			name:       "strong bullish is high conviction",
			in:         Input{TechnicalScore: 80, Sentiment: models.SentimentBullish},
			decision:   models.DecisionExecute,
			confidence: models.ConfidenceHigh,
			passCount:  4,
		},
		{
			name:       "high conviction boundary",
			in:         Input{TechnicalScore: 75, Sentiment: models.SentimentBullish, OpenPositionCount: 4},
			decision:   models.DecisionExecute,
			confidence: models.ConfidenceHigh,
			passCount:  4,
		},
		{
			name:       "mid score is moderate",
			in:         Input{TechnicalScore: 68, Sentiment: models.SentimentBullish},
			decision:   models.DecisionExecute,
			confidence: models.ConfidenceModerate,
			passCount:  4,
		},
		{
			name:       "threshold score is moderate",
			in:         Input{TechnicalScore: 60, Sentiment: models.SentimentNeutral},
			decision:   models.DecisionExecute,
			confidence: models.ConfidenceModerate,
			passCount:  4,
		},
		{
			name:       "strong neutral falls to low",
			in:         Input{TechnicalScore: 90, Sentiment: models.SentimentNeutral},
			decision:   models.DecisionExecute,
			confidence: models.ConfidenceLow,
			passCount:  4,
		},
		{
			name:       "weak technicals is caution",
			in:         Input{TechnicalScore: 55, Sentiment: models.SentimentBullish},
			decision:   models.DecisionCaution,
			confidence: models.ConfidenceModerate,
			passCount:  3,
		},
		{
			name:       "full book is caution",
			in:         Input{TechnicalScore: 80, Sentiment: models.SentimentBullish, OpenPositionCount: 5},
			decision:   models.DecisionCaution,
			confidence: models.ConfidenceModerate,
			passCount:  3,
		},
		{
			name:       "two of four is skip",
			in:         Input{TechnicalScore: 40, Sentiment: models.SentimentNeutral, OpenPositionCount: 5},
			decision:   models.DecisionSkip,
			confidence: models.ConfidenceLow,
			passCount:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Symbol = "TCS"
			ev := s.Synthesize(tt.in)

			assert.Equal(t, "TCS", ev.Symbol)
			assert.Equal(t, tt.decision, ev.Decision)
			assert.Equal(t, tt.confidence, ev.Confidence)
			assert.Equal(t, tt.passCount, ev.Criteria.PassCount())
			assert.NotEmpty(t, ev.Reasoning)
		})
	}
}

func TestSynthesize_ReasoningNamesFailures(t *testing.T) {
	s := NewSynthesizer(DefaultThresholds())

	ev := s.Synthesize(Input{Symbol: "SBIN", TechnicalScore: 50, Sentiment: models.SentimentNeutral, OpenPositionCount: 5})
	assert.Contains(t, ev.Reasoning, "technical below threshold")
	assert.Contains(t, ev.Reasoning, "no position capacity")

	ev = s.Synthesize(Input{Symbol: "SBIN", TechnicalScore: 90, Sentiment: models.SentimentBullish, RedFlags: []string{"promoter pledge", "audit qualification"}})
	assert.Contains(t, ev.Reasoning, "promoter pledge; audit qualification")
}

func TestProperty_SynthesizerPrecedence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	s := NewSynthesizer(DefaultThresholds())
	labels := []models.SentimentLabel{models.SentimentBullish, models.SentimentNeutral, models.SentimentBearish}

	genInput := gopter.CombineGens(
		gen.Float64Range(0, 100),
		gen.IntRange(0, 2),
		gen.Bool(),
		gen.IntRange(0, 7),
	).Map(func(v []interface{}) Input {
		in := Input{
			Symbol:            "INFY",
			TechnicalScore:    v[0].(float64),
			Sentiment:         labels[v[1].(int)],
			OpenPositionCount: v[3].(int),
		}
		if v[2].(bool) {
			in.RedFlags = []string{"flag"}
		}
		return in
	})

	properties.Property("red flags or bearish sentiment always skip", prop.ForAll(
		func(in Input) bool {
			ev := s.Synthesize(in)
			if len(in.RedFlags) > 0 || in.Sentiment == models.SentimentBearish {
				return ev.Decision == models.DecisionSkip && ev.Confidence == models.ConfidenceLow
			}
			return true
		},
		genInput,
	))

	properties.Property("decision follows the pass count", prop.ForAll(
		func(in Input) bool {
			ev := s.Synthesize(in)
			if len(in.RedFlags) > 0 || in.Sentiment == models.SentimentBearish {
				return true
			}
			switch ev.Criteria.PassCount() {
			case 4:
				return ev.Decision == models.DecisionExecute
			case 3:
				return ev.Decision == models.DecisionCaution && ev.Confidence == models.ConfidenceModerate
			default:
				return ev.Decision == models.DecisionSkip
			}
		},
		genInput,
	))

	properties.Property("high confidence needs a bullish score of 75", prop.ForAll(
		func(in Input) bool {
			ev := s.Synthesize(in)
			if ev.Confidence != models.ConfidenceHigh {
				return true
			}
			return in.TechnicalScore >= 75 && in.Sentiment == models.SentimentBullish
		},
		genInput,
	))

	properties.TestingRun(t)
}
