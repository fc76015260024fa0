package models

import "time"

// Criteria holds the four boolean checks of the decision matrix.
type Criteria struct {
	TechnicalOK bool // composite score >= threshold
	SentimentOK bool // not bearish
	NoRedFlags  bool
	CapacityOK  bool // open positions below max
}

// PassCount returns how many criteria are true.
func (c Criteria) PassCount() int {
	n := 0
	for _, ok := range []bool{c.TechnicalOK, c.SentimentOK, c.NoRedFlags, c.CapacityOK} {
		if ok {
			n++
		}
	}
	return n
}

// Evaluation is the decision synthesizer's output for one symbol.
type Evaluation struct {
	Symbol     string
	Criteria   Criteria
	Decision   Decision
	Confidence ConfidenceTier
	Reasoning  string
}

// DecisionOutcome is what became of a decision within the cycle.
type DecisionOutcome string

const (
	OutcomeExecuted       DecisionOutcome = "EXECUTED"
	OutcomeRejected       DecisionOutcome = "REJECTED"
	OutcomeNotSized       DecisionOutcome = "NOT_SIZED"
	OutcomeExternalError  DecisionOutcome = "EXTERNAL_ERROR"
	OutcomeNoAction       DecisionOutcome = "NO_ACTION"
	OutcomeSkippedClosed  DecisionOutcome = "SKIPPED_CLOSED"
	OutcomeSkippedBreaker DecisionOutcome = "SKIPPED_BREAKER"
)

// CycleScope is the symbol used for decision records that cover a whole cycle.
const CycleScope = "*"

// DecisionRecord is the write-once audit row for one evaluated symbol.
type DecisionRecord struct {
	ID             int64
	CycleID        string
	Symbol         string
	Criteria       Criteria
	Decision       Decision
	Confidence     ConfidenceTier
	Reasoning      string
	TechnicalScore float64
	SentimentLabel SentimentLabel
	RedFlags       []string
	Outcome        DecisionOutcome
	CreatedAt      time.Time
}
