package trading

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"trading-agent/internal/broker"
	"trading-agent/internal/decision"
	apperrors "trading-agent/internal/errors"
	"trading-agent/internal/journal"
	"trading-agent/internal/ledger"
	"trading-agent/internal/logging"
	"trading-agent/internal/metrics"
	"trading-agent/internal/models"
	"trading-agent/internal/resilience"
	"trading-agent/internal/risk"
	"trading-agent/internal/signals"
	"trading-agent/pkg/utils"
)

// Collaborator names used for guards, metrics and error records.
const (
	CollaboratorTechnical = "technical"
	CollaboratorSentiment = "sentiment"
	CollaboratorExecutor  = "executor"
)

// Deps are the coordinator's collaborators. Metrics may be nil.
type Deps struct {
	Ledger    *ledger.Ledger
	Journal   *journal.Journal
	Technical signals.TechnicalSource
	Sentiment signals.SentimentSource
	Executor  broker.Executor
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// Coordinator runs one cycle at a time against a single ledger.
type Coordinator struct {
	mu sync.Mutex

	ledger    *ledger.Ledger
	journal   *journal.Journal
	technical signals.TechnicalSource
	sentiment signals.SentimentSource
	executor  broker.Executor
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	opts      Options
	validator *risk.Validator
	synth     *decision.Synthesizer

	techGuard *resilience.Guard
	sentGuard *resilience.Guard
	execGuard *resilience.Guard
}

// New creates a coordinator.
func New(deps Deps, opts Options) *Coordinator {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	opts.Universe = normalizeUniverse(opts.Universe)

	return &Coordinator{
		ledger:    deps.Ledger,
		journal:   deps.Journal,
		technical: deps.Technical,
		sentiment: deps.Sentiment,
		executor:  deps.Executor,
		metrics:   deps.Metrics,
		logger:    logging.WithComponent(deps.Logger, "coordinator"),
		opts:      opts,
		validator: risk.NewValidator(opts.Limits),
		synth:     decision.NewSynthesizer(opts.Thresholds),
		techGuard: resilience.NewGuard(CollaboratorTechnical, opts.Guard),
		sentGuard: resilience.NewGuard(CollaboratorSentiment, opts.Guard),
		execGuard: resilience.NewGuard(CollaboratorExecutor, opts.Guard),
	}
}

// GuardStats returns the collaborator guard statistics.
func (c *Coordinator) GuardStats() []resilience.Stats {
	return []resilience.Stats{c.techGuard.Stats(), c.sentGuard.Stats(), c.execGuard.Stats()}
}

// InitializeLedger creates the ledger with starting capital dated now.
func (c *Coordinator) InitializeLedger(ctx context.Context, capital float64, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now = now.In(utils.IndiaLocation)
	if err := c.ledger.Initialize(ctx, capital, utils.DateKey(now), now); err != nil {
		return err
	}
	c.publish()
	return nil
}

// evaluated is the decision phase result for one symbol.
type evaluated struct {
	symbol    string
	technical models.TechnicalSignal
	sentiment models.SentimentSignal
	eval      models.Evaluation
	err       error
}

// RunCycle runs PRECHECK, DECISION, RISK_CHECK, EXECUTION and MONITORING
// for the configured universe. Decisions are made in parallel against one
// snapshot; approved trades are re-sized and re-validated one at a time
// against the live ledger. A returned error other than a StateError is fatal.
func (c *Coordinator) RunCycle(ctx context.Context, now time.Time) (*CycleReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ledger.Initialized() {
		return nil, apperrors.NewStateError("run_cycle", "", apperrors.ErrNotInitialized)
	}

	started := time.Now()
	now = now.In(utils.IndiaLocation)
	report := &CycleReport{
		ID:         CycleID(now, utils.IndiaLocation),
		StartedAt:  now,
		State:      StatePrecheck,
		Decisions:  []models.DecisionRecord{},
		Executions: []Execution{},
		Rejections: []Rejection{},
		Errors:     []SymbolError{},
	}
	log := logging.WithCycle(c.logger, report.ID)
	log.Info().Int("universe", len(c.opts.Universe)).Msg("Cycle started")

	finish := func() (*CycleReport, error) {
		report.Final = c.ledger.Snapshot()
		report.FinishedAt = now.Add(time.Since(started))
		c.publish()
		c.metrics.RecordCycle(string(report.State))
		log.Info().
			Str("state", string(report.State)).
			Int("executions", len(report.Executions)).
			Int("rejections", len(report.Rejections)).
			Int("errors", len(report.Errors)).
			Dur("duration", time.Since(started)).
			Msg("Cycle finished")
		return report, nil
	}

	// PRECHECK
	if reason, open := closedReason(now, c.opts.Limits.Window); !open {
		if err := c.abort(ctx, report, StateSkippedClosed, models.OutcomeSkippedClosed, reason, now); err != nil {
			return report, err
		}
		return finish()
	}
	if err := c.rollover(ctx, now); err != nil {
		return report, err
	}
	if c.ledger.Snapshot().CircuitBreakerActive {
		if err := c.abort(ctx, report, StateSkippedBreaker, models.OutcomeSkippedBreaker,
			"daily loss circuit breaker active", now); err != nil {
			return report, err
		}
		return finish()
	}

	// DECISION
	c.transition(log, report, StateDecision)
	results := c.evaluate(ctx, log, c.ledger.Snapshot().OpenCount())

	actionable := make([]evaluated, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			if err := c.recordExternalError(ctx, report, r, now); err != nil {
				return report, err
			}
			continue
		}

		c.saveCombined(ctx, log, r, now)
		if !r.eval.Decision.Actionable() {
			rec := c.decisionRecord(report.ID, r, now)
			rec.Outcome = models.OutcomeNoAction
			if err := c.writeDecision(ctx, report, rec); err != nil {
				return report, err
			}
			continue
		}
		actionable = append(actionable, r)
	}

	// Highest conviction gets first claim on cash and slots.
	sort.SliceStable(actionable, func(i, j int) bool {
		ri, rj := actionable[i].eval.Confidence.Rank(), actionable[j].eval.Confidence.Rank()
		if ri != rj {
			return ri > rj
		}
		return actionable[i].symbol < actionable[j].symbol
	})

	for _, r := range actionable {
		if err := c.enter(ctx, log, report, r, now); err != nil {
			return report, err
		}
	}

	// MONITORING
	c.transition(log, report, StateMonitoring)
	monitor, err := c.monitor(ctx, log, now)
	report.Monitor = monitor
	if err != nil {
		return report, err
	}

	c.transition(log, report, StateLogged)
	return finish()
}

// evaluate fetches signals and synthesizes a decision for every symbol,
// at most Parallelism at a time. Results keep universe order.
func (c *Coordinator) evaluate(ctx context.Context, log zerolog.Logger, openCount int) []evaluated {
	results := make([]evaluated, len(c.opts.Universe))

	var g errgroup.Group
	g.SetLimit(c.opts.Parallelism)
	for i, symbol := range c.opts.Universe {
		i, symbol := i, symbol
		g.Go(func() error {
			results[i] = c.evaluateSymbol(ctx, log, symbol, openCount)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (c *Coordinator) evaluateSymbol(ctx context.Context, log zerolog.Logger, symbol string, openCount int) evaluated {
	r := evaluated{symbol: symbol}

	tech, err := c.fetchTechnical(ctx, log, symbol)
	if err != nil {
		r.err = err
		return r
	}
	r.technical = tech

	start := time.Now()
	sent, err := resilience.Call(c.sentGuard, ctx, symbol, func(ctx context.Context) (models.SentimentSignal, error) {
		return c.sentiment.Sentiment(ctx, symbol)
	})
	logging.LogCall(log, CollaboratorSentiment, symbol, time.Since(start), err)
	if err != nil {
		r.err = err
		return r
	}
	r.sentiment = sent

	r.eval = c.synth.Synthesize(decision.Input{
		Symbol:            symbol,
		TechnicalScore:    tech.CompositeScore,
		Sentiment:         sent.Label,
		RedFlags:          sent.RedFlags,
		OpenPositionCount: openCount,
	})
	return r
}

func (c *Coordinator) fetchTechnical(ctx context.Context, log zerolog.Logger, symbol string) (models.TechnicalSignal, error) {
	start := time.Now()
	tech, err := resilience.Call(c.techGuard, ctx, symbol, func(ctx context.Context) (models.TechnicalSignal, error) {
		return c.technical.Technical(ctx, symbol)
	})
	logging.LogCall(log, CollaboratorTechnical, symbol, time.Since(start), err)
	return tech, err
}

// enter sizes, re-validates and executes one actionable decision, then
// writes its decision record with the outcome.
func (c *Coordinator) enter(ctx context.Context, log zerolog.Logger, report *CycleReport, r evaluated, now time.Time) error {
	rec := c.decisionRecord(report.ID, r, now)
	snap := c.ledger.Snapshot()

	price := r.technical.CurrentPrice
	stop := c.opts.Sizer.DefaultStopLoss(price)

	c.transition(log, report, StateRiskCheck)
	qty, err := c.opts.Sizer.SizeForConfidence(r.eval.Confidence, snap.Cash, price, stop)
	if err != nil {
		rec.Outcome = models.OutcomeNotSized
		rec.Reasoning = fmt.Sprintf("%s; %v", rec.Reasoning, err)
		return c.writeDecision(ctx, report, rec)
	}

	intent := models.TradeIntent{
		Symbol:     r.symbol,
		Side:       models.SideBuy,
		Quantity:   qty,
		EntryPrice: price,
		StopLoss:   stop,
		Confidence: r.eval.Confidence,
		RedFlags:   r.sentiment.RedFlags,
	}
	if res := c.validator.CheckBuy(intent, snap, now); !res.Approved {
		c.reject(log, report, r.symbol, res)
		rec.Outcome = models.OutcomeRejected
		rec.Reasoning = fmt.Sprintf("%s; %v", rec.Reasoning, res.Err(r.symbol))
		return c.writeDecision(ctx, report, rec)
	}

	c.transition(log, report, StateExecution)
	exec, err := c.execute(ctx, intent, snap, tradeContext{
		technicalScore: r.technical.CompositeScore,
		sentiment:      r.sentiment.Label,
		reasoning:      r.eval.Reasoning,
	}, now)
	if err != nil {
		if apperrors.IsFatal(err) {
			return err
		}
		report.Errors = append(report.Errors, c.symbolError(r.symbol, err))
		rec.Outcome = models.OutcomeExternalError
		rec.Reasoning = fmt.Sprintf("%s; %v", rec.Reasoning, err)
		return c.writeDecision(ctx, report, rec)
	}

	report.Executions = append(report.Executions, exec)
	rec.Outcome = models.OutcomeExecuted
	return c.writeDecision(ctx, report, rec)
}

// ClosePosition exits the OPEN position in symbol at the current price.
// Manual exits are subject to the trading window; the breaker never blocks them.
func (c *Coordinator) ClosePosition(ctx context.Context, symbol string, now time.Time) (*Execution, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ledger.Initialized() {
		return nil, apperrors.NewStateError("close_position", symbol, apperrors.ErrNotInitialized)
	}
	now = now.In(utils.IndiaLocation)
	log := logging.WithOperation(c.logger, "close_position")

	if err := c.rollover(ctx, now); err != nil {
		return nil, err
	}

	snap := c.ledger.Snapshot()
	pos, ok := snap.Position(symbol)
	if !ok {
		res := c.validator.CheckSell(models.TradeIntent{Symbol: symbol, Side: models.SideSell, ExitReason: models.ExitManual}, snap, now)
		c.recordRejections(res)
		return nil, res.Err(symbol)
	}

	tech, err := c.fetchTechnical(ctx, log, symbol)
	if err != nil {
		c.recordExternal(err)
		return nil, err
	}

	exec, err := c.exit(ctx, log, pos, tech, models.ExitManual, now)
	if err != nil {
		return nil, err
	}

	if _, err := c.ledger.EvaluateCircuitBreaker(context.WithoutCancel(ctx), utils.DateKey(now)); err != nil {
		return &exec, err
	}
	c.publish()
	return &exec, nil
}

// abort writes the cycle-scoped decision record for a cycle that never
// reached DECISION.
func (c *Coordinator) abort(ctx context.Context, report *CycleReport, state CycleState, outcome models.DecisionOutcome, reason string, now time.Time) error {
	report.State = state
	report.Reason = reason

	rec := &models.DecisionRecord{
		CycleID:    report.ID,
		Symbol:     models.CycleScope,
		Decision:   models.DecisionSkip,
		Confidence: models.ConfidenceLow,
		Reasoning:  reason,
		Outcome:    outcome,
		CreatedAt:  now,
	}
	return c.writeDecision(ctx, report, rec)
}

func (c *Coordinator) recordExternalError(ctx context.Context, report *CycleReport, r evaluated, now time.Time) error {
	se := c.symbolError(r.symbol, r.err)
	report.Errors = append(report.Errors, se)
	c.metrics.RecordCollaboratorError(se.Collaborator)

	rec := &models.DecisionRecord{
		CycleID:        report.ID,
		Symbol:         r.symbol,
		Decision:       models.DecisionSkip,
		Confidence:     models.ConfidenceLow,
		Reasoning:      r.err.Error(),
		TechnicalScore: r.technical.CompositeScore,
		Outcome:        models.OutcomeExternalError,
		CreatedAt:      now,
	}
	return c.writeDecision(ctx, report, rec)
}

func (c *Coordinator) decisionRecord(cycleID string, r evaluated, now time.Time) *models.DecisionRecord {
	return &models.DecisionRecord{
		CycleID:        cycleID,
		Symbol:         r.symbol,
		Criteria:       r.eval.Criteria,
		Decision:       r.eval.Decision,
		Confidence:     r.eval.Confidence,
		Reasoning:      r.eval.Reasoning,
		TechnicalScore: r.technical.CompositeScore,
		SentimentLabel: r.sentiment.Label,
		RedFlags:       r.sentiment.RedFlags,
		CreatedAt:      now,
	}
}

// writeDecision appends rec to the journal. The write outlives a cancelled
// cycle, and trading on without an audit trail is not allowed, so a journal
// failure is fatal.
func (c *Coordinator) writeDecision(ctx context.Context, report *CycleReport, rec *models.DecisionRecord) error {
	if err := c.journal.WriteDecision(context.WithoutCancel(ctx), rec); err != nil {
		return apperrors.NewFatalError("write_decision", err)
	}
	report.Decisions = append(report.Decisions, *rec)
	c.metrics.RecordDecision(string(rec.Decision), string(rec.Outcome))
	return nil
}

type combinedDetails struct {
	Decision   models.Decision       `json:"decision"`
	Confidence models.ConfidenceTier `json:"confidence"`
	Sentiment  models.SentimentLabel `json:"sentiment"`
	RedFlags   []string              `json:"red_flags"`
	PassCount  int                   `json:"pass_count"`
}

// saveCombined caches the synthesized view of a symbol. Cache failures only warn.
func (c *Coordinator) saveCombined(ctx context.Context, log zerolog.Logger, r evaluated, now time.Time) {
	details, _ := json.Marshal(combinedDetails{
		Decision:   r.eval.Decision,
		Confidence: r.eval.Confidence,
		Sentiment:  r.sentiment.Label,
		RedFlags:   r.sentiment.RedFlags,
		PassCount:  r.eval.Criteria.PassCount(),
	})
	entry := &models.AnalysisEntry{
		Symbol:    r.symbol,
		Kind:      models.AnalysisCombined,
		Score:     r.technical.CompositeScore,
		Label:     string(r.eval.Decision),
		Details:   string(details),
		CreatedAt: now,
	}
	if err := c.journal.SaveAnalysis(ctx, entry); err != nil {
		log.Warn().Err(err).Str("symbol", r.symbol).Msg("Failed to cache combined analysis")
	}
}

func (c *Coordinator) reject(log zerolog.Logger, report *CycleReport, symbol string, res risk.Result) {
	rules := res.Rules()
	report.Rejections = append(report.Rejections, Rejection{Symbol: symbol, Rules: rules})
	c.recordRejections(res)

	names := make([]string, len(rules))
	for i, rule := range rules {
		names[i] = string(rule)
	}
	logging.LogRejection(log, symbol, names)
}

func (c *Coordinator) recordRejections(res risk.Result) {
	for _, rule := range res.Rules() {
		c.metrics.RecordRejection(string(rule))
	}
}

func (c *Coordinator) recordExternal(err error) {
	var ext *apperrors.ExternalError
	if apperrors.As(err, &ext) {
		c.metrics.RecordCollaboratorError(ext.Collaborator)
	}
}

func (c *Coordinator) symbolError(symbol string, err error) SymbolError {
	se := SymbolError{Symbol: symbol, Message: err.Error()}
	var ext *apperrors.ExternalError
	if apperrors.As(err, &ext) {
		se.Collaborator = ext.Collaborator
	}
	return se
}

// rollover starts a new P&L day when now falls on a later IST date.
func (c *Coordinator) rollover(ctx context.Context, now time.Time) error {
	date := utils.DateKey(now)
	if c.ledger.Snapshot().CurrentDate == date {
		return nil
	}
	return c.ledger.RolloverDay(context.WithoutCancel(ctx), date)
}

func (c *Coordinator) transition(log zerolog.Logger, report *CycleReport, state CycleState) {
	log.Debug().Str("from", string(report.State)).Str("to", string(state)).Msg("Cycle transition")
	report.State = state
}

func (c *Coordinator) publish() {
	snap := c.ledger.Snapshot()
	c.metrics.SetPortfolio(snap.Cash, snap.OpenCount(), snap.DailyTotal())
}

// closedReason explains why trading is not possible at now.
func closedReason(now time.Time, w utils.Window) (string, bool) {
	if utils.TradingOpen(now, w) {
		return "", true
	}
	if name, ok := utils.Holiday(now); ok {
		return "market holiday: " + name, false
	}
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return "market closed: " + wd.String(), false
	}
	return fmt.Sprintf("outside trading window %s", w), false
}
