package signals

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"trading-agent/internal/models"
)

// AnalysisCache is the soft-TTL analysis store.
type AnalysisCache interface {
	PreviousAnalysis(ctx context.Context, symbol string, kind models.AnalysisKind, now time.Time) (*models.AnalysisEntry, error)
	SaveAnalysis(ctx context.Context, entry *models.AnalysisEntry) error
}

type sentimentDetails struct {
	RedFlags []string `json:"red_flags"`
}

// CachedSentiment serves recent sentiment from the analysis cache and only
// asks the wrapped source when nothing fresh is cached.
type CachedSentiment struct {
	src    SentimentSource
	cache  AnalysisCache
	clock  func() time.Time
	logger zerolog.Logger
}

// NewCachedSentiment wraps src. A nil clock uses time.Now.
func NewCachedSentiment(src SentimentSource, cache AnalysisCache, clock func() time.Time, logger zerolog.Logger) *CachedSentiment {
	if clock == nil {
		clock = time.Now
	}
	return &CachedSentiment{src: src, cache: cache, clock: clock, logger: logger}
}

// Sentiment implements SentimentSource.
func (c *CachedSentiment) Sentiment(ctx context.Context, symbol string) (models.SentimentSignal, error) {
	now := c.clock()

	entry, err := c.cache.PreviousAnalysis(ctx, symbol, models.AnalysisSentiment, now)
	if err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Analysis cache read failed")
	}
	if entry != nil {
		var d sentimentDetails
		label, perr := models.ParseSentimentLabel(entry.Label)
		if perr == nil && json.Unmarshal([]byte(entry.Details), &d) == nil {
			return models.SentimentSignal{Symbol: symbol, Label: label, RedFlags: d.RedFlags, AsOf: entry.CreatedAt}, nil
		}
	}

	sig, err := c.src.Sentiment(ctx, symbol)
	if err != nil {
		return models.SentimentSignal{}, err
	}

	details, _ := json.Marshal(sentimentDetails{RedFlags: sig.RedFlags})
	save := &models.AnalysisEntry{
		Symbol:    symbol,
		Kind:      models.AnalysisSentiment,
		Label:     string(sig.Label),
		Details:   string(details),
		CreatedAt: now,
	}
	if err := c.cache.SaveAnalysis(ctx, save); err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Analysis cache write failed")
	}
	return sig, nil
}
