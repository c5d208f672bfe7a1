package marketdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/zikalyze/core/pkg/models"
)

// ErrNoData means every provider in the chain failed or returned too
// few candles to analyze.
var ErrNoData = errors.New("no candle data available")

// MinUsable is the smallest candle count a provider response must have
// to be accepted; anything shorter falls through to the next provider.
const MinUsable = 5

// Provider fetches historical candles from one upstream source.
type Provider interface {
	Name() string
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
}

// Chain tries providers in priority order and returns the first usable
// result, tagged with the provider name.
type Chain struct {
	providers []Provider
	logger    *logrus.Entry
}

// NewChain creates a provider chain. Order matters: earlier providers
// are preferred.
func NewChain(log *logrus.Logger, providers ...Provider) *Chain {
	return &Chain{
		providers: providers,
		logger:    log.WithField("component", "candle-chain"),
	}
}

// Fetch walks the chain until one provider returns at least MinUsable
// candles. All-provider failure returns ErrNoData wrapping the
// individual errors.
func (c *Chain) Fetch(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, string, error) {
	var errs []error
	for _, p := range c.providers {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}

		candles, err := p.FetchCandles(ctx, symbol, interval, limit)
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"provider": p.Name(),
				"symbol":   symbol,
			}).WithError(err).Warn("Provider failed, trying next")
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if len(candles) < MinUsable {
			errs = append(errs, fmt.Errorf("%s: only %d candle(s)", p.Name(), len(candles)))
			continue
		}

		return candles, p.Name(), nil
	}

	return nil, "", fmt.Errorf("%w for %s: %v", ErrNoData, symbol, errors.Join(errs...))
}
