package market

import (
	"context"
	"errors"
	"time"
)

// ErrNoPrice means the provider has no usable price for a symbol.
var ErrNoPrice = errors.New("price not available")

// Provider supplies quotes and daily history for equities.
type Provider interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	History(ctx context.Context, symbol string, period string) ([]Candle, error)
}

// Candle represents one OHLCV bar.
type Candle struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	time.Time
	Volume float64
}
