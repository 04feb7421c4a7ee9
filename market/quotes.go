package market

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// QuoteStore is an in-memory Provider. Paper runs and tests set prices on
// it directly.
type QuoteStore struct {
	mu      sync.RWMutex
	prices  map[string]float64
	history map[string][]Candle
}

func NewQuoteStore() *QuoteStore {
	return &QuoteStore{
		prices:  make(map[string]float64),
		history: make(map[string][]Candle),
	}
}

func (qs *QuoteStore) Set(symbol string, price float64) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.prices[strings.ToUpper(symbol)] = price
}

func (qs *QuoteStore) SetHistory(symbol string, candles []Candle) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.history[strings.ToUpper(symbol)] = candles
}

// Delete forgets the price for symbol so lookups fail.
func (qs *QuoteStore) Delete(symbol string) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	delete(qs.prices, strings.ToUpper(symbol))
}

func (qs *QuoteStore) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	p, ok := qs.prices[strings.ToUpper(symbol)]
	if !ok || p <= 0 {
		return 0, fmt.Errorf("%s: %w", symbol, ErrNoPrice)
	}
	return p, nil
}

func (qs *QuoteStore) History(ctx context.Context, symbol string, period string) ([]Candle, error) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	h, ok := qs.history[strings.ToUpper(symbol)]
	if !ok {
		return nil, fmt.Errorf("%s history: %w", symbol, ErrNoPrice)
	}
	out := make([]Candle, len(h))
	copy(out, h)
	return out, nil
}
