package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteStore(t *testing.T) {
	t.Parallel()

	qs := NewQuoteStore()
	ctx := context.Background()

	_, err := qs.CurrentPrice(ctx, "AAPL")
	assert.ErrorIs(t, err, ErrNoPrice)

	qs.Set("aapl", 150.25)
	p, err := qs.CurrentPrice(ctx, "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 150.25, p, 1e-9)

	qs.Delete("AAPL")
	_, err = qs.CurrentPrice(ctx, "AAPL")
	assert.ErrorIs(t, err, ErrNoPrice)

	qs.Set("ZERO", 0)
	_, err = qs.CurrentPrice(ctx, "ZERO")
	assert.ErrorIs(t, err, ErrNoPrice)
}

func TestQuoteStoreHistoryIsCopied(t *testing.T) {
	t.Parallel()

	qs := NewQuoteStore()
	ctx := context.Background()
	qs.SetHistory("MSFT", []Candle{{Close: 1, Time: time.Unix(0, 0)}, {Close: 2}})

	h, err := qs.History(ctx, "MSFT", "1mo")
	require.NoError(t, err)
	require.Len(t, h, 2)
	h[0].Close = 99

	again, err := qs.History(ctx, "MSFT", "1mo")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, again[0].Close, 1e-9)

	_, err = qs.History(ctx, "NVDA", "1mo")
	assert.ErrorIs(t, err, ErrNoPrice)
}
