package sim

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/equitrader/broker"
	"github.com/rustyeddy/equitrader/journal"
)

func limitBuy() broker.OrderRequest {
	return broker.OrderRequest{
		Symbol:      "AAPL",
		Action:      journal.Buy,
		Quantity:    3,
		Type:        broker.Limit,
		Price:       100.1,
		TimeInForce: broker.DayOrder,
	}
}

func TestFillAfterPolls(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e := NewEngine(Options{FillAfter: 2})
	ack, err := e.PlaceOrder(ctx, limitBuy())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ack.ID, "SIM-"))
	assert.Equal(t, broker.Working, ack.Status)

	for i := 0; i < 2; i++ {
		st, err := e.OrderStatus(ctx, ack.ID)
		require.NoError(t, err)
		assert.Equal(t, broker.Working, st.Status)
	}

	st, err := e.OrderStatus(ctx, ack.ID)
	require.NoError(t, err)
	assert.Equal(t, broker.Filled, st.Status)
	assert.InDelta(t, 100.1, st.AvgFillPrice, 1e-9)
	assert.Equal(t, 3, st.FilledQty)

	// filled orders cannot be cancelled
	assert.ErrorIs(t, e.CancelOrder(ctx, ack.ID), broker.ErrOrderClosed)
}

func TestNeverFillThenCancel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e := NewEngine(Options{Mode: NeverFill})
	ack, err := e.PlaceOrder(ctx, limitBuy())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		st, err := e.OrderStatus(ctx, ack.ID)
		require.NoError(t, err)
		assert.Equal(t, broker.Working, st.Status)
	}

	require.NoError(t, e.CancelOrder(ctx, ack.ID))
	o, ok := e.Order(ack.ID)
	require.True(t, ok)
	assert.Equal(t, broker.Cancelled, o.Status)
	assert.Equal(t, 5, o.Polls)
}

func TestRejectAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e := NewEngine(Options{Mode: RejectAll})
	ack, err := e.PlaceOrder(ctx, limitBuy())
	require.NoError(t, err)

	st, err := e.OrderStatus(ctx, ack.ID)
	require.NoError(t, err)
	assert.Equal(t, broker.Rejected, st.Status)
	assert.Zero(t, st.FilledQty)
}

func TestReportZeroFill(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	e := NewEngine(Options{ReportZeroFill: true})
	ack, err := e.PlaceOrder(ctx, limitBuy())
	require.NoError(t, err)

	st, err := e.OrderStatus(ctx, ack.ID)
	require.NoError(t, err)
	assert.Equal(t, broker.Filled, st.Status)
	assert.Zero(t, st.AvgFillPrice)
}

func TestPlaceOrderErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	boom := errors.New("venue down")
	_, err := NewEngine(Options{PlaceErr: boom}).PlaceOrder(ctx, limitBuy())
	assert.ErrorIs(t, err, boom)

	e := NewEngine(Options{})
	bad := limitBuy()
	bad.Quantity = 0
	_, err = e.PlaceOrder(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	bad = limitBuy()
	bad.Price = 0
	_, err = e.PlaceOrder(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = e.OrderStatus(ctx, "nope")
	assert.ErrorIs(t, err, broker.ErrOrderNotFound)
	assert.ErrorIs(t, e.CancelOrder(ctx, "nope"), broker.ErrOrderNotFound)
	assert.Empty(t, e.Orders())
}

func TestLogin(t *testing.T) {
	t.Parallel()

	assert.NoError(t, NewEngine(Options{}).Login(context.Background()))
	boom := errors.New("bad token")
	assert.ErrorIs(t, NewEngine(Options{LoginErr: boom}).Login(context.Background()), boom)
}
