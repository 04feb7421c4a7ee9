package kite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"github.com/rustyeddy/equitrader/broker"
	"github.com/rustyeddy/equitrader/journal"
)

type fakeAPI struct {
	profileErr error
	placeErr   error
	placed     []kiteconnect.OrderParams
	history    map[string][]kiteconnect.Order
	cancelled  []string
}

func (f *fakeAPI) GetUserProfile() (kiteconnect.UserProfile, error) {
	return kiteconnect.UserProfile{}, f.profileErr
}

func (f *fakeAPI) PlaceOrder(variety string, p kiteconnect.OrderParams) (kiteconnect.OrderResponse, error) {
	if f.placeErr != nil {
		return kiteconnect.OrderResponse{}, f.placeErr
	}
	f.placed = append(f.placed, p)
	return kiteconnect.OrderResponse{OrderID: "240315000000001"}, nil
}

func (f *fakeAPI) GetOrderHistory(orderID string) ([]kiteconnect.Order, error) {
	return f.history[orderID], nil
}

func (f *fakeAPI) CancelOrder(variety, orderID string, parent *string) (kiteconnect.OrderResponse, error) {
	f.cancelled = append(f.cancelled, orderID)
	return kiteconnect.OrderResponse{OrderID: orderID}, nil
}

func TestPlaceOrderParams(t *testing.T) {
	t.Parallel()

	f := &fakeAPI{}
	v := newWithAPI(Params{}, f)

	ack, err := v.PlaceOrder(context.Background(), broker.OrderRequest{
		Symbol: "INFY", Action: journal.Sell, Quantity: 4, Type: broker.Limit, Price: 1499.5,
		TimeInForce: broker.DayOrder,
	})
	require.NoError(t, err)
	assert.Equal(t, "240315000000001", ack.ID)
	assert.Equal(t, broker.Working, ack.Status)

	require.Len(t, f.placed, 1)
	p := f.placed[0]
	assert.Equal(t, "NSE", p.Exchange)
	assert.Equal(t, "INFY", p.Tradingsymbol)
	assert.Equal(t, "DAY", p.Validity)
	assert.Equal(t, "CNC", p.Product)
	assert.Equal(t, "LIMIT", p.OrderType)
	assert.Equal(t, "SELL", p.TransactionType)
	assert.Equal(t, 4, p.Quantity)
	assert.InDelta(t, 1499.5, p.Price, 1e-9)
}

func TestOrderStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status string
		want   broker.OrderStatus
	}{
		{"OPEN", broker.Working},
		{"TRIGGER PENDING", broker.Working},
		{"COMPLETE", broker.Filled},
		{"CANCELLED", broker.Cancelled},
		{"REJECTED", broker.Rejected},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.status, func(t *testing.T) {
			t.Parallel()

			f := &fakeAPI{history: map[string][]kiteconnect.Order{
				"1": {
					{OrderID: "1", Status: "PUT ORDER REQ RECEIVED"},
					{OrderID: "1", Status: tt.status, AveragePrice: 101.25, FilledQuantity: 3},
				},
			}}
			st, err := newWithAPI(Params{}, f).OrderStatus(context.Background(), "1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.Status)
			assert.InDelta(t, 101.25, st.AvgFillPrice, 1e-9)
			assert.Equal(t, 3, st.FilledQty)
		})
	}
}

func TestOrderStatusEmptyHistory(t *testing.T) {
	t.Parallel()

	_, err := newWithAPI(Params{}, &fakeAPI{}).OrderStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, broker.ErrOrderNotFound)
}

func TestLoginAndCancel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := &fakeAPI{profileErr: errors.New("TokenException")}
	v := newWithAPI(Params{Exchange: "BSE"}, f)
	assert.ErrorContains(t, v.Login(ctx), "TokenException")

	require.NoError(t, v.CancelOrder(ctx, "9"))
	assert.Equal(t, []string{"9"}, f.cancelled)

	f.placeErr = errors.New("InputException")
	_, err := v.PlaceOrder(ctx, broker.OrderRequest{Symbol: "TCS", Action: journal.Buy, Quantity: 1, Price: 10})
	assert.ErrorContains(t, err, "InputException")
}
