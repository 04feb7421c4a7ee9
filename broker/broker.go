package broker

import (
	"context"
	"errors"
	"math"

	"github.com/rustyeddy/equitrader/journal"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderClosed   = errors.New("order already closed")
)

// Venue is an execution venue that accepts limit orders and reports fills.
type Venue interface {
	Login(ctx context.Context) error
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderAck, error)
	OrderStatus(ctx context.Context, id string) (OrderState, error)
	CancelOrder(ctx context.Context, id string) error
}

type OrderType string

const (
	Limit  OrderType = "LIMIT"
	Market OrderType = "MARKET"
)

// OrderStatus is the normalized venue order status.
type OrderStatus string

const (
	Working   OrderStatus = "WORKING"
	Filled    OrderStatus = "FILLED"
	Cancelled OrderStatus = "CANCELLED"
	Rejected  OrderStatus = "REJECTED"
)

// Done reports whether the order can no longer fill.
func (s OrderStatus) Done() bool {
	return s == Filled || s == Cancelled || s == Rejected
}

const DayOrder = "DAY"

type OrderRequest struct {
	Symbol      string
	Action      journal.Action
	Quantity    int
	Type        OrderType
	Price       float64
	TimeInForce string
}

type OrderAck struct {
	ID     string
	Status OrderStatus
}

type OrderState struct {
	ID           string
	Status       OrderStatus
	AvgFillPrice float64
	FilledQty    int
	Message      string
}

// LimitPrice pads the reference price by 0.1%, above for buys and below
// for sells, rounded to cents.
func LimitPrice(action journal.Action, price float64) float64 {
	if action == journal.Buy {
		return round2(price * 1.001)
	}
	return round2(price * 0.999)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
