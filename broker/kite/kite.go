// Package kite routes orders to Zerodha Kite Connect.
package kite

import (
	"context"
	"fmt"
	"strings"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"github.com/rustyeddy/equitrader/broker"
	"github.com/rustyeddy/equitrader/journal"
)

// api is the subset of *kiteconnect.Client the venue calls.
type api interface {
	GetUserProfile() (kiteconnect.UserProfile, error)
	PlaceOrder(variety string, orderParams kiteconnect.OrderParams) (kiteconnect.OrderResponse, error)
	GetOrderHistory(OrderID string) ([]kiteconnect.Order, error)
	CancelOrder(variety string, orderID string, parentOrderID *string) (kiteconnect.OrderResponse, error)
}

var _ api = (*kiteconnect.Client)(nil)

type Params struct {
	APIKey      string
	AccessToken string
	Exchange    string // NSE
	Product     string // CNC
}

type Venue struct {
	p  Params
	kc api
}

var _ broker.Venue = (*Venue)(nil)

func New(p Params) *Venue {
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	return newWithAPI(p, kc)
}

func newWithAPI(p Params, kc api) *Venue {
	if p.Exchange == "" {
		p.Exchange = kiteconnect.ExchangeNSE
	}
	if p.Product == "" {
		p.Product = kiteconnect.ProductCNC
	}
	return &Venue{p: p, kc: kc}
}

// Login verifies the access token by fetching the user profile.
func (v *Venue) Login(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := v.kc.GetUserProfile(); err != nil {
		return fmt.Errorf("kite login: %w", err)
	}
	return nil
}

func (v *Venue) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderAck, error) {
	if err := ctx.Err(); err != nil {
		return broker.OrderAck{}, err
	}

	side := kiteconnect.TransactionTypeBuy
	if req.Action == journal.Sell {
		side = kiteconnect.TransactionTypeSell
	}
	orderType := kiteconnect.OrderTypeLimit
	if req.Type == broker.Market {
		orderType = kiteconnect.OrderTypeMarket
	}
	validity := kiteconnect.ValidityDay
	if req.TimeInForce != "" {
		validity = req.TimeInForce
	}

	resp, err := v.kc.PlaceOrder(kiteconnect.VarietyRegular, kiteconnect.OrderParams{
		Exchange:        v.p.Exchange,
		Tradingsymbol:   req.Symbol,
		Validity:        validity,
		Product:         v.p.Product,
		OrderType:       orderType,
		TransactionType: side,
		Quantity:        req.Quantity,
		Price:           req.Price,
	})
	if err != nil {
		return broker.OrderAck{}, fmt.Errorf("kite place order %s %d %s: %w", req.Action, req.Quantity, req.Symbol, err)
	}
	return broker.OrderAck{ID: resp.OrderID, Status: broker.Working}, nil
}

// OrderStatus maps the newest order history entry onto the normalized
// statuses.
func (v *Venue) OrderStatus(ctx context.Context, orderID string) (broker.OrderState, error) {
	if err := ctx.Err(); err != nil {
		return broker.OrderState{}, err
	}

	hist, err := v.kc.GetOrderHistory(orderID)
	if err != nil {
		return broker.OrderState{}, fmt.Errorf("kite order history %s: %w", orderID, err)
	}
	if len(hist) == 0 {
		return broker.OrderState{}, fmt.Errorf("kite order history %s: %w", orderID, broker.ErrOrderNotFound)
	}

	last := hist[len(hist)-1]
	st := broker.OrderState{
		ID:           orderID,
		Status:       mapStatus(last.Status),
		AvgFillPrice: last.AveragePrice,
		FilledQty:    int(last.FilledQuantity),
		Message:      last.StatusMessage,
	}
	return st, nil
}

func mapStatus(s string) broker.OrderStatus {
	switch strings.ToUpper(s) {
	case "COMPLETE":
		return broker.Filled
	case "CANCELLED":
		return broker.Cancelled
	case "REJECTED":
		return broker.Rejected
	default:
		return broker.Working
	}
}

func (v *Venue) CancelOrder(ctx context.Context, orderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := v.kc.CancelOrder(kiteconnect.VarietyRegular, orderID, nil); err != nil {
		return fmt.Errorf("kite cancel order %s: %w", orderID, err)
	}
	return nil
}
