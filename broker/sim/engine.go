package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/equitrader/broker"
	"github.com/rustyeddy/equitrader/id"
)

// Mode selects how working orders resolve.
type Mode int

const (
	// FillAfter fills once an order has been polled FillAfter times.
	FillAfter Mode = iota
	// NeverFill leaves orders working until they are cancelled.
	NeverFill
	// RejectAll rejects every order on its first poll.
	RejectAll
)

var ErrInvalidOrder = errors.New("invalid order")

type Options struct {
	Mode Mode

	// FillAfter is the number of status polls before a fill. Zero fills
	// on the first poll.
	FillAfter int

	// ReportZeroFill reports an average fill price of 0, as some venues
	// do for a completed order.
	ReportZeroFill bool

	LoginErr error
	PlaceErr error

	Now func() time.Time
}

// Engine is an in-memory venue. It fills limit orders at their limit
// price.
type Engine struct {
	mu     sync.Mutex
	opts   Options
	orders map[string]*Order
	now    func() time.Time
}

var _ broker.Venue = (*Engine)(nil)

func NewEngine(opts Options) *Engine {
	e := &Engine{
		opts:   opts,
		orders: make(map[string]*Order),
		now:    opts.Now,
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func (e *Engine) Login(ctx context.Context) error {
	return e.opts.LoginErr
}

func (e *Engine) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderAck, error) {
	if e.opts.PlaceErr != nil {
		return broker.OrderAck{}, e.opts.PlaceErr
	}
	if req.Quantity <= 0 || req.Symbol == "" {
		return broker.OrderAck{}, fmt.Errorf("place order %s %d %s: %w", req.Action, req.Quantity, req.Symbol, ErrInvalidOrder)
	}
	if req.Type == broker.Limit && req.Price <= 0 {
		return broker.OrderAck{}, fmt.Errorf("place order: limit price %.2f: %w", req.Price, ErrInvalidOrder)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	o := &Order{
		ID:       id.WithPrefix("SIM"),
		Request:  req,
		Status:   broker.Working,
		PlacedAt: e.now(),
	}
	e.orders[o.ID] = o

	return broker.OrderAck{ID: o.ID, Status: o.Status}, nil
}

// OrderStatus advances a working order according to the mode.
func (e *Engine) OrderStatus(ctx context.Context, orderID string) (broker.OrderState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[orderID]
	if !ok {
		return broker.OrderState{}, fmt.Errorf("order status: %w: %q", broker.ErrOrderNotFound, orderID)
	}
	if o.Status != broker.Working {
		return o.state(), nil
	}

	o.Polls++
	switch e.opts.Mode {
	case RejectAll:
		o.Status = broker.Rejected
	case FillAfter:
		if o.Polls > e.opts.FillAfter {
			o.Status = broker.Filled
			o.FillPrice = o.Request.Price
			o.FilledAt = e.now()
		}
	}

	st := o.state()
	if st.Status == broker.Filled && e.opts.ReportZeroFill {
		st.AvgFillPrice = 0
	}
	return st, nil
}

func (e *Engine) CancelOrder(ctx context.Context, orderID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[orderID]
	if !ok {
		return fmt.Errorf("cancel order: %w: %q", broker.ErrOrderNotFound, orderID)
	}
	if o.Status != broker.Working {
		return fmt.Errorf("cancel order: %w: %q is %s", broker.ErrOrderClosed, orderID, o.Status)
	}
	o.Status = broker.Cancelled
	return nil
}

// Order returns a copy of the order with the given id.
func (e *Engine) Order(orderID string) (Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Orders returns copies of every order placed so far.
func (e *Engine) Orders() []Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Order, 0, len(e.orders))
	for _, o := range e.orders {
		out = append(out, *o)
	}
	return out
}
