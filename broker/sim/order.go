package sim

import (
	"time"

	"github.com/rustyeddy/equitrader/broker"
)

// Order is a simulated venue order.
type Order struct {
	ID       string
	Request  broker.OrderRequest
	Status   broker.OrderStatus
	PlacedAt time.Time

	// Polls counts OrderStatus calls while working.
	Polls int

	// Filled
	FillPrice float64
	FilledAt  time.Time
}

func (o *Order) state() broker.OrderState {
	st := broker.OrderState{ID: o.ID, Status: o.Status}
	if o.Status == broker.Filled {
		st.AvgFillPrice = o.FillPrice
		st.FilledQty = o.Request.Quantity
	}
	return st
}
