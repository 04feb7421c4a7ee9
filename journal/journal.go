// journal/journal.go
package journal

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrStaleTransition = errors.New("signal status changed concurrently")
)

// Action is the side of a signal or trade.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// ParseAction accepts BUY or SELL in any case.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case Buy, Sell:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

func (a Action) Value() (driver.Value, error) {
	if _, err := ParseAction(string(a)); err != nil {
		return nil, err
	}
	return string(a), nil
}

func (a *Action) Scan(src any) error {
	s, err := scanString(src)
	if err != nil {
		return fmt.Errorf("scan action: %w", err)
	}
	v, err := ParseAction(s)
	if err != nil {
		return fmt.Errorf("scan action: %w", err)
	}
	*a = v
	return nil
}

// Status is the lifecycle state of a signal.
type Status string

const (
	Pending   Status = "PENDING"
	Approved  Status = "APPROVED"
	Rejected  Status = "REJECTED"
	Expired   Status = "EXPIRED"
	Executed  Status = "EXECUTED"
	Cancelled Status = "CANCELLED"
)

var statuses = map[Status]bool{
	Pending: true, Approved: true, Rejected: true,
	Expired: true, Executed: true, Cancelled: true,
}

// ParseStatus rejects anything outside the closed set of statuses.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !statuses[st] {
		return "", fmt.Errorf("unknown signal status %q", s)
	}
	return st, nil
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	switch s {
	case Executed, Rejected, Expired, Cancelled:
		return true
	}
	return false
}

func (s Status) Value() (driver.Value, error) {
	if !statuses[s] {
		return nil, fmt.Errorf("unknown signal status %q", string(s))
	}
	return string(s), nil
}

func (s *Status) Scan(src any) error {
	str, err := scanString(src)
	if err != nil {
		return fmt.Errorf("scan status: %w", err)
	}
	v, err := ParseStatus(str)
	if err != nil {
		return fmt.Errorf("scan status: %w", err)
	}
	*s = v
	return nil
}

func scanString(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", errors.New("unexpected NULL")
	default:
		return "", fmt.Errorf("unexpected type %T", src)
	}
}

// Signal is a proposed trade and its approval history.
type Signal struct {
	ID                int64
	Symbol            string
	Action            Action
	SuggestedPrice    float64
	SuggestedQuantity int
	Reason            string
	Status            Status
	Urgent            bool
	CreatedAt         time.Time
	ExpiresAt         time.Time
	SMSSentAt         *time.Time
	UserResponse      string
	RespondedAt       *time.Time
	TradeID           *int64
	Note              string
}

// Total is the notional value at the suggested price.
func (s Signal) Total() float64 {
	return s.SuggestedPrice * float64(s.SuggestedQuantity)
}

// SignalUpdate carries the optional fields written with a status transition.
type SignalUpdate struct {
	UserResponse *string
	RespondedAt  *time.Time
	TradeID      *int64
	Note         *string
}

// Trade is an immutable record of one fill.
type Trade struct {
	ID         int64
	Symbol     string
	Action     Action
	Quantity   int
	Price      float64
	TotalValue float64
	OrderID    string
	SignalID   *int64
	CreatedAt  time.Time
	ExecutedAt time.Time

	// Sells only
	BuyPrice      *float64
	ProfitLoss    *float64
	ProfitLossPct *float64
	HoldDays      *int
}

// Holding is an open position. At most one exists per symbol.
type Holding struct {
	Symbol          string
	Quantity        int
	AvgBuyPrice     float64
	TotalCost       float64
	CurrentPrice    float64
	CurrentValue    float64
	StopLossPrice   float64
	TakeProfitPrice float64
	FirstBoughtAt   time.Time
	UpdatedAt       time.Time
}

// Snapshot is a point-in-time portfolio valuation.
type Snapshot struct {
	ID            int64
	Date          time.Time
	TotalValue    float64
	CashBalance   float64
	HoldingsValue float64
	DailyPL       float64
	DailyPLPct    float64
	TotalPL       float64
	TotalPLPct    float64
	PeakValue     float64
	Drawdown      float64
	DrawdownPct   float64
	NumHoldings   int
}

// AuditEntry is one append-only audit log row.
type AuditEntry struct {
	ID          int64
	ActionType  string
	Symbol      string
	Description string
	TradeID     *int64
	SignalID    *int64
	Extra       map[string]any
	CreatedAt   time.Time
}

// Audit action types.
const (
	AuditSignalCreated       = "SIGNAL_CREATED"
	AuditSignalsGenerated    = "SIGNALS_GENERATED"
	AuditSignalStatusUpdated = "SIGNAL_STATUS_UPDATED"
	AuditTradeExecuted       = "TRADE_EXECUTED"
	AuditTradingPaused       = "TRADING_PAUSED"
	AuditTradingResumed      = "TRADING_RESUMED"
	AuditSnapshot            = "SNAPSHOT_TAKEN"
	AuditError               = "ERROR"
)

// Trading state keys.
const (
	StateTradingPaused = "trading_paused"
	StatePauseReason   = "pause_reason"
	StatePausedAt      = "paused_at"
)
