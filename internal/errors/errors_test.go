package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTradeErrorFormatting(t *testing.T) {
	t.Parallel()

	e := New(RiskRejected, "risk", "pre_trade_check", "At max holdings (2/2)")
	assert.Equal(t, "[RISK_REJECTED:risk] pre_trade_check: At max holdings (2/2)", e.Error())

	cause := stderrors.New("connection refused")
	w := Wrap(cause, ExecutionFailure, "executor", "place_order", "order placement failed")
	assert.Contains(t, w.Error(), "connection refused")
	assert.True(t, stderrors.Is(w, cause))
}

func TestWrapNil(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Wrap(nil, DataUnavailable, "market", "price", "no price"))
}

func TestCategoryPredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		err   error
		cat   Category
		fatal bool
	}{
		{"config", New(ConfigurationFatal, "config", "credentials", "missing"), ConfigurationFatal, true},
		{"timeout", New(ApprovalTimeout, "approval", "wait", "no reply"), ApprovalTimeout, false},
		{"wrapped", fmt.Errorf("scan: %w", New(DataUnavailable, "market", "price", "AAPL")), DataUnavailable, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.True(t, Is(tt.err, tt.cat))
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
			c, ok := CategoryOf(tt.err)
			assert.True(t, ok)
			assert.Equal(t, tt.cat, c)
		})
	}

	_, ok := CategoryOf(stderrors.New("plain"))
	assert.False(t, ok)
}
