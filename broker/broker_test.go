package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rustyeddy/equitrader/journal"
)

func TestLimitPrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		action   journal.Action
		price    float64
		expected float64
	}{
		{"buy pads up", journal.Buy, 100, 100.1},
		{"sell pads down", journal.Sell, 100, 99.9},
		{"buy rounds", journal.Buy, 12.34, 12.35},
		{"sell rounds", journal.Sell, 12.34, 12.33},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.expected, LimitPrice(tt.action, tt.price), 1e-9)
		})
	}
}

func TestOrderStatusDone(t *testing.T) {
	t.Parallel()

	assert.False(t, Working.Done())
	assert.True(t, Filled.Done())
	assert.True(t, Cancelled.Done())
	assert.True(t, Rejected.Done())
}
