package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newYorkHours(t *testing.T) *Hours {
	t.Helper()
	h, err := NewHours("America/New_York", "09:30", "16:00")
	require.NoError(t, err)
	return h
}

func TestHoursIsOpen(t *testing.T) {
	t.Parallel()

	h := newYorkHours(t)
	ny := h.Location()

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before open", time.Date(2024, 7, 1, 9, 29, 0, 0, ny), false},
		{"at open", time.Date(2024, 7, 1, 9, 30, 0, 0, ny), true},
		{"midday", time.Date(2024, 7, 1, 12, 0, 0, 0, ny), true},
		{"at close", time.Date(2024, 7, 1, 16, 0, 0, 0, ny), false},
		{"saturday", time.Date(2024, 7, 6, 12, 0, 0, 0, ny), false},
		{"sunday", time.Date(2024, 7, 7, 12, 0, 0, 0, ny), false},
		{"utc input", time.Date(2024, 7, 1, 14, 0, 0, 0, time.UTC), true},
		{"dst change day", time.Date(2024, 3, 11, 9, 45, 0, 0, ny), true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, h.IsOpen(tt.at))
		})
	}
}

func TestHoursHelpers(t *testing.T) {
	t.Parallel()

	h := newYorkHours(t)
	ny := h.Location()

	at := time.Date(2024, 7, 1, 15, 30, 0, 0, ny)
	assert.Equal(t, 30, h.MinutesToClose(at))
	assert.Zero(t, h.MinutesToClose(time.Date(2024, 7, 1, 17, 0, 0, 0, ny)))

	assert.True(t, h.AfterClose(time.Date(2024, 7, 1, 16, 5, 0, 0, ny)))
	assert.False(t, h.AfterClose(at))
	assert.False(t, h.AfterClose(time.Date(2024, 7, 6, 17, 0, 0, 0, ny)))

	sod := h.StartOfDay(time.Date(2024, 7, 2, 2, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, ny), sod)
}

func TestNewHoursErrors(t *testing.T) {
	t.Parallel()

	_, err := NewHours("Nowhere/City", "09:30", "16:00")
	assert.Error(t, err)
	_, err = NewHours("America/New_York", "930", "16:00")
	assert.Error(t, err)
	_, err = NewHours("America/New_York", "16:00", "09:30")
	assert.Error(t, err)
}
