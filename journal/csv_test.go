package journal

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTradesCSV(t *testing.T) {
	t.Parallel()

	pl := 20.0
	var buf bytes.Buffer
	err := WriteTradesCSV(&buf, []Trade{
		{ID: 1, Symbol: "AAPL", Action: Buy, Quantity: 10, Price: 10, TotalValue: 100, ExecutedAt: t0},
		{ID: 2, Symbol: "AAPL", Action: Sell, Quantity: 10, Price: 12, TotalValue: 120, ProfitLoss: &pl, ExecutedAt: t0},
	})
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, tradeCSVHeader, records[0])
	assert.Equal(t, []string{"1", "AAPL", "BUY", "10", "10.00", "100.00", "", "", "", "", "", "2024-03-15T14:30:00Z"}, records[1])
	assert.Equal(t, "20.00", records[2][8])
}
