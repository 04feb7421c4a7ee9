package signals

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/rustyeddy/equitrader/journal"
)

// RenderTable writes signals as a rounded table.
func RenderTable(w io.Writer, list []journal.Signal) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("SIGNALS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Action", "Symbol", "Qty", "Price", "Total", "Status", "Expires", "Reason"})

	for _, s := range list {
		action := string(s.Action)
		if s.Urgent {
			action += "!"
		}
		t.AppendRow(table.Row{
			s.ID,
			action,
			s.Symbol,
			s.SuggestedQuantity,
			fmt.Sprintf("$%.2f", s.SuggestedPrice),
			fmt.Sprintf("$%.2f", s.Total()),
			s.Status,
			s.ExpiresAt.Local().Format("01-02 15:04"),
			s.Reason,
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 9, WidthMax: 50},
	})
	if len(list) == 0 {
		t.AppendFooter(table.Row{"", "", "no signals"})
	}
	t.Render()
}
