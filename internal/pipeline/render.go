package pipeline

import (
	"fmt"

	"txfilter/internal/core"
	"txfilter/internal/stream"
	"txfilter/internal/view"
)

// Renderer formats pipeline output for a Port.
type Renderer struct {
	Currency string
}

// Rows builds one display row per view.
func (r Renderer) Rows(views []core.TransactionView) []view.Row {
	rows := make([]view.Row, 0, len(views))
	for _, v := range views {
		sign := ""
		if v.TransactionType == core.TypeExpense {
			sign = "-"
		}
		rows = append(rows, view.Row{
			Date:      v.Date.Format("Jan 02"),
			BreakDown: fmt.Sprintf("%d x %s =", v.Quantity, v.UnitPrice),
			Amount:    r.withCurrency(sign + v.FormattedCost),
			Class:     string(v.TransactionType),
		})
	}
	return rows
}

// Summary is the result-count label.
func (r Renderer) Summary(n int) string {
	return fmt.Sprintf("There are %d results.", n)
}

// TotalLabel is the net total label.
func (r Renderer) TotalLabel(total core.Money) string {
	return "Totaling " + r.withCurrency(total.String())
}

func (r Renderer) withCurrency(s string) string {
	if r.Currency == "" {
		return s
	}
	return s + " " + r.Currency
}

// Bind repaints port on every new list and every new total.
func (r Renderer) Bind(port view.Port, views stream.Observable[[]core.TransactionView], totals stream.Observable[core.Money]) []func() {
	return []func(){
		views.Subscribe(func(vs []core.TransactionView) {
			port.ReplaceTransactions(r.Summary(len(vs)), r.Rows(vs))
		}),
		totals.Subscribe(func(m core.Money) {
			port.SetTotal(r.TotalLabel(m))
		}),
	}
}
