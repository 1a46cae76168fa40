package pipeline

import (
	"txfilter/internal/core"
	"txfilter/internal/form"
	"txfilter/internal/stream"
)

// Filter applies a validated form to the dataset. A form with any error
// yields an empty, non-nil list; otherwise transactions are kept by type,
// then by date range, then projected, preserving dataset order.
// Transactions with unparseable dates are dropped.
func Filter(data []core.Transaction, f form.Form) []core.TransactionView {
	out := []core.TransactionView{}
	if f.HasErrors() {
		return out
	}
	typ, _ := form.Value[core.TransactionType](f, form.FieldTransactionType)
	start, okStart := form.Value[core.Date](f, form.FieldStart)
	end, okEnd := form.Value[core.Date](f, form.FieldEnd)
	if !okStart || !okEnd {
		return out
	}
	rng := core.DateRange{From: start, To: end}

	for _, tx := range data {
		if !typ.Matches(tx.IsBuy) {
			continue
		}
		v, err := tx.View()
		if err != nil {
			continue
		}
		if !rng.ContainsTime(v.Date.Time) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// NewFiltering re-runs Filter whenever the dataset or the form changes.
func NewFiltering(data stream.Observable[[]core.Transaction], forms stream.Observable[form.Form]) *stream.Subject[[]core.TransactionView] {
	return stream.CombineLatest2[[]core.Transaction, form.Form, []core.TransactionView](data, forms, Filter)
}

// NewTotals sums every filtered list.
func NewTotals(views stream.Observable[[]core.TransactionView]) *stream.Subject[core.Money] {
	return stream.Map[[]core.TransactionView, core.Money](views, core.Total)
}
