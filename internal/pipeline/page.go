package pipeline

import (
	"context"
	"fmt"

	"txfilter/internal/core"
	"txfilter/internal/dataset"
	"txfilter/internal/form"
	applog "txfilter/internal/log"
	"txfilter/internal/stream"
	"txfilter/internal/view"
)

// BannerLoadFailed is shown when the dataset cannot be loaded.
const BannerLoadFailed = "Transactions could not be loaded. Please try again later."

// Config holds the per-deployment settings of a page.
type Config struct {
	// Window is the closed range of dates accepted by the date inputs.
	Window   core.DateRange
	Currency string
	Logger   *applog.Logger
}

// Page is one running instance of the filter pipeline bound to a set of
// inputs and a view port.
type Page struct {
	Validation   *Validation
	Dataset      *stream.Subject[[]core.Transaction]
	Transactions *stream.Subject[[]core.TransactionView]
	Total        *stream.Subject[core.Money]

	port    view.Port
	logger  *applog.Logger
	cancels []func()
}

// NewPage wires the pipeline. Nothing is rendered to the result region until
// a dataset is pushed, either through Load or Dataset.Next.
func NewPage(cfg Config, in Inputs, port view.Port) *Page {
	logger := cfg.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	p := &Page{
		Validation: NewValidation(in, form.DateValidator{Window: cfg.Window}, port),
		Dataset:    stream.NewSubject[[]core.Transaction](),
		port:       port,
		logger:     logger.WithComponent(applog.ComponentPipeline),
	}
	p.Transactions = NewFiltering(p.Dataset, p.Validation.Form)
	p.Total = NewTotals(p.Transactions)

	p.cancels = append(p.cancels, p.Validation.Form.Subscribe(func(f form.Form) {
		if f.HasErrors() {
			p.logger.Debug("Form invalid, results cleared",
				applog.FieldOperation, applog.OpValidate,
				"errors", f.Messages())
		}
	}))
	p.cancels = append(p.cancels, Renderer{Currency: cfg.Currency}.Bind(port, p.Transactions, p.Total)...)
	return p
}

// Load fetches the dataset once and pushes it into the pipeline. On failure
// the port shows a banner and the error is returned; the form keeps working.
func (p *Page) Load(ctx context.Context, src dataset.Source) error {
	txs, err := src.ListTransactions(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "Dataset load failed", applog.FieldOperation, applog.OpLoad, applog.FieldError, err)
		p.port.ShowBanner(BannerLoadFailed)
		return fmt.Errorf("load dataset: %w", err)
	}
	p.logger.DebugContext(ctx, "Dataset loaded", applog.FieldOperation, applog.OpLoad, applog.FieldCount, len(txs))
	p.Dataset.Next(txs)
	return nil
}

// Result returns the latest filtered list, its total and the form that
// produced it. ok is false until both dataset and form have emitted.
func (p *Page) Result() (views []core.TransactionView, total core.Money, f form.Form, ok bool) {
	views, ok = p.Transactions.Value()
	if !ok {
		return nil, core.Money{}, form.Form{}, false
	}
	total, _ = p.Total.Value()
	f, _ = p.Validation.Form.Value()
	return views, total, f, true
}

// Close releases the inputs and stops rendering.
func (p *Page) Close() {
	for _, cancel := range p.cancels {
		cancel()
	}
	p.cancels = nil
	p.Validation.Close()
	p.Dataset.Close()
	p.Transactions.Close()
	p.Total.Close()
}
