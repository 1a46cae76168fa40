package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"txfilter/internal/core"
	"txfilter/internal/dataset"
	"txfilter/internal/export"
	"txfilter/internal/form"
	applog "txfilter/internal/log"
	"txfilter/internal/pipeline"
	"txfilter/internal/view"
)

// filterResult is one run of the pipeline for a request.
type filterResult struct {
	Params  FilterParams
	State   view.PageState
	Views   []core.TransactionView
	Total   core.Money
	Form    form.Form
	LoadErr error
}

// Invalid reports whether the form carried any error.
func (res filterResult) Invalid() bool {
	return res.Form.HasErrors()
}

// runFilter builds a pipeline page bound to the request's inputs, loads the
// dataset once and returns what the page rendered.
func (s *Server) runFilter(ctx context.Context, params FilterParams) filterResult {
	logger := applog.FromContext(ctx)
	port := view.NewPage()
	in := pipeline.Inputs{
		Type:  view.NewControl(params.Type),
		Start: view.NewControl(params.Start),
		End:   view.NewControl(params.End),
	}
	page := pipeline.NewPage(pipeline.Config{
		Window:   s.opts.Window,
		Currency: s.opts.Currency,
		Logger:   logger,
	}, in, port)
	defer page.Close()

	loadCtx, cancel := context.WithTimeout(ctx, s.opts.LoadTimeout)
	defer cancel()

	start := time.Now()
	res := filterResult{Params: params}
	res.LoadErr = page.Load(loadCtx, s.source)
	res.Views, res.Total, res.Form, _ = page.Result()
	if res.LoadErr != nil {
		// The form still validates without a dataset.
		res.Form, _ = page.Validation.Form.Value()
	}
	res.State = port.State()

	logger.DebugContext(ctx, "Filter applied",
		applog.FieldOperation, applog.OpFilter,
		applog.FieldTxType, params.Type,
		applog.FieldStart, params.Start,
		applog.FieldEnd, params.End,
		applog.FieldCount, len(res.Views),
		applog.FieldTotalCents, res.Total.Cents,
		applog.FieldDuration, time.Since(start).Milliseconds())
	return res
}

func (s *Server) params(r *http.Request) FilterParams {
	return ParseFilterParams(r.URL.Query(), s.opts.Window)
}

// handleIndex renders the full filter page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	res := s.runFilter(r.Context(), s.params(r))
	s.renderTemplate(w, r, "index.html", s.newPageData(res), http.StatusOK)
}

// handleResults renders the result fragment swapped in by htmx on every
// control change. Field errors travel as out-of-band swaps.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	res := s.runFilter(r.Context(), s.params(r))

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "results-fragment", s.newPageData(res)); err != nil {
		s.templateError(w, r, err)
		return
	}
	b := NewHTMXResponse().BodyHTML(buf.Bytes())
	if res.LoadErr != nil {
		b.TriggerErrorNotification(pipeline.BannerLoadFailed)
	} else {
		b.TriggerResultsUpdated(len(res.Views), res.State.Total)
	}
	b.Write(w)
}

type transactionJSON struct {
	Date      string `json:"date"`
	Type      string `json:"type"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Cost      string `json:"cost"`
}

type filterResponse struct {
	Type         string            `json:"type"`
	Start        string            `json:"start"`
	End          string            `json:"end"`
	Count        int               `json:"count"`
	Total        string            `json:"total"`
	TotalCents   int64             `json:"total_cents"`
	Currency     string            `json:"currency,omitempty"`
	Transactions []transactionJSON `json:"transactions"`
}

// handleJSON returns the filtered transactions. Invalid filters answer 422
// with the validation messages.
func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	res := s.runFilter(r.Context(), s.params(r))
	if res.Invalid() {
		JSONError(http.StatusUnprocessableEntity, "invalid filter", map[string]any{
			"field_errors": res.State.FieldErrors,
			"form_errors":  res.State.FormErrors,
		}).Write(w)
		return
	}
	if res.LoadErr != nil {
		JSONError(http.StatusServiceUnavailable, pipeline.BannerLoadFailed, nil).Write(w)
		return
	}

	total, err := core.SumAmounts(res.Views)
	if err != nil {
		JSONError(http.StatusInternalServerError, "total out of range", nil).Write(w)
		return
	}
	typ, _ := form.Value[core.TransactionType](res.Form, form.FieldTransactionType)
	out := filterResponse{
		Type:         string(typ),
		Start:        res.Params.Start,
		End:          res.Params.End,
		Count:        len(res.Views),
		Total:        total.String(),
		TotalCents:   total.Cents,
		Currency:     s.opts.Currency,
		Transactions: make([]transactionJSON, 0, len(res.Views)),
	}
	for _, v := range res.Views {
		out.Transactions = append(out.Transactions, transactionJSON{
			Date:      v.Date.String(),
			Type:      string(v.TransactionType),
			Quantity:  v.Quantity,
			UnitPrice: v.UnitPrice,
			Cost:      v.Cost,
		})
	}
	NewHTMXResponse().BodyJSON(out).Write(w)
}

// handleDataset serves the unfiltered dataset as an envelope, the format
// the remote backend reads.
func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.LoadTimeout)
	defer cancel()

	txs, err := s.source.ListTransactions(ctx)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Dataset load failed", applog.FieldOperation, applog.OpLoad, applog.FieldError, err)
		JSONError(http.StatusServiceUnavailable, pipeline.BannerLoadFailed, nil).Write(w)
		return
	}
	var buf bytes.Buffer
	if err := dataset.Encode(&buf, txs); err != nil {
		JSONError(http.StatusInternalServerError, "encoding failed", nil).Write(w)
		return
	}
	NewHTMXResponse().Header("Content-Type", "application/json").Body(buf.Bytes()).Write(w)
}

// handleExport streams the filtered transactions as an xlsx workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res := s.runFilter(ctx, s.params(r))
	if res.Invalid() {
		UnprocessableEntityError(res.Form.Messages()).Write(w)
		return
	}
	if res.LoadErr != nil {
		ErrorResponse(http.StatusServiceUnavailable, pipeline.BannerLoadFailed).Write(w)
		return
	}

	typ, _ := form.Value[core.TransactionType](res.Form, form.FieldTransactionType)
	from, _ := form.Value[core.Date](res.Form, form.FieldStart)
	to, _ := form.Value[core.Date](res.Form, form.FieldEnd)

	var buf bytes.Buffer
	err := export.WriteXLSX(&buf, res.Views, export.Meta{
		Type:     typ,
		Range:    core.DateRange{From: from, To: to},
		Currency: s.opts.Currency,
	})
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Export failed", applog.FieldOperation, applog.OpExport, applog.FieldError, err)
		ErrorResponse(http.StatusInternalServerError, "Export failed").Write(w)
		return
	}

	applog.FromContext(ctx).InfoContext(ctx, "Transactions exported",
		applog.FieldOperation, applog.OpExport,
		applog.FieldCount, len(res.Views))
	NewHTMXResponse().
		Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet").
		Header("Content-Disposition", fmt.Sprintf(`attachment; filename="transactions-%s-%s.xlsx"`, from, to)).
		Body(buf.Bytes()).
		Write(w)
}

// UnprocessableEntityError lists validation messages as an HTML fragment.
func UnprocessableEntityError(messages []string) *HTMXResponseBuilder {
	msg := "Invalid filter"
	for _, m := range messages {
		msg += "; " + m
	}
	return ErrorResponse(http.StatusUnprocessableEntity, msg)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewHTMXResponse().BodyJSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the templates and the dataset backend.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.LoadTimeout)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{"templates": "ok", "dataset": "ok"}
	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	if s.opts.Ready != nil {
		if err := s.opts.Ready(ctx); err != nil {
			msg := "failed: " + err.Error()
			if errors.Is(err, context.DeadlineExceeded) {
				msg = "failed: timeout"
			}
			checks["dataset"] = msg
			status, code = "not_ready", http.StatusServiceUnavailable
		}
	}
	NewHTMXResponse().Status(code).BodyJSON(map[string]any{
		"status": status,
		"checks": checks,
	}).Write(w)
}
