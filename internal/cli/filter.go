package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"txfilter/internal/core"
	"txfilter/internal/dataset"
	"txfilter/internal/export"
	"txfilter/internal/form"
	applog "txfilter/internal/log"
	"txfilter/internal/pipeline"
	"txfilter/internal/view"
)

// ErrInvalidFilter is returned when the filter inputs fail validation. The
// rendered errors have already been written to the output.
var ErrInvalidFilter = errors.New("invalid filter")

type filterOptions struct {
	txType string
	start  string
	end    string
	format string
	output string
}

func filterCmd(a *app) *cobra.Command {
	var opts filterOptions

	c := &cobra.Command{
		Use:   "filter",
		Short: "Filter the dataset once and print the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			window, err := a.cfg.Window()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("start") {
				opts.start = window.From.String()
			}
			if !cmd.Flags().Changed("end") {
				opts.end = window.To.String()
			}

			res, err := OpenBackend(cmd.Context(), a.cfg, a.logger, nil)
			if err != nil {
				return err
			}
			defer res.Close()

			cfg := pipeline.Config{Window: window, Currency: a.cfg.Currency, Logger: a.logger}
			return runFilter(cmd.Context(), res.Source, cfg, opts, cmd.OutOrStdout())
		},
	}
	c.Flags().StringVarP(&opts.txType, "type", "t", string(core.TypeAll), "transaction type: all|expense|income")
	c.Flags().StringVar(&opts.start, "start", "", "first day, YYYY-MM-DD (default: start of the window)")
	c.Flags().StringVar(&opts.end, "end", "", "last day, YYYY-MM-DD (default: end of the window)")
	c.Flags().StringVarP(&opts.format, "format", "o", "text", "output format: text|json|xlsx")
	c.Flags().StringVar(&opts.output, "output", "", "write to this file instead of stdout (required for xlsx)")
	return c
}

// runFilter drives one pipeline page headlessly: the flags are the control
// values and an in-memory page is the view port.
func runFilter(ctx context.Context, src dataset.Source, cfg pipeline.Config, opts filterOptions, stdout io.Writer) error {
	switch opts.format {
	case "text", "json":
	case "xlsx":
		if opts.output == "" {
			return errors.New("xlsx output requires --output")
		}
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}

	port := view.NewPage()
	page := pipeline.NewPage(cfg, pipeline.Inputs{
		Type:  view.NewControl(opts.txType),
		Start: view.NewControl(opts.start),
		End:   view.NewControl(opts.end),
	}, port)
	defer page.Close()

	loadErr := page.Load(ctx, src)
	views, _, f, ok := page.Result()
	if !ok {
		f, _ = page.Validation.Form.Value()
	}

	state := port.State()
	if loadErr != nil || f.HasErrors() {
		if err := state.WriteText(stdout); err != nil {
			return err
		}
		if loadErr != nil {
			return loadErr
		}
		return ErrInvalidFilter
	}

	out := stdout
	if opts.output != "" {
		file, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	switch opts.format {
	case "json":
		return writeJSON(out, views, state)
	case "xlsx":
		typ, _ := form.Value[core.TransactionType](f, form.FieldTransactionType)
		from, _ := form.Value[core.Date](f, form.FieldStart)
		to, _ := form.Value[core.Date](f, form.FieldEnd)
		if err := export.WriteXLSX(out, views, export.Meta{
			Type:     typ,
			Range:    core.DateRange{From: from, To: to},
			Currency: cfg.Currency,
		}); err != nil {
			return err
		}
		if cfg.Logger != nil {
			cfg.Logger.Info("Transactions exported",
				applog.FieldOperation, applog.OpExport,
				applog.FieldCount, len(views),
				"file", opts.output)
		}
		return nil
	default:
		return state.WriteText(out)
	}
}

type jsonRow struct {
	Date      string `json:"date"`
	Type      string `json:"type"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Cost      string `json:"cost"`
}

func writeJSON(w io.Writer, views []core.TransactionView, state view.PageState) error {
	rows := make([]jsonRow, 0, len(views))
	for _, v := range views {
		rows = append(rows, jsonRow{
			Date:      v.Date.String(),
			Type:      string(v.TransactionType),
			Quantity:  v.Quantity,
			UnitPrice: v.UnitPrice,
			Cost:      v.Cost,
		})
	}
	total, err := core.SumAmounts(views)
	if err != nil {
		return fmt.Errorf("total: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"summary":      state.Summary,
		"total":        state.Total,
		"total_cents":  total.Cents,
		"transactions": rows,
	})
}
