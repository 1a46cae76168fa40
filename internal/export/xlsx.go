// Package export writes filtered transactions to spreadsheet files.
package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"txfilter/internal/core"
)

const (
	SheetTransactions = "Transactions"
	SheetSummary      = "Summary"

	// numFmtAmount is the builtin "#,##0.00" format.
	numFmtAmount = 4
)

var header = []any{"Date", "Type", "Quantity", "Unit Price", "Amount"}

// Meta describes the filter that produced an export.
type Meta struct {
	Type     core.TransactionType
	Range    core.DateRange
	Currency string
}

// WriteXLSX writes views as a workbook with a transactions sheet and a
// summary sheet. Expense amounts are negative, like the on-screen total.
func WriteXLSX(w io.Writer, views []core.TransactionView, meta Meta) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetTransactions); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	amount, err := f.NewStyle(&excelize.Style{NumFmt: numFmtAmount})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := f.SetSheetRow(SheetTransactions, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(SheetTransactions, 1, 1, bold); err != nil {
		return err
	}

	for i, v := range views {
		cost, err := signedCost(v)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{
			v.Date.String(),
			string(v.TransactionType),
			v.Quantity,
			centsToFloat(v.UnitPriceCents),
			centsToFloat(cost),
		}
		if err := f.SetSheetRow(SheetTransactions, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	totalRow := len(views) + 2
	total, err := core.SumAmounts(views)
	if err != nil {
		return fmt.Errorf("total: %w", err)
	}
	label, _ := excelize.CoordinatesToCellName(4, totalRow)
	value, _ := excelize.CoordinatesToCellName(5, totalRow)
	if err := f.SetCellValue(SheetTransactions, label, "Total"); err != nil {
		return err
	}
	if err := f.SetCellValue(SheetTransactions, value, centsToFloat(total.Cents)); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetTransactions, "D2", value, amount); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetTransactions, label, label, bold); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetTransactions, "A", "E", 14); err != nil {
		return err
	}

	if err := writeSummary(f, views, total, meta, bold); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, views []core.TransactionView, total core.Money, meta Meta, bold int) error {
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	counts := core.CountByType(views)
	rows := [][]any{
		{"Type", string(meta.Type)},
		{"From", meta.Range.From.String()},
		{"To", meta.Range.To.String()},
		{"Results", len(views)},
		{"Expenses", counts.Expenses},
		{"Incomes", counts.Incomes},
		{"Total", total.String()},
		{"Currency", meta.Currency},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SheetSummary, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetColStyle(SheetSummary, "A", bold); err != nil {
		return err
	}
	return f.SetColWidth(SheetSummary, "A", "B", 14)
}

func signedCost(v core.TransactionView) (int64, error) {
	cost, err := core.MulCents(v.UnitPriceCents, v.Quantity)
	if v.IsBuy {
		cost = -cost
	}
	return cost, err
}

func centsToFloat(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}
