package export

import (
	"bytes"
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/xuri/excelize/v2"

	"txfilter/internal/core"
)

func views(t *testing.T, txs ...core.Transaction) []core.TransactionView {
	t.Helper()
	out := make([]core.TransactionView, 0, len(txs))
	for _, tx := range txs {
		v, err := tx.View()
		if err != nil {
			t.Fatalf("View(%+v): %v", tx, err)
		}
		out = append(out, v)
	}
	return out
}

func TestWriteXLSX(t *testing.T) {
	vs := views(t,
		core.Transaction{Date: "2019-05-10", IsBuy: true, Quantity: 2, UnitPrice: "10.00"},
		core.Transaction{Date: "2019-05-20", Quantity: 1, UnitPrice: "1234.5"},
	)
	meta := Meta{
		Type:     core.TypeAll,
		Range:    core.DateRange{From: core.NewDate(2019, 5, 1), To: core.NewDate(2019, 5, 31)},
		Currency: "ISK",
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, vs, meta); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	raw := excelize.Options{RawCellValue: true}
	cell := func(sheet, ref string) string {
		t.Helper()
		v, err := f.GetCellValue(sheet, ref, raw)
		if err != nil {
			t.Fatalf("GetCellValue(%s, %s): %v", sheet, ref, err)
		}
		return v
	}
	number := func(sheet, ref string) float64 {
		t.Helper()
		n, err := strconv.ParseFloat(cell(sheet, ref), 64)
		if err != nil {
			t.Fatalf("%s!%s is not a number: %v", sheet, ref, err)
		}
		return n
	}

	if cell(SheetTransactions, "A1") != "Date" || cell(SheetTransactions, "E1") != "Amount" {
		t.Fatal("unexpected header")
	}
	if cell(SheetTransactions, "A2") != "2019-05-10" || cell(SheetTransactions, "B2") != "expense" {
		t.Fatalf("unexpected first row %q %q", cell(SheetTransactions, "A2"), cell(SheetTransactions, "B2"))
	}
	if got := number(SheetTransactions, "E2"); got != -20 {
		t.Fatalf("expense amount = %v, want -20", got)
	}
	if got := number(SheetTransactions, "E3"); got != 1234.5 {
		t.Fatalf("income amount = %v, want 1234.5", got)
	}
	if cell(SheetTransactions, "D4") != "Total" {
		t.Fatalf("missing total label")
	}
	if got := number(SheetTransactions, "E4"); got != 1214.5 {
		t.Fatalf("total = %v, want 1214.5", got)
	}

	if cell(SheetSummary, "B4") != "2" || cell(SheetSummary, "B5") != "1" || cell(SheetSummary, "B7") != "1,214.50" {
		t.Fatalf("unexpected summary %q %q %q", cell(SheetSummary, "B4"), cell(SheetSummary, "B5"), cell(SheetSummary, "B7"))
	}
	if cell(SheetSummary, "B2") != "2019-05-01" || cell(SheetSummary, "B8") != "ISK" {
		t.Fatal("filter metadata missing")
	}
}

func TestWriteXLSX_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, nil, Meta{Type: core.TypeIncome}); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	if v, _ := f.GetCellValue(SheetTransactions, "D2"); v != "Total" {
		t.Fatalf("total row should follow the header, got %q", v)
	}
}

func TestWriteXLSX_TotalOutOfRange(t *testing.T) {
	big := core.TransactionView{Date: core.NewDate(2019, 5, 10), UnitPriceCents: math.MaxInt64 / 2, Quantity: 1}
	var buf bytes.Buffer
	err := WriteXLSX(&buf, []core.TransactionView{big, big, big}, Meta{Type: core.TypeAll})
	if !errors.Is(err, core.ErrAmountOverflow) {
		t.Fatalf("expected ErrAmountOverflow, got %v", err)
	}
}
