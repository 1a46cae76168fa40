package google

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"txfilter/internal/core"
)

// parseTransactions converts a values matrix (as returned by the Sheets API)
// into transactions. The first row must hold the headers; column order is
// free. It returns the number of data rows that were skipped.
func parseTransactions(values [][]any) ([]core.Transaction, int, error) {
	if len(values) == 0 {
		return []core.Transaction{}, 0, nil
	}
	headers := toStrings(values[0])
	cols := map[string]int{}
	var missing []string
	for _, h := range []string{HeaderDate, HeaderIsBuy, HeaderQuantity, HeaderUnitPrice} {
		idx := indexOf(headers, h)
		if idx == -1 {
			missing = append(missing, h)
		}
		cols[h] = idx
	}
	if len(missing) > 0 {
		return nil, 0, fmt.Errorf("unexpected header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	out := make([]core.Transaction, 0, len(values)-1)
	skipped := 0
	for _, row := range values[1:] {
		if isBlank(row) {
			continue
		}
		tx, ok := parseRow(row, cols)
		if !ok {
			skipped++
			continue
		}
		out = append(out, tx)
	}
	return out, skipped, nil
}

func parseRow(row []any, cols map[string]int) (core.Transaction, bool) {
	isBuy, ok := parseBool(cellString(row, cols[HeaderIsBuy]))
	if !ok {
		return core.Transaction{}, false
	}
	qty, err := strconv.ParseInt(cellString(row, cols[HeaderQuantity]), 10, 64)
	if err != nil {
		return core.Transaction{}, false
	}
	tx := core.Transaction{
		Date:      cellString(row, cols[HeaderDate]),
		IsBuy:     isBuy,
		Quantity:  qty,
		UnitPrice: cellString(row, cols[HeaderUnitPrice]),
	}
	if tx.Validate() != nil {
		return core.Transaction{}, false
	}
	return tx, true
}

func formatRow(tx core.Transaction) []any {
	return []any{tx.Date, tx.IsBuy, tx.Quantity, tx.UnitPrice}
}

// cellString renders a cell as text. Numbers keep their shortest exact
// decimal form instead of float formatting.
func cellString(row []any, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	switch v := row[idx].(type) {
	case float64:
		return decimal.NewFromFloat(v).String()
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "buy", "expense":
		return true, true
	case "false", "no", "n", "0", "sell", "income":
		return false, true
	}
	return false, false
}

func isBlank(row []any) bool {
	for i := range row {
		if cellString(row, i) != "" {
			return false
		}
	}
	return true
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}
