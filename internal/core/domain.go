package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeAll     TransactionType = "all"
	TypeExpense TransactionType = "expense"
	TypeIncome  TransactionType = "income"
)

// DateLayout is the canonical calendar date format used across the app.
const DateLayout = "2006-01-02"

type (
	// TransactionType is the public label of the type filter. An "expense"
	// is a buy (is_buy=true) and an "income" is a sell.
	TransactionType string

	Date struct {
		time.Time
	}

	// DateRange is a closed interval of calendar days.
	DateRange struct {
		From Date
		To   Date
	}

	// Transaction is one row of the fetched dataset. It is never mutated.
	Transaction struct {
		Date      string `json:"date"`
		IsBuy     bool   `json:"is_buy"`
		Quantity  int64  `json:"quantity"`
		UnitPrice string `json:"unit_price"`
	}

	// TransactionView is a transaction projected for display.
	TransactionView struct {
		Date            Date
		RawDate         string
		Quantity        int64
		IsBuy           bool
		UnitPrice       string
		TransactionType TransactionType
		UnitPriceCents  int64
		Cost            string // plain decimal, e.g. "1234.50"
		FormattedCost   string // grouped, e.g. "1,234.50"
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidQuantity = errors.New("invalid quantity")
)

var dateLayouts = []string{
	DateLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
}

// ParseDate parses a calendar date, dropping any time of day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// MustParseDate is ParseDate for constants; it panics on error.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Contains reports whether d lies within the closed range.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.From.Time) && !d.After(r.To.Time)
}

// ContainsTime reports whether t falls on any day of the range. The end
// boundary is extended to the end of its day.
func (r DateRange) ContainsTime(t time.Time) bool {
	end := r.To.AddDate(0, 0, 1)
	return !t.Before(r.From.Time) && t.Before(end)
}

func (r DateRange) String() string {
	return r.From.String() + ".." + r.To.String()
}

// ParseTransactionType maps a control value onto a TransactionType.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch t := TransactionType(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeAll, TypeExpense, TypeIncome:
		return t, true
	default:
		return TypeAll, false
	}
}

// TypeOf returns the label of a transaction side.
func TypeOf(isBuy bool) TransactionType {
	if isBuy {
		return TypeExpense
	}
	return TypeIncome
}

// Matches reports whether a transaction side passes the type filter.
func (t TransactionType) Matches(isBuy bool) bool {
	switch t {
	case TypeExpense:
		return isBuy
	case TypeIncome:
		return !isBuy
	default:
		return true
	}
}

func (t TransactionType) String() string {
	return string(t)
}

// UnmarshalJSON accepts unit_price and quantity either as JSON strings or
// numbers. Numbers keep their exact decimal text.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var raw struct {
		Date      string          `json:"date"`
		IsBuy     bool            `json:"is_buy"`
		Quantity  json.Number     `json:"quantity"`
		UnitPrice json.RawMessage `json:"unit_price"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var qty int64
	if raw.Quantity != "" {
		d, err := decimal.NewFromString(raw.Quantity.String())
		if err != nil || !d.IsInteger() {
			return fmt.Errorf("%w: %q", ErrInvalidQuantity, raw.Quantity)
		}
		qty = d.IntPart()
	}

	price := ""
	if p := bytes.TrimSpace(raw.UnitPrice); len(p) > 0 && !bytes.Equal(p, []byte("null")) {
		if p[0] == '"' {
			if err := json.Unmarshal(p, &price); err != nil {
				return fmt.Errorf("unit_price: %w", err)
			}
		} else {
			d, err := decimal.NewFromString(string(p))
			if err != nil {
				return fmt.Errorf("%w: unit_price %s", ErrInvalidPrice, p)
			}
			price = d.String()
		}
	}

	*t = Transaction{Date: raw.Date, IsBuy: raw.IsBuy, Quantity: qty, UnitPrice: price}
	return nil
}

// Validate checks that the transaction can be projected into a view.
func (t Transaction) Validate() error {
	if _, err := ParseDate(t.Date); err != nil {
		return err
	}
	if _, err := ToCents(t.UnitPrice); err != nil {
		return fmt.Errorf("%w: %q", err, t.UnitPrice)
	}
	if t.Quantity < 0 {
		return ErrInvalidQuantity
	}
	if _, err := t.Amount(); err != nil {
		return err
	}
	return nil
}

// Amount is quantity times unit price in cents. A malformed price counts as
// zero.
func (t Transaction) Amount() (int64, error) {
	cents, _ := ToCents(t.UnitPrice)
	cost, err := MulCents(cents, t.Quantity)
	if err != nil {
		return 0, fmt.Errorf("%w: %d x %s", err, t.Quantity, t.UnitPrice)
	}
	return cost, nil
}

// View projects the transaction into its display shape.
func (t Transaction) View() (TransactionView, error) {
	date, err := ParseDate(t.Date)
	if err != nil {
		return TransactionView{}, err
	}
	// A malformed price is carried as zero cents, the view still renders.
	cents, _ := ToCents(t.UnitPrice)
	cost, err := t.Amount()
	if err != nil {
		return TransactionView{}, err
	}
	return TransactionView{
		Date:            date,
		RawDate:         t.Date,
		Quantity:        t.Quantity,
		IsBuy:           t.IsBuy,
		UnitPrice:       t.UnitPrice,
		TransactionType: TypeOf(t.IsBuy),
		UnitPriceCents:  cents,
		Cost:            CentsToDecimalString(cost),
		FormattedCost:   FormatCents(cost),
	}, nil
}
