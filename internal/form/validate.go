package form

import (
	"fmt"

	"txfilter/internal/core"
)

// Validation messages shown next to the controls.
const (
	MsgInvalidDate    = "Not a valid date string."
	MsgEndBeforeStart = "End date cannot be before the start date"
)

// ValidateTransactionType never fails; unknown values fall back to all.
func ValidateTransactionType(raw string) Field[core.TransactionType] {
	t, _ := core.ParseTransactionType(raw)
	return NewField(FieldTransactionType, t)
}

// DateValidator validates date inputs against a closed window of days.
type DateValidator struct {
	Window core.DateRange
}

// Validate parses raw and checks it against the window.
func (v DateValidator) Validate(name, raw string) Field[core.Date] {
	d, err := core.ParseDate(raw)
	if err != nil {
		return Invalid(name, core.Date{}, MsgInvalidDate)
	}
	if !v.Window.Contains(d) {
		return Invalid(name, d, v.OutOfRangeMessage())
	}
	return NewField(name, d)
}

// OutOfRangeMessage is the error for dates outside the window.
func (v DateValidator) OutOfRangeMessage() string {
	return fmt.Sprintf("Date must be between %s and %s", v.Window.From, v.Window.To)
}

// Build combines the latest fields into the filters form and applies the
// cross-field rule. The ordering check only runs when both dates are valid,
// so a parse failure never produces a second, misleading error.
func Build(typ Field[core.TransactionType], start, end Field[core.Date]) Form {
	var errs []FormValidationError
	if !start.HasError() && !end.HasError() && end.Value().Before(start.Value().Time) {
		errs = append(errs, FormValidationError{FieldName: end.FieldName(), Message: MsgEndBeforeStart})
	}
	return New(FiltersForm, errs, typ, start, end)
}
