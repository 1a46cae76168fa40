// Package pipeline wires form input, the dataset and a view port into the
// reactive filter pipeline:
//
//	inputs -> Fields -> Form -+
//	                           +-> filtered views -> rows, total -> Port
//	dataset ------------------+
//
// Everything runs synchronously on the goroutine that emitted the change.
package pipeline

import (
	"txfilter/internal/core"
	"txfilter/internal/form"
	"txfilter/internal/stream"
	"txfilter/internal/view"
)

// Inputs are the tracked controls of the filter form.
type Inputs struct {
	Type  view.Input
	Start view.Input
	End   view.Input
}

// Validation turns input events into Fields and Forms.
type Validation struct {
	Type  *stream.Subject[form.Field[core.TransactionType]]
	Start *stream.Subject[form.Field[core.Date]]
	End   *stream.Subject[form.Field[core.Date]]
	Form  *stream.Subject[form.Form]

	cancels []func()
}

// NewValidation reads the current value of every input, validates it, and
// keeps re-validating on each change. Date field states and form errors are
// pushed to port as they are produced.
func NewValidation(in Inputs, dates form.DateValidator, port view.Port) *Validation {
	v := &Validation{
		Type:  stream.NewSubject[form.Field[core.TransactionType]](),
		Start: stream.NewSubject[form.Field[core.Date]](),
		End:   stream.NewSubject[form.Field[core.Date]](),
	}

	showField := func(f form.Field[core.Date]) {
		port.SetFieldState(f.FieldName(), f.ValidationError())
	}
	v.cancels = append(v.cancels, v.Start.Subscribe(showField), v.End.Subscribe(showField))

	v.Form = stream.CombineLatest3[form.Field[core.TransactionType], form.Field[core.Date], form.Field[core.Date], form.Form](
		v.Type, v.Start, v.End, form.Build)
	v.cancels = append(v.cancels, v.Form.Subscribe(func(f form.Form) {
		errs := f.Errors()
		lines := make([]string, 0, len(errs))
		for _, e := range errs {
			lines = append(lines, e.Error())
		}
		port.SetFormErrors(lines)
	}))

	v.bind(in.Type, func(raw string) { v.Type.Next(form.ValidateTransactionType(raw)) })
	v.bind(in.Start, func(raw string) { v.Start.Next(dates.Validate(form.FieldStart, raw)) })
	v.bind(in.End, func(raw string) { v.End.Next(dates.Validate(form.FieldEnd, raw)) })
	return v
}

func (v *Validation) bind(in view.Input, validate func(string)) {
	if in == nil {
		in = view.NewControl("")
	}
	validate(in.Value())
	v.cancels = append(v.cancels, in.OnChange(validate))
}

// Close detaches from the inputs and stops all emissions.
func (v *Validation) Close() {
	for _, cancel := range v.cancels {
		cancel()
	}
	v.cancels = nil
	v.Type.Close()
	v.Start.Close()
	v.End.Close()
	v.Form.Close()
}
