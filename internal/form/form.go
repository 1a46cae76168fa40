// Package form holds the immutable value objects produced by input
// validation: one Field per tracked control and a Form aggregating them.
package form

import (
	"slices"
	"sort"
)

// Names of the tracked controls. They double as DOM ids.
const (
	FieldTransactionType = "transaction-type"
	FieldStart           = "start"
	FieldEnd             = "end"

	// FiltersForm is the name of the filter form.
	FiltersForm = "filters"
)

// State is the type-erased view of a Field used by Form.
type State interface {
	FieldName() string
	HasError() bool
	ValidationError() string
	RawValue() any
}

// Field is the validated value of one input at one point in time.
type Field[T any] struct {
	name  string
	value T
	err   string
}

// NewField returns a valid Field.
func NewField[T any](name string, value T) Field[T] {
	return Field[T]{name: name, value: value}
}

// Invalid returns a Field carrying a validation error.
func Invalid[T any](name string, value T, message string) Field[T] {
	return Field[T]{name: name, value: value, err: message}
}

func (f Field[T]) FieldName() string       { return f.name }
func (f Field[T]) Value() T                { return f.value }
func (f Field[T]) ValidationError() string { return f.err }
func (f Field[T]) HasError() bool          { return f.err != "" }
func (f Field[T]) RawValue() any           { return f.value }

// FormValidationError is a cross-field failure attributed to one field.
type FormValidationError struct {
	FieldName string
	Message   string
}

func (e FormValidationError) Error() string {
	return "Field: " + e.FieldName + " - " + e.Message
}

// Form aggregates the latest Field of every tracked input.
type Form struct {
	name   string
	fields map[string]State
	errors []FormValidationError
}

// New builds a Form; fields and errors are copied.
func New(name string, errs []FormValidationError, fields ...State) Form {
	m := make(map[string]State, len(fields))
	for _, f := range fields {
		m[f.FieldName()] = f
	}
	return Form{name: name, fields: m, errors: slices.Clone(errs)}
}

func (f Form) Name() string { return f.name }

// Errors returns the cross-field errors in insertion order.
func (f Form) Errors() []FormValidationError {
	return slices.Clone(f.errors)
}

// Field returns the named field, if present.
func (f Form) Field(name string) (State, bool) {
	s, ok := f.fields[name]
	return s, ok
}

// HasErrors is true when there is a cross-field error or any field is invalid.
func (f Form) HasErrors() bool {
	if len(f.errors) > 0 {
		return true
	}
	for _, s := range f.fields {
		if s.HasError() {
			return true
		}
	}
	return false
}

// Messages returns every field and form error as display lines, fields
// first in name order.
func (f Form) Messages() []string {
	names := make([]string, 0, len(f.fields))
	for name := range f.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []string
	for _, name := range names {
		if s := f.fields[name]; s.HasError() {
			out = append(out, name+": "+s.ValidationError())
		}
	}
	for _, e := range f.errors {
		out = append(out, e.Error())
	}
	return out
}

// Value returns the typed value of the named field.
func Value[T any](f Form, name string) (T, bool) {
	var zero T
	s, ok := f.fields[name]
	if !ok {
		return zero, false
	}
	v, ok := s.RawValue().(T)
	return v, ok
}
