package view

import (
	"fmt"
	"io"
	"slices"
	"sync"

	"txfilter/internal/form"
)

// PageState is a snapshot of everything rendered on the filter page.
type PageState struct {
	FieldErrors map[string]string
	FormErrors  []string
	Summary     string
	Rows        []Row
	Total       string
	Banner      string
}

// Invalid reports whether the field currently shows an error.
func (s PageState) Invalid(field string) bool {
	return s.FieldErrors[field] != ""
}

// FieldError returns the message shown next to field.
func (s PageState) FieldError(field string) string {
	return s.FieldErrors[field]
}

// WriteText prints the state as plain text, one row per line.
func (s PageState) WriteText(w io.Writer) error {
	if s.Banner != "" {
		if _, err := fmt.Fprintf(w, "!! %s\n", s.Banner); err != nil {
			return err
		}
	}
	for _, field := range []string{form.FieldStart, form.FieldEnd} {
		if msg := s.FieldErrors[field]; msg != "" {
			if _, err := fmt.Fprintf(w, "%s: %s\n", field, msg); err != nil {
				return err
			}
		}
	}
	for _, line := range s.FormErrors {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, s.Summary); err != nil {
		return err
	}
	for _, r := range s.Rows {
		if _, err := fmt.Fprintf(w, "%-7s %-24s %s\n", r.Date, r.BreakDown, r.Amount); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, s.Total)
	return err
}

// Page is a Port that keeps the rendered state in memory, for server-side
// templates and for the CLI.
type Page struct {
	mu    sync.Mutex
	state PageState
}

var _ Port = (*Page)(nil)

// NewPage returns an empty page.
func NewPage() *Page {
	return &Page{state: PageState{FieldErrors: map[string]string{}}}
}

func (p *Page) SetFieldState(field, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if message == "" {
		delete(p.state.FieldErrors, field)
		return
	}
	p.state.FieldErrors[field] = message
}

func (p *Page) SetFormErrors(lines []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.FormErrors = slices.Clone(lines)
}

func (p *Page) ReplaceTransactions(summary string, rows []Row) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Summary = summary
	p.state.Rows = slices.Clone(rows)
}

func (p *Page) SetTotal(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Total = label
}

func (p *Page) ShowBanner(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Banner = message
}

// State returns a copy of the current state.
func (p *Page) State() PageState {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.state
	s.FieldErrors = make(map[string]string, len(p.state.FieldErrors))
	for k, v := range p.state.FieldErrors {
		s.FieldErrors[k] = v
	}
	s.FormErrors = slices.Clone(p.state.FormErrors)
	s.Rows = slices.Clone(p.state.Rows)
	return s
}
