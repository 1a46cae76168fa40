package http

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"

	"txfilter/internal/core"
	"txfilter/internal/form"
)

// maxParamLen bounds every query value before validation.
const maxParamLen = 64

var strictPolicy = bluemonday.StrictPolicy()

// FilterParams are the raw filter inputs of one request.
type FilterParams struct {
	Type  string
	Start string
	End   string
}

// ParseFilterParams reads the filter inputs from query. Missing parameters
// take the initial form values: all types over the whole window. Present
// but empty values are kept so that validation reports them.
func ParseFilterParams(query url.Values, window core.DateRange) FilterParams {
	p := FilterParams{
		Type:  string(core.TypeAll),
		Start: window.From.String(),
		End:   window.To.String(),
	}
	if query.Has(form.FieldTransactionType) {
		p.Type = sanitizeInput(query.Get(form.FieldTransactionType))
	}
	if query.Has(form.FieldStart) {
		p.Start = sanitizeInput(query.Get(form.FieldStart))
	}
	if query.Has(form.FieldEnd) {
		p.End = sanitizeInput(query.Get(form.FieldEnd))
	}
	return p
}

// Query encodes p back into a query string.
func (p FilterParams) Query() string {
	v := url.Values{}
	v.Set(form.FieldTransactionType, p.Type)
	v.Set(form.FieldStart, p.Start)
	v.Set(form.FieldEnd, p.End)
	return v.Encode()
}

// sanitizeInput strips markup and control characters, trims whitespace and
// truncates to maxParamLen runes.
func sanitizeInput(s string) string {
	s = strictPolicy.Sanitize(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxParamLen {
		s = string(r[:maxParamLen])
	}
	return s
}
