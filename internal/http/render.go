package http

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"

	"txfilter/internal/core"
	"txfilter/internal/form"
	applog "txfilter/internal/log"
	"txfilter/internal/view"
)

var templateFuncs = template.FuncMap{
	"neg": func(s string) bool { return strings.HasPrefix(s, "-") },
}

type typeOption struct {
	Value    string
	Label    string
	Selected bool
}

// pageData feeds index.html and the results fragment.
type pageData struct {
	Params    FilterParams
	Types     []typeOption
	Min, Max  string
	State     view.PageState
	ExportURL string
	JSONURL   string
	FieldType string
	FieldFrom string
	FieldTo   string
}

func (s *Server) newPageData(res filterResult) pageData {
	typ, _ := core.ParseTransactionType(res.Params.Type)
	types := make([]typeOption, 0, 3)
	for _, t := range []core.TransactionType{core.TypeAll, core.TypeExpense, core.TypeIncome} {
		types = append(types, typeOption{
			Value:    string(t),
			Label:    strings.ToUpper(string(t[:1])) + string(t[1:]),
			Selected: t == typ,
		})
	}
	q := res.Params.Query()
	return pageData{
		Params:    res.Params,
		Types:     types,
		Min:       s.opts.Window.From.String(),
		Max:       s.opts.Window.To.String(),
		State:     res.State,
		ExportURL: "/export.xlsx?" + q,
		JSONURL:   "/results.json?" + q,
		FieldType: form.FieldTransactionType,
		FieldFrom: form.FieldStart,
		FieldTo:   form.FieldEnd,
	}
}

func (s *Server) renderTemplate(w http.ResponseWriter, r *http.Request, name string, data any, status int) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.templateError(w, r, err)
		return
	}
	NewHTMXResponse().Status(status).BodyHTML(buf.Bytes()).Write(w)
}

func (s *Server) templateError(w http.ResponseWriter, r *http.Request, err error) {
	applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template render failed",
		applog.FieldOperation, applog.OpRender, applog.FieldError, err)
	ErrorResponse(http.StatusInternalServerError, "Rendering failed").Write(w)
}
