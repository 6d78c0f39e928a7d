package web

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mohammed-shakir/gapminder-dash/internal/reactive"
	"github.com/mohammed-shakir/gapminder-dash/internal/render"
	"github.com/mohammed-shakir/gapminder-dash/internal/session"
)

var funcs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
	// fragment and href unwrap output values, see present
	"fragment": func(v any) template.HTML {
		switch x := v.(type) {
		case template.HTML:
			return x
		case errorOutput:
			return x.HTML
		}
		return ""
	},
	"href": func(v any) string {
		if s, ok := v.(string); ok {
			return s
		}
		return ""
	},
	"sortKey": func(t render.Table, col string) string {
		// clicking the active ascending column flips it
		if t.SortBy == col && !t.Desc {
			return "-" + col
		}
		return col
	},
	"sortMark": func(t render.Table, col string) string {
		if t.SortBy != col {
			return ""
		}
		if t.Desc {
			return "▼"
		}
		return "▲"
	},
}

var titler = cases.Title(language.English)

func titleCase(s string) string { return titler.String(s) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// coord prints a submitted coordinate, falling back to the text as typed when
// it did not parse.
func coord(v float64, typed string) string {
	if math.IsNaN(v) {
		return typed
	}
	return ftoa(v)
}

func itoa(n int) string { return strconv.Itoa(n) }

type alertView struct {
	Level   string
	Message string
}

func (a *App) fragment(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := a.frags.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

func (a *App) alert(level, msg string) (template.HTML, error) {
	return a.fragment("alert", alertView{Level: level, Message: msg})
}

// chart draws fig as inline SVG; a figure with nothing to draw becomes an info alert.
func (a *App) chart(fig render.Figure) (template.HTML, error) {
	var buf bytes.Buffer
	buf.WriteString(`<figure class="chart">`)
	err := render.SVG(&buf, fig)
	if errors.Is(err, render.ErrNoData) {
		return a.alert("info", "No data to display")
	}
	if err != nil {
		return "", err
	}
	buf.WriteString(`</figure>`)
	return template.HTML(buf.String()), nil
}

// present turns graph results into what templates and the update API show:
// fragments and strings pass through, failures become inline danger alerts.
func (a *App) present(results map[string]reactive.Result, names []string) map[string]any {
	out := make(map[string]any, len(names))
	for _, name := range names {
		res, ok := results[name]
		if !ok {
			continue
		}
		if res.Err != nil {
			html, err := a.alert("danger", res.Err.Error())
			if err != nil {
				html = template.HTML(template.HTMLEscapeString(res.Err.Error()))
			}
			out[name] = errorOutput{HTML: html, Err: res.Err}
			continue
		}
		out[name] = res.Value
	}
	return out
}

// errorOutput marks a failed output; templates render its HTML, the API reports its Err.
type errorOutput struct {
	HTML template.HTML
	Err  error
}

type pageView struct {
	Title    string
	Active   string
	Page     string
	LoggedIn bool
	Error    string
	Out      map[string]any
	Data     any
}

func (a *App) render(w http.ResponseWriter, r *http.Request, status int, page string, v pageView) {
	t, ok := a.pages[page]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}
	v.LoggedIn = session.FromContext(r.Context()).LoggedIn
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
		a.log.ErrorContext(r.Context(), "render page failed", "page", page, "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
