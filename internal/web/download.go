package web

import (
	"bytes"
	"errors"
	"mime"
	"net/http"

	"github.com/mohammed-shakir/gapminder-dash/internal/core/observability"
	"github.com/mohammed-shakir/gapminder-dash/internal/dataset"
	"github.com/mohammed-shakir/gapminder-dash/internal/events"
	"github.com/mohammed-shakir/gapminder-dash/internal/filter"
	"github.com/mohammed-shakir/gapminder-dash/internal/logger"
	"github.com/mohammed-shakir/gapminder-dash/internal/render"
	"github.com/mohammed-shakir/gapminder-dash/internal/session"
)

const exportPath = render.ExportFilename

// download streams the rows matching the query's filter as CSV. The ETag is
// the filter fingerprint; the datasets never change while the process runs.
func (a *App) download(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithPage(r.Context(), "about")
	spec, err := filter.Parse(r.URL.Query(), a.defaults)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, filter.ErrInvalidBound) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	fp := filter.Fingerprint(spec)
	etag := `"` + fp + `"`
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	rows := filter.Apply(a.cat.Gapminder.Rows(), spec)
	var buf bytes.Buffer
	if err := render.WriteCSV(&buf, a.cat.Gapminder.Layout(), rows); err != nil {
		a.log.ErrorContext(ctx, "csv export failed", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": render.ExportFilename}))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)

	observability.IncCSVExport()
	observability.ObserveFilterRows(len(rows))
	a.events.Publish(events.Event{
		Type:    events.Export,
		Session: session.FromContext(r.Context()).ID,
		Dataset: dataset.NameGapminder,
		Rows:    len(rows),
		Filter:  fp,
	})
}
