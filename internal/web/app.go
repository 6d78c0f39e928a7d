// Package web serves the dashboard pages and the reactive update endpoint.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/gapminder-dash/internal/dataset"
	"github.com/mohammed-shakir/gapminder-dash/internal/events"
	"github.com/mohammed-shakir/gapminder-dash/internal/filter"
	"github.com/mohammed-shakir/gapminder-dash/internal/reactive"
	"github.com/mohammed-shakir/gapminder-dash/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Geocoder resolves a point to a country name; *geocode.Resolver satisfies it.
type Geocoder interface {
	Country(ctx context.Context, lat, lon float64) string
}

type Option func(*App)

func WithEvents(p events.Publisher) Option {
	return func(a *App) {
		if p != nil {
			a.events = p
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.log = l
		}
	}
}

// App holds the loaded datasets and everything the handlers share. It is
// read-only after New; per-user state lives in the session.
type App struct {
	cat      *dataset.Catalog
	geo      Geocoder
	sess     *session.Manager
	events   events.Publisher
	log      *slog.Logger
	pages    map[string]*template.Template
	frags    *template.Template
	graph    *reactive.Graph
	defaults filter.Spec
}

func New(cat *dataset.Catalog, geo Geocoder, sess *session.Manager, opts ...Option) (*App, error) {
	if cat == nil || cat.Gapminder == nil || cat.Iris == nil {
		return nil, errors.New("web: datasets are required")
	}
	if geo == nil || sess == nil {
		return nil, errors.New("web: geocoder and session manager are required")
	}
	a := &App{
		cat:      cat,
		geo:      geo,
		sess:     sess,
		events:   events.Nop{},
		log:      slog.Default(),
		pages:    make(map[string]*template.Template),
		defaults: filter.FromBounds(cat.Gapminder.Bounds()),
	}
	for _, o := range opts {
		o(a)
	}

	frags, err := template.New("fragments").Funcs(funcs).ParseFS(templateFS, "templates/fragments.html")
	if err != nil {
		return nil, fmt.Errorf("parse fragments: %w", err)
	}
	a.frags = frags
	for _, name := range []string{"login", "about", "input", "output", "explore"} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s page: %w", name, err)
		}
		a.pages[name] = t
	}

	if a.graph, err = a.buildGraph(); err != nil {
		return nil, fmt.Errorf("build update graph: %w", err)
	}
	return a, nil
}

// Mount registers every dashboard route on r.
func (a *App) Mount(r chi.Router) {
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))
	// unknown paths go through the gate as well
	r.NotFound(a.sess.Load(a.sess.Gate(http.HandlerFunc(http.NotFound))).ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(a.sess.Load)

		r.Get("/login", a.loginPage)
		r.Post("/login", a.loginSubmit)
		r.Get("/logout", a.logout)

		r.Group(func(r chi.Router) {
			r.Use(a.sess.Gate)

			r.Get("/", a.aboutPage)
			r.Get("/input", a.inputPage)
			r.Post("/input", a.inputSubmit)
			r.Get("/output", a.outputPage)
			r.Get("/explore", a.explorePage)
			r.Get("/download/"+exportPath, a.download)
			r.Post("/api/update", a.update)
		})
	})
}
