package web

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/gapminder-dash/internal/core/observability"
	"github.com/mohammed-shakir/gapminder-dash/internal/dataset"
	"github.com/mohammed-shakir/gapminder-dash/internal/events"
	"github.com/mohammed-shakir/gapminder-dash/internal/geocode"
	"github.com/mohammed-shakir/gapminder-dash/internal/logger"
	"github.com/mohammed-shakir/gapminder-dash/internal/reactive"
	"github.com/mohammed-shakir/gapminder-dash/internal/render"
	"github.com/mohammed-shakir/gapminder-dash/internal/session"
)

const (
	defaultLat = 39.0
	defaultLon = -79.0
)

func (a *App) loginPage(w http.ResponseWriter, r *http.Request) {
	if session.FromContext(r.Context()).LoggedIn {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	a.render(w, r, http.StatusOK, "login", pageView{Title: "Login"})
}

func (a *App) loginSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithPage(r.Context(), "login")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	user := r.PostForm.Get("username")
	sid, err := a.sess.Login(w, r, user, r.PostForm.Get("password"))
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		observability.IncLogin(false)
		a.events.Publish(events.Event{Type: events.LoginFailed})
		a.log.InfoContext(ctx, "login rejected", "user", user)
		a.render(w, r, http.StatusOK, "login", pageView{Title: "Login", Error: "Invalid credentials"})
		return
	case err != nil:
		a.log.ErrorContext(ctx, "login failed", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	observability.IncLogin(true)
	a.events.Publish(events.Event{Type: events.Login, Session: sid})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	st := session.FromContext(r.Context())
	if err := a.sess.Logout(w, r); err != nil {
		a.log.ErrorContext(r.Context(), "logout failed", "err", err)
	}
	if st.LoggedIn {
		a.events.Publish(events.Event{Type: events.Logout, Session: st.ID})
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

type aboutData struct {
	PopMin, PopMax, LifeMin, LifeMax string
	Countries                        []string
	Filters                          []filterField
}

// filterField is the text box above one table column.
type filterField struct {
	Input, Label string
}

func tableFilterFields() []filterField {
	out := make([]filterField, len(render.TableColumns))
	for i, c := range render.TableColumns {
		out[i] = filterField{Input: inTableFilter + c.Key, Label: c.Label}
	}
	return out
}

func (a *App) aboutPage(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithPage(r.Context(), "about")
	out, err := a.initial(r, "about", a.aboutInputs())
	if err != nil {
		a.log.ErrorContext(ctx, "initial render failed", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	d := a.defaults
	a.render(w, r, http.StatusOK, "about", pageView{
		Title:  "About",
		Active: "about",
		Page:   "about",
		Out:    out,
		Data: aboutData{
			PopMin:    ftoa(d.PopMin),
			PopMax:    ftoa(d.PopMax),
			LifeMin:   ftoa(d.LifeMin),
			LifeMax:   ftoa(d.LifeMax),
			Countries: a.cat.Gapminder.Countries(),
			Filters:   tableFilterFields(),
		},
	})
}

type exploreData struct {
	Countries []string
	Years     []int
	Latest    int
}

func (a *App) explorePage(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithPage(r.Context(), "explore")
	out, err := a.initial(r, "explore", a.exploreInputs())
	if err != nil {
		a.log.ErrorContext(ctx, "initial render failed", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	years := a.cat.Gapminder.Years()
	var latest int
	if len(years) > 0 {
		latest = years[len(years)-1]
	}
	a.render(w, r, http.StatusOK, "explore", pageView{
		Title:  "Explore",
		Active: "explore",
		Page:   "explore",
		Out:    out,
		Data:   exploreData{Countries: a.cat.Gapminder.Countries(), Years: years, Latest: latest},
	})
}

func (a *App) outputPage(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithPage(r.Context(), "output")
	out, err := a.initial(r, "output", reactive.Values{})
	if err != nil {
		a.log.ErrorContext(ctx, "initial render failed", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	a.render(w, r, http.StatusOK, "output", pageView{
		Title:  "Output",
		Active: "output",
		Page:   "output",
		Out:    out,
	})
}

// initial evaluates a page's outputs for first render. The session's
// submission is always injected server side.
func (a *App) initial(r *http.Request, page string, in reactive.Values) (map[string]any, error) {
	in[inSubmission] = session.FromContext(r.Context()).Submission
	names := pageOutputs[page]
	res, err := a.graph.Initial(r.Context(), in, names...)
	if err != nil {
		return nil, err
	}
	return a.present(res, names), nil
}

type inputData struct {
	Lat, Lon string
	Dataset  string
	Choices  []dataset.Choice
}

func (a *App) inputPage(w http.ResponseWriter, r *http.Request) {
	d := inputData{Lat: ftoa(defaultLat), Lon: ftoa(defaultLon), Dataset: dataset.NameGapminder, Choices: dataset.Choices()}
	if sub := session.FromContext(r.Context()).Submission; sub != nil {
		d.Lat, d.Lon, d.Dataset = coord(sub.Lat, sub.LatText), coord(sub.Lon, sub.LonText), sub.Dataset
	}
	a.render(w, r, http.StatusOK, "input", pageView{Title: "Input", Active: "input", Data: d})
}

func (a *App) inputSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithPage(r.Context(), "input")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	form := inputData{
		Lat:     strings.TrimSpace(r.PostForm.Get("lat")),
		Lon:     strings.TrimSpace(r.PostForm.Get("lon")),
		Dataset: strings.TrimSpace(r.PostForm.Get("dataset")),
		Choices: dataset.Choices(),
	}
	reject := func(msg string) {
		a.render(w, r, http.StatusBadRequest, "input", pageView{Title: "Input", Active: "input", Error: msg, Data: form})
	}
	if dataset.Label(form.Dataset) == "" {
		reject("Unknown dataset")
		return
	}
	lat, okLat := parseCoord(form.Lat)
	lon, okLon := parseCoord(form.Lon)

	country := "N/A"
	switch {
	case form.Dataset != dataset.NameGapminder:
	case okLat && okLon:
		country = a.geo.Country(ctx, lat, lon)
	default:
		a.log.WarnContext(ctx, "coordinates do not parse", "lat", form.Lat, "lon", form.Lon)
		country = geocode.Unknown
	}
	sub, err := a.sess.SetSubmission(w, r, session.Submission{
		Lat:     lat,
		Lon:     lon,
		LatText: form.Lat,
		LonText: form.Lon,
		Dataset: form.Dataset,
		Country: country,
	})
	if err != nil {
		a.log.ErrorContext(ctx, "store submission failed", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	a.log.InfoContext(ctx, "submission stored", "dataset", sub.Dataset, "country", sub.Country)
	a.events.Publish(events.Event{
		Type:    events.Submit,
		Session: session.FromContext(r.Context()).ID,
		Dataset: sub.Dataset,
		Country: sub.Country,
	})
	http.Redirect(w, r, "/output", http.StatusSeeOther)
}

// parseCoord yields NaN for text that is not a number; the Output page shows
// the map warning for it.
func parseCoord(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN(), false
	}
	return v, true
}
