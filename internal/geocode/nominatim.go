// Package geocode resolves a latitude/longitude pair to a country name.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/gapminder-dash/internal/core/observability"
)

// Client performs one reverse lookup against an external service.
type Client interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

var ErrNoResult = errors.New("no country in geocoder response")

// Nominatim talks to an OpenStreetMap Nominatim reverse endpoint.
type Nominatim struct {
	base      *url.URL
	hc        *http.Client
	userAgent string
	lang      string
}

func NewNominatim(baseURL, userAgent, lang string, hc *http.Client) (*Nominatim, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse geocode url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("geocode url %q must be http(s)", baseURL)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	if lang == "" {
		lang = "en"
	}
	return &Nominatim{base: u, hc: hc, userAgent: userAgent, lang: lang}, nil
}

// Endpoint is the base URL, used to scope shared cache keys.
func (n *Nominatim) Endpoint() string { return n.base.String() }

func (n *Nominatim) Lang() string { return n.lang }

type reverseResponse struct {
	Error   string `json:"error"`
	Address struct {
		Country string `json:"country"`
	} `json:"address"`
}

func (n *Nominatim) Reverse(ctx context.Context, lat, lon float64) (country string, err error) {
	start := time.Now()
	defer func() {
		observability.ObserveUpstreamLatency("nominatim", err, time.Since(start).Seconds())
	}()

	u := *n.base
	u.Path = strings.TrimRight(u.Path, "/") + "/reverse"
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("accept-language", n.lang)
	q.Set("zoom", "3")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build reverse request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}

	resp, err := n.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("reverse status %d", resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode reverse response: %w", err)
	}
	if body.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrNoResult, body.Error)
	}
	country = strings.TrimSpace(body.Address.Country)
	if country == "" {
		return "", ErrNoResult
	}
	return country, nil
}
