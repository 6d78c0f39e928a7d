package geocode

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/gapminder-dash/internal/cache/keys"
	"github.com/mohammed-shakir/gapminder-dash/internal/core/observability"
	"github.com/mohammed-shakir/gapminder-dash/internal/mapper"
	h3mapper "github.com/mohammed-shakir/gapminder-dash/internal/mapper/h3"
)

// DefaultResolution is the H3 resolution cached lookups are keyed by. A
// res 9 cell is about 0.1 km², so a point near a border only borrows the
// country of a point very close to it.
const DefaultResolution = 9

// Unknown is returned when a country cannot be determined.
const Unknown = "unknown"

// Display maps Unknown (and empty) to the placeholder shown to users.
func Display(country string) string {
	if country == "" || country == Unknown {
		return "N/A"
	}
	return country
}

// SharedCache is the optional cross-replica tier; *redisstore.Client satisfies it.
type SharedCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type Option func(*Resolver)

func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithResolution(res int) Option {
	return func(r *Resolver) { r.res = res }
}

func WithCache(size int, ttl time.Duration) Option {
	return func(r *Resolver) {
		r.cacheSize = size
		r.ttl = ttl
	}
}

// WithShared adds a shared tier; opTimeout bounds each cache call independently of the lookup.
func WithShared(c SharedCache, opTimeout time.Duration) Option {
	return func(r *Resolver) {
		r.shared = c
		r.sharedTimeout = opTimeout
	}
}

// WithScope sets the endpoint and language that partition cache keys.
func WithScope(endpoint, lang string) Option {
	return func(r *Resolver) {
		r.endpoint = endpoint
		r.lang = lang
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

func WithMapper(m mapper.Interface) Option {
	return func(r *Resolver) { r.mapper = m }
}

// Resolver wraps a Client with validation, a timeout, request coalescing and caching.
// Safe for concurrent use.
type Resolver struct {
	client        Client
	mapper        mapper.Interface
	res           int
	timeout       time.Duration
	cacheSize     int
	ttl           time.Duration
	endpoint      string
	lang          string
	shared        SharedCache
	sharedTimeout time.Duration
	log           *slog.Logger

	lru *expirable.LRU[string, string]
	sf  singleflight.Group
}

func NewResolver(c Client, opts ...Option) (*Resolver, error) {
	if c == nil {
		return nil, errors.New("geocode client is required")
	}
	r := &Resolver{
		client:        c,
		mapper:        h3mapper.New(),
		res:           DefaultResolution,
		timeout:       3 * time.Second,
		cacheSize:     1024,
		ttl:           24 * time.Hour,
		lang:          "en",
		sharedTimeout: 250 * time.Millisecond,
		log:           slog.Default(),
	}
	if n, ok := c.(*Nominatim); ok {
		r.endpoint, r.lang = n.Endpoint(), n.Lang()
	}
	for _, o := range opts {
		o(r)
	}
	if err := h3mapper.ValidateRes(r.res); err != nil {
		return nil, err
	}
	if r.cacheSize <= 0 {
		r.cacheSize = 1024
	}
	r.lru = expirable.NewLRU[string, string](r.cacheSize, nil, r.ttl)
	return r, nil
}

// Country never fails: any error, timeout or missing result yields Unknown.
func (r *Resolver) Country(ctx context.Context, lat, lon float64) string {
	if err := h3mapper.ValidatePoint(lat, lon); err != nil {
		observability.IncGeocode("invalid")
		r.log.DebugContext(ctx, "geocode skipped", "err", err)
		return Unknown
	}
	cell, err := r.mapper.CellForPoint(lat, lon, r.res)
	if err != nil {
		observability.IncGeocode("invalid")
		r.log.WarnContext(ctx, "geocode cell", "err", err)
		return Unknown
	}
	key := keys.Geocode(r.endpoint, r.lang, r.res, cell)

	if v, ok := r.lru.Get(key); ok {
		observability.IncGeocode("lru_hit")
		return v
	}

	v, err, _ := r.sf.Do(key, func() (any, error) {
		// the shared call must not be cut short by whichever caller arrived first
		lookupCtx := context.WithoutCancel(ctx)
		if country, ok := r.sharedGet(lookupCtx, key); ok {
			observability.IncGeocode("shared_hit")
			r.lru.Add(key, country)
			return country, nil
		}

		cctx, cancel := context.WithTimeout(lookupCtx, r.timeout)
		defer cancel()
		country, err := r.client.Reverse(cctx, lat, lon)
		if err != nil {
			return nil, err
		}
		r.lru.Add(key, country)
		r.sharedSet(lookupCtx, key, country)
		observability.IncGeocode("resolved")
		return country, nil
	})
	if err != nil {
		observability.IncGeocode("failed")
		r.log.WarnContext(ctx, "reverse geocode failed",
			"lat", lat, "lon", lon, "cell", cell, "err", err)
		return Unknown
	}
	return v.(string)
}

func (r *Resolver) sharedGet(ctx context.Context, key string) (string, bool) {
	if r.shared == nil {
		return "", false
	}
	cctx, cancel := context.WithTimeout(ctx, r.sharedTimeout)
	defer cancel()
	b, ok, err := r.shared.Get(cctx, key)
	if err != nil {
		r.log.DebugContext(ctx, "shared cache get", "key", key, "err", err)
		return "", false
	}
	if !ok || len(b) == 0 {
		return "", false
	}
	return string(b), true
}

func (r *Resolver) sharedSet(ctx context.Context, key, country string) {
	if r.shared == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, r.sharedTimeout)
	defer cancel()
	if err := r.shared.Set(cctx, key, []byte(country), r.ttl); err != nil {
		r.log.DebugContext(ctx, "shared cache set", "key", key, "err", err)
	}
}

// Len reports the number of entries in the in-process cache.
func (r *Resolver) Len() int { return r.lru.Len() }
