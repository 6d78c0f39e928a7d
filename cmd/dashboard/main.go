package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mohammed-shakir/gapminder-dash/internal/cache/redisstore"
	"github.com/mohammed-shakir/gapminder-dash/internal/core/config"
	"github.com/mohammed-shakir/gapminder-dash/internal/core/httpclient"
	"github.com/mohammed-shakir/gapminder-dash/internal/core/observability"
	"github.com/mohammed-shakir/gapminder-dash/internal/core/server"
	"github.com/mohammed-shakir/gapminder-dash/internal/dataset"
	"github.com/mohammed-shakir/gapminder-dash/internal/events"
	"github.com/mohammed-shakir/gapminder-dash/internal/geocode"
	"github.com/mohammed-shakir/gapminder-dash/internal/logger"
	"github.com/mohammed-shakir/gapminder-dash/internal/metrics"
	"github.com/mohammed-shakir/gapminder-dash/internal/session"
	"github.com/mohammed-shakir/gapminder-dash/internal/web"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// flags override the environment
	addrFlag := flag.String("addr", "", "listen address")
	gapminderFlag := flag.String("gapminder", "", "gapminder CSV path (packaged sample when empty)")
	irisFlag := flag.String("iris", "", "iris CSV path (packaged sample when empty)")
	flag.Parse()

	cfg := config.FromEnv()
	if *addrFlag != "" {
		cfg.Addr = strings.TrimSpace(*addrFlag)
	}
	if *gapminderFlag != "" {
		cfg.GapminderCSV = *gapminderFlag
	}
	if *irisFlag != "" {
		cfg.IrisCSV = *irisFlag
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "gapminder-dash",
		Component: "dashboard",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		p := metrics.Init(metrics.Config{
			Build: metrics.BuildInfo{
				Version:   Version,
				Revision:  os.Getenv("BUILD_REVISION"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		observability.Init(p.Registerer(), true)
		metricsHandler = p.Handler()
	} else {
		observability.Init(nil, false)
	}
	observability.ExposeBuildInfo(Version)

	cat, err := dataset.Open(cfg.GapminderCSV, cfg.IrisCSV)
	if err != nil {
		appLog.Error("failed to load datasets", "err", err)
		return 1
	}
	appLog.Info("datasets loaded",
		"gapminder_rows", cat.Gapminder.Len(),
		"iris_rows", cat.Iris.Len(),
		"gapminder_csv", cfg.GapminderCSV)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nominatim, err := geocode.NewNominatim(cfg.Geocode.URL, cfg.Geocode.UserAgent, cfg.Geocode.Language,
		httpclient.NewOutbound(cfg.Geocode.Timeout))
	if err != nil {
		appLog.Error("invalid geocoder config", "err", err)
		return 1
	}
	geoOpts := []geocode.Option{
		geocode.WithTimeout(cfg.Geocode.Timeout),
		geocode.WithResolution(cfg.Geocode.H3Res),
		geocode.WithCache(cfg.Geocode.CacheSize, cfg.Geocode.CacheTTL),
		geocode.WithLogger(appLog),
	}
	if cfg.RedisAddr != "" {
		rc, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			// the in-process cache still works on its own
			appLog.Warn("redis unavailable, geocode cache is local only", "addr", cfg.RedisAddr, "err", err)
		} else {
			defer func() { _ = rc.Close() }()
			geoOpts = append(geoOpts, geocode.WithShared(rc, cfg.CacheOpTimeout))
		}
	}
	resolver, err := geocode.NewResolver(nominatim, geoOpts...)
	if err != nil {
		appLog.Error("geocoder setup failed", "err", err)
		return 1
	}

	sess, err := session.NewManager(cfg.Auth, session.WithLogger(appLog))
	if err != nil {
		appLog.Error("session setup failed", "err", err)
		return 1
	}

	var pub events.Publisher = events.Nop{}
	if cfg.Events.Enabled {
		k, err := events.NewKafka(cfg.Events.BrokerList(), cfg.Events.Topic, cfg.Events.Queue, appLog)
		if err != nil {
			appLog.Error("event publisher setup failed", "err", err)
			return 1
		}
		pub = k
	}
	defer func() {
		if err := pub.Close(); err != nil {
			appLog.Warn("event publisher close", "err", err)
		}
	}()

	app, err := web.New(cat, resolver, sess, web.WithEvents(pub), web.WithLogger(appLog))
	if err != nil {
		appLog.Error("dashboard setup failed", "err", err)
		return 1
	}

	handler := server.NewRouter(appLog, server.Routes{
		Ready:   cat,
		Metrics: metricsHandler,
		Mount:   app.Mount,
	})

	appLog.Info("starting dashboard",
		"addr", cfg.Addr,
		"version", Version,
		"geocoder", cfg.Geocode.URL,
		"redis", cfg.RedisAddr != "",
		"events", cfg.Events.Enabled)

	start := time.Now()
	if err := server.Run(ctx, cfg, appLog, handler); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped", "uptime", time.Since(start).String())
	return 0
}
