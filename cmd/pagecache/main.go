package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"time"

	"github.com/always-cache/pagecache"
	"github.com/always-cache/pagecache/cache"
	_ "github.com/glebarez/go-sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

var (
	// CLI flags
	configFilenameFlag string
	listenFlag         string
	originFlag         string
	verbosityDebugFlag bool
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVarP(&configFilenameFlag, "config", "c", "pagecache.yml", "Path to config file")
	flag.StringVarP(&listenFlag, "listen", "l", "", "Address to listen on (overrides config)")
	flag.StringVarP(&originFlag, "origin", "o", "", "Origin URL to proxy to (overrides config)")
	flag.BoolVarP(&verbosityDebugFlag, "verbose", "v", false, "Verbosity: debug logging")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	logLevel := zerolog.InfoLevel
	if verbosityDebugFlag {
		logLevel = zerolog.DebugLevel
	}
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := []io.Writer{zerolog.ConsoleWriter{Out: os.Stdout}}
	if logFilenameFlag != "" {
		logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
		if err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		}
		defer logFileOutput.Close()
		logOutputs = append(logOutputs, logFileOutput)
	}
	log.Logger = log.Level(logLevel).Output(zerolog.MultiLevelWriter(logOutputs...)).
		With().Str("version", version).Logger()

	config, err := pagecache.LoadConfig(configFilenameFlag)
	if err != nil {
		log.Fatal().Err(err).Str("config", configFilenameFlag).Msg("Could not load config")
	}
	if listenFlag != "" {
		config.Server.Listen = listenFlag
	}
	if originFlag != "" {
		config.Server.Origin = originFlag
	}
	if config.Server.Listen == "" {
		config.Server.Listen = ":8080"
	}
	if err := config.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}
	if config.Server.Origin == "" {
		log.Fatal().Msg("Please specify origin")
	}
	originURL, err := url.Parse(config.Server.Origin)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not parse origin url")
	}

	ctx := context.Background()
	provider, err := cache.NewProvider(ctx, config.Store)
	if err != nil {
		log.Fatal().Err(err).Str("kind", config.Store.Kind).Msg("Could not create cache provider")
	}
	if closer, ok := provider.(io.Closer); ok {
		defer closer.Close()
	}

	dbs := make(map[string]*sql.DB, len(config.Databases))
	for name, dsn := range config.Databases {
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			log.Fatal().Err(err).Str("db", name).Msg("Could not open database")
		}
		defer db.Close()
		dbs[name] = db
	}

	c, err := cache.New(cache.Config{Provider: provider, DBs: dbs, Logger: &log.Logger})
	if err != nil {
		log.Fatal().Err(err).Msg("Could not create cache")
	}

	proxy := newReverseProxy(originURL, config.Server.OriginHost)
	handlers := make([]http.Handler, len(config.Rules))
	for i, rule := range config.Rules {
		middleware, err := rule.Middleware(c, &log.Logger)
		if err != nil {
			log.Fatal().Err(err).Str("prefix", rule.Prefix).Msg("Could not create rule")
		}
		handlers[i] = middleware(proxy)
	}

	r := chi.NewRouter()
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.RequestIDHandler("reqId", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Handled request")
	}))
	r.Get("/.pagecache/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})
	r.Post("/.pagecache/invalidate", invalidateHandler(c))
	r.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
		if i, ok := config.Match(r); ok {
			handlers[i].ServeHTTP(w, r)
			return
		}
		proxy.ServeHTTP(w, r)
	})

	log.Info().Msgf("Proxying %s to %s (with hostname '%s')", config.Server.Listen, originURL.String(), config.Server.OriginHost)
	if err := http.ListenAndServe(config.Server.Listen, r); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

// invalidateHandler bumps the tags given as tag query parameters.
func invalidateHandler(c *cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags := r.URL.Query()["tag"]
		if len(tags) == 0 {
			http.Error(w, "tag is required", http.StatusBadRequest)
			return
		}
		if err := c.InvalidateTags(r.Context(), tags...); err != nil {
			hlog.FromRequest(r).Error().Err(err).Strs("tags", tags).Msg("Could not invalidate tags")
			http.Error(w, "could not invalidate", http.StatusInternalServerError)
			return
		}
		hlog.FromRequest(r).Info().Strs("tags", tags).Msg("Invalidated tags")
		w.WriteHeader(http.StatusNoContent)
	}
}

func newReverseProxy(originURL *url.URL, originHost string) *httputil.ReverseProxy {
	host := originURL.Host
	hostHeader := host
	transport := http.DefaultTransport
	if originHost != "" {
		hostHeader = originHost
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				ServerName: originHost,
			},
		}
	}
	return &httputil.ReverseProxy{
		Director:  createDirector(originURL.Scheme, host, hostHeader),
		Transport: transport,
	}
}

func createDirector(scheme, host, hostHeader string) func(req *http.Request) {
	return func(req *http.Request) {
		req.URL.Scheme = scheme
		req.URL.Host = host
		if hostHeader != "" {
			req.Host = hostHeader
		}
	}
}
