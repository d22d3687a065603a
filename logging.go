package main

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// SetupLogger configures the global zerolog logger and returns it.
func SetupLogger(cfg LogConfig) zerolog.Logger {
	zerolog.DurationFieldUnit = time.Millisecond

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Str("service", serviceName).Logger()
	if err != nil {
		log.Warn().Str("level", cfg.Level).Msg("unknown log level, using info")
	}
	return log.Logger
}

// requestLogging attaches logger to every request and writes one access line
// per response.
func requestLogging(logger zerolog.Logger) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		hlog.NewHandler(logger),
		hlog.RemoteAddrHandler("ip"),
		hlog.RequestIDHandler("req_id", "X-Request-Id"),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Stringer("url", r.URL).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		}),
	}
}
