package logger

import (
	"context"
	"io"
	"os"
	"strings"

	appCtx "github.com/powderplans/event-service/internal/pkg/context"
	"github.com/rs/zerolog"
)

// Logger is the process-wide root logger. Call Init once at startup.
var Logger zerolog.Logger

// Init configures the root logger from LOG_LEVEL and APP_ENV. Dev gets a
// console writer, everything else raw JSON on stdout.
func Init() {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var w io.Writer = os.Stdout
	if strings.TrimSpace(os.Getenv("APP_ENV")) == "dev" {
		w = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	Logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// WithCtx returns the root logger enriched with the request id, when the
// context carries one.
func WithCtx(ctx context.Context) zerolog.Logger {
	if rid := appCtx.GetRequestID(ctx); rid != "" {
		return Logger.With().Str("request_id", rid).Logger()
	}
	return Logger
}
