package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/config"
	"github.com/rs/zerolog"
)

// New builds the process logger. Unknown levels fall back to info.
func New(cfg config.Log) zerolog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

func NewWithWriter(cfg config.Log, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	w := out
	if strings.EqualFold(cfg.Format, "console") {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "snippetcanvas").Logger()
}
