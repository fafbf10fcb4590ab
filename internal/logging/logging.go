package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"casino-relay/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	writerMu sync.RWMutex
	writer   io.Writer = os.Stdout
	fileSink *sizeLimitedWriter
)

// Init configures the global zerolog logger. When cfg.File is set, output is
// teed to a size-limited file next to stdout.
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var out io.Writer = os.Stdout
	if path := strings.TrimSpace(cfg.File); path != "" {
		fw, err := newSizeLimitedWriter(path, cfg.MaxMB)
		if err == nil {
			setFileSink(fw)
			out = io.MultiWriter(os.Stdout, fw)
		}
	}
	setWriter(out)

	var console io.Writer = out
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: out}
	}

	zerolog.SetGlobalLevel(level)
	ctx := zerolog.New(console).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
}

// Writer returns the raw sink used by the global logger. HTTP access logs share it.
func Writer() io.Writer {
	writerMu.RLock()
	defer writerMu.RUnlock()
	return writer
}

// Close releases the log file, if any.
func Close() error {
	writerMu.Lock()
	fw := fileSink
	fileSink = nil
	writer = os.Stdout
	writerMu.Unlock()
	if fw == nil {
		return nil
	}
	return fw.Close()
}

func setWriter(w io.Writer) {
	writerMu.Lock()
	writer = w
	writerMu.Unlock()
}

func setFileSink(fw *sizeLimitedWriter) {
	writerMu.Lock()
	prev := fileSink
	fileSink = fw
	writerMu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
}
