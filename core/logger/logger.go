// Package logger is the process-wide structured logger: slog records rendered
// as JSON or key=value lines with a stable key order, enriched from context.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/taxibot/core/buildinfo"
	coreconfig "github.com/m3rciful/taxibot/core/config"
)

// L is the base logger; nil until InitLogger runs, which makes every helper a no-op.
var L *slog.Logger

var (
	initOnce sync.Once
	level    slog.LevelVar
	debug    sampler
	trace    bool

	outMu  sync.Mutex
	out    *lineWriter
	files  []io.Closer
	closed bool
)

// Component names shared by call sites.
const (
	CompApp      = "app"
	CompTG       = "tg"
	CompWire     = "tg.wire"
	CompSender   = "tg.sender"
	CompDispatch = "dispatch"
	CompBooking  = "booking"
	CompClaim    = "claim"
	CompRegistry = "registry"
	CompOps      = "ops"
)

const defaultSampleEvery = 50

type settings struct {
	enc     encoding
	order   []string
	level   slog.Level
	every   int
	file    string
	profile string
}

func settingsFrom(cfg *coreconfig.Config) settings {
	s := settings{
		enc:     encJSON,
		order:   defaultKeyOrder,
		level:   slog.LevelInfo,
		every:   defaultSampleEvery,
		profile: "prod",
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.enc = encKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.enc = encKV
		}
	}
	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		if keys := splitKeys(raw); len(keys) > 0 {
			s.order = keys
		}
	}
	name := strings.ToLower(strings.TrimSpace(lc.Level))
	if name == "warning" {
		name = "warn"
	}
	var lvl slog.Level
	if name != "" && lvl.UnmarshalText([]byte(name)) == nil {
		s.level = lvl
	}
	if ratio := strings.TrimSpace(lc.DebugSample); ratio != "" {
		s.every = parseSampleEvery(ratio)
	}
	if dir, name := strings.TrimSpace(lc.Dir), strings.TrimSpace(lc.BotFile); dir != "" && name != "" {
		s.file = filepath.Join(dir, name)
	}
	return s
}

func splitKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// InitLogger configures the global structured logger. Later calls are no-ops.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		install(settingsFrom(cfg), cfg)
	})
	return nil
}

func install(s settings, cfg *coreconfig.Config) {
	level.Set(s.level)
	debug.configure(s.every)
	trace = envFlag("TRACE") || envFlag("LOG_TRACE")

	sinks := []io.Writer{os.Stdout}
	if s.file != "" {
		if f, err := openLogFile(s.file); err != nil {
			log.Printf("logger: %v", err)
		} else {
			sinks = append(sinks, f)
			files = append(files, f)
		}
	}
	out = newLineWriter(sinks, 64<<10)

	L = slog.New(newHandler(handlerConfig{level: &level, out: out, enc: s.enc, order: s.order}))
	slog.SetDefault(L)

	attrs := []slog.Attr{
		slog.String("go_version", runtime.Version()),
		slog.String("build", buildinfo.Read().String()),
		slog.String("cfg_profile", s.profile),
	}
	if cfg != nil {
		attrs = append(attrs,
			slog.String("mode", cfg.Telegram.RunMode),
			slog.Int("frontends", len(cfg.FrontEnds)+1),
			slog.Int("routes", len(cfg.Routes)),
			slog.Int("shards", cfg.Dispatch.Shards),
		)
	}
	Info(context.Background(), CompApp, "startup", attrs...)
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "t", "true", "on", "yes":
		return true
	}
	return false
}

// Shutdown drains buffered output and closes log files.
func Shutdown() error {
	outMu.Lock()
	defer outMu.Unlock()
	if closed {
		return nil
	}
	closed = true

	var errs []error
	if out != nil {
		errs = append(errs, out.Close())
	}
	for _, f := range files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// Event writes one record tagged with component and event.
func Event(ctx context.Context, component string, lvl slog.Level, event string, attrs ...slog.Attr) {
	base := L
	if base == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !base.Enabled(ctx, lvl) {
		return
	}
	head := make([]slog.Attr, 0, len(attrs)+2)
	if c := strings.TrimSpace(component); c != "" {
		head = append(head, slog.String("component", c))
	}
	if event != "" {
		head = append(head, slog.String("event", event))
	}
	base.LogAttrs(ctx, lvl, "", append(head, attrs...)...)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug line should be written.
// TRACE=1 disables sampling.
func ShouldSampleDebug() bool {
	return trace || debug.allow()
}
