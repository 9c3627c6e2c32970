package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"
)

type encoding uint8

const (
	encJSON encoding = iota
	encKV
)

const tsLayout = "2006-01-02T15:04:05.000Z07:00"

type handlerConfig struct {
	level slog.Leveler
	out   *lineWriter
	enc   encoding
	order []string
}

// handler renders records as single lines. Attribute groups are flattened
// into dotted keys.
type handler struct {
	cfg    handlerConfig
	preset []field
	prefix string
}

type field struct {
	key string
	val any
}

func newHandler(cfg handlerConfig) *handler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.order == nil {
		cfg.order = defaultKeyOrder
	}
	return &handler{cfg: cfg}
}

func (h *handler) Enabled(_ context.Context, lvl slog.Level) bool {
	return lvl >= h.cfg.level.Level()
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.out == nil {
		return errors.New("logger: output not initialized")
	}
	e := make(entry, len(h.preset)+r.NumAttrs()+8)
	ts := r.Time.UTC()
	e["ts"] = ts.Truncate(time.Millisecond).Format(tsLayout)
	e["level"] = r.Level.String()
	if h.cfg.enc == encJSON {
		e["ts_unix_nano"] = ts.UnixNano()
	}
	e.merge(h.preset)

	var attrs []field
	r.Attrs(func(a slog.Attr) bool {
		attrs = appendAttr(attrs, h.prefix, a)
		return true
	})
	e.merge(attrs)
	e.fromContext(ctx)
	e.finish(r.Message, h.cfg.enc)

	return h.cfg.out.Write(e.encode(h.cfg.enc, h.cfg.order))
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.preset = slices.Clone(h.preset)
	for _, a := range attrs {
		c.preset = appendAttr(c.preset, h.prefix, a)
	}
	return &c
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = joinKey(h.prefix, name)
	return &c
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

func appendAttr(dst []field, prefix string, a slog.Attr) []field {
	a.Value = a.Value.Resolve()
	key := joinKey(prefix, a.Key)
	if a.Value.Kind() == slog.KindGroup {
		for _, sub := range a.Value.Group() {
			dst = appendAttr(dst, key, sub)
		}
		return dst
	}
	if key == "" {
		return dst
	}
	if k, v, ok := plain(key, a.Value); ok {
		dst = append(dst, field{key: k, val: v})
	}
	return dst
}

// plain converts v into a JSON-friendly value. Durations become whole
// milliseconds under a *_ms key.
func plain(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return msKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case time.Duration:
		return msKey(key), RoundMS(x).Milliseconds(), true
	case string:
		return key, strings.TrimSpace(x), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

func msKey(key string) string {
	if key == "duration" {
		return "duration_ms"
	}
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}
