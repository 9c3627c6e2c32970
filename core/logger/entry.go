package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// defaultKeyOrder puts the fields people scan for first; the rest follow sorted.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"frontend", "rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "handler",
	"kind", "command", "order_id", "route", "channel", "state", "from", "to",
	"outcome", "claimant", "duration_ms", "count", "shard", "payload", "username",
	"mode", "listen", "http_code", "err", "cause", "retryable", "attempts",
	"backoff_ms", "restarts",
}

// knownOutcomes are the claim outcomes plus the generic ones; anything else is
// dropped from the record.
var knownOutcomes = map[string]bool{
	"ok": true, "fail": true, "cancelled": true, "rate_limited": true,
	"accepted": true, "declined": true, "taken": true, "not_found": true,
}

var contextFields = []struct {
	key   string
	value func(context.Context) any
}{
	{"rid", func(ctx context.Context) any { return RIDFrom(ctx) }},
	{"frontend", func(ctx context.Context) any { return FrontEndFrom(ctx) }},
	{"order_id", func(ctx context.Context) any { return OrderIDFrom(ctx) }},
	{"user_id", func(ctx context.Context) any { return UserIDFrom(ctx) }},
	{"update_id", func(ctx context.Context) any { return int64(UpdateIDFrom(ctx)) }},
	{"chat_id", func(ctx context.Context) any { return ChatIDFrom(ctx) }},
	{"handler", func(ctx context.Context) any { return HandlerFrom(ctx) }},
}

// entry is one record being assembled.
type entry map[string]any

func (e entry) merge(fields []field) {
	for _, f := range fields {
		e[f.key] = f.val
	}
}

func (e entry) str(key string) string {
	s, _ := e[key].(string)
	return s
}

// fromContext fills fields the record did not set explicitly.
func (e entry) fromContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	for _, f := range contextFields {
		if _, set := e[f.key]; set {
			continue
		}
		if v := f.value(ctx); !blank(v) && v != int64(0) {
			e[f.key] = v
		}
	}
}

func (e entry) finish(msg string, enc encoding) {
	if rid := e.str("rid"); rid != "" {
		if short := CompactRID(rid); short != rid {
			if _, set := e["rid_full"]; enc == encJSON && !set {
				e["rid_full"] = rid
			}
			e["rid"] = short
		}
	}
	if e.str("event") == "" {
		e["event"] = "unknown"
		if msg != "" {
			e["event"] = msg
		}
	}
	if e.str("component") == "" {
		e["component"] = CompApp
	}
	if s := e.str("status"); s != "" {
		e["status"] = strings.ToLower(strings.TrimSpace(s))
	}
	if o, ok := e["outcome"]; ok {
		name := strings.ToLower(strings.TrimSpace(fmt.Sprint(o)))
		if knownOutcomes[name] {
			e["outcome"] = name
		} else {
			delete(e, "outcome")
		}
	}
	for k, v := range e {
		if blank(v) {
			delete(e, k)
		}
	}
}

func blank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	}
	return false
}

func (e entry) keys(order []string) []string {
	out := make([]string, 0, len(e))
	seen := make(map[string]bool, len(order))
	for _, k := range order {
		if _, ok := e[k]; ok && !seen[k] {
			out = append(out, k)
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(e)-len(out))
	for k := range e {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

func (e entry) encode(enc encoding, order []string) []byte {
	var b bytes.Buffer
	keys := e.keys(order)
	if enc == encJSON {
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			name, _ := json.Marshal(k)
			b.Write(name)
			b.WriteByte(':')
			val, err := json.Marshal(e[k])
			if err != nil {
				val, _ = json.Marshal(fmt.Sprint(e[k]))
			}
			b.Write(val)
		}
		b.WriteString("}\n")
		return b.Bytes()
	}
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(kvValue(e[k]))
	}
	b.WriteByte('\n')
	return b.Bytes()
}

func kvValue(v any) string {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	if strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
