package logger

import (
	"context"
	"strconv"
	"strings"
	"unicode"
)

type ctxKey int

const (
	keyRID ctxKey = iota
	keyUpdateID
	keyUserID
	keyChatID
	keyHandler
	keyFrontEnd
	keyOrderID
)

func valueOf[T any](ctx context.Context, key ctxKey) T {
	var zero T
	if ctx == nil {
		return zero
	}
	if v, ok := ctx.Value(key).(T); ok {
		return v
	}
	return zero
}

func with(ctx context.Context, key ctxKey, v any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

// WithRID stores the request id; empty ids leave ctx untouched.
func WithRID(ctx context.Context, rid string) context.Context {
	if rid == "" {
		return ctx
	}
	return with(ctx, keyRID, rid)
}

func RIDFrom(ctx context.Context) string { return valueOf[string](ctx, keyRID) }

// WithUpdateMeta stores the identifiers of the update being handled.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	ctx = with(ctx, keyUpdateID, int64(updateID))
	ctx = with(ctx, keyUserID, userID)
	return with(ctx, keyChatID, chatID)
}

func UpdateIDFrom(ctx context.Context) int { return int(valueOf[int64](ctx, keyUpdateID)) }

func UserIDFrom(ctx context.Context) int64 { return valueOf[int64](ctx, keyUserID) }

func ChatIDFrom(ctx context.Context) int64 { return valueOf[int64](ctx, keyChatID) }

func WithHandler(ctx context.Context, name string) context.Context {
	return with(ctx, keyHandler, name)
}

func HandlerFrom(ctx context.Context) string { return valueOf[string](ctx, keyHandler) }

// WithFrontEnd tags records with the name of the bot that received the update.
func WithFrontEnd(ctx context.Context, name string) context.Context {
	return with(ctx, keyFrontEnd, name)
}

func FrontEndFrom(ctx context.Context) string { return valueOf[string](ctx, keyFrontEnd) }

func WithOrderID(ctx context.Context, id string) context.Context {
	return with(ctx, keyOrderID, id)
}

func OrderIDFrom(ctx context.Context) string { return valueOf[string](ctx, keyOrderID) }

// BuildRID joins update, chat and user ids as "update:chat:user".
func BuildRID(updateID int, chatID, userID int64) string {
	b := make([]byte, 0, 48)
	b = strconv.AppendInt(b, int64(updateID), 10)
	b = append(b, ':')
	b = strconv.AppendInt(b, chatID, 10)
	b = append(b, ':')
	b = strconv.AppendInt(b, userID, 10)
	return string(b)
}

// CompactRID re-encodes a numeric rid in base36 with dots. Anything else is
// returned as is.
func CompactRID(rid string) string {
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}

// Sanitize drops control and zero-width characters; tabs and newlines stay.
func Sanitize(s string) string {
	return SanitizeLimit(s, 0)
}

// SanitizeLimit is Sanitize truncated to max runes; max <= 0 means no limit.
func SanitizeLimit(s string, max int) string {
	var b strings.Builder
	b.Grow(len(s))
	n := 0
	for _, r := range s {
		if max > 0 && n == max {
			break
		}
		if dropRune(r) {
			continue
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

func dropRune(r rune) bool {
	switch r {
	case '\t', '\n', '\r':
		return false
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
		return true
	}
	return unicode.IsControl(r) || r == unicode.ReplacementChar
}
