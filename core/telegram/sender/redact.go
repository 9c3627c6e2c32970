package sender

import "regexp"

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// SanitizeError renders err with Telegram bot tokens masked.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}

type redactedError struct{ err error }

func (e redactedError) Error() string { return SanitizeError(e.err) }
func (e redactedError) Unwrap() error { return e.err }

// Redacted wraps err so its message never carries a bot token; errors.Is and
// errors.As still see the original error.
func Redacted(err error) error {
	if err == nil {
		return nil
	}
	return redactedError{err: err}
}
