// Package netutil classifies failures of Telegram API calls and paces retries.
package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/url"
	"syscall"

	tele "gopkg.in/telebot.v4"
)

// Kind is a coarse failure class used for logs and retry decisions.
type Kind string

const (
	KindNone        Kind = ""
	KindTimeout     Kind = "timeout"
	KindDNS         Kind = "dns"
	KindDial        Kind = "dial"
	KindReset       Kind = "reset"
	KindTLS         Kind = "tls"
	KindRateLimited Kind = "rate_limited"
	KindClient      Kind = "http_4xx"
	KindServer      Kind = "http_5xx"
	KindCanceled    Kind = "canceled"
	KindUnknown     Kind = "unknown"
)

// Transient reports whether a call that failed with k may succeed if repeated
// unchanged.
func (k Kind) Transient() bool {
	switch k {
	case KindTimeout, KindDial, KindReset, KindServer:
		return true
	}
	return false
}

// ShouldRetry reports whether err is a transient transport failure.
func ShouldRetry(err error) bool {
	return Classify(err).Transient()
}

// Classify maps err to a Kind. API errors are classified by their HTTP code,
// transport errors by the failing network operation.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if code := StatusCode(err); code != 0 {
		switch {
		case code == http.StatusTooManyRequests:
			return KindRateLimited
		case code >= 500:
			return KindServer
		case code >= 400:
			return KindClient
		}
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return KindReset
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return KindTimeout
		}
		return KindDNS
	}
	var tlsAlert tls.AlertError
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &tlsAlert) || errors.As(err, &certErr) {
		return KindTLS
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindDial
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		if k := Classify(urlErr.Err); k != KindUnknown {
			return k
		}
	}
	return KindUnknown
}

// StatusCode extracts the HTTP status carried by a Telegram API error, or 0.
func StatusCode(err error) int {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return http.StatusTooManyRequests
	}
	var group tele.GroupError
	if errors.As(err, &group) {
		return http.StatusBadRequest
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Code
	}
	return 0
}
