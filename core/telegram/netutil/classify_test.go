package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, KindDial},
		{"timeout", &url.Error{Op: "Post", URL: "https://api", Err: timeoutErr{}}, KindTimeout},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), KindTimeout},
		{"canceled", context.Canceled, KindCanceled},
		{"dns", &net.DNSError{Err: "no such host", Name: "api"}, KindDNS},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, KindReset},
		{"flood", tele.FloodError{RetryAfter: 3}, KindRateLimited},
		{"forbidden", tele.ErrBlockedByUser, KindClient},
		{"server", &tele.Error{Code: 502, Description: "Bad Gateway"}, KindServer},
		{"other", errors.New("boom"), KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.True(t, ShouldRetry(&tele.Error{Code: 500}))
	assert.False(t, ShouldRetry(tele.ErrBlockedByUser))
	assert.False(t, ShouldRetry(tele.FloodError{RetryAfter: 1}))
	assert.False(t, ShouldRetry(nil))
}

func TestBackoff(t *testing.T) {
	b := Backoff{Step: time.Second, Max: 3 * time.Second}
	assert.Zero(t, b.Delay(0))
	assert.Equal(t, 2*time.Second, b.Delay(2))
	assert.Equal(t, 3*time.Second, b.Delay(7))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.Wait(ctx, 1), context.Canceled)
	assert.NoError(t, Backoff{}.Wait(context.Background(), 1))
}
