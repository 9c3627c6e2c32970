package logger

import (
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// sampler lets one of every N debug lines through; a zero sampler passes all.
type sampler struct {
	p atomic.Pointer[rate.Sometimes]
}

func (s *sampler) configure(every int) {
	if every <= 1 {
		s.p.Store(nil)
		return
	}
	s.p.Store(&rate.Sometimes{Every: every})
}

func (s *sampler) allow() bool {
	st := s.p.Load()
	if st == nil {
		return true
	}
	hit := false
	st.Do(func() { hit = true })
	return hit
}

// parseSampleEvery reads "1/50" or "50" as "one in 50"; "0" disables sampling
// and anything unparsable keeps the default.
func parseSampleEvery(ratio string) int {
	num, den := 1, 0
	if a, b, ok := strings.Cut(ratio, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(a))
		d, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil {
			return defaultSampleEvery
		}
		num, den = n, d
	} else {
		d, err := strconv.Atoi(strings.TrimSpace(ratio))
		if err != nil {
			return defaultSampleEvery
		}
		den = d
	}
	if num <= 0 || den <= 0 || num >= den {
		return 0
	}
	return (den + num/2) / num
}
