package channel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTopic is returned for a sub-channel that is not a positive topic id.
var ErrInvalidTopic = errors.New("channel: invalid topic")

// ParseTopic reads a sub-channel written as "topic-9" or "9" into a forum
// topic id. The prefix is case-insensitive; the id must be positive.
func ParseTopic(sub string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(sub))
	s = strings.TrimPrefix(s, "topic-")
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTopic, sub)
	}
	return id, nil
}
