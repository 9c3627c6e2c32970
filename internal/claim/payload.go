package claim

import (
	"errors"
	"strings"
)

// ErrBadPayload is returned for button payloads that are not claim answers.
var ErrBadPayload = errors.New("claim: malformed payload")

// Action is the driver's answer carried by a button.
type Action string

const (
	// ActionAccept claims the order.
	ActionAccept Action = "accept"
	// ActionReject declines the order for the presser only.
	ActionReject Action = "reject"
)

// Encode builds the button payload "{action}_{id}".
// Order ids are UUIDs and never contain an underscore.
func Encode(action Action, id string) string {
	return string(action) + "_" + id
}

// Parse splits a payload on its first underscore.
func Parse(payload string) (Action, string, error) {
	action, id, ok := strings.Cut(payload, "_")
	if !ok || id == "" {
		return "", "", ErrBadPayload
	}
	switch Action(action) {
	case ActionAccept, ActionReject:
		return Action(action), id, nil
	}
	return "", "", ErrBadPayload
}
