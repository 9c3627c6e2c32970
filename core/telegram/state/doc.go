// Package state provides the in-memory conversation store used by the booking FSM.
// Sessions are keyed by front-end and conversation so that the same person talking
// to two customer bots runs two independent dialogs.
package state
