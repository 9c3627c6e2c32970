package dispatch

import (
	"strings"

	"github.com/m3rciful/taxibot/core/telegram/commands"
	"github.com/m3rciful/taxibot/internal/channel"
	"github.com/m3rciful/taxibot/internal/registry"
)

// Action is the handler chain an update is routed to.
type Action int

const (
	// ActionDrop ignores the update silently.
	ActionDrop Action = iota
	// ActionAdmin runs an admin command on the main front-end.
	ActionAdmin
	// ActionClaim answers an order button in the driver group.
	ActionClaim
	// ActionBegin starts a booking dialog.
	ActionBegin
	// ActionAdvance feeds text into a running booking dialog.
	ActionAdvance
)

func (a Action) String() string {
	switch a {
	case ActionAdmin:
		return "admin"
	case ActionClaim:
		return "claim"
	case ActionBegin:
		return "begin"
	case ActionAdvance:
		return "advance"
	}
	return "drop"
}

// Decision is the routing verdict for one update.
type Decision struct {
	Action  Action
	Command string
	Args    []string
}

// AllowList holds the user ids permitted to run admin commands. An empty list
// lets anyone who can message the main bot administer it.
type AllowList map[int64]struct{}

// NewAllowList builds an AllowList from ids.
func NewAllowList(ids ...int64) AllowList {
	l := make(AllowList, len(ids))
	for _, id := range ids {
		l[id] = struct{}{}
	}
	return l
}

// Allows reports whether the user may run admin commands.
func (l AllowList) Allows(id int64) bool {
	if len(l) == 0 {
		return true
	}
	_, ok := l[id]
	return ok
}

// BeginCommand starts a booking dialog on customer front-ends.
const BeginCommand = "start"

// Classify routes an update by the front-end it arrived on and its shape.
func Classify(fe registry.FrontEnd, upd channel.Update, admins AllowList) Decision {
	if fe.Privileged {
		switch upd.Kind {
		case channel.KindButton:
			return Decision{Action: ActionClaim}
		case channel.KindText:
			name, args, ok := commands.Parse(upd.Text)
			if !ok || !admins.Allows(upd.Sender.ID) {
				return Decision{Action: ActionDrop}
			}
			return Decision{Action: ActionAdmin, Command: name, Args: args}
		}
		return Decision{Action: ActionDrop}
	}

	if upd.Kind != channel.KindText || strings.TrimSpace(upd.Text) == "" {
		return Decision{Action: ActionDrop}
	}
	if name, _, ok := commands.Parse(upd.Text); ok && name == BeginCommand {
		return Decision{Action: ActionBegin}
	}
	return Decision{Action: ActionAdvance}
}
