package dispatch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/m3rciful/taxibot/internal/channel"
	"github.com/m3rciful/taxibot/internal/registry"
)

func TestClassify(t *testing.T) {
	main := registry.FrontEnd{Token: "m", Privileged: true, Active: true}
	customer := registry.FrontEnd{Token: "c", Active: true}
	admin := channel.User{ID: 1}
	stranger := channel.User{ID: 2}
	text := func(from channel.User, s string) channel.Update {
		return channel.Update{Kind: channel.KindText, Sender: from, Text: s}
	}
	button := channel.Update{Kind: channel.KindButton, Sender: stranger, Payload: "accept_x"}

	tests := []struct {
		name   string
		fe     registry.FrontEnd
		upd    channel.Update
		admins AllowList
		want   Decision
	}{
		{"admin command", main, text(admin, "/link_route A→B 9"), NewAllowList(1),
			Decision{Action: ActionAdmin, Command: "link_route", Args: []string{"A→B", "9"}}},
		{"admin command with bot suffix", main, text(admin, "/List_Routes@taxi_bot"), nil,
			Decision{Action: ActionAdmin, Command: "list_routes"}},
		{"open allow-list", main, text(stranger, "/list_routes"), nil,
			Decision{Action: ActionAdmin, Command: "list_routes"}},
		{"not on allow-list", main, text(stranger, "/list_routes"), NewAllowList(1), Decision{Action: ActionDrop}},
		{"plain text on main", main, text(admin, "hello"), nil, Decision{Action: ActionDrop}},
		{"button on main", main, button, NewAllowList(1), Decision{Action: ActionClaim}},
		{"button on customer", customer, button, nil, Decision{Action: ActionDrop}},
		{"begin", customer, text(stranger, "/start"), nil, Decision{Action: ActionBegin}},
		{"begin with suffix", customer, text(stranger, "/start@cab_bot"), nil, Decision{Action: ActionBegin}},
		{"advance text", customer, text(stranger, "123 Main St"), nil, Decision{Action: ActionAdvance}},
		{"advance other command", customer, text(stranger, "/help"), nil, Decision{Action: ActionAdvance}},
		{"blank text", customer, text(stranger, "   "), nil, Decision{Action: ActionDrop}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.fe, tt.upd, tt.admins)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("Classify mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
