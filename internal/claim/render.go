package claim

import (
	"fmt"
	"html"
	"strings"

	"github.com/m3rciful/taxibot/internal/channel"
	"github.com/m3rciful/taxibot/internal/orders"
)

// ShortID trims an order id for display.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// Buttons returns the accept/reject keyboard for an order.
func Buttons(id string) [][]channel.Button {
	return [][]channel.Button{{
		{Text: "✅ Accept Order", Payload: Encode(ActionAccept, id)},
		{Text: "❌ Reject Order", Payload: Encode(ActionReject, id)},
	}}
}

// Announcement renders the driver group post, including the answers so far.
func Announcement(o orders.Order) string {
	e := html.EscapeString
	notes := o.Notes
	if notes == "" {
		notes = "N/A"
	}
	var b strings.Builder
	b.WriteString("<b>🚨 NEW ORDER 🚨</b>\n\n")
	fmt.Fprintf(&b, "<b>From:</b> %s\n", e(o.Origin))
	fmt.Fprintf(&b, "<b>To:</b> %s\n", e(o.Destination))
	fmt.Fprintf(&b, "<b>Phone:</b> <code>%s</code>\n", e(o.Contact))
	fmt.Fprintf(&b, "<b>Luggage:</b> %s\n", e(o.Luggage))
	fmt.Fprintf(&b, "<b>Time:</b> %s\n", e(o.Time))
	fmt.Fprintf(&b, "<b>Passengers:</b> %d\n", o.Passengers)
	fmt.Fprintf(&b, "<b>Comment:</b> %s\n\n", e(notes))
	fmt.Fprintf(&b, "Order ID: <code>%s</code>", ShortID(o.ID))

	if len(o.DeclinedBy) > 0 || o.Claimant != nil {
		b.WriteString("\n")
	}
	for _, d := range o.DeclinedBy {
		fmt.Fprintf(&b, "\n<b>Status: ❌ Rejected by %s</b>", e(d.Handle()))
	}
	if o.Claimant != nil {
		fmt.Fprintf(&b, "\n<b>Status: ✅ Accepted by %s</b>", e(o.Claimant.Handle()))
	}
	return b.String()
}

// Keyboard returns the buttons an announcement should carry in the order's state.
func Keyboard(o orders.Order) [][]channel.Button {
	if !o.Status.Claimable() {
		return nil
	}
	return Buttons(o.ID)
}

// AcceptedNotice is sent to the customer once a driver accepts.
func AcceptedNotice(o orders.Order) string {
	driver := "a driver"
	var id int64
	if o.Claimant != nil {
		driver = o.Claimant.Handle()
		id = o.Claimant.ID
	}
	return fmt.Sprintf("🎉 Your order (ID: <code>%s</code>) from <b>%s</b> to <b>%s</b> has been <b>ACCEPTED</b> by <b>%s</b>! "+
		"Driver's Telegram ID: <code>%d</code>. Please contact them via Telegram for details.",
		ShortID(o.ID), html.EscapeString(o.Origin), html.EscapeString(o.Destination), html.EscapeString(driver), id)
}

// Toast is the callback answer shown to the driver who pressed a button.
func Toast(out Outcome) string {
	switch out {
	case Accepted:
		return "You have accepted this order!"
	case Declined:
		return "You have rejected this order."
	case AlreadyResolved:
		return "This order is no longer available to you."
	default:
		return "This order was not found or has been removed."
	}
}
