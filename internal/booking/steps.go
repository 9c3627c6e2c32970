package booking

import (
	"strconv"
	"strings"

	"github.com/m3rciful/taxibot/core/telegram/state"
)

// Dialog states, in the order they are visited.
const (
	StateOrigin       state.State = "collecting_origin"
	StateDestination  state.State = "collecting_destination"
	StateContact      state.State = "collecting_contact"
	StateLuggage      state.State = "collecting_luggage"
	StateTime         state.State = "collecting_time"
	StateNotes        state.State = "collecting_notes"
	StatePassengers   state.State = "collecting_party_size"
	StateConfirmation state.State = "awaiting_confirmation"
)

// Canonical field names stored in the conversation.
const (
	FieldOrigin      = "origin"
	FieldDestination = "destination"
	FieldContact     = "contact"
	FieldLuggage     = "luggage"
	FieldTime        = "time"
	FieldNotes       = "notes"
	FieldPassengers  = "passengers"
)

type step struct {
	state  state.State
	field  string
	prompt string
	reject string
	parse  func(string) (any, bool)
}

func freeText(s string) (any, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}

func positiveInt(s string) (any, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return nil, false
	}
	return n, true
}

var steps = []step{
	{
		state:  StateOrigin,
		field:  FieldOrigin,
		prompt: "👋 Welcome! Let's place your taxi order.\nPlease tell me your <b>pickup location</b> (e.g. 'CityA, Street 123').",
		reject: "Please provide a valid pickup location.",
		parse:  freeText,
	},
	{
		state:  StateDestination,
		field:  FieldDestination,
		prompt: "Great! Now, what is your <b>destination</b> (e.g. 'CityB, Main Square')?",
		reject: "Please provide a valid destination.",
		parse:  freeText,
	},
	{
		state:  StateContact,
		field:  FieldContact,
		prompt: "What is your <b>phone number</b> (e.g. '+1234567890')?",
		reject: "Please provide a valid phone number.",
		parse:  freeText,
	},
	{
		state:  StateLuggage,
		field:  FieldLuggage,
		prompt: "Do you have any <b>luggage</b>? (e.g. 'No', 'Small bag', 'Large suitcase')",
		reject: "Please specify if you have luggage.",
		parse:  freeText,
	},
	{
		state:  StateTime,
		field:  FieldTime,
		prompt: "When do you need the taxi? (e.g. 'Now', '15:30', 'Tomorrow morning')",
		reject: "Please specify the time.",
		parse:  freeText,
	},
	{
		state:  StateNotes,
		field:  FieldNotes,
		prompt: "Any <b>additional comments</b> for the driver? (e.g. 'Meet at entrance', 'Call upon arrival', or 'None')",
		reject: "Please add a comment for the driver, or type 'None'.",
		parse:  freeText,
	},
	{
		state:  StatePassengers,
		field:  FieldPassengers,
		prompt: "How many <b>passengers</b>? (e.g. '1', '2')",
		reject: "Please enter a valid number of passengers (e.g. '1', '2').",
		parse:  positiveInt,
	},
}

func stepIndex(s state.State) int {
	for i := range steps {
		if steps[i].state == s {
			return i
		}
	}
	return -1
}

// Prompts shown outside the collecting steps.
const (
	PromptConfirmRetry = "Please type 'yes' or 'no'."
	PromptCancelled    = "Order cancelled. You can start a new one with /start."
	PromptReceived     = "✅ Your order has been received and is being processed! We will notify you once a driver accepts it."
)
