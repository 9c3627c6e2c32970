package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestData(t *testing.T) {
	tests := []struct {
		name string
		cb   *tele.Callback
		want string
	}{
		{"nil", nil, ""},
		{"raw", &tele.Callback{Data: "accept_0b7e"}, "accept_0b7e"},
		{"telebot prefix", &tele.Callback{Data: "\freject_0b7e"}, "reject_0b7e"},
		{"unique only", &tele.Callback{Unique: "menu"}, "menu"},
		{"unique with data", &tele.Callback{Unique: "menu", Data: "2"}, "menu|2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Data(tt.cb))
		})
	}
}
