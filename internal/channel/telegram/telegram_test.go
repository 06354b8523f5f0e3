package telegram

import (
	"errors"
	"testing"

	"joinerbot/internal/channel"
)

func TestIsGone(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"delete not found", errors.New("telegram: Bad Request: message to delete not found (400)"), true},
		{"edit not found", errors.New("telegram: Bad Request: message to edit not found (400)"), true},
		{"unrelated", errors.New("telegram: Too Many Requests: retry after 5 (429)"), false},
	}
	for _, tc := range cases {
		if got := isGone(tc.err); got != tc.want {
			t.Errorf("%s: isGone = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestToMessage(t *testing.T) {
	m, err := toMessage(channel.Ref{ChannelID: "-1001234", MessageID: "42"})
	if err != nil {
		t.Fatalf("toMessage: %v", err)
	}
	if m.ID != 42 || m.Chat == nil || m.Chat.ID != -1001234 {
		t.Fatalf("unexpected message %+v", m)
	}

	if _, err := toMessage(channel.Ref{ChannelID: "abc", MessageID: "42"}); err == nil {
		t.Fatalf("malformed chat id accepted")
	}
	if _, err := toMessage(channel.Ref{ChannelID: "1", MessageID: "x"}); err == nil {
		t.Fatalf("malformed message id accepted")
	}
}
