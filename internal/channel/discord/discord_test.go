package discord

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"

	"joinerbot/pkg/logx"
)

func restError(code int, status int) *discordgo.RESTError {
	return &discordgo.RESTError{
		Message:  &discordgo.APIErrorMessage{Code: code},
		Response: &http.Response{StatusCode: status},
	}
}

func TestIsGone(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unknown message code", restError(discordgo.ErrCodeUnknownMessage, http.StatusBadRequest), true},
		{"plain 404", restError(0, http.StatusNotFound), true},
		{"wrapped", fmt.Errorf("delete: %w", restError(discordgo.ErrCodeUnknownMessage, http.StatusBadRequest)), true},
		{"rate limited", restError(0, http.StatusTooManyRequests), false},
		{"non-rest error", errors.New("network down"), false},
	}
	for _, tc := range cases {
		if got := isGone(tc.err); got != tc.want {
			t.Errorf("%s: isGone = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, Config{ChannelID: "c"}, logx.Nop()); err == nil {
		t.Fatalf("nil session accepted")
	}
	if _, err := New(&discordgo.Session{}, Config{}, logx.Nop()); err == nil {
		t.Fatalf("empty channel id accepted")
	}
}
