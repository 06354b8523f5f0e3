package discord

import (
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"joinerbot/internal/eventbus"
	"joinerbot/pkg/logx"
)

type recordingBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *recordingBus) Publish(e eventbus.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) Subscribe(int) (<-chan eventbus.Event, func()) {
	ch := make(chan eventbus.Event)
	close(ch)
	return ch, func() {}
}

func (b *recordingBus) all() []eventbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]eventbus.Event(nil), b.events...)
}

const (
	testGuild   = "g1"
	testChannel = "vc1"
)

func newTestGateway(t *testing.T) (*Gateway, *recordingBus, *discordgo.Session) {
	t.Helper()
	bus := &recordingBus{}
	g, err := New(Config{Token: "x", GuildID: testGuild, VoiceChannelID: testChannel}, bus, logx.Nop())
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	s := &discordgo.Session{State: discordgo.NewState()}
	return g, bus, s
}

func update(user, channel string, before string, member *discordgo.Member) *discordgo.VoiceStateUpdate {
	vs := &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{
			GuildID:   testGuild,
			ChannelID: channel,
			UserID:    user,
			Member:    member,
		},
	}
	if before != "" {
		vs.BeforeUpdate = &discordgo.VoiceState{
			GuildID:   testGuild,
			ChannelID: before,
			UserID:    user,
		}
	}
	return vs
}

func member(nick, globalName, username string, bot bool) *discordgo.Member {
	return &discordgo.Member{
		Nick: nick,
		User: &discordgo.User{ID: "u1", GlobalName: globalName, Username: username, Bot: bot},
	}
}

func TestJoinPublishesJoinEvent(t *testing.T) {
	g, bus, s := newTestGateway(t)

	g.onVoiceStateUpdate(s, update("u1", testChannel, "", member("", "", "alice", false)))

	events := bus.all()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if e.Action != eventbus.ActionJoin || e.UserID != "u1" || e.DisplayName != "alice" {
		t.Fatalf("unexpected event %+v", e)
	}
	if e.At.IsZero() {
		t.Fatalf("event time not stamped")
	}
}

func TestLeavePublishesLeaveEvent(t *testing.T) {
	g, bus, s := newTestGateway(t)

	g.onVoiceStateUpdate(s, update("u1", "", testChannel, member("", "", "alice", false)))

	events := bus.all()
	if len(events) != 1 || events[0].Action != eventbus.ActionLeave {
		t.Fatalf("events = %+v", events)
	}
}

func TestMoveBetweenUnwatchedChannelsIsIgnored(t *testing.T) {
	g, bus, s := newTestGateway(t)

	g.onVoiceStateUpdate(s, update("u1", "other2", "other1", member("", "", "alice", false)))
	// Rejoining the same watched channel (mute/deaf toggles look like this)
	// is also not a transition.
	g.onVoiceStateUpdate(s, update("u1", testChannel, testChannel, member("", "", "alice", false)))

	if events := bus.all(); len(events) != 0 {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestOtherGuildIsIgnored(t *testing.T) {
	g, bus, s := newTestGateway(t)

	vs := update("u1", testChannel, "", member("", "", "alice", false))
	vs.GuildID = "another-guild"
	g.onVoiceStateUpdate(s, vs)

	if events := bus.all(); len(events) != 0 {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestBotsAreSkipped(t *testing.T) {
	g, bus, s := newTestGateway(t)

	g.onVoiceStateUpdate(s, update("u1", testChannel, "", member("", "", "musicbot", true)))

	if events := bus.all(); len(events) != 0 {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestDisplayNamePrecedence(t *testing.T) {
	g, bus, s := newTestGateway(t)

	cases := []struct {
		m    *discordgo.Member
		want string
	}{
		{member("Nickname", "Global", "username", false), "Nickname"},
		{member("", "Global", "username", false), "Global"},
		{member("", "", "username", false), "username"},
	}
	for _, tc := range cases {
		g.onVoiceStateUpdate(s, update("u1", testChannel, "", tc.m))
		events := bus.all()
		if got := events[len(events)-1].DisplayName; got != tc.want {
			t.Fatalf("display name = %q, want %q", got, tc.want)
		}
		// Put the user back out of the channel for the next case.
		g.onVoiceStateUpdate(s, update("u1", "", testChannel, tc.m))
	}
}

func TestConfigValidation(t *testing.T) {
	bus := &recordingBus{}
	if _, err := New(Config{VoiceChannelID: "vc"}, bus, logx.Nop()); err == nil {
		t.Fatalf("missing token accepted")
	}
	if _, err := New(Config{Token: "x"}, bus, logx.Nop()); err == nil {
		t.Fatalf("missing channel accepted")
	}
}
