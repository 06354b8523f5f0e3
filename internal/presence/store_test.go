package presence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"joinerbot/pkg/logx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "presence.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestAddCallerIsIdempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	added, err := st.AddCaller(ctx, "u1", "alice", now)
	if err != nil || !added {
		t.Fatalf("first add: added=%v err=%v", added, err)
	}
	added, err = st.AddCaller(ctx, "u1", "alice", now.Add(time.Second))
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if added {
		t.Fatalf("duplicate add reported as new")
	}
	n, err := st.Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("count = %d, err = %v", n, err)
	}
}

func TestCallersOrderedByJoinTime(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	t0 := time.Now()

	if _, err := st.AddCaller(ctx, "u2", "bob", t0.Add(2*time.Second)); err != nil {
		t.Fatal(err)
	}
	if _, err := st.AddCaller(ctx, "u1", "alice", t0); err != nil {
		t.Fatal(err)
	}
	if _, err := st.AddCaller(ctx, "u3", "charlie", t0.Add(5*time.Second)); err != nil {
		t.Fatal(err)
	}

	callers, err := st.Callers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alice", "bob", "charlie"}
	if len(callers) != len(want) {
		t.Fatalf("got %d callers, want %d", len(callers), len(want))
	}
	for i, c := range callers {
		if c.Username != want[i] {
			t.Fatalf("position %d: got %q, want %q", i, c.Username, want[i])
		}
	}
}

func TestDelCallerUnknownIsNotAnError(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	deleted, err := st.DelCaller(ctx, "ghost")
	if err != nil {
		t.Fatalf("delete unknown: %v", err)
	}
	if deleted {
		t.Fatalf("delete of unknown user reported a row")
	}

	if _, err := st.AddCaller(ctx, "u1", "alice", time.Now()); err != nil {
		t.Fatal(err)
	}
	deleted, err = st.DelCaller(ctx, "u1")
	if err != nil || !deleted {
		t.Fatalf("delete known: deleted=%v err=%v", deleted, err)
	}
}

func TestWasRecentlyConnected(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := st.LogJoinLeave(ctx, "u1", "alice", ActionLeave, now.Add(-2*time.Minute)); err != nil {
		t.Fatal(err)
	}

	recent, err := st.WasRecentlyConnected(ctx, "u1", now.Add(-5*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if !recent {
		t.Fatalf("leave 2m ago not seen as recent with a 5m window")
	}

	recent, err = st.WasRecentlyConnected(ctx, "u1", now.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if recent {
		t.Fatalf("leave 2m ago seen as recent with a 1m window")
	}

	recent, err = st.WasRecentlyConnected(ctx, "u2", now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if recent {
		t.Fatalf("user with no history reported as recent")
	}
}

func TestLogJoinLeaveRejectsBadAction(t *testing.T) {
	st := openTestStore(t)
	if err := st.LogJoinLeave(context.Background(), "u1", "alice", "teleport", time.Now()); err == nil {
		t.Fatalf("invalid action accepted")
	}
}

func TestPruneHistory(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i, at := range []time.Time{
		now.Add(-72 * time.Hour),
		now.Add(-48 * time.Hour),
		now.Add(-time.Hour),
	} {
		action := ActionJoin
		if i%2 == 1 {
			action = ActionLeave
		}
		if err := st.LogJoinLeave(ctx, "u1", "alice", action, at); err != nil {
			t.Fatal(err)
		}
	}

	n, err := st.PruneHistory(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("pruned %d rows, want 2", n)
	}

	recent, err := st.WasRecentlyConnected(ctx, "u1", now.Add(-2*time.Hour))
	if err != nil || !recent {
		t.Fatalf("recent row lost by prune: recent=%v err=%v", recent, err)
	}
}

func TestReset(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.AddCaller(ctx, "u1", "alice", time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := st.AddCaller(ctx, "u2", "bob", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := st.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	n, err := st.Count(ctx)
	if err != nil || n != 0 {
		t.Fatalf("count after reset = %d, err = %v", n, err)
	}
}
