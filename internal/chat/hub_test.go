package chat

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(128, nil)
	go h.Run()
	t.Cleanup(func() {
		h.Stop()
		h.Wait()
	})
	return h
}

func waitForRelay(t *testing.T, r *Relay) RelayMessage {
	t.Helper()
	got := make(chan RelayMessage, 1)
	go func() { got <- r.Next() }()

	deadline := time.NewTimer(1 * time.Second)
	defer deadline.Stop()
	select {
	case msg := <-got:
		return msg
	case <-deadline.C:
		// Unblock the reader so it does not outlive the test.
		r.Push(RelayMessage{Kind: RelayTerminate})
		t.Fatal("timeout waiting for relay message")
	}
	return RelayMessage{}
}

// queued returns how many messages wait in r.
func queued(r *Relay) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func assertNoRelay(t *testing.T, r *Relay) {
	t.Helper()
	assert.Zero(t, queued(r), "unexpected relay messages")
}

func TestHub_ShoutReachesEveryRegisteredClient(t *testing.T) {
	h := startHub(t)

	alice := NewRelay()
	bob := NewRelay()
	require.NoError(t, h.Join(alice))
	require.NoError(t, h.Join(bob))

	require.NoError(t, h.Shout("alice", "hello"))

	want := RelayMessage{Kind: RelayShout, Nick: "alice", Statement: "hello"}
	assert.Equal(t, want, waitForRelay(t, alice))
	assert.Equal(t, want, waitForRelay(t, bob))
}

func TestHub_LateJoinerMissesEarlierShouts(t *testing.T) {
	h := startHub(t)

	early := NewRelay()
	require.NoError(t, h.Join(early))
	require.NoError(t, h.Shout("alice", "first"))

	late := NewRelay()
	require.NoError(t, h.Join(late))
	require.NoError(t, h.Shout("alice", "second"))

	assert.Equal(t, "first", waitForRelay(t, early).Statement)
	assert.Equal(t, "second", waitForRelay(t, early).Statement)
	// Delivery is ordered, so a first message of "second" means "first" was
	// never handed to the late joiner.
	assert.Equal(t, "second", waitForRelay(t, late).Statement)
	assertNoRelay(t, late)
}

func TestHub_PreservesShoutOrder(t *testing.T) {
	h := startHub(t)

	c := NewRelay()
	require.NoError(t, h.Join(c))

	statements := []string{"one", "two", "three", "four", "five"}
	for _, s := range statements {
		require.NoError(t, h.Shout("n", s))
	}
	for _, s := range statements {
		assert.Equal(t, s, waitForRelay(t, c).Statement)
	}
}

func TestHub_ClosedRelayDropsOnlyItsShouts(t *testing.T) {
	h := startHub(t)

	stale := NewRelay()
	stale.Close()
	live := NewRelay()
	require.NoError(t, h.Join(stale))
	require.NoError(t, h.Join(live))

	dropped := testutil.ToFloat64(RelayDropped)
	require.NoError(t, h.Shout("alice", "one"))
	require.NoError(t, h.Shout("alice", "two"))

	assert.Equal(t, "one", waitForRelay(t, live).Statement)
	assert.Equal(t, "two", waitForRelay(t, live).Statement)
	assert.Equal(t, dropped+2, testutil.ToFloat64(RelayDropped))
}

func TestHub_UnreadRelayKeepsEveryShout(t *testing.T) {
	const n = 1000
	h := startHub(t)

	slow := NewRelay()
	require.NoError(t, h.Join(slow))
	for i := 0; i < n; i++ {
		require.NoError(t, h.Shout("alice", "flood"))
	}
	// A final shout through a second relay proves the hub got through the
	// whole flood without blocking on the unread one.
	marker := NewRelay()
	require.NoError(t, h.Join(marker))
	require.NoError(t, h.Shout("alice", "done"))
	assert.Equal(t, "done", waitForRelay(t, marker).Statement)

	assert.Equal(t, n+1, queued(slow))
	for i := 0; i < n; i++ {
		require.Equal(t, "flood", waitForRelay(t, slow).Statement)
	}
	assert.Equal(t, "done", waitForRelay(t, slow).Statement)
}

func TestRelay_CloseRefusesPushes(t *testing.T) {
	r := NewRelay()
	assert.True(t, r.Push(RelayMessage{Kind: RelayShout, Statement: "a"}))
	assert.True(t, r.Push(RelayMessage{Kind: RelayShout, Statement: "b"}))

	assert.Equal(t, "a", r.Next().Statement)
	assert.Equal(t, 1, r.Close())
	assert.False(t, r.Push(RelayMessage{Kind: RelayShout, Statement: "c"}))
	assert.Zero(t, queued(r))
}

func TestRelay_NextWaitsForPush(t *testing.T) {
	r := NewRelay()
	got := make(chan RelayMessage, 1)
	go func() { got <- r.Next() }()

	select {
	case msg := <-got:
		t.Fatalf("Next returned %+v from an empty relay", msg)
	case <-time.After(20 * time.Millisecond):
	}

	r.Push(RelayMessage{Kind: RelayTerminate})
	select {
	case msg := <-got:
		assert.Equal(t, RelayTerminate, msg.Kind)
	case <-time.After(time.Second):
		t.Fatal("Next did not wake up after Push")
	}
}

func TestHub_DuplicateJoinDeliversTwice(t *testing.T) {
	h := startHub(t)

	c := NewRelay()
	require.NoError(t, h.Join(c))
	require.NoError(t, h.Join(c))
	require.NoError(t, h.Shout("alice", "hi"))

	assert.Equal(t, "hi", waitForRelay(t, c).Statement)
	assert.Equal(t, "hi", waitForRelay(t, c).Statement)
}

func TestHub_NilJoinIgnored(t *testing.T) {
	h := startHub(t)

	require.NoError(t, h.Join(nil))
	c := NewRelay()
	require.NoError(t, h.Join(c))
	require.NoError(t, h.Shout("alice", "still running"))
	assert.Equal(t, "still running", waitForRelay(t, c).Statement)
}

func TestHub_SubmitAfterStopFails(t *testing.T) {
	h := NewHub(1, nil)
	go h.Run()
	h.Stop()
	h.Wait()
	h.Stop()

	assert.ErrorIs(t, h.Join(NewRelay()), ErrHubStopped)
	assert.ErrorIs(t, h.Shout("alice", "hello"), ErrHubStopped)
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "join", EventJoin.String())
	assert.Equal(t, "shout", EventShout.String())
	assert.Equal(t, "unknown", EventType(42).String())
}
