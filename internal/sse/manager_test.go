package sse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/contiapp/conti-server/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func startManager(t *testing.T) (*Manager, context.CancelFunc) {
	t.Helper()
	m := NewManager(nil, WithHeartbeatInterval(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-m.stopped
	})
	return m, cancel
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev := <-c.EventChan:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return Event{}
	}
}

func assertNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev := <-c.EventChan:
		t.Fatalf("unexpected event %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcast_Everyone(t *testing.T) {
	m, _ := startManager(t)
	a, err := m.Connect("usr-a")
	require.NoError(t, err)
	b, err := m.Connect("usr-b")
	require.NoError(t, err)

	sheet := &domain.SongSheet{Name: "주 품에"}
	m.Emit(NewSheetCreatedEvent(sheet))

	assert.Equal(t, EventSheetCreated, receive(t, a).Type)
	assert.Equal(t, EventSheetCreated, receive(t, b).Type)
}

func TestBroadcast_Audience(t *testing.T) {
	m, _ := startManager(t)
	owner, err := m.Connect("usr-owner")
	require.NoError(t, err)
	other, err := m.Connect("usr-other")
	require.NoError(t, err)

	setlist := &domain.Setlist{Name: "주일 1부", OwnerID: "usr-owner"}
	m.Emit(NewSetlistEvent(EventSetlistCreated, setlist))

	assert.Equal(t, EventSetlistCreated, receive(t, owner).Type)
	assertNothing(t, other)
}

func TestBroadcast_TeamMembers(t *testing.T) {
	m, _ := startManager(t)
	member, err := m.Connect("usr-1")
	require.NoError(t, err)
	outsider, err := m.Connect("usr-9")
	require.NoError(t, err)

	team := &domain.Team{Members: []string{"usr-1", "usr-2"}}
	team.ID = "team-1"
	m.Emit(NewTeamEventDeletedEvent(team, "2025-03-02"))

	ev := receive(t, member)
	assert.Equal(t, EventTeamEventDeleted, ev.Type)
	assert.Equal(t, TeamEventDeletedData{TeamID: "team-1", Date: "2025-03-02"}, ev.Data)
	assertNothing(t, outsider)
}

func TestDisconnect(t *testing.T) {
	m, _ := startManager(t)
	c, err := m.Connect("usr-a")
	require.NoError(t, err)
	require.Equal(t, 1, m.ClientCount())

	m.Disconnect(c.ID)
	m.Disconnect(c.ID)
	assert.Equal(t, 0, m.ClientCount())

	_, open := <-c.Done
	assert.False(t, open)
}

func TestShutdown_DrainsAndClosesClients(t *testing.T) {
	m := NewManager(nil)
	c, err := m.Connect("usr-a")
	require.NoError(t, err)

	m.Emit(NewSheetDeletedEvent("sheet-1"))
	go m.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	ev, ok := <-c.EventChan
	require.True(t, ok)
	assert.Equal(t, EventSheetDeleted, ev.Type)

	_, ok = <-c.EventChan
	assert.False(t, ok, "client channel closed after drain")
	assert.Equal(t, 0, m.ClientCount())

	// Emitting after shutdown is a no-op and a second shutdown is safe.
	m.Emit(NewSheetDeletedEvent("sheet-2"))
	assert.NoError(t, m.Shutdown(ctx))
}

func TestBroadcast_DropsForSlowClient(t *testing.T) {
	m, _ := startManager(t)
	c, err := m.Connect("usr-a")
	require.NoError(t, err)

	for range clientBuffer + 10 {
		m.Emit(NewSheetDeletedEvent("sheet-x"))
	}

	require.Eventually(t, func() bool { return len(c.EventChan) == clientBuffer }, time.Second, 5*time.Millisecond)
}
