package groupview

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitroom/internal/api"
	"github.com/mmynk/splitroom/internal/apitest"
	"github.com/mmynk/splitroom/internal/models"
	"github.com/mmynk/splitroom/internal/navigation"
	"github.com/mmynk/splitroom/internal/notify"
	"github.com/mmynk/splitroom/internal/realtime"
	"github.com/mmynk/splitroom/internal/session"
)

const getGroup = "GET /api/groups/{id}"

type fixture struct {
	srv    *apitest.Server
	store  *session.Store
	client *api.Client
	socket *realtime.Socket
	router *navigation.Router
	notes  *notify.Recorder
	ann    models.User
	bob    models.User
	group  *models.Group
	view   *View
}

// newFixture wires a view for Ann, who owns a group shared with Bob.
func newFixture(t *testing.T, loggedIn bool) *fixture {
	t.Helper()
	f := &fixture{srv: apitest.New(t), notes: &notify.Recorder{}}
	f.ann = f.srv.Register(t, "Ann", "ann@example.com", "password123")
	f.bob = f.srv.Register(t, "Bob", "bob@example.com", "password123")
	f.group = f.srv.SeedGroup(f.ann, "Trip", f.bob)

	f.store = session.NewInMemory()
	if loggedIn {
		cred := &models.Credential{Token: f.srv.Token(t, f.ann), User: f.ann}
		if err := f.store.Save(context.Background(), cred); err != nil {
			t.Fatalf("save credential: %v", err)
		}
	}
	f.router = navigation.NewRouter(navigation.GroupRoute(f.group.ID))

	var err error
	f.client, err = api.New(f.srv.URL, f.store, api.WithNavigator(f.router))
	if err != nil {
		t.Fatalf("api.New failed: %v", err)
	}
	f.socket, err = realtime.NewSocket(f.srv.WSURL, realtime.WithTokenSource(f.store.Token))
	if err != nil {
		t.Fatalf("NewSocket failed: %v", err)
	}
	t.Cleanup(func() { f.socket.Close() })

	f.view = New(f.group.ID, f.client, f.socket, f.store,
		WithNotifier(f.notes),
		WithNavigator(f.router),
	)
	t.Cleanup(f.view.Leave)
	return f
}

func (f *fixture) enter(t *testing.T) {
	t.Helper()
	if err := f.view.Enter(context.Background()); err != nil {
		t.Fatalf("Enter failed: %v", err)
	}
	waitFor(t, "room join", func() bool { return f.srv.InRoom(f.group.ID) == 1 })
}

// flush waits until every event broadcast before it has been handled.
// Handlers run in delivery order, so a marker message arriving means the
// earlier handlers, including their re-fetches, have finished.
func (f *fixture) flush(t *testing.T) {
	t.Helper()
	marker := "flush-" + time.Now().Format(time.RFC3339Nano)
	f.srv.Broadcast(f.group.ID, realtime.EventNewMessage, realtime.MessagePayload{
		GroupID:     f.group.ID,
		ChatMessage: models.ChatMessage{User: "Ann", UserID: f.ann.ID, Message: marker},
	})
	waitFor(t, "flush marker", func() bool {
		for _, m := range f.view.Messages() {
			if m.Message == marker {
				return true
			}
		}
		return false
	})
}

func (f *fixture) waitNote(t *testing.T, substr string) notify.Notification {
	t.Helper()
	var found notify.Notification
	waitFor(t, "notification "+substr, func() bool {
		for _, n := range f.notes.All() {
			if strings.Contains(n.Message, substr) {
				found = n
				return true
			}
		}
		return false
	})
	return found
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestEnter_JoinsRoomsAndLoadsSnapshot(t *testing.T) {
	f := newFixture(t, true)
	f.enter(t)

	if got := f.view.State(); got != Joined {
		t.Errorf("State() = %v, want %v", got, Joined)
	}
	snap := f.view.Snapshot()
	if snap == nil || snap.Name != "Trip" || len(snap.Members) != 2 {
		t.Fatalf("Snapshot() = %+v, want Trip with 2 members", snap)
	}
	waitFor(t, "user room join", func() bool { return f.srv.InUserRoom(f.ann.ID) == 1 })

	joins := f.srv.Received(realtime.EventJoinGroup)
	if len(joins) != 1 || !strings.Contains(string(joins[0].Data), f.group.ID) {
		t.Errorf("joinGroup frames = %v", joins)
	}
}

func TestEnter_WithoutCredentialRedirectsWithoutConnecting(t *testing.T) {
	f := newFixture(t, false)

	err := f.view.Enter(context.Background())
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Enter = %v, want ErrNotAuthenticated", err)
	}
	if got := f.router.Current(); got != navigation.RouteLogin {
		t.Errorf("route = %q, want %q", got, navigation.RouteLogin)
	}
	if f.socket.Connected() {
		t.Error("socket connected without a credential")
	}
	if n := f.srv.Connections(); n != 0 {
		t.Errorf("server saw %d connections, want 0", n)
	}
	if n := f.srv.Calls(getGroup); n != 0 {
		t.Errorf("group fetched %d times, want 0", n)
	}
	if got := f.view.State(); got != Disconnected {
		t.Errorf("State() = %v, want %v", got, Disconnected)
	}
}

func TestExpenseAdded_DuplicateIsNotAppended(t *testing.T) {
	f := newFixture(t, true)
	dinner := models.Expense{
		ID:          "e1",
		Description: "Dinner",
		Amount:      decimal.NewFromInt(90),
		PaidBy:      models.RefID(f.ann.ID),
		SplitAmong:  []models.MemberRef{models.RefID(f.ann.ID), models.RefID(f.bob.ID)},
	}
	f.srv.SeedExpense(f.group.ID, dinner)
	f.enter(t)

	f.srv.Broadcast(f.group.ID, realtime.EventExpenseAdded, realtime.ExpensePayload{GroupID: f.group.ID, Expense: dinner})
	f.flush(t)

	if n := f.srv.Calls(getGroup); n != 2 {
		t.Errorf("group fetched %d times, want 2 (enter + re-fetch)", n)
	}
	snap := f.view.Snapshot()
	if len(snap.Expenses) != 1 || snap.Expenses[0].ID != "e1" {
		t.Errorf("expenses = %+v, want only e1", snap.Expenses)
	}
}

func TestExpenseAdded_NewExpenseAppearsAndBalancesUpdate(t *testing.T) {
	f := newFixture(t, true)
	f.enter(t)

	_, err := f.client.AddExpense(context.Background(), f.group.ID, api.NewExpense{
		Description: "Taxi",
		Amount:      decimal.NewFromInt(30),
		PaidBy:      f.bob.ID,
		SplitAmong:  []string{f.ann.ID, f.bob.ID},
	})
	if err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}
	f.flush(t)

	if n := len(f.view.Snapshot().Expenses); n != 1 {
		t.Fatalf("expenses = %d, want 1", n)
	}

	want := map[string]string{f.ann.ID: "-15", f.bob.ID: "15"}
	for _, b := range f.view.Balances() {
		if b.Net.String() != want[b.MemberID] {
			t.Errorf("net(%s) = %s, want %s", b.MemberID, b.Net, want[b.MemberID])
		}
	}
	transfers := f.view.Transfers()
	if len(transfers) != 1 || transfers[0].From != f.ann.ID || transfers[0].To != f.bob.ID {
		t.Errorf("Transfers() = %+v, want Ann pays Bob", transfers)
	}
	if got := f.view.TotalSpent(); !got.Equal(decimal.NewFromInt(30)) {
		t.Errorf("TotalSpent() = %s, want 30", got)
	}
}

func TestMemberRemoved_RefetchesAndNotifies(t *testing.T) {
	f := newFixture(t, true)
	f.enter(t)

	if _, err := f.client.RemoveMember(context.Background(), f.group.ID, f.bob.Email); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}

	n := f.waitNote(t, "Bob")
	if n.Level != notify.Info {
		t.Errorf("level = %v, want info", n.Level)
	}
	if got := f.srv.Calls(getGroup); got != 2 {
		t.Errorf("group fetched %d times, want 2", got)
	}
	if members := f.view.Snapshot().Members; len(members) != 1 {
		t.Errorf("members = %+v, want only Ann", members)
	}
}

func TestMemberEvents_NotifyWithEmailWhenNameUnknown(t *testing.T) {
	f := newFixture(t, true)
	f.enter(t)

	if _, err := f.client.AddMember(context.Background(), f.group.ID, "cara@example.com"); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if _, err := f.client.CancelInvite(context.Background(), f.group.ID, "cara@example.com"); err != nil {
		t.Fatalf("CancelInvite failed: %v", err)
	}
	f.waitNote(t, "Invite for cara@example.com was cancelled")

	f.srv.Broadcast(f.group.ID, realtime.EventMemberAdded, realtime.MemberEvent{GroupID: f.group.ID, Email: "dan@example.com"})
	f.waitNote(t, "dan@example.com joined the group")
}

func TestMemberRemoved_SelfLeavesView(t *testing.T) {
	f := newFixture(t, true)
	f.enter(t)

	f.srv.Broadcast(f.group.ID, realtime.EventMemberRemoved, realtime.MemberEvent{GroupID: f.group.ID, Name: "Ann", Email: f.ann.Email})
	f.waitNote(t, "You were removed")

	if got := f.router.Current(); got != navigation.RouteDashboard {
		t.Errorf("route = %q, want %q", got, navigation.RouteDashboard)
	}
	if got := f.view.State(); got != Disconnected {
		t.Errorf("State() = %v, want %v", got, Disconnected)
	}
}

func TestEventsForOtherGroupsAreIgnored(t *testing.T) {
	f := newFixture(t, true)
	f.enter(t)

	f.srv.Broadcast(f.group.ID, realtime.EventMemberAdded, realtime.MemberEvent{GroupID: "other", Name: "Zed"})
	f.flush(t)

	if got := f.srv.Calls(getGroup); got != 1 {
		t.Errorf("group fetched %d times, want 1", got)
	}
	for _, n := range f.notes.All() {
		if strings.Contains(n.Message, "Zed") {
			t.Errorf("unexpected notification %q", n.Message)
		}
	}
}

func TestNewMessage_NotifiesOnlyForOthers(t *testing.T) {
	f := newFixture(t, true)
	f.enter(t)

	f.srv.Broadcast(f.group.ID, realtime.EventNewMessage, realtime.MessagePayload{
		GroupID:     f.group.ID,
		ChatMessage: models.ChatMessage{User: "Bob", UserID: f.bob.ID, Message: "hello"},
	})
	f.waitNote(t, "Bob: hello")

	if err := f.view.SendMessage("  hi bob  "); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	waitFor(t, "echoed message", func() bool { return len(f.view.Messages()) == 2 })

	msgs := f.view.Messages()
	if msgs[0].Message != "hello" || msgs[1].Message != "hi bob" || msgs[1].UserID != f.ann.ID {
		t.Errorf("messages = %+v", msgs)
	}
	for _, n := range f.notes.All() {
		if strings.Contains(n.Message, "hi bob") {
			t.Errorf("own message notified: %q", n.Message)
		}
	}
}

func TestSendMessage_Errors(t *testing.T) {
	f := newFixture(t, true)

	if err := f.view.SendMessage("hi"); !errors.Is(err, ErrNotJoined) {
		t.Errorf("SendMessage before Enter = %v, want ErrNotJoined", err)
	}
	f.enter(t)
	if err := f.view.SendMessage("   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("SendMessage(blank) = %v, want ErrEmptyMessage", err)
	}
}

func TestLeave_ReleasesSubscriptions(t *testing.T) {
	f := newFixture(t, true)
	f.enter(t)

	if n := f.socket.Handlers(realtime.EventNewMessage); n != 1 {
		t.Fatalf("handlers = %d, want 1", n)
	}
	f.view.Leave()
	for _, event := range []string{
		realtime.EventNewMessage, realtime.EventExpenseAdded, realtime.EventMemberAdded,
		realtime.EventMemberRemoved, realtime.EventInviteCancelled, realtime.EventDisconnect,
	} {
		if n := f.socket.Handlers(event); n != 0 {
			t.Errorf("%s handlers after Leave = %d, want 0", event, n)
		}
	}
	if !f.socket.Connected() {
		t.Error("Leave closed the shared socket")
	}

	// Re-entering on the same socket must not double the handlers.
	if err := f.view.Enter(context.Background()); err != nil {
		t.Fatalf("re-Enter failed: %v", err)
	}
	if n := f.socket.Handlers(realtime.EventNewMessage); n != 1 {
		t.Errorf("handlers after re-Enter = %d, want 1", n)
	}
}

func TestDisconnect_MovesToDisconnected(t *testing.T) {
	f := newFixture(t, true)
	f.enter(t)

	f.srv.DropConnections()
	n := f.waitNote(t, "Connection lost")
	if n.Level != notify.Error {
		t.Errorf("level = %v, want error", n.Level)
	}
	if got := f.view.State(); got != Disconnected {
		t.Errorf("State() = %v, want %v", got, Disconnected)
	}
}

func TestRefetchUnauthorized_ClearsSessionAndRedirects(t *testing.T) {
	f := newFixture(t, true)
	f.enter(t)

	f.srv.RevokeTokens()
	f.srv.Broadcast(f.group.ID, realtime.EventMemberAdded, realtime.MemberEvent{GroupID: f.group.ID, Name: "Cara"})

	n := f.waitNote(t, api.SessionExpiredMessage)
	if n.Level != notify.Error {
		t.Errorf("level = %v, want error", n.Level)
	}
	if got := f.router.Current(); got != navigation.RouteLogin {
		t.Errorf("route = %q, want %q", got, navigation.RouteLogin)
	}
	if _, err := f.store.Credential(context.Background()); !errors.Is(err, session.ErrNoCredential) {
		t.Errorf("Credential() = %v, want ErrNoCredential", err)
	}
	waitFor(t, "disconnected state", func() bool { return f.view.State() == Disconnected })
}
