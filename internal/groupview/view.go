// Package groupview keeps the live state of one group: the snapshot
// fetched over REST, patched by realtime events and reconciled by
// re-fetching after every membership or expense change.
//
// All state is owned by the View and guarded by its mutex. Realtime
// handlers run one at a time on the socket's reader goroutine. Each Enter
// starts a new generation; handlers and fetches from an older generation
// are discarded.
package groupview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mmynk/splitroom/internal/api"
	"github.com/mmynk/splitroom/internal/calculator"
	"github.com/mmynk/splitroom/internal/collection"
	"github.com/mmynk/splitroom/internal/metrics"
	"github.com/mmynk/splitroom/internal/models"
	"github.com/mmynk/splitroom/internal/navigation"
	"github.com/mmynk/splitroom/internal/notify"
	"github.com/mmynk/splitroom/internal/realtime"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotJoined        = errors.New("group view is not joined")
	ErrEmptyMessage     = errors.New("message is empty")

	errStale = errors.New("view moved on during fetch")
)

const defaultFetchTimeout = 15 * time.Second

// State is the connection state of a view.
type State int

const (
	Disconnected State = iota
	Connecting
	Joined
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Joined:
		return "joined"
	default:
		return "disconnected"
	}
}

// Fetcher loads group snapshots. *api.Client implements it.
type Fetcher interface {
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
}

// Transport is the realtime connection. *realtime.Socket implements it.
type Transport interface {
	Connect(ctx context.Context) error
	Connected() bool
	Emit(event string, payload any) error
	On(event string, h realtime.Handler) (release func())
}

// Credentials exposes the current session. *session.Store implements it.
type Credentials interface {
	Token(ctx context.Context) (string, error)
	User(ctx context.Context) (models.User, error)
}

// View is the live state of one group.
type View struct {
	groupID      string
	fetcher      Fetcher
	socket       Transport
	creds        Credentials
	notifier     notify.Notifier
	navigator    navigation.Navigator
	calc         calculator.Calculator
	logger       *slog.Logger
	metrics      *metrics.Metrics
	fetchTimeout time.Duration
	now          func() time.Time

	mu         sync.Mutex
	state      State
	user       models.User
	group      *models.Group
	expenses   *collection.Keyed[string, models.Expense]
	generation uint64
	releases   []func()
}

// Option configures a View.
type Option func(*View)

// WithNotifier sets where notifications are surfaced.
func WithNotifier(n notify.Notifier) Option {
	return func(v *View) { v.notifier = n }
}

// WithNavigator sets the navigator used for login redirects.
func WithNavigator(n navigation.Navigator) Option {
	return func(v *View) { v.navigator = n }
}

// WithCalculator sets the balance policy.
func WithCalculator(c calculator.Calculator) Option {
	return func(v *View) { v.calc = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *View) { v.logger = logger }
}

// WithMetrics records re-fetches and notifications.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *View) { v.metrics = m }
}

// WithFetchTimeout bounds re-fetches triggered by events.
func WithFetchTimeout(d time.Duration) Option {
	return func(v *View) { v.fetchTimeout = d }
}

// WithClock overrides the time stamped on outgoing messages.
func WithClock(now func() time.Time) Option {
	return func(v *View) { v.now = now }
}

// New creates a disconnected view of groupID.
func New(groupID string, fetcher Fetcher, socket Transport, creds Credentials, opts ...Option) *View {
	v := &View{
		groupID:      groupID,
		fetcher:      fetcher,
		socket:       socket,
		creds:        creds,
		logger:       slog.Default(),
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
		expenses:     collection.NewKeyed(expenseID),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.With("group_id", groupID)
	return v
}

func expenseID(e models.Expense) string { return e.ID }

// GroupID returns the viewed group.
func (v *View) GroupID() string {
	return v.groupID
}

// State returns the current connection state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Enter joins the group: it checks the credential, connects the socket if
// needed, loads the snapshot, subscribes to group events and announces the
// group and user rooms. Without a credential it redirects to login and
// never touches the socket.
func (v *View) Enter(ctx context.Context) error {
	if _, err := v.creds.Token(ctx); err != nil {
		v.logger.Info("No credential, redirecting to login", "error", err)
		v.navigate(navigation.RouteLogin)
		return fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}
	user, err := v.creds.User(ctx)
	if err != nil {
		v.navigate(navigation.RouteLogin)
		return fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}

	v.mu.Lock()
	if v.state == Joined {
		v.mu.Unlock()
		return nil
	}
	stale := v.resetLocked()
	gen := v.generation
	v.state = Connecting
	v.user = user
	v.mu.Unlock()
	release(stale)

	if !v.socket.Connected() {
		if err := v.socket.Connect(ctx); err != nil {
			v.abort(gen)
			return fmt.Errorf("connect realtime: %w", err)
		}
	}

	group, err := v.fetcher.GetGroup(ctx, v.groupID)
	if err != nil {
		v.abort(gen)
		return fmt.Errorf("load group: %w", err)
	}

	releases := []func(){
		v.socket.On(realtime.EventNewMessage, v.guard(gen, v.onNewMessage)),
		v.socket.On(realtime.EventExpenseAdded, v.guard(gen, v.onExpenseAdded)),
		v.socket.On(realtime.EventMemberAdded, v.guard(gen, v.onMemberAdded)),
		v.socket.On(realtime.EventMemberRemoved, v.guard(gen, v.onMemberRemoved)),
		v.socket.On(realtime.EventInviteCancelled, v.guard(gen, v.onInviteCancelled)),
		v.socket.On(realtime.EventDisconnect, v.guard(gen, v.onDisconnect)),
	}

	v.mu.Lock()
	if gen != v.generation {
		v.mu.Unlock()
		release(releases)
		return ErrNotJoined
	}
	v.applyLocked(group)
	v.releases = releases
	v.mu.Unlock()

	if err := v.socket.Emit(realtime.EventJoinGroup, realtime.JoinGroup{GroupID: v.groupID}); err != nil {
		v.abort(gen)
		return fmt.Errorf("join group: %w", err)
	}
	if err := v.socket.Emit(realtime.EventJoinUser, realtime.JoinUser{UserID: user.ID}); err != nil {
		v.abort(gen)
		return fmt.Errorf("join user: %w", err)
	}

	v.mu.Lock()
	if gen == v.generation {
		v.state = Joined
	}
	v.mu.Unlock()
	v.logger.Info("Joined group", "user_id", user.ID)
	return nil
}

// Leave releases every subscription. Results of fetches still in flight
// are discarded. The socket stays open for the next view.
func (v *View) Leave() {
	v.mu.Lock()
	stale := v.resetLocked()
	v.mu.Unlock()
	release(stale)
	v.logger.Debug("Left group")
}

// Refresh re-fetches the snapshot.
func (v *View) Refresh(ctx context.Context) error {
	v.mu.Lock()
	gen := v.generation
	v.mu.Unlock()
	if err := v.refetch(ctx, gen, "manual"); !errors.Is(err, errStale) {
		return err
	}
	return nil
}

// SendMessage publishes a chat message without waiting for the server.
// The message appears locally when the server relays it back.
func (v *View) SendMessage(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	v.mu.Lock()
	if v.state != Joined {
		v.mu.Unlock()
		return ErrNotJoined
	}
	user := v.user
	v.mu.Unlock()

	name := user.Name
	if name == "" {
		name = user.Email
	}
	return v.socket.Emit(realtime.EventSendMessage, realtime.SendMessage{
		GroupID: v.groupID,
		Message: text,
		User:    name,
		UserID:  user.ID,
		Time:    v.now().UTC(),
	})
}

// resetLocked starts a new generation and returns the subscriptions to
// release outside the lock.
func (v *View) resetLocked() []func() {
	v.generation++
	v.state = Disconnected
	stale := v.releases
	v.releases = nil
	return stale
}

func (v *View) abort(gen uint64) {
	v.mu.Lock()
	var stale []func()
	if gen == v.generation {
		stale = v.resetLocked()
	}
	v.mu.Unlock()
	release(stale)
}

func release(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

// guard drops events delivered to a generation that is no longer current.
func (v *View) guard(gen uint64, h func(gen uint64, data json.RawMessage)) realtime.Handler {
	return func(data json.RawMessage) {
		if !v.current(gen) {
			return
		}
		h(gen, data)
	}
}

func (v *View) current(gen uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return gen == v.generation
}

func (v *View) navigate(route string) {
	if v.navigator != nil {
		v.navigator.Navigate(route)
	}
}

// refetch replaces the snapshot with the server's. It returns errStale when
// the view left or re-entered while the fetch was in flight.
func (v *View) refetch(ctx context.Context, gen uint64, reason string) error {
	v.metrics.Refetch(reason)
	ctx, cancel := context.WithTimeout(ctx, v.fetchTimeout)
	defer cancel()

	group, err := v.fetcher.GetGroup(ctx, v.groupID)

	v.mu.Lock()
	if gen != v.generation {
		v.mu.Unlock()
		v.logger.Debug("Discarding stale fetch", "reason", reason)
		return errStale
	}
	if err == nil {
		v.applyLocked(group)
	}
	v.mu.Unlock()

	if err != nil {
		v.logger.Warn("Re-fetch failed", "reason", reason, "error", err)
		if errors.Is(err, api.ErrUnauthorized) {
			v.Leave()
		}
		v.notify(notify.Error, "%s", api.UserMessage(err))
		return err
	}
	return nil
}

func (v *View) applyLocked(group *models.Group) {
	if group == nil {
		return
	}
	v.group = group.Clone()
	v.expenses.Replace(v.group.Expenses)
}

func (v *View) notify(level notify.Level, format string, args ...any) {
	v.metrics.Notification(level.String())
	switch level {
	case notify.Error:
		notify.Errorf(v.notifier, format, args...)
	case notify.Success:
		notify.Successf(v.notifier, format, args...)
	default:
		notify.Infof(v.notifier, format, args...)
	}
}
