package groupview

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mmynk/splitroom/internal/navigation"
	"github.com/mmynk/splitroom/internal/notify"
	"github.com/mmynk/splitroom/internal/realtime"
)

func (v *View) decode(event string, data json.RawMessage, out any) bool {
	if err := json.Unmarshal(data, out); err != nil {
		v.logger.Warn("Dropping malformed realtime event", "event", event, "error", err)
		return false
	}
	return true
}

// ours reports whether an event addressed to groupID belongs to this view.
// Events without a group ID came through the group's room.
func (v *View) ours(groupID string) bool {
	return groupID == "" || groupID == v.groupID
}

func (v *View) onNewMessage(_ uint64, data json.RawMessage) {
	var p realtime.MessagePayload
	if !v.decode(realtime.EventNewMessage, data, &p) || !v.ours(p.GroupID) {
		return
	}

	v.mu.Lock()
	if v.group != nil {
		v.group.Messages = append(v.group.Messages, p.ChatMessage)
	}
	fromOther := p.UserID != v.user.ID
	v.mu.Unlock()

	if fromOther {
		v.notify(notify.Info, "%s: %s", p.User, p.Message)
	}
}

func (v *View) onExpenseAdded(gen uint64, data json.RawMessage) {
	var p realtime.ExpensePayload
	if !v.decode(realtime.EventExpenseAdded, data, &p) || !v.ours(p.GroupID) {
		return
	}

	v.mu.Lock()
	if v.group != nil && p.ID != "" && v.expenses.MergeIfAbsent(p.Expense.Clone()) {
		v.group.Expenses = v.expenses.Items()
	}
	v.mu.Unlock()

	_ = v.refetch(context.Background(), gen, realtime.EventExpenseAdded)
}

func (v *View) onMemberAdded(gen uint64, data json.RawMessage) {
	var p realtime.MemberEvent
	if !v.decode(realtime.EventMemberAdded, data, &p) || !v.ours(p.GroupID) {
		return
	}
	v.reconcile(gen, realtime.EventMemberAdded, "%s joined the group", p.Label())
}

func (v *View) onMemberRemoved(gen uint64, data json.RawMessage) {
	var p realtime.MemberEvent
	if !v.decode(realtime.EventMemberRemoved, data, &p) || !v.ours(p.GroupID) {
		return
	}

	v.mu.Lock()
	self := v.isSelf(p)
	v.mu.Unlock()
	if self {
		v.Leave()
		v.navigate(navigation.RouteDashboard)
		v.notify(notify.Info, "You were removed from the group")
		return
	}

	v.reconcile(gen, realtime.EventMemberRemoved, "%s was removed from the group", p.Label())
}

// isSelf matches on the most specific identity the payload carries.
func (v *View) isSelf(p realtime.MemberEvent) bool {
	switch {
	case p.UserID != "":
		return p.UserID == v.user.ID
	case p.Email != "":
		return strings.EqualFold(p.Email, v.user.Email)
	case p.Name != "":
		return p.Name == v.user.Name
	}
	return false
}

func (v *View) onInviteCancelled(gen uint64, data json.RawMessage) {
	var p realtime.InviteCancelled
	if !v.decode(realtime.EventInviteCancelled, data, &p) || !v.ours(p.GroupID) {
		return
	}
	v.reconcile(gen, realtime.EventInviteCancelled, "Invite for %s was cancelled", p.Email)
}

// reconcile re-fetches the snapshot, then reports the event. A failed fetch
// reports its own error but does not swallow the event. Nothing is reported
// once the view has moved to another generation.
func (v *View) reconcile(gen uint64, reason, format string, args ...any) {
	if err := v.refetch(context.Background(), gen, reason); errors.Is(err, errStale) {
		return
	}
	if !v.current(gen) {
		return
	}
	v.notify(notify.Info, format, args...)
}

func (v *View) onDisconnect(gen uint64, _ json.RawMessage) {
	v.abort(gen)
	v.logger.Warn("Realtime connection lost")
	v.notify(notify.Error, "Connection lost. Re-open the group to receive updates.")
}
