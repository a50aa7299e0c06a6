package models

import "time"

// Group is the snapshot of one group as returned by the API.
// A Group is created by a fetch and replaced wholesale by every re-fetch;
// realtime events patch it in between.
type Group struct {
	// ID is the unique identifier for the group.
	ID string `json:"id"`

	// Name is the display name of the group (e.g., "Roommates", "Trip").
	Name string `json:"name"`

	// CreatedBy is the user ID of the group owner.
	CreatedBy string `json:"createdBy,omitempty"`

	// Members is the ordered list of members.
	Members []Member `json:"members"`

	// Expenses is the ordered list of expenses, oldest first.
	Expenses []Expense `json:"expenses"`

	// Messages is the chat history in delivery order.
	Messages []ChatMessage `json:"messages"`

	// Invites are the pending invitations by email.
	Invites []Invite `json:"invites"`
}

// Member represents a group participant.
type Member struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Invite is a pending membership request.
type Invite struct {
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Member returns the member with the given ID.
func (g *Group) Member(id string) (Member, bool) {
	for _, m := range g.Members {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

// DisplayName resolves a member ID to its name, falling back to the email
// and then to the ID itself.
func (g *Group) DisplayName(id string) string {
	m, ok := g.Member(id)
	switch {
	case !ok:
		return id
	case m.Name != "":
		return m.Name
	case m.Email != "":
		return m.Email
	default:
		return id
	}
}

// Clone returns a deep copy of the group so callers can read it without
// holding the owner's lock.
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	c := *g
	c.Members = append([]Member(nil), g.Members...)
	c.Messages = append([]ChatMessage(nil), g.Messages...)
	c.Invites = append([]Invite(nil), g.Invites...)
	c.Expenses = make([]Expense, len(g.Expenses))
	for i, e := range g.Expenses {
		c.Expenses[i] = e.Clone()
	}
	if g.Expenses == nil {
		c.Expenses = nil
	}
	return &c
}
