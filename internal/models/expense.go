package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Expense is an amount paid by one member and divided among a set of members.
type Expense struct {
	// ID is the unique identifier for the expense.
	ID string `json:"id"`

	// Description is the human-readable label (e.g., "Groceries").
	Description string `json:"description"`

	// Amount is the paid amount with two fraction digits. Never negative.
	Amount decimal.Decimal `json:"amount"`

	// PaidBy references the single payer.
	PaidBy MemberRef `json:"paidBy"`

	// SplitAmong references the members sharing the expense.
	// Never empty for a stored expense; calculations still guard against it.
	SplitAmong []MemberRef `json:"splitAmong"`

	// CreatedAt is when the expense was recorded.
	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a copy that does not share the SplitAmong slice.
func (e Expense) Clone() Expense {
	e.SplitAmong = append([]MemberRef(nil), e.SplitAmong...)
	return e
}

// Includes reports whether memberID is one of the members sharing the expense.
func (e Expense) Includes(memberID string) bool {
	for _, ref := range e.SplitAmong {
		if ref.ID() == memberID {
			return true
		}
	}
	return false
}

// MemberRef is a reference to a member that the API encodes either as a
// bare identifier or as a full member record.
type MemberRef struct {
	id     string
	member *Member
}

// RefID builds a reference from a bare identifier.
func RefID(id string) MemberRef {
	return MemberRef{id: id}
}

// RefMember builds a reference carrying the full record.
func RefMember(m Member) MemberRef {
	return MemberRef{id: m.ID, member: &m}
}

// ID returns the referenced member's identifier regardless of encoding.
func (r MemberRef) ID() string {
	return r.id
}

// Member returns the full record when the API provided one.
func (r MemberRef) Member() (Member, bool) {
	if r.member == nil {
		return Member{}, false
	}
	return *r.member, true
}

// MarshalJSON encodes the reference the way it was received.
func (r MemberRef) MarshalJSON() ([]byte, error) {
	if r.member != nil {
		return json.Marshal(r.member)
	}
	return json.Marshal(r.id)
}

// UnmarshalJSON accepts a string identifier or a member object.
func (r *MemberRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = MemberRef{}
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return fmt.Errorf("decode member id: %w", err)
		}
		*r = MemberRef{id: id}
		return nil
	}

	var m struct {
		ID    string `json:"id"`
		MID   string `json:"_id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode member reference: %w", err)
	}
	id := m.ID
	if id == "" {
		id = m.MID
	}
	*r = RefMember(Member{ID: id, Name: m.Name, Email: m.Email})
	return nil
}
