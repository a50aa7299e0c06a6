package groupview

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitroom/internal/calculator"
	"github.com/mmynk/splitroom/internal/models"
)

// Snapshot returns a copy of the current group, or nil before the first
// fetch.
func (v *View) Snapshot() *models.Group {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.group.Clone()
}

// Messages returns the chat history in delivery order.
func (v *View) Messages() []models.ChatMessage {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.group == nil {
		return nil
	}
	return append([]models.ChatMessage(nil), v.group.Messages...)
}

// Balances computes every member's balance from the current snapshot.
func (v *View) Balances() []calculator.Balance {
	return v.calc.GroupBalances(v.Snapshot())
}

// Transfers suggests the payments that settle the group.
func (v *View) Transfers() []calculator.Transfer {
	return calculator.SimplifyDebts(v.Balances())
}

// TotalSpent sums every expense of the group.
func (v *View) TotalSpent() decimal.Decimal {
	g := v.Snapshot()
	if g == nil {
		return decimal.Zero
	}
	return calculator.TotalSpent(g.Expenses)
}
