package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitroom/internal/models"
)

// Balance is the derived money summary of one member. It is never stored:
// callers recompute it from the current group snapshot.
type Balance struct {
	MemberID string
	Paid     decimal.Decimal // Raw sum of expenses this member paid
	Share    decimal.Decimal // Sum of this member's rounded shares
	Net      decimal.Decimal // Positive = owed money, Negative = owes money
}

// Settled reports whether the member neither owes nor is owed.
func (b Balance) Settled() bool {
	return b.Net.IsZero()
}

// Transfer is a suggested payment that settles part of the group's debts.
type Transfer struct {
	From   string // Member who owes
	To     string // Member who is owed
	Amount decimal.Decimal
}

// Calculator computes balances under a split policy.
// The zero value uses RoundEach.
type Calculator struct {
	Policy Policy
}

// MemberBalance computes paid, share and net for memberID over expenses
// using the RoundEach policy.
func MemberBalance(memberID string, expenses []models.Expense) Balance {
	return Calculator{}.MemberBalance(memberID, expenses)
}

// GroupBalances computes balances for every member of the group using the
// RoundEach policy.
func GroupBalances(group *models.Group) []Balance {
	return Calculator{}.GroupBalances(group)
}

// MemberBalance computes paid, share and net for memberID.
//
// Algorithm:
// - paid: raw amount of every expense whose payer is memberID
// - share: for each expense splitting with memberID, that member's share
// - net: round(paid - share, 2)
//
// An unknown member accumulates nothing. Expenses with an empty split are
// skipped for shares.
func (c Calculator) MemberBalance(memberID string, expenses []models.Expense) Balance {
	bal := Balance{
		MemberID: memberID,
		Paid:     decimal.Zero,
		Share:    decimal.Zero,
	}

	for _, e := range expenses {
		if e.PaidBy.ID() == memberID {
			bal.Paid = bal.Paid.Add(e.Amount)
		}
		if share, ok := c.shareFor(e, memberID); ok {
			bal.Share = bal.Share.Add(share)
		}
	}

	bal.Net = bal.Paid.Sub(bal.Share).Round(2)
	return bal
}

// GroupBalances returns one Balance per group member, in member order.
// Former members that still appear on expenses are appended in order of
// first appearance so their debts stay visible.
func (c Calculator) GroupBalances(group *models.Group) []Balance {
	if group == nil {
		return nil
	}

	ids := make([]string, 0, len(group.Members))
	seen := make(map[string]bool, len(group.Members))
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}
	for _, m := range group.Members {
		add(m.ID)
	}
	for _, e := range group.Expenses {
		add(e.PaidBy.ID())
		for _, ref := range e.SplitAmong {
			add(ref.ID())
		}
	}

	balances := make([]Balance, len(ids))
	for i, id := range ids {
		balances[i] = c.MemberBalance(id, group.Expenses)
	}
	return balances
}

// shareFor returns memberID's share of e, or false when the member is not
// part of the split.
func (c Calculator) shareFor(e models.Expense, memberID string) (decimal.Decimal, bool) {
	n := len(e.SplitAmong)
	if n == 0 {
		return decimal.Zero, false
	}

	idx := -1
	for i, ref := range e.SplitAmong {
		if ref.ID() == memberID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return decimal.Zero, false
	}

	if c.Policy == LargestRemainder {
		return Allocate(e.Amount, n)[idx], true
	}
	return ShareOf(e.Amount, n), true
}

// TotalSpent sums the amounts of all expenses.
func TotalSpent(expenses []models.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// SimplifyDebts turns net balances into a short list of transfers.
//
// Algorithm (greedy):
// - creditors (net > 0) and debtors (net < 0) are sorted by amount, largest first
// - the largest debtor pays the largest creditor the smaller of the two amounts
// - whoever is fully settled is dropped and matching continues
//
// Ties are broken by member ID so the output is deterministic.
func SimplifyDebts(balances []Balance) []Transfer {
	type party struct {
		id     string
		amount decimal.Decimal
	}

	var creditors, debtors []party
	for _, b := range balances {
		switch {
		case b.Net.IsPositive():
			creditors = append(creditors, party{b.MemberID, b.Net})
		case b.Net.IsNegative():
			debtors = append(debtors, party{b.MemberID, b.Net.Neg()})
		}
	}

	byAmount := func(ps []party) func(i, j int) bool {
		return func(i, j int) bool {
			if c := ps[i].amount.Cmp(ps[j].amount); c != 0 {
				return c > 0
			}
			return ps[i].id < ps[j].id
		}
	}
	sort.Slice(creditors, byAmount(creditors))
	sort.Slice(debtors, byAmount(debtors))

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := decimal.Min(debtors[i].amount, creditors[j].amount)
		if amount.IsPositive() {
			transfers = append(transfers, Transfer{
				From:   debtors[i].id,
				To:     creditors[j].id,
				Amount: amount,
			})
		}

		debtors[i].amount = debtors[i].amount.Sub(amount)
		creditors[j].amount = creditors[j].amount.Sub(amount)

		if !debtors[i].amount.IsPositive() {
			i++
		}
		if !creditors[j].amount.IsPositive() {
			j++
		}
	}

	return transfers
}
