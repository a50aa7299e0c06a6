package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitroom/internal/models"
)

// NewExpense is the input of AddExpense.
type NewExpense struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	PaidBy      string          `json:"paidBy"`
	SplitAmong  []string        `json:"splitAmong"`
}

func (e NewExpense) validate() error {
	if err := required("description", e.Description); err != nil {
		return err
	}
	if !e.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "Amount must be greater than zero."}
	}
	if !e.Amount.Equal(e.Amount.Round(2)) {
		return &ValidationError{Field: "amount", Message: "Amount can have at most two decimal places."}
	}
	if err := required("payer", e.PaidBy); err != nil {
		return err
	}
	if len(e.SplitAmong) == 0 {
		return &ValidationError{Field: "split", Message: "Select at least one member to split with."}
	}
	for _, id := range e.SplitAmong {
		if strings.TrimSpace(id) == "" {
			return &ValidationError{Field: "split", Message: "Select at least one member to split with."}
		}
	}
	return nil
}

// AddExpense records an expense in the group.
func (c *Client) AddExpense(ctx context.Context, groupID string, in NewExpense) (*models.Expense, error) {
	if err := required("group", groupID); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	in.Description = strings.TrimSpace(in.Description)

	var expense models.Expense
	ok, err := c.do(ctx, request{
		op:     "add_expense",
		method: http.MethodPost,
		path:   "/api/expenses/" + escape(groupID),
		body:   in,
	}, &expense)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &expense, nil
}
