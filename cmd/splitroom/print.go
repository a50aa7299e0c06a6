package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mmynk/splitroom/internal/calculator"
	"github.com/mmynk/splitroom/internal/models"
)

func printGroup(w io.Writer, g *models.Group, calc calculator.Calculator) {
	fmt.Fprintf(w, "%s (%s)\n\n", g.Name, g.ID)

	fmt.Fprintln(w, "Members:")
	for _, m := range g.Members {
		fmt.Fprintf(w, "  %s <%s>\n", m.Name, m.Email)
	}
	if len(g.Invites) > 0 {
		fmt.Fprintln(w, "Pending invites:")
		for _, inv := range g.Invites {
			fmt.Fprintf(w, "  %s\n", inv.Email)
		}
	}

	fmt.Fprintln(w)
	if len(g.Expenses) == 0 {
		fmt.Fprintln(w, "No expenses yet.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tDESCRIPTION\tAMOUNT\tPAID BY\tSPLIT")
		for _, e := range g.Expenses {
			split := make([]string, len(e.SplitAmong))
			for i, ref := range e.SplitAmong {
				split[i] = g.DisplayName(ref.ID())
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				e.CreatedAt.Local().Format("2006-01-02"),
				e.Description,
				e.Amount.StringFixed(2),
				payerName(g, e.PaidBy),
				strings.Join(split, ", "),
			)
		}
		tw.Flush()
		fmt.Fprintf(w, "Total spent: %s\n", calculator.TotalSpent(g.Expenses).StringFixed(2))
	}

	fmt.Fprintln(w)
	balances := calc.GroupBalances(g)
	printBalances(w, g, balances, calculator.SimplifyDebts(balances))
}

func printBalances(w io.Writer, g *models.Group, balances []calculator.Balance, transfers []calculator.Transfer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "MEMBER\tPAID\tSHARE\tNET\t")
	for _, b := range balances {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", g.DisplayName(b.MemberID), b.Paid.StringFixed(2), b.Share.StringFixed(2), signed(b))
	}
	tw.Flush()

	if len(transfers) == 0 {
		fmt.Fprintln(w, "\nEveryone is settled up.")
		return
	}
	fmt.Fprintln(w, "\nSettle up:")
	for _, t := range transfers {
		fmt.Fprintf(w, "  %s pays %s %s\n", g.DisplayName(t.From), g.DisplayName(t.To), t.Amount.StringFixed(2))
	}
}

// signed renders a net balance: "+" is owed, "-" owes.
func signed(b calculator.Balance) string {
	switch {
	case b.Settled():
		return "0.00"
	case b.Net.IsPositive():
		return "+" + b.Net.StringFixed(2)
	default:
		return b.Net.StringFixed(2)
	}
}

// payerName prefers the record the API embedded, then the member list.
func payerName(g *models.Group, ref models.MemberRef) string {
	if m, ok := ref.Member(); ok && m.Name != "" {
		return m.Name
	}
	return g.DisplayName(ref.ID())
}
