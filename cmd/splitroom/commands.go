package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitroom/internal/api"
	"github.com/mmynk/splitroom/internal/calculator"
	"github.com/mmynk/splitroom/internal/groupview"
	"github.com/mmynk/splitroom/internal/models"
	"github.com/mmynk/splitroom/internal/notify"
)

func newFlagSet(a *app, name, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "usage: splitroom %s\n\nflags:\n", synopsis)
		fs.PrintDefaults()
	}
	return fs
}

func requireFlag(fs *flag.FlagSet, name, value string) error {
	if strings.TrimSpace(value) == "" {
		fs.Usage()
		return &api.ValidationError{Field: name, Message: fmt.Sprintf("The -%s flag is required.", name)}
	}
	return nil
}

// readPassword takes the password from the flag or, when empty, from the
// first line of stdin.
func readPassword(a *app, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	fmt.Fprint(a.stderr, "Password: ")
	line, _ := bufio.NewReader(a.stdin).ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "login", "login -email EMAIL [-password PASSWORD]")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (read from stdin when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cred, err := a.client.Login(ctx, *email, readPassword(a, *password))
	if err != nil {
		return err
	}
	notify.Successf(a.notifier, "Logged in as %s", displayUser(cred.User))
	return nil
}

func runSignup(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "signup", "signup -name NAME -email EMAIL [-password PASSWORD]")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (read from stdin when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cred, err := a.client.Signup(ctx, *name, *email, readPassword(a, *password))
	if err != nil {
		return err
	}
	notify.Successf(a.notifier, "Welcome, %s", displayUser(cred.User))
	return nil
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	notify.Successf(a.notifier, "Logged out")
	return nil
}

func runGroups(ctx context.Context, a *app, _ []string) error {
	groups, err := a.client.ListGroups(ctx)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Fprintln(a.stdout, "No groups yet. Create one with 'splitroom create-group'.")
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMEMBERS\tSPENT")
	for _, g := range groups {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", g.ID, g.Name, len(g.Members), calculator.TotalSpent(g.Expenses).StringFixed(2))
	}
	return tw.Flush()
}

func runCreateGroup(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "create-group", "create-group -name NAME [-members a@x.com,b@y.com]")
	name := fs.String("name", "", "group name")
	members := fs.String("members", "", "comma-separated member emails")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := a.client.CreateGroup(ctx, *name, splitList(*members))
	if err != nil {
		return err
	}
	notify.Successf(a.notifier, "Created group %s (%s)", res.Group.Name, res.Group.ID)
	for _, email := range res.Added {
		notify.Infof(a.notifier, "Added %s", email)
	}
	for _, failure := range res.Failures() {
		notify.Errorf(a.notifier, "Could not add %s", failure)
	}
	return nil
}

func runDeleteGroup(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "delete-group", "delete-group -group ID")
	groupID := fs.String("group", "", "group ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(fs, "group", *groupID); err != nil {
		return err
	}

	if err := a.client.DeleteGroup(ctx, *groupID); err != nil {
		return err
	}
	notify.Successf(a.notifier, "Group deleted")
	return nil
}

func runShow(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "show", "show -group ID")
	groupID := fs.String("group", "", "group ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(fs, "group", *groupID); err != nil {
		return err
	}

	g, err := a.client.GetGroup(ctx, *groupID)
	if err != nil {
		return err
	}
	printGroup(a.stdout, g, a.calc)
	return nil
}

func memberCommand(name string, do func(c *api.Client, ctx context.Context, groupID, email string) (*models.Group, error), done string) command {
	return func(ctx context.Context, a *app, args []string) error {
		fs := newFlagSet(a, name, name+" -group ID -email EMAIL")
		groupID := fs.String("group", "", "group ID")
		email := fs.String("email", "", "member email")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := requireFlag(fs, "group", *groupID); err != nil {
			return err
		}

		if _, err := do(a.client, ctx, *groupID, *email); err != nil {
			return err
		}
		notify.Successf(a.notifier, done, *email)
		return nil
	}
}

var (
	runAddMember    = memberCommand("add-member", (*api.Client).AddMember, "Added %s")
	runRemoveMember = memberCommand("remove-member", (*api.Client).RemoveMember, "Removed %s")
	runCancelInvite = memberCommand("cancel-invite", (*api.Client).CancelInvite, "Cancelled the invite for %s")
)

func runAddExpense(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "add-expense", "add-expense -group ID -description TEXT -amount 12.50 [-paid-by MEMBER] [-split a,b]")
	groupID := fs.String("group", "", "group ID")
	description := fs.String("description", "", "what was paid for")
	amount := fs.String("amount", "", "amount with at most two decimals")
	paidBy := fs.String("paid-by", "", "payer ID, email or name (default: you)")
	split := fs.String("split", "", "comma-separated member IDs, emails or names (default: everyone)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(fs, "group", *groupID); err != nil {
		return err
	}
	value, err := decimal.NewFromString(strings.TrimSpace(*amount))
	if err != nil {
		return &api.ValidationError{Field: "amount", Message: fmt.Sprintf("Invalid amount %q.", *amount)}
	}

	g, err := a.client.GetGroup(ctx, *groupID)
	if err != nil {
		return err
	}
	in := api.NewExpense{Description: *description, Amount: value}

	payer := *paidBy
	if payer == "" {
		me, err := a.store.User(ctx)
		if err != nil {
			return err
		}
		payer = me.ID
	}
	if in.PaidBy, err = resolveMember(g, payer); err != nil {
		return err
	}

	names := splitList(*split)
	if len(names) == 0 {
		for _, m := range g.Members {
			in.SplitAmong = append(in.SplitAmong, m.ID)
		}
	}
	for _, n := range names {
		id, err := resolveMember(g, n)
		if err != nil {
			return err
		}
		in.SplitAmong = append(in.SplitAmong, id)
	}

	e, err := a.client.AddExpense(ctx, g.ID, in)
	if err != nil {
		return err
	}
	if e == nil {
		notify.Successf(a.notifier, "Expense added")
		return nil
	}
	notify.Successf(a.notifier, "Added %s: %s", e.Description, e.Amount.StringFixed(2))
	return nil
}

func runChat(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "chat", "chat -group ID")
	groupID := fs.String("group", "", "group ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireFlag(fs, "group", *groupID); err != nil {
		return err
	}

	socket, err := a.realtimeSocket()
	if err != nil {
		return err
	}
	view := groupview.New(*groupID, a.client, socket, a.store,
		groupview.WithNotifier(a.notifier),
		groupview.WithNavigator(a.router),
		groupview.WithCalculator(a.calc),
		groupview.WithMetrics(a.metrics),
		groupview.WithFetchTimeout(a.cfg.HTTPTimeout),
	)
	if err := view.Enter(ctx); err != nil {
		return err
	}
	defer view.Leave()

	g := view.Snapshot()
	fmt.Fprintf(a.stdout, "# %s (%d members). Type a message and press enter; Ctrl-D to leave.\n", g.Name, len(g.Members))
	for _, m := range view.Messages() {
		fmt.Fprintf(a.stdout, "[%s] %s: %s\n", m.Time.Local().Format("15:04"), m.User, m.Message)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(a.stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := chatLine(a, view, line); errors.Is(err, io.EOF) {
				return nil
			} else if err != nil {
				return err
			}
		}
	}
}

func chatLine(a *app, view *groupview.View, line string) error {
	switch strings.TrimSpace(line) {
	case "/balances":
		printBalances(a.stdout, view.Snapshot(), view.Balances(), view.Transfers())
		return nil
	case "/quit":
		return io.EOF
	}

	err := view.SendMessage(line)
	switch {
	case errors.Is(err, groupview.ErrEmptyMessage):
		return nil
	case errors.Is(err, groupview.ErrNotJoined):
		return errors.New("connection lost, run 'splitroom chat' again")
	case err != nil:
		notify.Errorf(a.notifier, "Message not sent: %v", err)
	}
	return nil
}

func runTheme(ctx context.Context, a *app, args []string) error {
	settings, err := a.store.Settings(ctx)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		fmt.Fprintf(a.stdout, "Dark mode: %s\n", onOff(settings.DarkMode))
		return nil
	}

	switch strings.ToLower(args[0]) {
	case "on", "dark":
		settings.DarkMode = true
	case "off", "light":
		settings.DarkMode = false
	default:
		return &api.ValidationError{Field: "theme", Message: "Theme must be 'on' or 'off'."}
	}
	if err := a.store.SaveSettings(ctx, settings); err != nil {
		return err
	}
	notify.Successf(a.notifier, "Dark mode %s", onOff(settings.DarkMode))
	return nil
}

// resolveMember matches a member by ID, email or case-insensitive name.
func resolveMember(g *models.Group, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	for _, m := range g.Members {
		if m.ID == ref || strings.EqualFold(m.Email, ref) || strings.EqualFold(m.Name, ref) {
			return m.ID, nil
		}
	}
	return "", &api.ValidationError{Field: "member", Message: fmt.Sprintf("No member %q in %s.", ref, g.Name)}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func displayUser(u models.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
