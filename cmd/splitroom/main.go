// Command splitroom is the terminal client: log in, manage groups, record
// expenses, see balances and chat with a group in realtime.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmynk/splitroom/internal/api"
	"github.com/mmynk/splitroom/internal/config"
	"github.com/mmynk/splitroom/pkg/logging"
)

const usage = `usage: splitroom <command> [flags]

commands:
  login          log in with email and password
  signup         create an account
  logout         forget the stored credential
  groups         list your groups
  create-group   create a group and invite members
  delete-group   delete a group you created
  show           show a group with balances and settle-up suggestions
  add-member     add or invite a member by email
  remove-member  remove a member by email
  cancel-invite  withdraw a pending invitation
  add-expense    record an expense
  chat           join a group's live chat
  theme          show or set dark mode (on|off)

Run 'splitroom <command> -h' for the flags of a command.
`

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"login":         runLogin,
	"signup":        runSignup,
	"logout":        runLogout,
	"groups":        runGroups,
	"create-group":  runCreateGroup,
	"delete-group":  runDeleteGroup,
	"show":          runShow,
	"add-member":    runAddMember,
	"remove-member": runRemoveMember,
	"cancel-invite": runCancelInvite,
	"add-expense":   runAddExpense,
	"chat":          runChat,
	"theme":         runTheme,
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stderr, usage)
		if len(args) == 0 {
			return 2
		}
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logging.SetupWithLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, stdin, stdout, stderr)
	if err != nil {
		slog.Error("Failed to start", "error", err)
		return 1
	}
	defer a.Close()

	if err := cmd(ctx, a, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		slog.Debug("Command failed", "command", args[0], "error", err)
		fmt.Fprintf(stderr, "✗ %s\n", api.UserMessage(err))
		return 1
	}
	return 0
}
