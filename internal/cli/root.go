// Package cli is the shoplist command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/shoplist/internal/ui"
)

// Exit codes: 0 ok, 1 runtime error, 2 usage.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// exitError carries an exit code out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func usageErr(format string, a ...any) error {
	return &exitError{code: ExitUsage, msg: fmt.Sprintf(format, a...)}
}

func runtimeErr(format string, a ...any) error {
	return &exitError{code: ExitError, msg: fmt.Sprintf(format, a...)}
}

// flags are the persistent root flags.
type flags struct {
	configPath string
	backend    string
	theme      string
}

// Run executes the command line and returns an exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, os.Stdout, os.Stderr, nil)
}

// run is Run with injectable streams and app factory, for tests.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, open opener) int {
	if open == nil {
		open = openApp
	}
	root := newRootCmd(open)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	ui.Fail(stderr, err.Error())
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// Anything cobra rejects itself is a usage problem.
	fmt.Fprintln(stderr)
	_ = root.Usage()
	return ExitUsage
}

func newRootCmd(open opener) *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:   "shoplist",
		Short: "A live shopping list shared across terminals",
		Long: `shoplist keeps one shopping list in a shared Record Store (a JSON file,
memory, or Cloud Firestore). Every open "shoplist ls" updates live as
items are added, ticked off or removed from anywhere.`,
		Example: `  shoplist add "Oat milk"
  shoplist ls
  shoplist done 2
  shoplist rm 3`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "config file (default ./shoplist.yaml or $SHOPLIST_CONFIG)")
	root.PersistentFlags().StringVar(&f.backend, "backend", "", "record store: memory, json or firestore")
	root.PersistentFlags().StringVar(&f.theme, "theme", "", "color theme: classic, neon or mono")

	root.AddCommand(
		newListCmd(f, open),
		newAddCmd(f, open),
		newDoneCmd(f, open),
		newRemoveCmd(f, open),
		newWatchCmd(f, open),
	)
	return root
}
