package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/idilsaglam/shoplist/internal/listsync"
	"github.com/idilsaglam/shoplist/internal/model"
	"github.com/idilsaglam/shoplist/internal/tui"
	"github.com/idilsaglam/shoplist/internal/ui"
)

// -------------- ls ----------------

func newListCmd(f *flags, open opener) *cobra.Command {
	var plain, group bool
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "Show the list (interactive, updates live)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open(cmd.Context(), f, !plain)
			if err != nil {
				return err
			}
			defer a.Close()

			if plain {
				rows, err := a.current(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ui.ListPanel(rows, group))
				return nil
			}
			return runTUI(cmd.Context(), a)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print the list once instead of opening the TUI")
	cmd.Flags().BoolVar(&group, "group", false, "with --plain, group by to-buy/purchased")
	return cmd
}

// runTUI binds the synchronizer to a bubbletea program for its lifetime.
func runTUI(ctx context.Context, a *app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(tui.New(ctx, a.dispatch), tea.WithAltScreen(), tea.WithContext(ctx))
	syncer := listsync.New(a.store, a.query, a.log,
		listsync.WithMetrics(a.metrics),
		listsync.OnChange(func(rows []model.Row) { p.Send(tui.RowsMsg(rows)) }),
	)
	if err := syncer.Start(ctx); err != nil {
		return runtimeErr("subscribe: %v", err)
	}
	defer syncer.Stop()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return runtimeErr("tui: %v", err)
	}
	return nil
}

// -------------- add ----------------

func newAddCmd(f *flags, open opener) *cobra.Command {
	return &cobra.Command{
		Use:     "add <text...>",
		Short:   "Add a product (text can be multiple words)",
		Example: `  shoplist add "Buy milk"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if strings.TrimSpace(text) == "" {
				return usageErr("add: empty text")
			}
			a, err := open(cmd.Context(), f, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.dispatch.Add(cmd.Context(), text) {
				return runtimeErr("add: not saved")
			}
			ui.OK(cmd.OutOrStdout(), "added")
			return nil
		},
	}
}

// -------------- done / rm ----------------

func newDoneCmd(f *flags, open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "done <index>",
		Short: "Toggle purchased for the item at a 1-based index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRow(cmd, f, open, "done", args[0], func(a *app, row model.Row) error {
				a.dispatch.TogglePurchased(cmd.Context(), row.ID, row.IsPurchased)
				ui.OK(cmd.OutOrStdout(), "toggled")
				return nil
			})
		},
	}
}

func newRemoveCmd(f *flags, open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <index>",
		Short: "Remove the item at a 1-based index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRow(cmd, f, open, "rm", args[0], func(a *app, row model.Row) error {
				if row.IsPurchased {
					return usageErr("rm: %q is purchased; toggle it back with `shoplist done` first", row.Text)
				}
				a.dispatch.Delete(cmd.Context(), row.ID)
				ui.OK(cmd.OutOrStdout(), "removed")
				return nil
			})
		},
	}
}

// withRow resolves a 1-based index against the current snapshot.
func withRow(cmd *cobra.Command, f *flags, open opener, name, arg string, fn func(*app, model.Row) error) error {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return usageErr("%s: not a number: %s", name, arg)
	}
	a, err := open(cmd.Context(), f, false)
	if err != nil {
		return err
	}
	defer a.Close()

	rows, err := a.current(cmd.Context())
	if err != nil {
		return err
	}
	if n < 1 || n > len(rows) {
		return usageErr("index out of range: have %d, got %d (run `shoplist ls --plain` to see valid indexes)", len(rows), n)
	}
	return fn(a, rows[n-1])
}

// -------------- watch ----------------

func newWatchCmd(f *flags, open opener) *cobra.Command {
	var group bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the list every time it changes, until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open(cmd.Context(), f, false)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			syncer := listsync.New(a.store, a.query, a.log,
				listsync.WithMetrics(a.metrics),
				listsync.OnChange(func(rows []model.Row) { fmt.Fprintln(out, ui.ListPanel(rows, group)) }),
			)
			if err := syncer.Start(cmd.Context()); err != nil {
				return runtimeErr("subscribe: %v", err)
			}
			defer syncer.Stop()

			<-cmd.Context().Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&group, "group", false, "group by to-buy/purchased")
	return cmd
}
