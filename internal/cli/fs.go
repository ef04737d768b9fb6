package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Ning0612/fsbridge/internal/progress"
	"github.com/Ning0612/fsbridge/internal/service"
)

// withTransfer opens the selected backend around fn
func (a *app) withTransfer(cmd *cobra.Command, fn func(ctx context.Context, tr *service.Transfer) error) error {
	ctx := cmd.Context()
	tr, closeFn, err := a.openTransfer(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, tr)
}

func (a *app) lsCommand() *cobra.Command {
	var pattern string

	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a backend directory",
		Long: `List the entries of a backend directory.

Each line shows the entry type (D or F), its id, its size and its name.

Examples:
  fsbridge ls
  fsbridge -b synth ls /A
  fsbridge -b drive ls /Patches --pattern '*.syx'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) > 0 {
				path = args[0]
			}

			return a.withTransfer(cmd, func(ctx context.Context, tr *service.Transfer) error {
				items, err := tr.List(ctx, path, pattern)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, it := range items {
					size := "-"
					if it.IsFile() {
						size = progress.HumanSize(int64(it.Size), true)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.Type, tr.Operations().GetID(it), size, it.DisplayName())
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "only list files whose name matches this glob (directories are always listed)")
	return cmd
}

func (a *app) mkdirCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a directory on the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withTransfer(cmd, func(ctx context.Context, tr *service.Transfer) error {
				return tr.Mkdir(ctx, args[0])
			})
		},
	}
}

func (a *app) rmCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <path>",
		Aliases: []string{"delete"},
		Short:   "Delete a file or directory on the backend",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withTransfer(cmd, func(ctx context.Context, tr *service.Transfer) error {
				return tr.Delete(ctx, args[0])
			})
		},
	}
}

func (a *app) mvCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "mv <src> <dst>",
		Aliases: []string{"move"},
		Short:   "Move an entry within the backend",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withTransfer(cmd, func(ctx context.Context, tr *service.Transfer) error {
				return tr.Move(ctx, args[0], args[1])
			})
		},
	}
}

func (a *app) cpCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "cp <src> <dst>",
		Aliases: []string{"copy"},
		Short:   "Copy an entry within the backend",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withTransfer(cmd, func(ctx context.Context, tr *service.Transfer) error {
				return tr.Copy(ctx, args[0], args[1])
			})
		},
	}
}

func (a *app) renameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <path> <new-name>",
		Short: "Rename an entry in place",
		Long: `Give an entry a new name in the same directory.

On slot devices this sets the slot label.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withTransfer(cmd, func(ctx context.Context, tr *service.Transfer) error {
				return tr.Rename(ctx, args[0], args[1])
			})
		},
	}
}

func (a *app) clearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <path>",
		Short: "Empty a slot or a bank",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withTransfer(cmd, func(ctx context.Context, tr *service.Transfer) error {
				return tr.Clear(ctx, args[0])
			})
		},
	}
}

func (a *app) swapCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "swap <a> <b>",
		Short: "Exchange the contents of two slots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withTransfer(cmd, func(ctx context.Context, tr *service.Transfer) error {
				return tr.Swap(ctx, args[0], args[1])
			})
		},
	}
}
