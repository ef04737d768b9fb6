package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Ning0612/fsbridge/internal/checksum"
	"github.com/Ning0612/fsbridge/internal/config"
	"github.com/Ning0612/fsbridge/internal/fileio"
	"github.com/Ning0612/fsbridge/internal/job"
	"github.com/Ning0612/fsbridge/internal/logger"
	"github.com/Ning0612/fsbridge/internal/service"
)

func (a *app) hexdumpCommand() *cobra.Command {
	var localFile bool

	cmd := &cobra.Command{
		Use:   "hexdump <path>",
		Short: "Print the bytes of a backend or local file in hex",
		Long: `Print a file as space separated hex bytes.

Only the first 64 bytes are shown unless the verbosity is 3 or more (-vvv).

Examples:
  fsbridge -b synth hexdump /A/lead
  fsbridge hexdump --local lead.syx -vvv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error

			ctl, done := newControl(cmd.Context(), nil)
			defer done()

			if localFile {
				data, err = fileio.Load(config.ExpandPath(args[0]), ctl)
			} else {
				err = a.withTransfer(cmd, func(ctx context.Context, tr *service.Transfer) error {
					data, err = tr.Fetch(ctx, args[0], ctl)
					return err
				})
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), logger.HexDump(a.debugLevel(), data))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&localFile, "local", "l", false, "read a local file instead of a backend path")
	return cmd
}

func (a *app) sumCommand() *cobra.Command {
	var (
		localFile bool
		algo      string
	)

	cmd := &cobra.Command{
		Use:   "sum <path>",
		Short: "Print the checksum of a backend or local file",
		Long: `Print the checksum of a file (md5 or sha256).

Examples:
  fsbridge -b synth sum /A/lead
  fsbridge sum --local --algo sha256 lead.syx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alg := checksum.Algorithm(strings.ToLower(algo))
			if !checksum.IsSupported(alg) {
				return fmt.Errorf("unsupported checksum algorithm: %s", algo)
			}

			ctl, done := newControl(cmd.Context(), nil)
			defer done()

			var sum string
			var err error
			if localFile {
				sum, err = sumLocal(cmd.Context(), config.ExpandPath(args[0]), alg, ctl)
			} else {
				err = a.withTransfer(cmd, func(ctx context.Context, tr *service.Transfer) error {
					sum, err = tr.Checksum(ctx, args[0], alg, ctl)
					return err
				})
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&localFile, "local", "l", false, "read a local file instead of a backend path")
	cmd.Flags().StringVarP(&algo, "algo", "a", string(checksum.MD5), "checksum algorithm (md5, sha256)")
	return cmd
}

func sumLocal(ctx context.Context, path string, algo checksum.Algorithm, ctl *job.Control) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fileio.MapError(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fileio.MapError(err)
	}
	return checksum.Calculate(ctx, f, info.Size(), algo, ctl)
}

func (a *app) startupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "startup",
		Short: "Print the local directory a session starts in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.StartupPath(a.cfg.LocalDir, a.log))
			return nil
		},
	}
}

func (a *app) backendsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the configured backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tLOCATION\tEXTENSION")
			for _, t := range a.cfg.Transports {
				location := t.Root
				if t.Host != "" {
					location = "//" + t.Host + "/" + t.Share + "/" + strings.TrimPrefix(t.Root, "/")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, t.Type, location, t.Extension)
			}
			return w.Flush()
		},
	}
}
