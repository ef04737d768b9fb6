package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Ning0612/fsbridge/internal/config"
	"github.com/Ning0612/fsbridge/internal/job"
	"github.com/Ning0612/fsbridge/internal/progress"
	"github.com/Ning0612/fsbridge/internal/service"
)

const progressWidth = 30

// newControl returns a job handle that draws a progress bar on w (nil
// for none) and is canceled together with ctx.
func newControl(ctx context.Context, w io.Writer) (*job.Control, func()) {
	var report job.ProgressFunc
	if w != nil {
		report = func(fraction float64) {
			fmt.Fprintf(w, "\r%s", progress.FormatProgress(fraction, progressWidth))
		}
	}
	ctl := job.New(report)
	// AfterFunc runs in its own goroutine, so an already done ctx is
	// handled here to stop the job before its first chunk
	if ctx.Err() != nil {
		ctl.Cancel()
	}
	stop := context.AfterFunc(ctx, ctl.Cancel)

	return ctl, func() {
		stop()
		if w != nil {
			fmt.Fprintln(w)
		}
	}
}

func (a *app) progressWriter(cmd *cobra.Command, quiet bool) io.Writer {
	if quiet {
		return nil
	}
	return cmd.ErrOrStderr()
}

func (a *app) getCommand() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "get <remote-path> [local-dir]",
		Short: "Download a file from the backend",
		Long: `Download a file from the backend into a local directory.

The local file is named after the remote entry, with the backend extension
appended. Without local-dir the startup directory is used (local_dir, or home).

Examples:
  fsbridge -b synth get /A/lead
  fsbridge -b nas get /music/take1.wav ~/Downloads`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			localDir := ""
			if len(args) > 1 {
				localDir = config.ExpandPath(args[1])
			} else {
				localDir = config.StartupPath(a.cfg.LocalDir, a.log)
			}

			return a.withTransfer(cmd, func(ctx context.Context, tr *service.Transfer) error {
				ctl, done := newControl(ctx, a.progressWriter(cmd, quiet))
				localPath, err := tr.Download(ctx, args[0], localDir, ctl)
				done()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), localPath)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not draw a progress bar")
	return cmd
}

func (a *app) putCommand() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "put <local-file> [remote-dir]",
		Short: "Upload a file to the backend",
		Long: `Upload a local file into a backend directory (default "/").

A local file carrying the backend extension is stored without it.

Examples:
  fsbridge -b synth put lead.syx /A
  fsbridge -b drive put notes.txt /Docs`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			remoteDir := "/"
			if len(args) > 1 {
				remoteDir = args[1]
			}
			localPath := config.ExpandPath(args[0])

			return a.withTransfer(cmd, func(ctx context.Context, tr *service.Transfer) error {
				ctl, done := newControl(ctx, a.progressWriter(cmd, quiet))
				remotePath, err := tr.Upload(ctx, localPath, remoteDir, ctl)
				done()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), remotePath)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not draw a progress bar")
	return cmd
}
