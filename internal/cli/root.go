// Package cli implements the fsbridge command line
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ning0612/fsbridge/internal/config"
	"github.com/Ning0612/fsbridge/internal/domain"
	"github.com/Ning0612/fsbridge/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
)

// SetVersion sets the version info for --version flag
func SetVersion(v, c string) {
	version = v
	commit = c
}

// app holds the state shared by every command of one invocation
type app struct {
	configPath string
	verbosity  int
	backend    string

	cfg *config.Config
	log logger.Logger
}

// NewRootCommand builds the fsbridge command tree
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "fsbridge",
		Short: "Move files between the local filesystem and remote backends",
		Long: `fsbridge moves files between the local filesystem and remote backends:
slot-addressed devices, Google Drive, SMB shares and local directories.

Backends are configured under "transports" in config.yaml; pick one with --backend.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return a.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.log != nil {
				return a.log.Shutdown()
			}
			return nil
		},
	}

	root.CompletionOptions.DisableDefaultCmd = true
	root.SetVersionTemplate("fsbridge version {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default: search ./, ./configs, user config dir, ~/.fsbridge)")
	flags.CountVarP(&a.verbosity, "verbose", "v", "debug verbosity (repeat for more, -vvv for full hex dumps)")
	flags.StringVarP(&a.backend, "backend", "b", "", "backend (transport name) to operate on")

	root.AddCommand(
		a.lsCommand(),
		a.getCommand(),
		a.putCommand(),
		a.mkdirCommand(),
		a.rmCommand(),
		a.mvCommand(),
		a.cpCommand(),
		a.renameCommand(),
		a.clearCommand(),
		a.swapCommand(),
		a.hexdumpCommand(),
		a.sumCommand(),
		a.historyCommand(),
		a.startupCommand(),
		a.backendsCommand(),
		a.authCommand(),
		a.credsCommand(),
	)

	return root
}

// init loads the configuration and builds the logger
func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if errors.Is(err, domain.ErrConfigNotFound) && a.configPath == "" {
		cfg, err = config.Default()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LoggerConfig(a.verbosity))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.cfg = cfg
	a.log = log
	return nil
}

// debugLevel is the verbosity in effect: the -v count, else debug_level
func (a *app) debugLevel() logger.Verbosity {
	if a.verbosity > 0 || a.cfg == nil {
		return logger.Verbosity(a.verbosity)
	}
	return logger.Verbosity(a.cfg.DebugLevel)
}

// Execute runs the root command until done or interrupted
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}
