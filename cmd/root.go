package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/zoolog/cmd/animals"
	"github.com/tphakala/zoolog/cmd/devices"
	"github.com/tphakala/zoolog/cmd/login"
	"github.com/tphakala/zoolog/cmd/logobs"
	"github.com/tphakala/zoolog/cmd/serve"
	"github.com/tphakala/zoolog/cmd/sos"
	"github.com/tphakala/zoolog/cmd/version"
	"github.com/tphakala/zoolog/internal/buildinfo"
	"github.com/tphakala/zoolog/internal/conf"
	"github.com/tphakala/zoolog/internal/logger"
	"github.com/tphakala/zoolog/internal/telemetry"
)

// sentryFlushTimeout bounds how long exit waits for queued error reports
const sentryFlushTimeout = 2 * time.Second

// RootCommand creates and returns the root command
func RootCommand(build *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	var (
		configFile string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:           "zoolog",
		Short:         "Zoo daily observation logger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (default: search standard locations)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	versionCmd := version.Command(build)
	subcommands := []*cobra.Command{
		serve.Command(settings, build),
		logobs.Command(settings, build),
		login.Command(settings, build),
		login.LogoutCommand(settings, build),
		login.WhoamiCommand(settings, build),
		animals.Command(settings, build),
		sos.Command(settings, build),
		devices.Command(),
		versionCmd,
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// version needs no config
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		loaded, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		*settings = *loaded
		if cmd.Flags().Changed("debug") {
			settings.Main.Debug = debug
		}
		return initialize(settings, build)
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		telemetry.Flush(sentryFlushTimeout)
		if err := logger.Global().Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "closing logs: %v\n", err)
		}
	}

	return rootCmd
}

// initialize sets up logging and telemetry once settings are loaded
func initialize(settings *conf.Settings, build buildinfo.BuildInfo) error {
	if settings.Main.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	if err := telemetry.InitSentry(settings, build); err != nil {
		// telemetry is optional, keep running without it
		central.Module("main").Warn("sentry initialization failed", logger.Error(err))
	}

	central.Module("main").Debug("configuration loaded",
		logger.String("config_file", settings.ConfigFile),
		logger.String("version", build.GetVersion()))
	return nil
}
