package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/abdul-hamid-achik/restapi/packages/core/config"
	"github.com/abdul-hamid-achik/restapi/packages/core/env"
	"github.com/abdul-hamid-achik/restapi/packages/logging"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// app holds state shared by all commands of one invocation.
type app struct {
	configFlag   string
	envFileFlag  string
	logLevelFlag string
	logFileFlag  string
	noColorFlag  bool

	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
	stderr   io.Writer
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "restapi",
		Short: "Call REST APIs and check what comes back.",
		Long: `restapi sends HTTP requests to a REST API rooted at a base URL and
checks the response status, fields and schema. A failed check prints the
request parameters and an excerpt of the response body.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError(fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath()))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configFlag, "config", getEnvString("RESTAPI_CONFIG", ""), "Path to config file (env: RESTAPI_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&a.envFileFlag, "env-file", getEnvString("RESTAPI_ENV_FILE", ""), "Path to .env file exported before the config is read (env: RESTAPI_ENV_FILE)")
	rootCmd.PersistentFlags().StringVar(&a.logLevelFlag, "log-level", getEnvString("RESTAPI_LOG_LEVEL", ""), "Log level: debug, info, warn, error (env: RESTAPI_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&a.logFileFlag, "log-file", getEnvString("RESTAPI_LOG_FILE", ""), "Write logs to a rotating file instead of stderr (env: RESTAPI_LOG_FILE)")
	rootCmd.PersistentFlags().BoolVar(&a.noColorFlag, "no-color", getEnvBool("RESTAPI_NO_COLOR", false), "Disable colored output (env: RESTAPI_NO_COLOR)")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	rootCmd.AddCommand(newRequestCmd(a))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())
	return rootCmd
}

// setup exports the env file, loads the config and installs the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.envFileFlag != "" {
		if _, err := env.LoadAndExportDotEnv(a.envFileFlag); err != nil {
			return configError(fmt.Errorf("load env file: %w", err))
		}
	}

	cfg, err := config.LoadConfig(a.configFlag)
	if err != nil {
		return configError(err)
	}
	a.cfg = cfg.Merge(&config.Config{
		LogLevel: a.logLevelFlag,
		LogFile:  a.logFileFlag,
	})
	if a.noColorFlag {
		a.cfg.NoColor = config.BoolPtr(true)
	}
	if a.cfg.GetNoColor() {
		color.NoColor = true
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = a.cfg.LogLevel
	logCfg.FilePath = a.cfg.LogFile
	if logCfg.FilePath == "" {
		a.logger = logging.NewWithWriter(logCfg, a.stderr)
		return nil
	}

	logger, closeLog, err := logging.New(logCfg)
	if err != nil {
		return configError(fmt.Errorf("open log file: %w", err))
	}
	a.logger = logger
	a.closeLog = closeLog
	return nil
}

func (a *app) close() {
	if a.closeLog != nil {
		_ = a.closeLog()
	}
}

// Run executes the CLI with args and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	a := &app{stderr: stderr}
	defer a.close()

	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return exitCode(err)
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}
