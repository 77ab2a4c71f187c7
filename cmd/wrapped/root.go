package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vadim/barkwrapped/internal/app"
	"github.com/vadim/barkwrapped/internal/config"
	"github.com/vadim/barkwrapped/internal/domain/wrapped/policy"
	"github.com/vadim/barkwrapped/internal/logging"
)

// errRunFailed makes the process exit with status 1 after a run did not succeed
var errRunFailed = errors.New("wrapped run did not succeed")

func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "wrapped",
		Short:         "Year-in-review image generator for Misskey and Twitter users",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (environment variables are used when empty)")

	rootCmd.AddCommand(newServeCmd(&cfgFile))
	rootCmd.AddCommand(newRunCmd(&cfgFile))

	return rootCmd
}

func loadConfig(path string) (config.Config, *slog.Logger, error) {
	var (
		cfg config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// newServeCmd runs the HTTP API and, when enabled, the mention listener
func newServeCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and listen for mentions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*cfgFile)
			if err != nil {
				return err
			}

			application, err := app.NewApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("initializing application: %w", err)
			}

			// blocks until shutdown
			return application.Run(cmd.Context())
		},
	}
}

// newRunCmd generates the Wrapped of one user and prints the outcome as JSON
func newRunCmd(cfgFile *string) *cobra.Command {
	var replyTo string

	cmd := &cobra.Command{
		Use:   "run <username>",
		Short: "Generate the Wrapped of one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*cfgFile)
			if err != nil {
				return err
			}

			deps, err := app.NewDependencies(cmd.Context(), cfg, nil, logger)
			if err != nil {
				return err
			}

			out, _ := deps.Policy.Run(cmd.Context(), policy.RunInput{
				Username:  args[0],
				ReplyToID: replyTo,
			})

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}

			if !out.Succeeded() {
				return errRunFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&replyTo, "reply-to", "", "note id to reply to with the images (bark variant)")

	return cmd
}
