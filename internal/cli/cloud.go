package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iqralabs/iqra/internal/mirror"
)

// NewCloudCommand creates the cloud command group.
func NewCloudCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cloud",
		Short: "Manage the optional realtime cloud mirror",
		Long: `Manage the optional realtime cloud mirror.

When connected, news, settings, and recent history are mirrored to the
cloud backend and changes made on other devices are pulled in. The
local database remains the source of truth; all state survives
disconnection.`,
	}

	cmd.AddCommand(newCloudConnectCommand(rootOpts))
	cmd.AddCommand(newCloudDisconnectCommand(rootOpts))
	cmd.AddCommand(newCloudStatusCommand(rootOpts))

	return cmd
}

func newCloudConnectCommand(rootOpts *RootOptions) *cobra.Command {
	var cfg mirror.Config

	cmd := &cobra.Command{
		Use:           "connect",
		Short:         "Connect to the cloud mirror and store the credentials",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.coord.Connect(cmd.Context(), cfg); err != nil {
				msg := fmt.Sprintf("cloud connect failed (%s)", mirror.Classify(err))
				return WrapExitError(ExitFailure, msg, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Connected. The mirror will resume automatically on next start.")
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.AccessKey, "access-key", "", "backend access key (required)")
	cmd.Flags().StringVar(&cfg.DatabaseURL, "database-url", "", "backend database URL (required)")
	cmd.Flags().StringVar(&cfg.ProjectID, "project-id", "", "backend project ID")
	cmd.Flags().StringVar(&cfg.AppID, "app-id", "", "backend app ID")
	_ = cmd.MarkFlagRequired("access-key")
	_ = cmd.MarkFlagRequired("database-url")

	return cmd
}

func newCloudDisconnectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "disconnect",
		Short:         "Disconnect from the cloud mirror and forget the credentials",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.coord.Disconnect(); err != nil {
				return WrapExitError(ExitFailure, "cloud disconnect failed", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Disconnected. Local data is unaffected.")
			return nil
		},
	}
}

func newCloudStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show the cloud mirror connection state",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			status := a.coord.Status()
			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				formatter := &OutputFormatter{Format: rootOpts.Format, Writer: out}
				return formatter.Success(map[string]any{
					"state":     status.State,
					"lastError": status.LastError,
					"category":  status.Category,
				})
			}

			fmt.Fprintf(out, "State: %s\n", status.State)
			if status.LastError != "" {
				fmt.Fprintf(out, "Last error: %s (%s)\n", status.LastError, status.Category)
			}
			return nil
		},
	}
}
