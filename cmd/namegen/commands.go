package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/hanko-field/namegen/internal/client"
)

type cliOptions struct {
	server  string
	timeout time.Duration
}

var healthStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "namegen",
		Short: "Generate Chinese names for English names",
		Long: `namegen talks to a running name generator server.

Available subcommands:
  generate - Suggest three Chinese names for an English name
  health   - Check that the server is up`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&opts.server, "server", client.DefaultBaseURL, "base URL of the name generator server")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", client.DefaultTimeout, "how long to wait for the server")

	root.AddCommand(newGenerateCmd(opts), newHealthCmd(opts))
	return root
}

func newGenerateCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "generate NAME...",
		Short:   "Suggest three Chinese names",
		Example: "  namegen generate John Smith",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), strings.Join(args, " "))
		},
	}
}

func newHealthCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealth(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
}

func runGenerate(ctx context.Context, opts *cliOptions, stdout, stderr io.Writer, name string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	session := client.NewSession(
		client.NewClient(opts.server, &http.Client{}),
		client.NewTerminalRenderer(stdout),
		client.WithTimeout(opts.timeout),
		client.WithNotifier(client.NewTerminalNotifier(stderr)),
	)
	if _, err := session.Submit(ctx, name); err != nil {
		if errors.Is(err, client.ErrDuplicateSubmission) {
			return nil
		}
		return errSilent{err}
	}
	return nil
}

func runHealth(ctx context.Context, opts *cliOptions, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	resp, err := client.NewClient(opts.server, &http.Client{}).Health(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("health check failed: %s", resp.Message)
	}
	fmt.Fprintf(stdout, "%s %s (version %s, %s)\n", healthStyle.Render("OK"), resp.Message, resp.Version, resp.Timestamp)
	return nil
}

// errSilent marks a failure the notifier has already shown to the user.
type errSilent struct{ err error }

func (e errSilent) Error() string { return e.err.Error() }
func (e errSilent) Unwrap() error { return e.err }
