// Package commands implements the CLI commands for splitup.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.trai.ch/splitup/internal/adapters/httpapi"
	"go.trai.ch/splitup/internal/build"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
	"go.trai.ch/zerr"
)

// EnvIdentity names the environment variable holding the default caller identity.
const EnvIdentity = "SPLITUP_IDENTITY"

// Application represents the application logic interface.
type Application interface {
	httpapi.Service
	Dispatch(ctx context.Context, id domain.ExecutionID) (int, error)
	ListenAndServe(ctx context.Context) error
	Authenticator() *httpapi.Authenticator
	Close() error
}

// Options select how the application is built for one command.
type Options struct {
	ConfigPath string
	LogLevel   string
	// Events replaces the event bus when set.
	Events ports.EventPublisher
}

// Provider builds the application for a command.
type Provider func(ctx context.Context, opts Options) (Application, error)

// EventRecorder is a publisher that remembers what it was given.
type EventRecorder interface {
	ports.EventPublisher
	Events() []domain.Event
}

// CLI represents the command line interface for splitup.
type CLI struct {
	provider    Provider
	newRecorder func() EventRecorder
	rootCmd     *cobra.Command

	configPath string
	logLevel   string
	identity   string
	showEvents bool
}

// New creates a new CLI instance building the application with provider.
// newRecorder backs the --events flag.
func New(provider Provider, newRecorder func() EventRecorder) *CLI {
	rootCmd := &cobra.Command{
		Use:           "splitup",
		Short:         "Orchestrate split model execution across staked nodes",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	c := &CLI{
		provider:    provider,
		newRecorder: newRecorder,
		rootCmd:     rootCmd,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "Configuration file (default $SPLITUP_CONFIG or splitup.yaml)")
	flags.StringVar(&c.logLevel, "log-level", "", "Override the configured log level")
	flags.StringVar(&c.identity, "as", os.Getenv(EnvIdentity), "Caller identity (default $"+EnvIdentity+")")
	flags.BoolVar(&c.showEvents, "events", false, "Print the events each operation emits")

	rootCmd.AddCommand(c.newVersionCmd())
	rootCmd.AddCommand(c.newServeCmd())
	rootCmd.AddCommand(c.newTokenCmd())
	rootCmd.AddCommand(c.newTaskCmd())
	rootCmd.AddCommand(c.newModelCmd())
	rootCmd.AddCommand(c.newNodeCmd())
	rootCmd.AddCommand(c.newExecCmd())
	rootCmd.AddCommand(c.newEventsCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

func (c *CLI) caller() (domain.Identity, error) {
	id := domain.Identity(c.identity)
	if !id.Valid() {
		return "", zerr.With(zerr.Wrap(domain.ErrInvalidIdentifier, "caller identity required"), "hint", "set --as or $"+EnvIdentity)
	}
	return id, nil
}

// with builds the application, runs fn against it and prints the events fn
// caused when --events is set.
func (c *CLI) with(cmd *cobra.Command, fn func(ctx context.Context, a Application) error) error {
	opts := Options{ConfigPath: c.configPath, LogLevel: c.logLevel}
	var rec EventRecorder
	if c.showEvents && c.newRecorder != nil {
		rec = c.newRecorder()
		opts.Events = rec
	}

	ctx := cmd.Context()
	a, err := c.provider(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := fn(ctx, a); err != nil {
		return err
	}
	if rec != nil {
		for _, e := range rec.Events() {
			renderEvent(cmd.OutOrStdout(), e)
		}
	}
	return nil
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmdo := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(cmdo, "splitup version %s (commit: %s, date: %s)\n", build.Version, build.Commit, build.Date)
		},
	}
}

func (c *CLI) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, the event stream and the dispatcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.provider(cmd.Context(), Options{ConfigPath: c.configPath, LogLevel: c.logLevel})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			return a.ListenAndServe(cmd.Context())
		},
	}
}

func (c *CLI) newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API bearer tokens",
	}

	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue <identity>",
		Short: "Issue a bearer token for identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.with(cmd, func(_ context.Context, a Application) error {
				token, err := a.Authenticator().Issue(domain.Identity(args[0]), ttl)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
				return err
			})
		},
	}
	issue.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.AddCommand(issue)

	return cmd
}
