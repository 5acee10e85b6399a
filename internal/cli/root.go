package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"crm-cli/internal/api"
	"crm-cli/internal/config"
	"crm-cli/internal/format"
	"crm-cli/internal/logger"
	"crm-cli/internal/session"
	"crm-cli/internal/store"
	"crm-cli/internal/tui"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

type App struct {
	APIURL     string
	PrettyJSON bool
	Format     string
	Verbose    bool

	cfg    *config.Config
	sess   *session.Session
	client *api.Client
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "crm",
		Short:        "CRM client (CLI + TUI)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  crm

  # Sign in once; the credential is kept in ~/.crm/local.sqlite
  crm login --username manager --password-stdin

  # Scriptable commands
  crm tasks list --overdue
  crm offers status 3 ACCEPTED

  # Direct lookup (shortcut for: crm customers show 12)
  crm customer-12
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return writeErr(cmd, err)
		}
		if app.APIURL != "" {
			cfg.APIURL = app.APIURL
			if err := cfg.Validate(); err != nil {
				return writeErr(cmd, err)
			}
		}
		app.cfg = cfg
		if !cmd.Flags().Changed("format") {
			app.Format = cfg.Format
		}
		// The TUI owns the terminal and logs to a file instead.
		if cmd != cmd.Root() {
			initCLILogger(cmd, app)
		}
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.APIURL, "api-url", "", "Backend base URL (default $CRM_API_URL or http://localhost:8080/api)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output (bordered tables with --format table)")
	cmd.PersistentFlags().StringVar(&app.Format, "format", "json", "Output format (json|table; default $CRM_FORMAT)")
	cmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "Log requests to stderr")

	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newWhoamiCmd(app))
	cmd.AddCommand(newRegisterCmd(app))
	cmd.AddCommand(newDashboardCmd(app))
	cmd.AddCommand(newCustomersCmd(app))
	cmd.AddCommand(newOffersCmd(app))
	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newUsersCmd(app))

	return cmd
}

func initCLILogger(cmd *cobra.Command, app *App) {
	level := "warn"
	if app.Verbose {
		level = "debug"
	}
	pretty := false
	if f, ok := cmd.ErrOrStderr().(*os.File); ok {
		pretty = isatty.IsTerminal(f.Fd())
	}
	logger.Init(logger.Options{Level: level, Pretty: pretty, Output: cmd.ErrOrStderr()})
}

func runTUI(cmd *cobra.Command, app *App) error {
	path, err := app.cfg.LogPath()
	if err != nil {
		return err
	}
	_, closer, err := logger.InitFile(path, app.cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closer.Close()

	c, err := app.connect(cmd.Context())
	if err != nil {
		return err
	}
	return tui.Run(cmd.Context(), c)
}

// connect builds the session and API client, restoring any persisted credential.
func (a *App) connect(ctx context.Context) (*api.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	dir, err := a.cfg.Dir()
	if err != nil {
		return nil, err
	}
	sess := session.New(store.Local{Dir: dir})
	if err := sess.Restore(ctx); err != nil {
		return nil, err
	}
	c, err := api.New(api.Options{BaseURL: a.cfg.APIURL, Timeout: a.cfg.Timeout, Session: sess})
	if err != nil {
		return nil, err
	}
	a.sess, a.client = sess, c
	return c, nil
}

// authed is connect for commands that need a signed-in principal. Role claims
// are refreshed so gate checks see the backend's view of the account.
func (a *App) authed(ctx context.Context) (*api.Client, error) {
	c, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	if !a.sess.Snapshot().Authenticated() {
		return nil, errNotLoggedIn
	}
	if err := c.RefreshPrincipal(ctx); err != nil {
		switch api.KindOf(err) {
		case api.KindUnauthorized:
			return nil, errSessionExpired
		case api.KindForbidden:
			// /users/me may be restricted; keep the username-derived role.
		default:
			return nil, err
		}
	}
	return c, nil
}

// writeOut wraps v in the {"data": ...} envelope. Tabular values render as a
// table when --format table is set.
func writeOut(cmd *cobra.Command, app *App, v any) error {
	if t, ok := v.(format.Tabular); ok && strings.EqualFold(strings.TrimSpace(app.Format), "table") {
		return format.Write(cmd.OutOrStdout(), t, app.Format, app.PrettyJSON)
	}
	return format.Write(cmd.OutOrStdout(), map[string]any{"data": v}, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), userMessage(err))
	return err
}
