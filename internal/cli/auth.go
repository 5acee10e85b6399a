package cli

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"crm-cli/internal/api"
	"crm-cli/internal/forms"
	"crm-cli/internal/model"
	"crm-cli/internal/perm"

	"github.com/spf13/cobra"
)

type whoami struct {
	Username     string            `json:"username"`
	State        string            `json:"state"`
	Role         perm.Role         `json:"role"`
	RoleSource   perm.Source       `json:"roleSource"`
	RoleClaims   []string          `json:"roleClaims,omitempty"`
	Capabilities perm.Capabilities `json:"capabilities"`
}

func describeSession(app *App) whoami {
	snap := app.sess.Snapshot()
	res := perm.Resolve(snap.Principal)
	out := whoami{
		State:        snap.State.String(),
		Role:         res.Role,
		RoleSource:   res.Source,
		Capabilities: perm.For(res.Role),
	}
	if snap.Principal != nil {
		out.Username = snap.Principal.Username
		out.RoleClaims = snap.Principal.RoleClaims
	}
	return out
}

func readPassword(cmd *cobra.Command, fromStdin bool, flag string) (string, error) {
	if !fromStdin {
		return flag, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLoginCmd(app *App) *cobra.Command {
	var (
		username      string
		password      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the credential",
		Long: strings.TrimSpace(`
Validates the credential against the backend and stores it locally.

The role comes from the backend's role claims when it reports them;
otherwise accounts named admin, manager or user get that role.
`),
		Example: strings.TrimSpace(`
crm login --username manager --password secret
printf 'secret\n' | crm login --username manager --password-stdin
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, passwordStdin, password)
			if err != nil {
				return writeErr(cmd, err)
			}
			c, err := app.connect(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if _, err := c.Login(cmd.Context(), username, pw); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, describeSession(app))
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Username (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("username")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.connect(cmd.Context()); err != nil {
				return writeErr(cmd, err)
			}
			if err := app.sess.Logout(cmd.Context()); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, describeSession(app))
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in principal, role and capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.authed(cmd.Context()); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, describeSession(app))
		},
	}
}

func newRegisterCmd(app *App) *cobra.Command {
	var (
		in            model.RegisterInput
		passwordStdin bool
		noLogin       bool
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Example: strings.TrimSpace(`
crm register --username alice --email alice@example.com --password secret1
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, passwordStdin, in.Password)
			if err != nil {
				return writeErr(cmd, err)
			}
			in.Password = pw
			if in.ConfirmPassword == "" {
				in.ConfirmPassword = pw
			}
			if err := forms.ValidateRegister(in); err != nil {
				return writeErr(cmd, err)
			}
			c, err := app.connect(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := c.Register(cmd.Context(), in); err != nil {
				return writeErr(cmd, err)
			}
			if noLogin {
				return writeOut(cmd, app, map[string]any{"username": in.Username, "registered": true})
			}
			if _, err := c.Login(cmd.Context(), in.Username, in.Password); err != nil {
				if api.KindOf(err) == api.KindNetwork {
					return writeErr(cmd, err)
				}
				return writeErr(cmd, errors.New("registered, but signing in failed: "+userMessage(err)))
			}
			return writeOut(cmd, app, describeSession(app))
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "Username, 3 to 50 characters (required)")
	cmd.Flags().StringVar(&in.Email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&in.Password, "password", "", "Password, at least 6 characters")
	cmd.Flags().StringVar(&in.ConfirmPassword, "confirm-password", "", "Password confirmation (defaults to --password)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	cmd.Flags().BoolVar(&noLogin, "no-login", false, "Do not sign in after registering")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
