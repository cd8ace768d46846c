package cli

import (
	"github.com/spf13/cobra"

	"whispr/internal/api"
	"whispr/internal/models"
)

func (c *CLI) signupCmd() *cobra.Command {
	var req models.SignupRequest
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.Password == "" {
				pw, err := c.readPassword("Password: ")
				if err != nil {
					return err
				}
				req.Password = pw
			}
			user, err := c.app.auth.Signup(cmd.Context(), req)
			if err != nil {
				return remoteFailure("signup", err)
			}
			return c.out.message("Welcome to Whispr, @%s", user.Username)
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Name, "name", "", "display name")
	f.StringVar(&req.Username, "username", "", "handle")
	f.StringVar(&req.Email, "email", "", "email address")
	f.StringVar(&req.Password, "password", "", "password (prompted when omitted)")
	return cmd
}

func (c *CLI) loginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Log in and remember the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				pw, err := c.readPassword("Password: ")
				if err != nil {
					return err
				}
				password = pw
			}
			user, err := c.app.auth.Login(cmd.Context(), args[0], password)
			if err != nil {
				return remoteFailure("login", err)
			}
			return c.out.message("Logged in as @%s", user.Username)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	return cmd
}

func (c *CLI) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.auth.Logout(cmd.Context()); err != nil {
				return remoteFailure("logout", err)
			}
			return c.out.message("Logged out")
		},
	}
}

func (c *CLI) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.printSession()
		},
	}
}

func (c *CLI) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload the logged in user's profile from the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.requireLogin(); err != nil {
				return err
			}
			if err := c.app.session.Refresh(cmd.Context()); err != nil {
				return remoteFailure("refresh", err)
			}
			return c.printSession()
		},
	}
}

func (c *CLI) printSession() error {
	user := c.app.session.Current()
	if user == nil {
		return c.out.message("Not logged in")
	}
	return c.out.emit(user, func() { c.out.user(user, false) })
}

// commandError reports a failed operation with the backend's message
// and keeps the cause reachable through errors.Is and errors.As.
type commandError struct {
	op  string
	msg string
	err error
}

func (e *commandError) Error() string { return e.op + ": " + e.msg }

func (e *commandError) Unwrap() error { return e.err }

// remoteFailure turns a backend error into the message the user sees.
func remoteFailure(op string, err error) error {
	return &commandError{op: op, msg: api.Message(err), err: err}
}
