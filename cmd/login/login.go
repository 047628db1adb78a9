package login

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tphakala/zoolog/internal/app"
	"github.com/tphakala/zoolog/internal/buildinfo"
	"github.com/tphakala/zoolog/internal/conf"
	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/i18n"
)

// Command creates the login command
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var (
		username      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the zoo backend and store the credential",
		Long: `Log in with your zoo account. The access token is stored in the local
database and reused by the other commands until it expires.

Examples:
  zoolog login --username keeper@zoo.example
  echo "$PASSWORD" | zoolog login --username keeper@zoo.example --password-stdin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			if username == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Email: ")
				line, err := in.ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				username = strings.TrimSpace(line)
			}

			password, err := readPassword(cmd, in, passwordStdin)
			if err != nil {
				return err
			}
			if username == "" || password == "" {
				return errors.Newf("username and password are required").
					Component("cli").
					Category(errors.CategoryValidation).
					Build()
			}

			a, err := app.New(settings, build)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", user.Name, user.Role)
			if !user.Role.CanLogObservations() {
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T(a.Context.Language(), i18n.MsgNotAllowed))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Account email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")

	return cmd
}

// readPassword prompts without echo on a terminal and reads a line otherwise
func readPassword(cmd *cobra.Command, in *bufio.Reader, fromStdin bool) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && !fromStdin && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// LogoutCommand creates the logout command
func LogoutCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings, build)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

// WhoamiCommand creates the whoami command
func WhoamiCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings, build)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.Restore(cmd.Context())
			if errors.Is(err, app.ErrNotLoggedIn) {
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T(a.Context.Language(), i18n.MsgLoginRequired))
				return nil
			}
			if err != nil {
				return err
			}

			if verify {
				profile, err := a.Backend.Me(cmd.Context())
				if err != nil {
					return err
				}
				user.Name, user.Email = profile.Name, profile.Email
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:   %s\n", user.Name)
			fmt.Fprintf(out, "Email:  %s\n", user.Email)
			fmt.Fprintf(out, "Role:   %s\n", user.Role)
			fmt.Fprintf(out, "Can log observations: %t\n", user.Role.CanLogObservations())
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Fetch the profile from the backend")

	return cmd
}
