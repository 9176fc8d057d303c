package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/searchapi-console/internal/client"
	"github.com/searchapi-console/internal/model"
	"github.com/searchapi-console/internal/validation"
)

// passwordFlags resolves --password and --password-stdin.
type passwordFlags struct {
	password string
	stdin    bool
}

func (p *passwordFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.password, "password", "", "account password")
	cmd.Flags().BoolVar(&p.stdin, "password-stdin", false, "read the password from stdin")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
}

func (p *passwordFlags) resolve(cmd *cobra.Command) (string, error) {
	if p.stdin {
		return readSecret(cmd.InOrStdin())
	}
	return p.password, nil
}

func newLoginCmd(opts *options) *cobra.Command {
	var (
		email string
		pw    passwordFlags
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := pw.resolve(cmd)
			if err != nil {
				return err
			}
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.session.Login(cmd.Context(), email, password); err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), a.session.State())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", strings.TrimSpace(email))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	pw.register(cmd)
	return cmd
}

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newRegisterCmd(opts *options) *cobra.Command {
	var (
		reg model.Registration
		pw  passwordFlags
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a dashboard account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := pw.resolve(cmd)
			if err != nil {
				return err
			}
			reg.Password = password
			if err := validation.Registration(reg); err != nil {
				return client.NewValidation(err.Error())
			}

			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			acct, err := a.client.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), acct)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s. Run `searchctl login` to sign in.\n", acct.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&reg.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "account email")
	pw.register(cmd)
	return cmd
}

func newWhoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.session.IsLoggedIn() {
				return errNotLoggedIn
			}
			acct, err := a.client.Me(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), acct)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s <%s>\n", acct.FirstName, acct.LastName, acct.Email)
			return nil
		},
	}
}

type statusOutput struct {
	Status         model.SessionStatus `json:"status"`
	LoggedIn       bool                `json:"logged_in"`
	APIURL         string              `json:"api_url"`
	Backend        string              `json:"credential_store"`
	TokenExpiresAt *time.Time          `json:"token_expires_at,omitempty"`
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session state without contacting the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			state := a.session.State()
			out := statusOutput{
				Status:   state.Status,
				LoggedIn: state.Status.LoggedIn(),
				APIURL:   a.cfg.APIURL,
				Backend:  a.cfg.CredentialStore,
			}
			if exp, ok, err := a.session.TokenExpiry(cmd.Context()); err != nil {
				return err
			} else if ok {
				out.TokenExpiresAt = &exp
			}

			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), out)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintf(tw, "Session:\t%s\n", out.Status)
			fmt.Fprintf(tw, "API:\t%s\n", out.APIURL)
			fmt.Fprintf(tw, "Credentials:\t%s\n", out.Backend)
			if out.TokenExpiresAt != nil {
				fmt.Fprintf(tw, "Token expires:\t%s\n", out.TokenExpiresAt.Local().Format(time.RFC1123))
			}
			return tw.Flush()
		},
	}
}
