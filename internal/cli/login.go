package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/internal/app"
	"github.com/tiqology/superapp-go/token"
)

func newLoginCmd(g *globals) *cobra.Command {
	var email, password string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passwordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			return g.withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Session.Login(cmd.Context(), email, password); err != nil {
					return err
				}
				s := a.Session.Current()
				return g.render(cmd.OutOrStdout(), newSessionView(s), func(w io.Writer) {
					fmt.Fprintf(w, "Logged in as %s (%s)\n", s.User.Email, strings.Join(s.User.Roles, ", "))
				})
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

func newLogoutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd.Context(), func(a *app.App) error {
				a.Session.Logout(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
				return nil
			})
		},
	}
}

func newWhoamiCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd.Context(), func(a *app.App) error {
				s := a.Session.Current()
				v := newSessionView(s)
				return g.render(cmd.OutOrStdout(), v, func(w io.Writer) {
					if !s.IsAuthenticated {
						fmt.Fprintln(w, "Not logged in.")
						return
					}
					fmt.Fprintf(w, "%-18s %s\n", "Email:", s.User.Email)
					fmt.Fprintf(w, "%-18s %s\n", "Name:", s.User.Name)
					fmt.Fprintf(w, "%-18s %s\n", "ID:", s.User.ID)
					fmt.Fprintf(w, "%-18s %s\n", "Roles:", strings.Join(s.User.Roles, ", "))
					fmt.Fprintf(w, "%-18s %s\n", "Security:", yesNo(v.IsSecurity))
					fmt.Fprintf(w, "%-18s %s\n", "Enterprise admin:", yesNo(v.IsEnterpriseAdmin))
					if v.ExpiresAt != nil {
						fmt.Fprintf(w, "%-18s %s\n", "Token expires:", v.ExpiresAt.Format(time.RFC3339))
					}
				})
			})
		},
	}
}

func newRegisterCmd(g *globals) *cobra.Command {
	var reg tiqology.Registration

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long:  "Create an account. Registration does not sign in; run login afterwards.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd.Context(), func(a *app.App) error {
				res, err := a.Auth.Register(cmd.Context(), reg)
				if err != nil {
					return err
				}
				return g.render(cmd.OutOrStdout(), res.User, func(w io.Writer) {
					fmt.Fprintf(w, "Registered %s. Run 'tiqology login' to sign in.\n", res.User.Email)
				})
			})
		},
	}

	cmd.Flags().StringVar(&reg.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "Account password")
	cmd.Flags().StringVar(&reg.Name, "name", "", "Display name")
	return cmd
}

// sessionView is the printable form of a session. The token is never shown.
type sessionView struct {
	Authenticated     bool           `json:"authenticated"`
	User              *tiqology.User `json:"user,omitempty"`
	IsSecurity        bool           `json:"isSecurity"`
	IsEnterpriseAdmin bool           `json:"isEnterpriseAdmin"`
	ExpiresAt         *time.Time     `json:"expiresAt,omitempty"`
}

func newSessionView(s tiqology.Session) sessionView {
	v := sessionView{
		Authenticated:     s.IsAuthenticated,
		User:              s.User,
		IsSecurity:        s.IsSecurity(),
		IsEnterpriseAdmin: s.IsEnterpriseAdmin(),
	}
	if s.IsAuthenticated {
		// Opaque tokens carry no expiry.
		if c, err := token.Inspect(s.Token); err == nil && !c.ExpiresAt.IsZero() {
			v.ExpiresAt = &c.ExpiresAt
		}
	}
	return v
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
