package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	tiqology "github.com/tiqology/superapp-go"
	"github.com/tiqology/superapp-go/internal/app"
)

func newOrgsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orgs",
		Short: "Read organizations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List organizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd.Context(), func(a *app.App) error {
				orgs, err := a.Orgs.List(cmd.Context())
				if err != nil {
					return err
				}
				return g.render(cmd.OutOrStdout(), orgs, func(w io.Writer) {
					if len(orgs) == 0 {
						fmt.Fprintln(w, "No organizations found.")
						return
					}
					fmt.Fprintf(w, "%-10s  %-30s  %-12s  %-8s  %s\n", "ID", "NAME", "TYPE", "ACTIVE", "MEMBERS")
					for _, o := range orgs {
						fmt.Fprintf(w, "%-10s  %-30s  %-12s  %-8s  %d\n", o.ID, o.Name, o.OrganizationType, yesNo(o.Active), o.MemberCount)
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd.Context(), func(a *app.App) error {
				org, err := a.Orgs.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return g.render(cmd.OutOrStdout(), org, func(w io.Writer) {
					printOrganization(w, org)
				})
			})
		},
	})

	return cmd
}

func printOrganization(w io.Writer, o *tiqology.Organization) {
	fmt.Fprintf(w, "%-12s %s\n", "ID:", o.ID)
	fmt.Fprintf(w, "%-12s %s\n", "Name:", o.Name)
	fmt.Fprintf(w, "%-12s %s\n", "Type:", o.OrganizationType)
	fmt.Fprintf(w, "%-12s %s\n", "Active:", yesNo(o.Active))
	if o.Plan != "" {
		fmt.Fprintf(w, "%-12s %s\n", "Plan:", o.Plan)
	}
	if o.Website != "" {
		fmt.Fprintf(w, "%-12s %s\n", "Website:", o.Website)
	}
	if o.Description != "" {
		fmt.Fprintf(w, "%-12s %s\n", "About:", o.Description)
	}
}

func newSnapshotCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Show the dashboard snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withApp(cmd.Context(), func(a *app.App) error {
				snap, err := a.Dashboard.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				return g.render(cmd.OutOrStdout(), snap, func(w io.Writer) {
					fmt.Fprintf(w, "Organization: %s\n", snap.Organization.Name)
					fmt.Fprintf(w, "\nPosts (%d)\n", len(snap.Posts))
					for _, p := range snap.Posts {
						fmt.Fprintf(w, "  - %s\n", p.Title)
					}
					fmt.Fprintf(w, "\nEvents (%d)\n", len(snap.Events))
					for _, e := range snap.Events {
						fmt.Fprintf(w, "  - %s %s\n", e.Title, e.StartTime)
					}
					fmt.Fprintf(w, "\nTasks (%d)\n", len(snap.Tasks))
					for _, t := range snap.Tasks {
						fmt.Fprintf(w, "  - [%s] %s (%s)\n", t.Status, t.Title, t.Priority)
					}
				})
			})
		},
	}
}
