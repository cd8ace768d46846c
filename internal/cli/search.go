package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"whispr/internal/observability"
	"whispr/internal/views"
)

func (c *CLI) searchCmd() *cobra.Command {
	var follow string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find users by handle among recent post authors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := views.NewSearchView(c.app.client, c.app.session, c.app.notifier)
			defer v.Close()
			if err := v.Search(cmd.Context(), strings.Join(args, " ")); err != nil {
				return remoteFailure("search", err)
			}
			if follow != "" {
				if err := c.app.requireLogin(); err != nil {
					return err
				}
				if err := v.ToggleFollow(cmd.Context(), follow); err != nil {
					return remoteFailure("follow", err)
				}
			}
			return c.out.users(v.Results(), v.IsFollowing)
		},
	}
	cmd.Flags().StringVar(&follow, "toggle-follow", "", "toggle following the user with this id, then search again")
	return cmd
}

func (c *CLI) metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print this process's client metrics in Prometheus text format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return observability.WriteMetrics(c.opts.Stdout)
		},
	}
}
